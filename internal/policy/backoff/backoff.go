// Package backoff decides how to react to upstream rate limiting.
// The decision is a pure function of the attempt count and the
// response's Retry-After value, so it is testable without a network.
package backoff

import "time"

// Bounds applied to server-provided and computed delays.
const (
	minRetryAfter = 1 * time.Second
	maxRetryAfter = 120 * time.Second
	minBackoff    = 250 * time.Millisecond
	maxBackoff    = 30 * time.Second
)

// Policy holds the rate-limit retry budget and base delay.
type Policy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int
	// BaseDelay seeds the exponential backoff when the upstream did
	// not provide a Retry-After.
	BaseDelay time.Duration
}

// Decision is the explicit next action for a rate-limited page fetch.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Next returns the action for a 429 observed on the given attempt
// (0-based). When the server supplied a Retry-After it is honored
// verbatim, clamped to [1s, 120s]; otherwise the delay doubles per
// attempt from BaseDelay, clamped to [250ms, 30s]. No jitter: delays
// are deterministic so tests can assert them exactly.
func (p Policy) Next(attempt int, retryAfter time.Duration, hasRetryAfter bool) Decision {
	if attempt >= p.MaxRetries {
		return Decision{}
	}
	if hasRetryAfter {
		return Decision{Retry: true, Delay: clamp(retryAfter, minRetryAfter, maxRetryAfter)}
	}
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxBackoff {
			delay = maxBackoff
			break
		}
	}
	return Decision{Retry: true, Delay: clamp(delay, minBackoff, maxBackoff)}
}

func clamp(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
