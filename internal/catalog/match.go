package catalog

import "strings"

// Filter holds the optional compatibility criteria of one query.
// Values are matched case-insensitively; whitespace-only values count
// as absent.
type Filter struct {
	Make   string
	Model  string
	Engine string
}

// IsZero reports whether no usable filter value was supplied.
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Make) == "" &&
		strings.TrimSpace(f.Model) == "" &&
		strings.TrimSpace(f.Engine) == ""
}

// Matches reports whether the mod satisfies every supplied filter.
// Each filter matches independently: its folded value must occur as a
// substring of the mod's folded search text. The engine filter also
// matches against the compact (space-stripped) text so "N 20" finds
// "N20" and vice versa.
func (f Filter) Matches(m Mod) bool {
	text := SearchText(m)

	if v := NormalizeMatchText(f.Make); v != "" && !strings.Contains(text, v) {
		return false
	}
	if v := NormalizeMatchText(f.Model); v != "" && !strings.Contains(text, v) {
		return false
	}
	if v := NormalizeMatchText(f.Engine); v != "" {
		compact := strings.ReplaceAll(v, " ", "")
		if !strings.Contains(text, v) &&
			!strings.Contains(strings.ReplaceAll(text, " ", ""), compact) {
			return false
		}
	}
	return true
}

// NormalizeMatchText folds a value for matching: ASCII alphanumerics
// are lowercased, every other rune becomes a space, and runs of spaces
// collapse to one. Tags keep their original casing in storage; only
// matching is folded.
func NormalizeMatchText(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// SearchText builds the folded haystack for a mod: title, vendor,
// product type, and every tag, folded and joined with single spaces.
// The persistence layer stores this in a search_text column so filters
// run as SQL LIKE; the in-memory store computes it on the fly.
func SearchText(m Mod) string {
	parts := make([]string, 0, len(m.Tags)+3)
	for _, source := range []string{m.Title, m.Vendor, m.ProductType} {
		if folded := NormalizeMatchText(source); folded != "" {
			parts = append(parts, folded)
		}
	}
	for _, tag := range m.Tags {
		if folded := NormalizeMatchText(tag); folded != "" {
			parts = append(parts, folded)
		}
	}
	return strings.Join(parts, " ")
}

// CompactSearchText is SearchText with spaces removed, used for
// engine-code matching where upstreams disagree about spacing.
func CompactSearchText(m Mod) string {
	return strings.ReplaceAll(SearchText(m), " ", "")
}
