package pacing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitFirstCallImmediate(t *testing.T) {
	t.Parallel()

	p := New(500 * time.Millisecond)

	start := time.Now()
	require.NoError(t, p.Wait(context.Background(), "storea"))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitEnforcesInterval(t *testing.T) {
	t.Parallel()

	p := New(50 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, p.Wait(ctx, "storea"))
	start := time.Now()
	require.NoError(t, p.Wait(ctx, "storea"))
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestWaitStoresIndependent(t *testing.T) {
	t.Parallel()

	p := New(time.Second)
	ctx := context.Background()

	require.NoError(t, p.Wait(ctx, "storea"))

	// A different store is not delayed by storea's token.
	start := time.Now()
	require.NoError(t, p.Wait(ctx, "storeb"))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitDisabled(t *testing.T) {
	t.Parallel()

	p := New(0)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Wait(ctx, "storea"))
	}
}

func TestWaitCanceled(t *testing.T) {
	t.Parallel()

	p := New(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, p.Wait(ctx, "storea"))
	cancel()
	require.Error(t, p.Wait(ctx, "storea"))
}

func TestForgetResetsStore(t *testing.T) {
	t.Parallel()

	p := New(time.Minute)
	ctx := context.Background()

	require.NoError(t, p.Wait(ctx, "storea"))
	p.Forget("storea")

	start := time.Now()
	require.NoError(t, p.Wait(ctx, "storea"))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}
