package circuit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errPrimary = errors.New("primary down")

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var transitions []State
	b := New("captures",
		WithFailureThreshold(3),
		WithSuccessThreshold(2),
		WithStateListener(func(name string, to State) {
			assert.Equal(t, "captures", name)
			transitions = append(transitions, to)
		}),
	)

	for range 2 {
		useFallback, change := b.RecordFailure()
		assert.False(t, useFallback)
		assert.False(t, change.Opened)
	}
	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())

	usePrimary, _ := b.RecordSuccess()
	assert.False(t, usePrimary, "one success is not enough to close")
	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []State{StateOpen, StateClosed}, transitions)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := New("captures", WithFailureThreshold(2))
	b.RecordFailure()
	b.RecordSuccess()
	useFallback, _ := b.RecordFailure()
	assert.False(t, useFallback)
	assert.False(t, b.IsOpen())
}

func TestBreakerFailureWhileOpenResetsSuccesses(t *testing.T) {
	b := New("captures", WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	usePrimary, _ := b.RecordSuccess()
	assert.False(t, usePrimary)
	assert.True(t, b.IsOpen())
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	failing := func(context.Context) error { return errPrimary }
	ok := func(context.Context) error { return nil }

	t.Run("below threshold returns the primary error", func(t *testing.T) {
		b := New("captures", WithFailureThreshold(2))
		fallbackCalls := 0
		err := b.Execute(ctx, failing, func(context.Context) error { fallbackCalls++; return nil })
		assert.ErrorIs(t, err, errPrimary)
		assert.Zero(t, fallbackCalls)
	})

	t.Run("open breaker serves the fallback", func(t *testing.T) {
		b := New("captures", WithFailureThreshold(1))
		fallbackCalls := 0
		fallback := func(context.Context) error { fallbackCalls++; return nil }
		require.NoError(t, b.Execute(ctx, failing, fallback))
		require.NoError(t, b.Execute(ctx, failing, fallback))
		assert.Equal(t, 2, fallbackCalls)
	})

	t.Run("primary is retried while open", func(t *testing.T) {
		b := New("captures", WithFailureThreshold(1), WithSuccessThreshold(1))
		require.NoError(t, b.Execute(ctx, failing, ok))
		require.NoError(t, b.Execute(ctx, ok, failing))
		assert.False(t, b.IsOpen())
	})

	t.Run("cancelled context does not count", func(t *testing.T) {
		b := New("captures", WithFailureThreshold(1))
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := b.Execute(cctx, failing, ok)
		assert.ErrorIs(t, err, errPrimary)
		assert.False(t, b.IsOpen())
	})
}
