package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRedisDown = errors.New("redis down")

func fail() error { return errRedisDown }
func succeed() error { return nil }

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker("cache", Config{
		FailureThreshold: 3,
		Timeout:          time.Minute,
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, fail), errRedisDown)
	assert.ErrorIs(t, cb.Execute(ctx, fail), errRedisDown)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State(), "a success resets the failure streak")

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errRedisDown)
	}
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker("cache", Config{FailureThreshold: 1, Timeout: 30 * time.Second})
	clock := time.Unix(1700000000, 0)
	cb.now = func() time.Time { return clock }
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, fail))
	require.Equal(t, StateOpen, cb.State())

	clock = clock.Add(29 * time.Second)
	assert.Equal(t, StateOpen, cb.State())

	clock = clock.Add(time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.Error(t, cb.Execute(ctx, fail))
	assert.Equal(t, StateOpen, cb.State(), "a failed trial reopens")

	clock = clock.Add(30 * time.Second)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerLimitsHalfOpenTrials(t *testing.T) {
	cb := NewCircuitBreaker("cache", Config{FailureThreshold: 1, Timeout: time.Second})
	clock := time.Unix(1700000000, 0)
	cb.now = func() time.Time { return clock }
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, fail))
	clock = clock.Add(time.Second)

	err := cb.Execute(ctx, func() error {
		assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrTooManyRequests)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker("cache", Config{FailureThreshold: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, cb.Execute(ctx, fail), context.Canceled)

	err := cb.Execute(context.Background(), func() error { return context.DeadlineExceeded })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateClosed, cb.State())
	assert.Zero(t, cb.Counts().Requests)
}

func TestBreakerCountsPanicsAsFailures(t *testing.T) {
	cb := NewCircuitBreaker("cache", Config{FailureThreshold: 1})

	assert.Panics(t, func() {
		_ = cb.Execute(context.Background(), func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, cb.State())
}
