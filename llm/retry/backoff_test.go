package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leafwise/leafwise/types"
)

func fastPolicy(maxRetries int) *Policy {
	return &Policy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestBackoffRetryer_SucceedsAfterTransientFailure(t *testing.T) {
	t.Parallel()
	r := NewBackoffRetryer(fastPolicy(2), zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		if calls < 2 {
			return types.NewError(types.ErrUpstreamError, "boom").WithRetryable(true)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestBackoffRetryer_DoesNotRetryFatalErrors(t *testing.T) {
	t.Parallel()
	r := NewBackoffRetryer(fastPolicy(3), zap.NewNop())

	fatal := types.NewError(types.ErrUnauthorized, "bad key").WithRetryable(false)
	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return fatal
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, types.ErrUnauthorized, types.GetErrorCode(err))
}

func TestBackoffRetryer_ExhaustsBudget(t *testing.T) {
	t.Parallel()
	r := NewBackoffRetryer(fastPolicy(1), zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return types.NewError(types.ErrUpstreamError, "still down").WithRetryable(true)
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls, "initial attempt plus one retry")

	var terr *types.Error
	assert.True(t, errors.As(err, &terr))
}

func TestBackoffRetryer_ContextCancelStopsRetries(t *testing.T) {
	t.Parallel()
	r := NewBackoffRetryer(&Policy{
		MaxRetries:   5,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := r.Do(ctx, func() error {
		calls++
		return types.NewError(types.ErrUpstreamError, "down").WithRetryable(true)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBackoffRetryer_CustomClassifier(t *testing.T) {
	t.Parallel()
	marker := errors.New("transient")
	r := NewBackoffRetryer(&Policy{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2.0,
		Classify:     func(err error) bool { return errors.Is(err, marker) },
	}, zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return marker
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}
