package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetrier(opts ...Option) *Retrier {
	base := []Option{
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithJitter(0),
	}
	return New(append(base, opts...)...)
}

func TestWrappers(t *testing.T) {
	base := errors.New("gateway timeout")

	assert.Nil(t, Retryable(nil))
	assert.Nil(t, Permanent(nil))

	r := Retryable(base)
	assert.True(t, IsRetryable(r))
	assert.False(t, IsPermanent(r))
	assert.Equal(t, base.Error(), r.Error())
	assert.ErrorIs(t, r, base)

	p := Permanent(base)
	assert.True(t, IsPermanent(p))
	assert.False(t, IsRetryable(p))
	assert.ErrorIs(t, p, base)
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	attempts := 0
	err := fastRetrier().Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_EventualSuccess(t *testing.T) {
	attempts := 0
	err := fastRetrier().Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return Retryable(errors.New("transient"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ExhaustedReturnsUnwrapped(t *testing.T) {
	base := errors.New("still down")
	attempts := 0

	err := fastRetrier().Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Retryable(base)
	})

	assert.Equal(t, 3, attempts)
	// The wrapper comes off once retries are spent.
	assert.Equal(t, base, err)
	assert.False(t, IsRetryable(err))
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	base := errors.New("bad request")
	attempts := 0

	err := fastRetrier().Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Permanent(base)
	})

	assert.Equal(t, 1, attempts)
	assert.Equal(t, base, err)
}

func TestDo_PlainErrorNotRetried(t *testing.T) {
	base := errors.New("unclassified")
	attempts := 0

	err := fastRetrier().Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return base
	})

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, base)
}

func TestDo_RetryIfOverride(t *testing.T) {
	base := errors.New("unclassified")
	attempts := 0

	err := fastRetrier(WithRetryIf(func(err error) bool { return true })).
		Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return base
		})

	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, base)
}

func TestDo_OnRetryCallback(t *testing.T) {
	var calls []int
	r := fastRetrier(WithOnRetry(func(attempt int, err error, delay time.Duration) {
		calls = append(calls, attempt)
	}))

	_ = r.Do(context.Background(), func(ctx context.Context) error {
		return Retryable(errors.New("transient"))
	})

	// Fires before each sleep, so never for the final attempt.
	assert.Equal(t, []int{1, 2}, calls)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := fastRetrier().Do(ctx, func(ctx context.Context) error {
		attempts++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, attempts)
}

func TestDoWithData(t *testing.T) {
	attempts := 0
	got, err := DoWithData(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", Retryable(errors.New("transient"))
		}
		return "summary", nil
	}, WithMaxAttempts(3), WithInitialDelay(time.Millisecond), WithJitter(0))

	require.NoError(t, err)
	assert.Equal(t, "summary", got)
	assert.Equal(t, 2, attempts)
}

func TestCalculateDelay_BackoffAndCap(t *testing.T) {
	r := New(
		WithInitialDelay(100*time.Millisecond),
		WithMultiplier(2.0),
		WithMaxDelay(300*time.Millisecond),
		WithJitter(0),
	)

	assert.Equal(t, 100*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 200*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 300*time.Millisecond, r.calculateDelay(3))
	assert.Equal(t, 300*time.Millisecond, r.calculateDelay(10))
}

func TestPresetRetriers(t *testing.T) {
	assert.Equal(t, 3, NotifyGatewayRetrier().config.MaxAttempts)
	assert.Equal(t, 3, DatabaseRetrier().config.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, DatabaseRetrier().config.InitialDelay)
}
