package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	werrors "github.com/warblebot/warble/internal/errors"
)

func fastConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(context.Context) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(context.Context) error {
		calls++
		if calls < 3 {
			return werrors.NewTransportError("nlu", 503, fmt.Errorf("unavailable"))
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(context.Context) error {
		calls++
		return werrors.NewTransportError("nlu", 400, fmt.Errorf("bad request"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(context.Context) error {
		calls++
		return werrors.ErrTimeout
	})
	assert.ErrorIs(t, err, werrors.ErrTimeout)
	assert.Equal(t, 3, calls)
}

func TestDo_ZeroConfigSingleAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{}, func(context.Context) error {
		calls++
		return werrors.ErrUnavailable
	})
	assert.ErrorIs(t, err, werrors.ErrUnavailable)
	assert.Equal(t, 1, calls)
}

func TestDo_AttemptTimeoutSetsDeadline(t *testing.T) {
	cfg := fastConfig()
	cfg.AttemptTimeout = 50 * time.Millisecond

	var hadDeadline bool
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, hadDeadline)
}

func TestDo_AttemptTimeoutExpires(t *testing.T) {
	cfg := Config{MaxAttempts: 1, AttemptTimeout: 20 * time.Millisecond}
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_CancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Config{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second},
		func(context.Context) error {
			calls++
			cancel()
			return werrors.ErrUnavailable
		})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
