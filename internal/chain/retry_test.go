package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetryRecoversAfterTransientFailures(t *testing.T) {
	calls := 0
	v, err := withRetry(context.Background(), 3, time.Microsecond, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("connection reset")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhaustionReturnsLastError(t *testing.T) {
	wantErr := errors.New("node behind")
	calls := 0
	_, err := withRetry(context.Background(), 2, time.Microsecond, func() (int, error) {
		calls++
		return 0, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 3, calls) // 首次 + 2 次重试
}

func TestWithRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := withRetry(ctx, 5, time.Microsecond, func() (int, error) {
		calls++
		return 0, errors.New("timeout")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
