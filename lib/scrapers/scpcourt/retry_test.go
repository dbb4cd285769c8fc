package scpcourt

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryOptions {
	return RetryOptions{
		Attempts:  attempts,
		BaseDelay: time.Millisecond,
		MaxDelay:  time.Millisecond * 4,
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "search", fastRetry(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "goto page", fastRetry(3), func(context.Context) error {
		calls++
		return fmt.Errorf("still broken")
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "after 3 attempts")
	require.Equal(t, 3, calls)
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Retry(ctx, "open details", RetryOptions{Attempts: 10, BaseDelay: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return fmt.Errorf("transient")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}
