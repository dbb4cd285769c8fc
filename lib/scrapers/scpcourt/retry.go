package scpcourt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	random "github.com/mazen160/go-random"
)

type RetryOptions struct {
	// Attempts is the total number of tries, not the number of
	// retries. Zero means 3.
	Attempts int
	// BaseDelay seeds the exponential backoff. Zero means 2s.
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.Attempts == 0 {
		o.Attempts = 3
	}
	if o.BaseDelay == 0 {
		o.BaseDelay = time.Second * 2
	}
	if o.MaxDelay == 0 {
		o.MaxDelay = time.Second * 30
	}
	return o
}

// Retry runs fn until it succeeds or the attempts are spent, backing
// off exponentially with jitter in between. The form intermittently
// serves resubmission interstitials and half-rendered postbacks, one
// clean retry usually gets past them.
func Retry(ctx context.Context, name string, opts RetryOptions, fn func(context.Context) error) error {
	opts = opts.withDefaults()

	var lastErr error
	delay := opts.BaseDelay
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == opts.Attempts {
			break
		}

		jitterMs, err := random.IntRange(0, int(delay/time.Millisecond/2)+1)
		if err != nil {
			jitterMs = 0
		}
		wait := delay + time.Duration(jitterMs)*time.Millisecond
		slog.Warn(
			"navigation failed, retrying",
			"op", name,
			"attempt", attempt,
			"wait", wait,
			"err", lastErr,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		delay *= 2
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, opts.Attempts, lastErr)
}
