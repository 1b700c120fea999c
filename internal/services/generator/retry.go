package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
)

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retrier runs an operation up to MaxAttempts times. After failed attempt n
// it waits n × Unit before the next attempt.
type Retrier struct {
	MaxAttempts int
	Unit        time.Duration
	Sleep       Sleeper
	Logger      arbor.ILogger

	// OnAttempt is called after every attempt with its 1-based number and result
	OnAttempt func(attempt int, err error)
}

// DefaultRetrier returns the standard three attempt, one second unit retrier
func DefaultRetrier(logger arbor.ILogger) Retrier {
	return Retrier{
		MaxAttempts: 3,
		Unit:        time.Second,
		Sleep:       SleepContext,
		Logger:      logger,
	}
}

// Do runs fn until it succeeds or attempts are exhausted. Exhaustion yields
// *ContentPolicyError when the last error carries a policy marker and
// *GenerationExhaustedError otherwise. Context cancellation stops the loop
// and is returned as is.
func (r Retrier) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	maxAttempts := r.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(ctx, attempt)
		if r.OnAttempt != nil {
			r.OnAttempt(attempt, err)
		}
		if err == nil {
			return nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("generation cancelled on attempt %d: %w", attempt, ctxErr)
		}

		if attempt == maxAttempts {
			break
		}

		backoff := time.Duration(attempt) * r.Unit
		if r.Logger != nil {
			r.Logger.Warn().
				Int("attempt", attempt).
				Int("max_attempts", maxAttempts).
				Dur("backoff", backoff).
				Err(err).
				Msg("Generation attempt failed, retrying")
		}

		if err := sleep(ctx, backoff); err != nil {
			return fmt.Errorf("generation cancelled during backoff: %w", err)
		}
	}

	if IsContentPolicyRefusal(lastErr) {
		return &ContentPolicyError{Attempts: maxAttempts, Cause: lastErr}
	}
	return &GenerationExhaustedError{Attempts: maxAttempts, Cause: lastErr}
}
