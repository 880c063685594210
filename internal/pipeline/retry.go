package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// RetryPolicy bounds how often a failed call is retried
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// DefaultRetryPolicy makes three attempts with 200ms, 400ms backoff
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	Backoff:     ExponentialBackoff(200 * time.Millisecond),
}

// ExponentialBackoff doubles base for every attempt after the first
func ExponentialBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base << (attempt - 1)
	}
}

// ShouldRetry reports whether err is transient. Only transport failures are;
// 401s, tagged permission errors and other statuses are final.
func ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsPermissionError(err) {
		return false
	}
	return IsTransportError(err)
}

// Retry runs fn under policy. Permission errors end the loop on the first
// attempt and are never reported through log.
func Retry(ctx context.Context, policy RetryPolicy, log zerolog.Logger, fn func(ctx context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 && policy.Backoff != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(policy.Backoff(attempt)):
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !ShouldRetry(err) {
			if !IsPermissionError(err) && attempt > 0 {
				log.Warn().Err(err).Int("attempt", attempt+1).Msg("Gateway call failed after retry")
			}
			return err
		}

		if attempt == attempts-1 {
			log.Warn().Err(err).Int("attempts", attempts).Msg("Gateway call failed, giving up")
			break
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", attempts).
			Msg("Transient gateway failure, retrying")
	}
	return lastErr
}
