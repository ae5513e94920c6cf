// Package retry runs an operation a bounded number of times, waiting between
// attempts, and only repeats failures classified as transient.
package retry

import (
	"fmt"
	"time"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain"
)

// Backoff returns how long to wait after the given (1-based) failed attempt.
type Backoff func(attempt int) time.Duration

// Linear waits step * attempt: step, 2*step, 3*step, ...
func Linear(step time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return step * time.Duration(attempt)
	}
}

// Policy bounds an operation's attempts.
type Policy struct {
	MaxAttempts int
	Backoff     Backoff

	// Sleep blocks between attempts. Defaults to time.Sleep. The wait is not
	// interruptible: once started, the loop runs to success or exhaustion.
	Sleep func(time.Duration)

	// OnRetry, when set, is called after a transient failure that will be
	// retried, before sleeping.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// Default is the catalog fetch policy: three attempts, waiting 2s then 4s.
func Default() Policy {
	return Policy{
		MaxAttempts: domain.MaxFetchAttempts,
		Backoff:     Linear(domain.FetchBackoffStep),
	}
}

// Do calls fn until it succeeds, returns a non-transient error, or the
// attempts run out. It returns the number of attempts made. On exhaustion
// the returned error wraps domain.ErrRetriesExhausted and the last failure.
func (p Policy) Do(fn func(attempt int) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = Linear(domain.FetchBackoffStep)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return attempt, nil
		}
		if !domain.IsTransient(err) {
			return attempt, err
		}
		lastErr = err

		if attempt < maxAttempts {
			wait := backoff(attempt)
			if p.OnRetry != nil {
				p.OnRetry(attempt, wait, err)
			}
			sleep(wait)
		}
	}

	return maxAttempts, fmt.Errorf("%w after %d attempts: %w", domain.ErrRetriesExhausted, maxAttempts, lastErr)
}
