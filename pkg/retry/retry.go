package retry

import (
	"context"
	"strings"
	"time"

	"doc-qa-be/internal/pkg/logger"
)

// transientPatterns are matched as substrings against error messages.
// Both storage backends surface unrelated error shapes (driver errors vs
// REST body text), so classification is message-based rather than type-based.
var transientPatterns = []string{
	"timeout",
	"connection",
	"deadlock",
	"temporarily",
	"too many clients",
	"network",
	"reset",
	"broken pipe",
	"unavailable",
}

// IsTransient reports whether an error is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Policy controls the retry loop for one operation.
// MaxAttempts is the total invocation count, not the count of re-tries:
// MaxAttempts=3 means the operation runs at most 3 times.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Backoff     float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Backoff:     2.0,
	}
}

type Executor struct {
	logger logger.ILogger

	// sleep is swapped out in tests so backoff is observable without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewExecutor(log logger.ILogger) *Executor {
	return &Executor{
		logger: log,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs op until it succeeds, fails permanently, or the attempt budget is
// spent. Backoff between transient failures is BaseDelay * Backoff^attempt
// (attempt starting at 0), with no jitter. The delay only suspends the
// calling goroutine.
func (e *Executor) Do(ctx context.Context, name string, policy Policy, op func(ctx context.Context) error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if !IsTransient(lastErr) {
			e.logger.Error("retry", "Non-transient error, not retrying", map[string]interface{}{
				"operation":    name,
				"error":        lastErr.Error(),
				"attempt":      attempt + 1,
				"max_attempts": policy.MaxAttempts,
			})
			return lastErr
		}

		if attempt == policy.MaxAttempts-1 {
			e.logger.Error("retry", "Final retry attempt failed", map[string]interface{}{
				"operation":    name,
				"error":        lastErr.Error(),
				"attempt":      attempt + 1,
				"max_attempts": policy.MaxAttempts,
			})
			return lastErr
		}

		delay := scaleDelay(policy.BaseDelay, policy.Backoff, attempt)
		e.logger.Warn("retry", "Transient error, retrying", map[string]interface{}{
			"operation":    name,
			"error":        lastErr.Error(),
			"attempt":      attempt + 1,
			"max_attempts": policy.MaxAttempts,
			"next_delay":   delay.String(),
		})

		if err := e.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return lastErr
}

// DoValue is Do for operations that produce a result.
func DoValue[T any](ctx context.Context, e *Executor, name string, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := e.Do(ctx, name, policy, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

func scaleDelay(base time.Duration, backoff float64, attempt int) time.Duration {
	d := float64(base)
	for i := 0; i < attempt; i++ {
		d *= backoff
	}
	return time.Duration(d)
}
