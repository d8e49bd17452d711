package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"doc-qa-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor() (*Executor, *[]time.Duration) {
	sleeps := &[]time.Duration{}
	e := NewExecutor(logger.NopLogger{})
	e.sleep = func(ctx context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return e, sleeps
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout", errors.New("connection timeout"), true},
		{"timeout uppercase", errors.New("Read TIMEOUT exceeded"), true},
		{"connection reset", errors.New("connection reset by peer"), true},
		{"deadlock", errors.New("database deadlock detected"), true},
		{"network unreachable", errors.New("network unreachable"), true},
		{"too many clients", errors.New("FATAL: too many clients already"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"unavailable", errors.New("service temporarily unavailable"), true},
		{"constraint violation", errors.New("constraint violation"), false},
		{"invalid syntax", errors.New("invalid input syntax for type uuid"), false},
		{"permission denied", errors.New("permission denied"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	e, sleeps := newTestExecutor()

	calls := 0
	err := e.Do(context.Background(), "op", Policy{MaxAttempts: 3, BaseDelay: time.Second, Backoff: 2.0}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection timeout")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
}

func TestDoExhaustsBudgetOnPersistentTransientError(t *testing.T) {
	e, sleeps := newTestExecutor()

	calls := 0
	err := e.Do(context.Background(), "op", Policy{MaxAttempts: 4, BaseDelay: time.Second, Backoff: 2.0}, func(ctx context.Context) error {
		calls++
		return errors.New("timeout")
	})

	require.EqualError(t, err, "timeout")
	assert.Equal(t, 4, calls)
	// N attempts sleep N-1 times: 1s, 2s, 4s.
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, *sleeps)
}

func TestDoFailsFastOnPermanentError(t *testing.T) {
	e, sleeps := newTestExecutor()

	calls := 0
	err := e.Do(context.Background(), "op", DefaultPolicy(), func(ctx context.Context) error {
		calls++
		return errors.New("constraint violation")
	})

	require.EqualError(t, err, "constraint violation")
	assert.Equal(t, 1, calls)
	assert.Empty(t, *sleeps)
}

func TestDoReturnsLastErrorOnFinalAttempt(t *testing.T) {
	e, _ := newTestExecutor()

	calls := 0
	err := e.Do(context.Background(), "op", Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, Backoff: 2.0}, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("first timeout")
		}
		return errors.New("second timeout")
	})

	require.EqualError(t, err, "second timeout")
	assert.Equal(t, 2, calls)
}

func TestDoValueReturnsResult(t *testing.T) {
	e, _ := newTestExecutor()

	calls := 0
	got, err := DoValue(context.Background(), e, "op", DefaultPolicy(), func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("connection reset")
		}
		return "doc-123", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "doc-123", got)
	assert.Equal(t, 2, calls)
}

func TestDoStopsWhenContextCancelledDuringBackoff(t *testing.T) {
	e := NewExecutor(logger.NopLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Do(ctx, "op", Policy{MaxAttempts: 3, BaseDelay: time.Hour, Backoff: 2.0}, func(ctx context.Context) error {
		return errors.New("timeout")
	})

	require.ErrorIs(t, err, context.Canceled)
}
