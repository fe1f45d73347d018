package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"crm-backend/internal/resilience"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
)

func TestRetryWithBackoff_RetriesOnFailure(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 3, InitialBackoff: time.Millisecond}

	calls := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}

	calls := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		return errors.New("persistent")
	})

	assert.EqualError(t, err, "persistent")
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.RetryWithBackoff(ctx, resilience.Config{MaxRetries: 3}, func() error {
		t.Fatal("fn must not run on a cancelled context")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecute_OpensAfterFailures(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test")
	boom := errors.New("boom")
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, resilience.Execute(cb, func() error { return boom }), boom)
	}
	err := resilience.Execute(cb, func() error { return nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}
