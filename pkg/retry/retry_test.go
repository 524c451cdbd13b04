package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "sjsage522/estateworker/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestDoSucceedsAfterRetries(t *testing.T) {
	p := Policy{MaxAttempts: 3, Backoff: Fixed(time.Millisecond), Retryable: Always}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsAtMaxAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 3, Backoff: Fixed(time.Millisecond), Retryable: Always}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("still failing")
	})

	assert.EqualError(t, err, "still failing")
	assert.Equal(t, 3, calls)
}

func TestDoSkipsNonRetryable(t *testing.T) {
	p := Policy{MaxAttempts: 5, Backoff: Fixed(time.Millisecond), Retryable: apperrors.IsRetryable}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return apperrors.NewExtraction("test", "bad page", nil)
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursContext(t *testing.T) {
	p := Policy{MaxAttempts: 10, Backoff: Fixed(time.Hour), Retryable: Always}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func(context.Context) error {
			calls++
			return errors.New("transient")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("retry did not stop on cancellation")
	}
}

func TestExponential(t *testing.T) {
	b := Exponential(100*time.Millisecond, time.Second)
	assert.Equal(t, 100*time.Millisecond, b(1))
	assert.Equal(t, 200*time.Millisecond, b(2))
	assert.Equal(t, 400*time.Millisecond, b(3))
	assert.Equal(t, time.Second, b(5))
}
