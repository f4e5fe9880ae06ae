package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHarvester() *Harvester {
	h := NewHarvester(nil, nil, time.Second, zap.NewNop(), 5, 0.2)
	h.retry.baseDelay = time.Millisecond
	h.retry.maxDelay = 2 * time.Millisecond
	return h
}

func TestNavigateRetriesTransientLoadFailures(t *testing.T) {
	h := newTestHarvester()
	attempts := 0
	h.nav = func(context.Context, string) error {
		attempts++
		if attempts < 3 {
			return errors.New("net::ERR_CONNECTION_RESET")
		}
		return nil
	}

	err := h.navigate(context.Background(), "https://x/c/roofing")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "two failures leave one attempt in the budget")
}

func TestNavigateGivesUpAfterThreeAttempts(t *testing.T) {
	h := newTestHarvester()
	attempts := 0
	h.nav = func(context.Context, string) error {
		attempts++
		return errors.New("net::ERR_TIMED_OUT")
	}

	err := h.navigate(context.Background(), "https://x/c/roofing")
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestNavigateRetriesPerAttemptDeadline(t *testing.T) {
	h := newTestHarvester()
	h.NavTimeout = 5 * time.Millisecond
	attempts := 0
	h.nav = func(ctx context.Context, _ string) error {
		attempts++
		if attempts < 2 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}

	err := h.navigate(context.Background(), "https://x/c/roofing")
	require.NoError(t, err,
		"one slow page load times out and the next attempt succeeds")
	assert.Equal(t, 2, attempts)
}

func TestNavigateStopsWhenCallerCancels(t *testing.T) {
	h := newTestHarvester()
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	h.nav = func(context.Context, string) error {
		attempts++
		cancel()
		return errors.New("net::ERR_ABORTED")
	}

	err := h.navigate(ctx, "https://x/c/roofing")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts, "cancellation is terminal, not retried")
}
