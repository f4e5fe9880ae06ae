package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHumanizerNextStaysInBand(t *testing.T) {
	h := NewHumanizer(200, 900, 1.0)
	for i := 0; i < 200; i++ {
		d := h.Next()
		assert.GreaterOrEqual(t, d, 200*time.Millisecond)
		assert.Less(t, d, 900*time.Millisecond)
	}
}

func TestHumanizerMultiplierScalesBand(t *testing.T) {
	h := NewHumanizer(100, 100, 3.0)
	assert.Equal(t, 300*time.Millisecond, h.Next())
}

func TestNewHumanizerNormalizesBadBounds(t *testing.T) {
	h := NewHumanizer(500, 100, 0)
	assert.Equal(t, 500*time.Millisecond, h.Min)
	assert.Equal(t, 500*time.Millisecond, h.Max)
	assert.Equal(t, 1.0, h.Multiplier)

	h = NewHumanizer(-10, -5, 1)
	assert.Equal(t, time.Duration(0), h.Min)
}

func TestHumanizerWaitHonorsCancellation(t *testing.T) {
	h := NewHumanizer(60_000, 60_000, 1.0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
