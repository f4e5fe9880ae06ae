package browser

import (
	"context"
	"math/rand/v2"
	"time"
)

// Humanizer produces randomized pauses so the session's interaction cadence
// does not look machine-regular. Multiplier scales the whole band, letting
// operators slow everything down without retuning each bound.
type Humanizer struct {
	Min        time.Duration
	Max        time.Duration
	Multiplier float64
}

// NewHumanizer builds a Humanizer from millisecond bounds.
func NewHumanizer(minMs, maxMs int, multiplier float64) *Humanizer {
	if minMs < 0 {
		minMs = 0
	}
	if maxMs < minMs {
		maxMs = minMs
	}
	if multiplier <= 0 {
		multiplier = 1
	}
	return &Humanizer{
		Min:        time.Duration(minMs) * time.Millisecond,
		Max:        time.Duration(maxMs) * time.Millisecond,
		Multiplier: multiplier,
	}
}

// Next returns one randomized delay in the configured band.
func (h *Humanizer) Next() time.Duration {
	span := h.Max - h.Min
	d := h.Min
	if span > 0 {
		d += time.Duration(rand.Int64N(int64(span)))
	}
	return time.Duration(float64(d) * h.Multiplier)
}

// Wait sleeps for one randomized delay, honoring cancellation.
func (h *Humanizer) Wait(ctx context.Context) error {
	d := h.Next()
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
