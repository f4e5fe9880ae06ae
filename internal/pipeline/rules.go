package pipeline

import "github.com/mwhittaker87/clearcrawl/internal/store"

// Thresholds configures the alert transition rules.
type Thresholds struct {
	// PctDrop is the fractional price decrease that fires a price_drop alert.
	PctDrop float64
	// AbsDropDefault fires a price_drop on an absolute dollar decrease. Zero
	// disables the absolute rule.
	AbsDropDefault float64
	// AbsDropByCategory overrides AbsDropDefault per category name.
	AbsDropByCategory map[string]float64
}

// absDrop resolves the absolute-drop threshold for a category.
func (t Thresholds) absDrop(category string) float64 {
	if v, ok := t.AbsDropByCategory[category]; ok {
		return v
	}
	return t.AbsDropDefault
}

// shouldAlertNewClearance fires when an item is observed on clearance and the
// prior observation, if any, was not. prior is nil for first-ever sightings.
func shouldAlertNewClearance(prior *store.Observation, current store.Observation) bool {
	if !current.Clearance {
		return false
	}
	return prior == nil || !prior.Clearance
}

// shouldAlertPriceDrop fires when the price fell from the prior observation
// by at least the fractional threshold, or by at least the absolute
// threshold when one is configured. Both observations need a price. The
// second return is the fractional drop versus the prior price, so a fired
// alert carries the computed change rather than the shelf percent-off.
func shouldAlertPriceDrop(prior *store.Observation, current store.Observation, t Thresholds, category string) (bool, float64) {
	if prior == nil || prior.Price == nil || current.Price == nil {
		return false, 0
	}
	old, now := *prior.Price, *current.Price
	if old <= 0 || now >= old {
		return false, 0
	}
	drop := old - now
	pct := drop / old
	if t.PctDrop > 0 && pct >= t.PctDrop {
		return true, pct
	}
	if abs := t.absDrop(category); abs > 0 && drop >= abs {
		return true, pct
	}
	return false, 0
}
