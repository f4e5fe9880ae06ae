package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mwhittaker87/clearcrawl/internal/store"
)

func obsWith(price float64, clearance bool) store.Observation {
	return store.Observation{Price: &price, Clearance: clearance}
}

func TestShouldAlertNewClearance(t *testing.T) {
	onClearance := obsWith(19.98, true)
	regular := obsWith(19.98, false)
	priorRegular := obsWith(39.98, false)
	priorClearance := obsWith(24.98, true)

	assert.True(t, shouldAlertNewClearance(nil, onClearance),
		"first-ever sighting already on clearance fires")
	assert.True(t, shouldAlertNewClearance(&priorRegular, onClearance))
	assert.False(t, shouldAlertNewClearance(&priorClearance, onClearance),
		"already on clearance, no transition")
	assert.False(t, shouldAlertNewClearance(&priorRegular, regular))
	assert.False(t, shouldAlertNewClearance(nil, regular))
}

func TestShouldAlertPriceDropPct(t *testing.T) {
	th := Thresholds{PctDrop: 0.25}
	prior := obsWith(100, false)

	fired, drop := shouldAlertPriceDrop(&prior, obsWith(74, false), th, "X")
	assert.True(t, fired, "26 percent drop over a 25 percent threshold")
	assert.InDelta(t, 0.26, drop, 1e-9, "fired rule reports the computed change")

	fired, drop = shouldAlertPriceDrop(&prior, obsWith(76, false), th, "X")
	assert.False(t, fired, "24 percent drop under the threshold")
	assert.Zero(t, drop)

	fired, _ = shouldAlertPriceDrop(&prior, obsWith(110, false), th, "X")
	assert.False(t, fired, "increases never fire")

	fired, _ = shouldAlertPriceDrop(nil, obsWith(74, false), th, "X")
	assert.False(t, fired, "no prior means no drop")
}

func TestShouldAlertPriceDropAbsolute(t *testing.T) {
	th := Thresholds{
		PctDrop:        0.5,
		AbsDropDefault: 20,
		AbsDropByCategory: map[string]float64{
			"Lumber & Composites": 5,
		},
	}
	prior := obsWith(200, false)

	fired, drop := shouldAlertPriceDrop(&prior, obsWith(175, false), th, "X")
	assert.True(t, fired, "25 dollar drop meets the 20 dollar default even at only 12 percent")
	assert.InDelta(t, 0.125, drop, 1e-9,
		"the absolute rule still reports the fractional change")

	fired, _ = shouldAlertPriceDrop(&prior, obsWith(185, false), th, "X")
	assert.False(t, fired)

	fired, _ = shouldAlertPriceDrop(&prior, obsWith(193, false), th, "Lumber & Composites")
	assert.True(t, fired, "category override lowers the bar to 5 dollars")
}

func TestShouldAlertPriceDropNeedsBothPrices(t *testing.T) {
	th := Thresholds{PctDrop: 0.1}
	noPrices := store.Observation{}
	prior := obsWith(100, false)

	fired, _ := shouldAlertPriceDrop(&noPrices, obsWith(50, false), th, "X")
	assert.False(t, fired)
	fired, _ = shouldAlertPriceDrop(&prior, noPrices, th, "X")
	assert.False(t, fired)
}
