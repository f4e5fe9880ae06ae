package monitor

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
)

// ConsistencyTracker keeps a capped history of harvested row counts per ZIP.
// A run of zero-row harvests on a ZIP that used to produce rows is the
// crawl's earliest broken-selector signal, well before any alert goes quiet.
type ConsistencyTracker struct {
	path          string
	historyLength int
	zeroThreshold int

	mu      sync.Mutex
	history map[string][]int
}

// NewConsistencyTracker loads history from path.
func NewConsistencyTracker(path string, historyLength, zeroThreshold int) *ConsistencyTracker {
	if historyLength <= 0 {
		historyLength = 10
	}
	if zeroThreshold <= 0 {
		zeroThreshold = 3
	}
	t := &ConsistencyTracker{
		path:          path,
		historyLength: historyLength,
		zeroThreshold: zeroThreshold,
		history:       make(map[string][]int),
	}
	if data, err := os.ReadFile(path); err == nil {
		var saved map[string][]int
		if json.Unmarshal(data, &saved) == nil && saved != nil {
			t.history = saved
		}
	}
	return t
}

// Record appends one harvest outcome for a ZIP and persists.
func (t *ConsistencyTracker) Record(zip string, rows int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := append(t.history[zip], rows)
	if len(h) > t.historyLength {
		h = h[len(h)-t.historyLength:]
	}
	t.history[zip] = h
	return writeFileAtomic(t.path, t.history)
}

// ZeroStreak returns the length of the trailing zero-row run for a ZIP.
func (t *ConsistencyTracker) ZeroStreak(zip string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.history[zip]
	streak := 0
	for i := len(h) - 1; i >= 0 && h[i] == 0; i-- {
		streak++
	}
	return streak
}

// Alarming lists ZIPs whose trailing zero streak meets the threshold,
// sorted for stable output.
func (t *ConsistencyTracker) Alarming() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	for zip, h := range t.history {
		streak := 0
		for i := len(h) - 1; i >= 0 && h[i] == 0; i-- {
			streak++
		}
		if streak >= t.zeroThreshold {
			out = append(out, zip)
		}
	}
	sort.Strings(out)
	return out
}
