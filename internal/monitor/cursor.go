package monitor

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"
)

// cursorDoc is the on-disk shape of the crawl cursor.
type cursorDoc struct {
	LastCompletion time.Time            `json:"last_completion"`
	PerZip         map[string]time.Time `json:"per_zip"`
}

// ZipTracker remembers when each ZIP last completed so cycles prioritize the
// stalest coverage and the watchdog can detect a stalled crawl.
type ZipTracker struct {
	path    string
	started time.Time

	mu  sync.Mutex
	doc cursorDoc
}

// NewZipTracker loads the cursor from path; a missing or corrupt file starts
// an empty cursor.
func NewZipTracker(path string) *ZipTracker {
	t := &ZipTracker{
		path:    path,
		started: time.Now(),
		doc:     cursorDoc{PerZip: make(map[string]time.Time)},
	}
	if data, err := os.ReadFile(path); err == nil {
		var doc cursorDoc
		if json.Unmarshal(data, &doc) == nil {
			if doc.PerZip == nil {
				doc.PerZip = make(map[string]time.Time)
			}
			t.doc = doc
		}
	}
	return t
}

// MarkCompleted records a ZIP finishing at ts and persists the cursor.
func (t *ZipTracker) MarkCompleted(zip string, ts time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.doc.PerZip[zip] = ts
	if ts.After(t.doc.LastCompletion) {
		t.doc.LastCompletion = ts
	}
	return writeFileAtomic(t.path, t.doc)
}

// LastCompletion returns the newest completion across all ZIPs.
func (t *ZipTracker) LastCompletion() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doc.LastCompletion
}

// WatchdogTriggered reports whether no ZIP has completed within window.
// Before any completion exists the window is measured from process start, so
// a first cycle gets its full grace period but a wedged one still trips.
func (t *ZipTracker) WatchdogTriggered(now time.Time, window time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if window <= 0 {
		return false
	}
	last := t.doc.LastCompletion
	if last.IsZero() {
		last = t.started
	}
	return now.Sub(last) > window
}

// Interleave orders zips for the next cycle: within each state, stalest
// first; across states, round-robin so one state's backlog cannot starve
// the other. stateOf classifies a ZIP into its group.
func (t *ZipTracker) Interleave(zips []string, stateOf func(string) string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	groups := make(map[string][]string)
	var order []string
	for _, zip := range zips {
		st := stateOf(zip)
		if _, seen := groups[st]; !seen {
			order = append(order, st)
		}
		groups[st] = append(groups[st], zip)
	}

	for _, st := range order {
		group := groups[st]
		sort.SliceStable(group, func(i, j int) bool {
			return t.doc.PerZip[group[i]].Before(t.doc.PerZip[group[j]])
		})
	}
	// The state whose head is stalest leads the rotation.
	sort.SliceStable(order, func(i, j int) bool {
		return t.doc.PerZip[groups[order[i]][0]].Before(t.doc.PerZip[groups[order[j]][0]])
	})

	out := make([]string, 0, len(zips))
	for len(out) < len(zips) {
		for _, st := range order {
			if len(groups[st]) == 0 {
				continue
			}
			out = append(out, groups[st][0])
			groups[st] = groups[st][1:]
		}
	}
	return out
}
