// Package monitor holds the out-of-band reliability machinery: cycle metrics
// emission, the crawl cursor, harvest consistency tracking, and the memory
// watchdog. Everything persists to flat files so state survives restarts
// without depending on the database being healthy.
package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CycleMetrics is one cycle's outcome counters.
type CycleMetrics struct {
	TS          time.Time `json:"ts"`
	CycleID     string    `json:"cycle_id"`
	DurationSec float64   `json:"duration_sec"`
	ZipsOK      int       `json:"zips_ok"`
	ZipsFailed  int       `json:"zips_failed"`
	Rows        int       `json:"rows"`
	Observed    int       `json:"observed"`
	Quarantined int       `json:"quarantined"`
	Alerts      int       `json:"alerts"`
}

// Summary is the rolling snapshot written beside the log for quick
// inspection without replaying the JSONL.
type Summary struct {
	UpdatedAt        time.Time    `json:"updated_at"`
	Cycles           int64        `json:"cycles"`
	TotalRows        int64        `json:"total_rows"`
	TotalObserved    int64        `json:"total_observed"`
	TotalQuarantined int64        `json:"total_quarantined"`
	TotalAlerts      int64        `json:"total_alerts"`
	LastCycle        CycleMetrics `json:"last_cycle"`
}

// MetricsEmitter appends one JSON line per cycle and maintains the summary
// snapshot.
type MetricsEmitter struct {
	logPath     string
	summaryPath string

	mu      sync.Mutex
	summary Summary
}

// NewMetricsEmitter creates the emitter, loading any existing summary so
// totals continue across restarts.
func NewMetricsEmitter(logPath, summaryPath string) (*MetricsEmitter, error) {
	e := &MetricsEmitter{logPath: logPath, summaryPath: summaryPath}
	if data, err := os.ReadFile(summaryPath); err == nil {
		// A corrupt summary just restarts the totals.
		_ = json.Unmarshal(data, &e.summary)
	}
	for _, p := range []string{logPath, summaryPath} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("metrics dir: %w", err)
			}
		}
	}
	return e, nil
}

// Emit appends the cycle record and refreshes the summary.
func (e *MetricsEmitter) Emit(m CycleMetrics) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	line, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal cycle metrics: %w", err)
	}
	f, err := os.OpenFile(e.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open metrics log: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("append metrics: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close metrics log: %w", err)
	}

	e.summary.UpdatedAt = m.TS
	e.summary.Cycles++
	e.summary.TotalRows += int64(m.Rows)
	e.summary.TotalObserved += int64(m.Observed)
	e.summary.TotalQuarantined += int64(m.Quarantined)
	e.summary.TotalAlerts += int64(m.Alerts)
	e.summary.LastCycle = m

	return writeFileAtomic(e.summaryPath, e.summary)
}

// Snapshot returns the current summary.
func (e *MetricsEmitter) Snapshot() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary
}

// writeFileAtomic persists v as JSON through a temp file and rename so a
// crash mid-write never leaves a truncated document.
func writeFileAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
