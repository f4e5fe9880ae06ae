// Package progress fans crawl lifecycle events out to pluggable sinks. The
// scheduler publishes, sinks observe; neither knows about the other.
package progress

import (
	"time"

	"github.com/google/uuid"
)

// Stage identifies where in the crawl lifecycle an event happened.
type Stage string

// Lifecycle stages.
const (
	StageCycleStart   Stage = "cycle_start"
	StageCycleDone    Stage = "cycle_done"
	StageZipStart     Stage = "zip_start"
	StageZipDone      Stage = "zip_done"
	StageZipError     Stage = "zip_error"
	StageHarvestDone  Stage = "harvest_done"
	StageQuarantined  Stage = "quarantined"
	StageAlertEmitted Stage = "alert_emitted"
)

// Event is one progress fact. CycleID groups every event of one sweep.
type Event struct {
	TS       time.Time
	Stage    Stage
	CycleID  uuid.UUID
	Zip      string
	Category string
	Rows     int
	Reason   string
	Note     string
	Dur      time.Duration
}

// Sink consumes events. Implementations must be safe for concurrent use and
// must not block for long; slow sinks cause event drops, not backpressure.
type Sink interface {
	Observe(ev Event)
}
