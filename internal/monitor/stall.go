package monitor

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
)

// StallWatchdog exits the process when no ZIP has completed within the
// window. A wedged browser can hang a cycle indefinitely while every other
// goroutine stays healthy; the supervisor restart is the recovery.
type StallWatchdog struct {
	Tracker *ZipTracker
	Window  time.Duration
	Log     *zap.Logger

	clock func() time.Time
	exit  func(int)
}

// NewStallWatchdog constructs a watchdog. A zero window disables it.
func NewStallWatchdog(tracker *ZipTracker, window time.Duration, log *zap.Logger) *StallWatchdog {
	return &StallWatchdog{
		Tracker: tracker,
		Window:  window,
		Log:     log.Named("stallwatch"),
		clock:   time.Now,
		exit:    os.Exit,
	}
}

// Run blocks until ctx is done, checking once per minute.
func (w *StallWatchdog) Run(ctx context.Context) {
	if w.Window <= 0 {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *StallWatchdog) check() {
	if !w.Tracker.WatchdogTriggered(w.clock(), w.Window) {
		return
	}
	w.Log.Error("no zip completion within the watchdog window, exiting for supervisor restart",
		zap.Duration("window", w.Window),
		zap.Time("last_completion", w.Tracker.LastCompletion()))
	_ = w.Log.Sync()
	w.exit(1)
}
