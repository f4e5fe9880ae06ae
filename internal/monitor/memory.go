package monitor

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MemoryWatchdog kills the process when resident memory crosses a limit.
// Long-lived browser automation leaks in ways Go's GC cannot see, so the
// recovery is deliberate suicide and a supervisor restart.
type MemoryWatchdog struct {
	LimitMB    float64
	Interval   time.Duration
	Log        *zap.Logger
	statusPath string
	exit       func(int)
}

// NewMemoryWatchdog constructs a watchdog. LimitMB of zero disables it.
func NewMemoryWatchdog(limitMB float64, interval time.Duration, log *zap.Logger) *MemoryWatchdog {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &MemoryWatchdog{
		LimitMB:    limitMB,
		Interval:   interval,
		Log:        log.Named("memwatch"),
		statusPath: "/proc/self/status",
		exit:       os.Exit,
	}
}

// Run blocks until ctx is done, sampling RSS on each tick.
func (w *MemoryWatchdog) Run(ctx context.Context) {
	if w.LimitMB <= 0 {
		return
	}
	ticker := time.NewTicker(w.Interval)
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

func (w *MemoryWatchdog) check() {
	rssMB, err := readRSSMB(w.statusPath)
	if err != nil {
		w.Log.Warn("rss read failed", zap.Error(err))
		return
	}
	if rssMB > w.LimitMB {
		w.Log.Error("memory limit exceeded, exiting for supervisor restart",
			zap.Float64("rss_mb", rssMB), zap.Float64("limit_mb", w.LimitMB))
		_ = w.Log.Sync()
		w.exit(1)
	}
}

// readRSSMB parses VmRSS out of a /proc/<pid>/status document.
func readRSSMB(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		kb, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return 0, err
		}
		return kb / 1024, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, os.ErrNotExist
}
