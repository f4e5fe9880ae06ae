// Package scheduler owns the crawl cycle: ordering ZIPs, bounding
// concurrency, classifying failures, and driving the post-cycle work.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mwhittaker87/clearcrawl/internal/browser"
	"github.com/mwhittaker87/clearcrawl/internal/config"
	"github.com/mwhittaker87/clearcrawl/internal/monitor"
	"github.com/mwhittaker87/clearcrawl/internal/progress"
	"github.com/mwhittaker87/clearcrawl/internal/scrape"
	"github.com/mwhittaker87/clearcrawl/internal/store"
)

// Failure reason codes attached to zip_error events.
const (
	ReasonStoreContext    = "store_context"
	ReasonSelectorChanged = "selector_changed"
	ReasonPageLoad        = "page_load"
	ReasonUnexpected      = "unexpected"
)

// SessionLauncher abstracts browser.Launcher.
type SessionLauncher interface {
	Launch(ctx context.Context) (*browser.Session, error)
}

// Exporter abstracts the post-cycle CSV export.
type Exporter interface {
	Write(ctx context.Context) (int, error)
}

// Beater abstracts the post-cycle heartbeat.
type Beater interface {
	Ping(ctx context.Context)
}

// Clock supplies cycle timestamps.
type Clock interface {
	Now() time.Time
}

// Scheduler runs crawl cycles.
type Scheduler struct {
	Cfg         config.Config
	Launcher    SessionLauncher
	Runner      ZipRunner
	Hub         *progress.Hub
	Tracker     *monitor.ZipTracker
	Consistency *monitor.ConsistencyTracker
	Metrics     *monitor.MetricsEmitter
	Exporter    Exporter
	Heartbeat   Beater
	Repo        store.Repository
	Clock       Clock
	ZipDelay    *browser.Humanizer
	Log         *zap.Logger
}

// zipResult carries one ZIP's outcome back to the cycle aggregator.
type zipResult struct {
	zip     string
	outcome ZipOutcome
	err     error
	dur     time.Duration
}

// Run executes cycles on the configured interval until ctx is cancelled.
// With once set, exactly one cycle runs.
func (s *Scheduler) Run(ctx context.Context, once bool) error {
	if err := s.RunCycle(ctx); err != nil {
		if once || ctx.Err() != nil {
			return err
		}
		s.Log.Error("cycle failed", zap.Error(err))
	}
	if once {
		return nil
	}

	ticker := time.NewTicker(s.Cfg.Schedule.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunCycle(ctx); err != nil {
				if ctx.Err() != nil {
					return err
				}
				s.Log.Error("cycle failed", zap.Error(err))
			}
		}
	}
}

// RunCycle sweeps every configured ZIP once. Individual ZIP failures are
// classified and recorded; only a browser that cannot launch at all fails
// the cycle.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	cycleID := uuid.New()
	start := s.Clock.Now()
	s.Hub.Publish(progress.Event{Stage: progress.StageCycleStart, CycleID: cycleID})

	session, err := s.Launcher.Launch(ctx)
	if err != nil {
		s.Hub.Publish(progress.Event{
			Stage: progress.StageCycleDone, CycleID: cycleID,
			Reason: ReasonUnexpected, Note: err.Error(),
		})
		return err
	}
	defer session.Close()

	order := s.Tracker.Interleave(s.Cfg.Crawl.Zips, InferState)

	sem := make(chan struct{}, s.Cfg.Crawl.MaxConcurrentZips)
	results := make([]zipResult, len(order))
	var wg sync.WaitGroup
	for i, zip := range order {
		if i > 0 && s.ZipDelay != nil {
			if err := s.ZipDelay.Wait(ctx); err != nil {
				break
			}
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(i int, zip string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.crawlZip(ctx, session, cycleID, zip)
		}(i, zip)
	}
	wg.Wait()

	s.finishCycle(ctx, cycleID, start, results)
	return nil
}

func (s *Scheduler) crawlZip(ctx context.Context, session *browser.Session, cycleID uuid.UUID, zip string) zipResult {
	s.Hub.Publish(progress.Event{Stage: progress.StageZipStart, CycleID: cycleID, Zip: zip})
	t0 := s.Clock.Now()

	outcome, err := s.Runner.RunZip(ctx, session, zip)
	dur := s.Clock.Now().Sub(t0)
	res := zipResult{zip: zip, outcome: outcome, err: err, dur: dur}

	if err != nil {
		s.Hub.Publish(progress.Event{
			Stage: progress.StageZipError, CycleID: cycleID, Zip: zip,
			Reason: classifyReason(err), Note: err.Error(), Dur: dur,
		})
		return res
	}

	s.Hub.Publish(progress.Event{
		Stage: progress.StageHarvestDone, CycleID: cycleID, Zip: zip, Rows: outcome.Rows,
	})
	s.Hub.Publish(progress.Event{
		Stage: progress.StageZipDone, CycleID: cycleID, Zip: zip,
		Rows: outcome.Rows, Dur: dur,
	})

	if err := s.Tracker.MarkCompleted(zip, s.Clock.Now()); err != nil {
		s.Log.Warn("cursor update failed", zap.String("zip", zip), zap.Error(err))
	}
	if err := s.Consistency.Record(zip, outcome.Rows); err != nil {
		s.Log.Warn("consistency update failed", zap.String("zip", zip), zap.Error(err))
	}
	return res
}

func (s *Scheduler) finishCycle(ctx context.Context, cycleID uuid.UUID, start time.Time, results []zipResult) {
	m := monitor.CycleMetrics{TS: s.Clock.Now(), CycleID: cycleID.String()}
	m.DurationSec = m.TS.Sub(start).Seconds()

	for _, res := range results {
		if res.zip == "" {
			continue
		}
		if res.err != nil {
			m.ZipsFailed++
			continue
		}
		m.ZipsOK++
		m.Rows += res.outcome.Rows
		m.Observed += res.outcome.Stats.Observed
		m.Quarantined += res.outcome.Stats.Quarantined
		m.Alerts += res.outcome.Stats.NewClearance + res.outcome.Stats.PriceDrops
	}

	if err := s.Metrics.Emit(m); err != nil {
		s.Log.Warn("metrics emit failed", zap.Error(err))
	}

	if m.ZipsOK > 0 {
		if n, err := s.Exporter.Write(ctx); err != nil {
			s.Log.Warn("csv export failed", zap.Error(err))
		} else {
			s.Log.Info("csv export written", zap.Int("rows", n))
		}
		s.Heartbeat.Ping(ctx)
		s.purgeQuarantine(ctx)
	}

	for _, zip := range s.Consistency.Alarming() {
		s.Log.Warn("zip has a zero-row harvest streak, selectors may have drifted",
			zap.String("zip", zip), zap.Int("streak", s.Consistency.ZeroStreak(zip)))
	}

	s.Hub.Publish(progress.Event{
		Stage: progress.StageCycleDone, CycleID: cycleID,
		Rows: m.Rows, Dur: m.TS.Sub(start),
	})
	s.Log.Info("cycle complete",
		zap.String("cycle_id", cycleID.String()),
		zap.Int("zips_ok", m.ZipsOK),
		zap.Int("zips_failed", m.ZipsFailed),
		zap.Int("rows", m.Rows),
		zap.Int("alerts", m.Alerts))
}

func (s *Scheduler) purgeQuarantine(ctx context.Context) {
	days := s.Cfg.Quarantine.RetentionDays
	if days <= 0 {
		return
	}
	cutoff := s.Clock.Now().AddDate(0, 0, -days)
	n, err := s.Repo.PurgeQuarantine(ctx, cutoff)
	if err != nil {
		s.Log.Warn("quarantine purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.Log.Info("quarantine purged", zap.Int64("rows", n))
	}
}

// classifyReason maps an error to its zip_error reason code.
func classifyReason(err error) string {
	var storeErr *scrape.StoreContextError
	if errors.As(err, &storeErr) {
		return ReasonStoreContext
	}
	var selErr *scrape.SelectorChangedError
	if errors.As(err, &selErr) {
		return ReasonSelectorChanged
	}
	var loadErr *scrape.PageLoadError
	if errors.As(err, &loadErr) {
		return ReasonPageLoad
	}
	return ReasonUnexpected
}
