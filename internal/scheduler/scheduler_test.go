package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mwhittaker87/clearcrawl/internal/browser"
	"github.com/mwhittaker87/clearcrawl/internal/config"
	"github.com/mwhittaker87/clearcrawl/internal/monitor"
	"github.com/mwhittaker87/clearcrawl/internal/pipeline"
	"github.com/mwhittaker87/clearcrawl/internal/progress"
	"github.com/mwhittaker87/clearcrawl/internal/scrape"
	"github.com/mwhittaker87/clearcrawl/internal/store"
)

func TestInferState(t *testing.T) {
	tests := []struct {
		zip  string
		want string
	}{
		{"97301", "OR"},
		{"97035", "OR"},
		{"97901", "OR"},
		{"98501", "WA"},
		{"99403", "WA"},
		{"99501", "UNKNOWN"},
		{"96001", "UNKNOWN"},
		{"12", "UNKNOWN"},
		{"abcde", "UNKNOWN"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, InferState(tc.zip), tc.zip)
	}
}

func TestClassifyReason(t *testing.T) {
	assert.Equal(t, ReasonStoreContext,
		classifyReason(&scrape.StoreContextError{Zip: "97301", Err: errors.New("x")}))
	assert.Equal(t, ReasonSelectorChanged,
		classifyReason(&scrape.SelectorChangedError{URL: "u", Category: "c"}))
	assert.Equal(t, ReasonPageLoad,
		classifyReason(&scrape.PageLoadError{URL: "u", Err: errors.New("x")}))
	assert.Equal(t, ReasonUnexpected, classifyReason(errors.New("boom")))

	wrapped := &scrape.PageLoadError{URL: "u", Err: &scrape.StoreContextError{Zip: "z"}}
	assert.Equal(t, ReasonStoreContext, classifyReason(wrapped),
		"the innermost classified error wins through As")
}

type stubLauncher struct {
	err      error
	launches int
}

func (l *stubLauncher) Launch(context.Context) (*browser.Session, error) {
	l.launches++
	if l.err != nil {
		return nil, l.err
	}
	return &browser.Session{Ctx: context.Background()}, nil
}

type stubRunner struct {
	mu       sync.Mutex
	inflight int
	maxSeen  int
	crawled  []string
	delay    time.Duration
	errFor   map[string]error
	rowsPer  int
}

func (r *stubRunner) RunZip(_ context.Context, _ *browser.Session, zip string) (ZipOutcome, error) {
	r.mu.Lock()
	r.inflight++
	if r.inflight > r.maxSeen {
		r.maxSeen = r.inflight
	}
	r.crawled = append(r.crawled, zip)
	r.mu.Unlock()

	time.Sleep(r.delay)

	r.mu.Lock()
	r.inflight--
	r.mu.Unlock()

	if err := r.errFor[zip]; err != nil {
		return ZipOutcome{}, err
	}
	return ZipOutcome{Rows: r.rowsPer, Stats: pipeline.Stats{Observed: r.rowsPer}}, nil
}

type stubExporter struct{ calls atomic.Int32 }

func (e *stubExporter) Write(context.Context) (int, error) {
	e.calls.Add(1)
	return 0, nil
}

type stubBeater struct{ calls atomic.Int32 }

func (b *stubBeater) Ping(context.Context) { b.calls.Add(1) }

type purgeRepo struct {
	store.Repository
	purged atomic.Int32
}

func (r *purgeRepo) PurgeQuarantine(context.Context, time.Time) (int64, error) {
	r.purged.Add(1)
	return 0, nil
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type collectSink struct {
	mu     sync.Mutex
	events []progress.Event
}

func (s *collectSink) Observe(ev progress.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *collectSink) byStage(stage progress.Stage) []progress.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []progress.Event
	for _, ev := range s.events {
		if ev.Stage == stage {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	sched    *Scheduler
	launcher *stubLauncher
	runner   *stubRunner
	exporter *stubExporter
	beater   *stubBeater
	repo     *purgeRepo
	sink     *collectSink
}

func newFixture(t *testing.T, zips []string, maxConcurrent int, runner *stubRunner) *fixture {
	t.Helper()
	dir := t.TempDir()

	metrics, err := monitor.NewMetricsEmitter(
		filepath.Join(dir, "metrics.jsonl"), filepath.Join(dir, "summary.json"))
	require.NoError(t, err)

	f := &fixture{
		launcher: &stubLauncher{},
		runner:   runner,
		exporter: &stubExporter{},
		beater:   &stubBeater{},
		repo:     &purgeRepo{},
		sink:     &collectSink{},
	}
	hub := progress.NewHub(f.sink)
	t.Cleanup(hub.Close)

	cfg := config.Config{
		Crawl: config.CrawlConfig{Zips: zips, MaxConcurrentZips: maxConcurrent},
		Quarantine: config.QuarantineConfig{RetentionDays: 30},
	}

	f.sched = &Scheduler{
		Cfg:         cfg,
		Launcher:    f.launcher,
		Runner:      f.runner,
		Hub:         hub,
		Tracker:     monitor.NewZipTracker(filepath.Join(dir, "cursor.json")),
		Consistency: monitor.NewConsistencyTracker(filepath.Join(dir, "consistency.json"), 10, 3),
		Metrics:     metrics,
		Exporter:    f.exporter,
		Heartbeat:   f.beater,
		Repo:        f.repo,
		Clock:       realClock{},
		ZipDelay:    browser.NewHumanizer(0, 0, 1),
		Log:         zap.NewNop(),
	}
	return f
}

func TestRunCycleRespectsConcurrencyBound(t *testing.T) {
	zips := []string{"97301", "97401", "98501", "99201"}
	runner := &stubRunner{delay: 30 * time.Millisecond, rowsPer: 5}
	f := newFixture(t, zips, 2, runner)

	require.NoError(t, f.sched.RunCycle(context.Background()))

	assert.LessOrEqual(t, runner.maxSeen, 2, "never more zips in flight than configured")
	assert.ElementsMatch(t, zips, runner.crawled)
	assert.Equal(t, int32(1), f.exporter.calls.Load())
	assert.Equal(t, int32(1), f.beater.calls.Load())
	assert.Equal(t, int32(1), f.repo.purged.Load())

	s := f.sched.Metrics.Snapshot()
	assert.Equal(t, 4, s.LastCycle.ZipsOK)
	assert.Equal(t, 20, s.LastCycle.Rows)
}

func TestRunCycleFailedZipDoesNotAbortOthers(t *testing.T) {
	zips := []string{"97301", "98501", "99201"}
	runner := &stubRunner{
		rowsPer: 3,
		errFor: map[string]error{
			"98501": &scrape.StoreContextError{Zip: "98501", Err: errors.New("badge never confirmed")},
		},
	}
	f := newFixture(t, zips, 2, runner)

	require.NoError(t, f.sched.RunCycle(context.Background()))

	s := f.sched.Metrics.Snapshot()
	assert.Equal(t, 2, s.LastCycle.ZipsOK)
	assert.Equal(t, 1, s.LastCycle.ZipsFailed)
	assert.Equal(t, int32(1), f.exporter.calls.Load(), "partial success still exports")

	f.sched.Hub.Close()
	errs := f.sink.byStage(progress.StageZipError)
	require.Len(t, errs, 1)
	assert.Equal(t, "98501", errs[0].Zip)
	assert.Equal(t, ReasonStoreContext, errs[0].Reason)
}

func TestRunCycleAllFailedSkipsPostCycleWork(t *testing.T) {
	zips := []string{"97301", "98501"}
	runner := &stubRunner{errFor: map[string]error{
		"97301": &scrape.PageLoadError{URL: "u", Err: errors.New("timeout")},
		"98501": &scrape.SelectorChangedError{URL: "u", Category: "c"},
	}}
	f := newFixture(t, zips, 2, runner)

	require.NoError(t, f.sched.RunCycle(context.Background()))

	assert.Zero(t, f.exporter.calls.Load(), "nothing new to export")
	assert.Zero(t, f.beater.calls.Load(), "a fully failed cycle must not look alive")
	s := f.sched.Metrics.Snapshot()
	assert.Equal(t, 2, s.LastCycle.ZipsFailed)
}

func TestRunCycleLaunchFailureFailsCycle(t *testing.T) {
	runner := &stubRunner{}
	f := newFixture(t, []string{"97301"}, 1, runner)
	f.launcher.err = errors.New("no usable browser")

	err := f.sched.RunCycle(context.Background())
	assert.Error(t, err)
	assert.Empty(t, runner.crawled)
}

func TestRunCycleZeroRowsIsSuccess(t *testing.T) {
	runner := &stubRunner{rowsPer: 0}
	f := newFixture(t, []string{"97301"}, 1, runner)

	require.NoError(t, f.sched.RunCycle(context.Background()))

	s := f.sched.Metrics.Snapshot()
	assert.Equal(t, 1, s.LastCycle.ZipsOK, "an empty but working harvest is not a failure")
	assert.Equal(t, 1, f.sched.Consistency.ZeroStreak("97301"),
		"but it does count toward the zero streak")
}

func TestRunOnce(t *testing.T) {
	runner := &stubRunner{rowsPer: 1}
	f := newFixture(t, []string{"97301"}, 1, runner)

	require.NoError(t, f.sched.Run(context.Background(), true))
	assert.Equal(t, 1, f.launcher.launches)
}
