// Package app wires configuration into the running service: logger,
// repository, notifier, monitors, progress hub, health surface, and the
// crawl scheduler.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/mwhittaker87/clearcrawl/internal/browser"
	"github.com/mwhittaker87/clearcrawl/internal/clock/system"
	"github.com/mwhittaker87/clearcrawl/internal/config"
	"github.com/mwhittaker87/clearcrawl/internal/export"
	"github.com/mwhittaker87/clearcrawl/internal/health"
	"github.com/mwhittaker87/clearcrawl/internal/heartbeat"
	"github.com/mwhittaker87/clearcrawl/internal/logging"
	"github.com/mwhittaker87/clearcrawl/internal/monitor"
	"github.com/mwhittaker87/clearcrawl/internal/notify"
	"github.com/mwhittaker87/clearcrawl/internal/pipeline"
	"github.com/mwhittaker87/clearcrawl/internal/probe"
	"github.com/mwhittaker87/clearcrawl/internal/progress"
	"github.com/mwhittaker87/clearcrawl/internal/progress/sinks"
	"github.com/mwhittaker87/clearcrawl/internal/scheduler"
	"github.com/mwhittaker87/clearcrawl/internal/scrape"
	"github.com/mwhittaker87/clearcrawl/internal/storage/postgres"
	"github.com/mwhittaker87/clearcrawl/internal/store"
)

// App is the fully wired service.
type App struct {
	Cfg       config.Config
	Log       *zap.Logger
	Repo      store.Repository
	Scheduler *scheduler.Scheduler
	Health    *health.Server
	Watchdog  *monitor.MemoryWatchdog
	Stall     *monitor.StallWatchdog
	Hub       *progress.Hub
}

// New builds the service from cfg. BaseURL is the retailer's storefront
// root, derived from the first category URL's origin.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	log, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	repo, err := postgres.New(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Alerts.TelegramToken != "" && cfg.Alerts.TelegramChatID != "" {
		notifier = notify.NewTelegram(cfg.Alerts.TelegramToken, cfg.Alerts.TelegramChatID)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	hub := progress.NewHub(sinks.NewLog(log), sinks.NewPrometheus(registry))

	clk := system.New()
	pl := pipeline.New(repo, notifier, clk, log, cfg.Retailer, cfg.Crawl.CategoryFilter,
		pipeline.Thresholds{
			PctDrop:           cfg.Alerts.PctDropThreshold,
			AbsDropDefault:    cfg.Alerts.AbsDropDefault,
			AbsDropByCategory: cfg.Alerts.AbsDropByCat,
		}, hub)

	metrics, err := monitor.NewMetricsEmitter(cfg.Monitor.MetricsLogPath, cfg.Monitor.MetricsSummaryPath)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("metrics emitter: %w", err)
	}
	tracker := monitor.NewZipTracker(cfg.Monitor.CursorPath)
	consistency := monitor.NewConsistencyTracker(cfg.Monitor.ConsistencyPath,
		cfg.Monitor.HistoryLength, cfg.Monitor.ZeroStreakThreshold)

	baseURL, err := storefrontRoot(cfg.Categories)
	if err != nil {
		repo.Close()
		return nil, err
	}

	stepWait := browser.NewHumanizer(cfg.Browser.WaitMinMs, cfg.Browser.WaitMaxMs, cfg.Browser.WaitMultiplier)
	categoryDelay := browser.NewHumanizer(cfg.Browser.CategoryDelayMinMs, cfg.Browser.CategoryDelayMaxMs, cfg.Browser.WaitMultiplier)
	zipDelay := browser.NewHumanizer(cfg.Browser.ZipDelayMinMs, cfg.Browser.ZipDelayMaxMs, cfg.Browser.WaitMultiplier)

	resolver := scrape.NewResolver(baseURL, scrape.NewStoreCache(), stepWait.Wait,
		cfg.Browser.NavTimeout(), log)
	prober := probe.New(cfg.Browser.UserAgent,
		time.Duration(cfg.Browser.ProbeTimeoutSeconds)*time.Second, log)
	harvester := scrape.NewHarvester(prober, stepWait.Wait, cfg.Browser.NavTimeout(), log,
		cfg.Crawl.MaxPagesPerCategory, cfg.Crawl.ClearancePctThreshold)

	runner := scheduler.NewRunner(resolver, harvester, pl, cfg.Categories, categoryDelay, log)

	sched := &scheduler.Scheduler{
		Cfg:         cfg,
		Launcher:    browser.NewLauncher(cfg.Browser, log),
		Runner:      runner,
		Hub:         hub,
		Tracker:     tracker,
		Consistency: consistency,
		Metrics:     metrics,
		Exporter:    export.New(repo, cfg.Export.CSVPath, cfg.Export.Limit),
		Heartbeat: heartbeat.New(cfg.Heartbeat.URL,
			time.Duration(cfg.Heartbeat.TimeoutSeconds)*time.Second, log),
		Repo:     repo,
		Clock:    clk,
		ZipDelay: zipDelay,
		Log:      log,
	}

	healthSrv := health.New(cfg.Health.Port, repo, health.Trackers{
		Metrics:     metrics,
		Cursor:      tracker,
		Consistency: consistency,
	}, registry, log)

	watchdog := monitor.NewMemoryWatchdog(cfg.Monitor.MemoryLimitMB,
		time.Duration(cfg.Monitor.MemoryIntervalSec)*time.Second, log)
	stall := monitor.NewStallWatchdog(tracker,
		time.Duration(cfg.Monitor.WatchdogMinutes*float64(time.Minute)), log)

	return &App{
		Cfg:       cfg,
		Log:       log,
		Repo:      repo,
		Scheduler: sched,
		Health:    healthSrv,
		Watchdog:  watchdog,
		Stall:     stall,
		Hub:       hub,
	}, nil
}

// Close releases resources in reverse dependency order.
func (a *App) Close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Health.Shutdown(shutdownCtx); err != nil {
		a.Log.Warn("health shutdown", zap.Error(err))
	}
	a.Hub.Close()
	a.Repo.Close()
	_ = a.Log.Sync()
}
