package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mwhittaker87/clearcrawl/internal/app"
	"github.com/mwhittaker87/clearcrawl/internal/config"
)

// newCrawlCmd creates the 'crawl' subcommand, the service's main mode.
func newCrawlCmd() *cobra.Command {
	var (
		once       bool
		zips       []string
		categories []string
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run crawl cycles on the configured schedule",
		Long: `Launches the browser, sweeps every configured ZIP code, and repeats on
the configured interval. With --once a single cycle runs and the process
exits, which is the mode cron-style supervisors use.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if len(zips) > 0 {
				cfg.Crawl.Zips = zips
			}
			if len(categories) > 0 {
				cfg.Categories = filterCategories(cfg.Categories, categories)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			a.Health.Start()
			go a.Watchdog.Run(ctx)
			go a.Stall.Run(ctx)

			if err := a.Scheduler.Run(ctx, once); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	cmd.Flags().StringSliceVar(&zips, "zips", nil, "override the configured ZIP codes")
	cmd.Flags().StringSliceVar(&categories, "categories", nil, "restrict to the named categories")

	return cmd
}

// filterCategories keeps the configured categories whose names appear in
// wanted.
func filterCategories(all []config.CategoryConfig, wanted []string) []config.CategoryConfig {
	keep := make(map[string]bool, len(wanted))
	for _, name := range wanted {
		keep[name] = true
	}
	var out []config.CategoryConfig
	for _, cat := range all {
		if keep[cat.Name] {
			out = append(out, cat)
		}
	}
	return out
}
