package scheduler

import (
	"context"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/mwhittaker87/clearcrawl/internal/browser"
	"github.com/mwhittaker87/clearcrawl/internal/config"
	"github.com/mwhittaker87/clearcrawl/internal/pipeline"
	"github.com/mwhittaker87/clearcrawl/internal/scrape"
)

// ZipOutcome is what one ZIP contributed to the cycle.
type ZipOutcome struct {
	Rows  int
	Stats pipeline.Stats
}

// ZipRunner crawls all configured categories for one ZIP inside an existing
// browser session.
type ZipRunner interface {
	RunZip(ctx context.Context, session *browser.Session, zip string) (ZipOutcome, error)
}

// Runner is the production ZipRunner: bind the store, harvest each category,
// feed the pipeline.
type Runner struct {
	Resolver      *scrape.Resolver
	Harvester     *scrape.Harvester
	Pipeline      *pipeline.Pipeline
	Categories    []config.CategoryConfig
	CategoryDelay *browser.Humanizer
	Log           *zap.Logger
}

// NewRunner constructs a Runner.
func NewRunner(resolver *scrape.Resolver, harvester *scrape.Harvester, pl *pipeline.Pipeline,
	categories []config.CategoryConfig, categoryDelay *browser.Humanizer, log *zap.Logger) *Runner {
	return &Runner{
		Resolver:      resolver,
		Harvester:     harvester,
		Pipeline:      pl,
		Categories:    categories,
		CategoryDelay: categoryDelay,
		Log:           log.Named("runner"),
	}
}

// RunZip implements ZipRunner. Each ZIP gets its own tab off the shared
// browser so concurrent ZIPs do not fight over one page. A category failing
// does not abort the ZIP; the store context failing does.
func (r *Runner) RunZip(ctx context.Context, session *browser.Session, zip string) (ZipOutcome, error) {
	var outcome ZipOutcome

	tabCtx, cancel := chromedp.NewContext(session.Ctx)
	defer cancel()

	identity, err := r.Resolver.Resolve(tabCtx, zip)
	if err != nil {
		return outcome, err
	}
	meta := pipeline.StoreMeta{
		ID:    identity.ID,
		Name:  identity.Name,
		State: InferState(zip),
		Zip:   zip,
	}

	var firstErr error
	for i, cat := range r.Categories {
		if i > 0 && r.CategoryDelay != nil {
			if err := r.CategoryDelay.Wait(ctx); err != nil {
				return outcome, err
			}
		}

		records, err := r.Harvester.Harvest(tabCtx, cat.URL, cat.Name, zip)
		if err != nil {
			r.Log.Warn("category harvest failed",
				zap.String("zip", zip), zap.String("category", cat.Name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		outcome.Rows += len(records)

		stats, err := r.Pipeline.ProcessRecords(ctx, meta, records)
		if err != nil {
			r.Log.Error("pipeline failed for category",
				zap.String("zip", zip), zap.String("category", cat.Name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		outcome.Stats.Observed += stats.Observed
		outcome.Stats.Quarantined += stats.Quarantined
		outcome.Stats.Skipped += stats.Skipped
		outcome.Stats.NewClearance += stats.NewClearance
		outcome.Stats.PriceDrops += stats.PriceDrops
	}

	// A ZIP where every category failed reports the first failure; partial
	// success is success.
	if outcome.Rows == 0 && firstErr != nil {
		return outcome, firstErr
	}
	return outcome, nil
}
