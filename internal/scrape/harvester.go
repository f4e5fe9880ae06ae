package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// blockedURLPatterns are fetched resources a harvest never needs. Images
// stay enabled: their URLs are read from the DOM either way, and a page
// that never loads images looks less like a person.
var blockedURLPatterns = []string{"*.woff", "*.woff2", "*.ttf", "*.mp4", "*.webm"}

// Prober is a cheap pre-flight check on a category URL, run before spending a
// browser navigation on it.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

// Harvester walks a category listing page by page and extracts product
// records through the strategy chain: DOM selector sets first, embedded JSON
// blobs last.
type Harvester struct {
	Probe        Prober
	Wait         WaitFunc
	Log          *zap.Logger
	MaxPages     int
	PctThreshold float64
	NavTimeout   time.Duration

	retry *retryPolicy
	nav   func(ctx context.Context, url string) error
}

// NewHarvester constructs a Harvester. probe may be nil to skip pre-flight.
func NewHarvester(probe Prober, wait WaitFunc, navTimeout time.Duration, log *zap.Logger,
	maxPages int, pctThreshold float64) *Harvester {
	if wait == nil {
		wait = func(context.Context) error { return nil }
	}
	if maxPages <= 0 {
		maxPages = 10
	}
	if navTimeout <= 0 {
		navTimeout = 45 * time.Second
	}
	return &Harvester{
		Probe:        probe,
		Wait:         wait,
		Log:          log.Named("harvester"),
		MaxPages:     maxPages,
		PctThreshold: pctThreshold,
		NavTimeout:   navTimeout,
		retry:        newRetryPolicy(),
		nav:          navigateAndReady,
	}
}

func navigateAndReady(ctx context.Context, url string) error {
	return chromedp.Run(ctx,
		network.Enable(),
		network.SetBlockedURLs(blockedURLPatterns),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// navigate loads url under a per-attempt deadline, retrying transient load
// failures with backoff. Parent-context cancellation is terminal.
func (h *Harvester) navigate(ctx context.Context, url string) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		navCtx, cancel := context.WithTimeout(ctx, h.NavTimeout)
		lastErr = h.nav(navCtx, url)
		cancel()
		if lastErr == nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt+1 >= h.retry.maxAttempts {
			break
		}
		h.Log.Warn("navigation failed, retrying",
			zap.String("url", url), zap.Int("attempt", attempt+1), zap.Error(lastErr))
		if err := sleepCtx(ctx, h.retry.backoff(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

// Harvest collects deduplicated records for one category under an already
// store-bound browser context. Zero records after all strategies is a
// *SelectorChangedError; navigation failures surface as *PageLoadError once
// the retry budget is spent.
func (h *Harvester) Harvest(ctx context.Context, categoryURL, category, zip string) ([]ProductRecord, error) {
	if h.Probe != nil {
		if err := h.Probe.Probe(ctx, categoryURL); err != nil {
			return nil, &PageLoadError{URL: categoryURL, Err: fmt.Errorf("probe: %w", err)}
		}
	}

	if err := h.navigate(ctx, categoryURL); err != nil {
		return nil, &PageLoadError{URL: categoryURL, Err: err}
	}

	var all []ProductRecord
	for page := 1; page <= h.MaxPages; page++ {
		if err := h.Wait(ctx); err != nil {
			return nil, err
		}
		if err := h.settle(ctx); err != nil {
			return nil, &PageLoadError{URL: categoryURL, Err: err}
		}

		var html string
		if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
			return nil, &PageLoadError{URL: categoryURL, Err: err}
		}

		records := h.extract(html, categoryURL, category, zip)
		h.Log.Debug("page extracted",
			zap.String("category", category), zap.Int("page", page), zap.Int("records", len(records)))
		all = append(all, records...)

		if len(records) == 0 {
			break
		}
		advanced, err := h.nextPage(ctx)
		if err != nil {
			return nil, &PageLoadError{URL: categoryURL, Err: err}
		}
		if !advanced {
			break
		}
	}

	all = Dedup(all)
	if len(all) == 0 {
		return nil, &SelectorChangedError{URL: categoryURL, Category: category}
	}
	return all, nil
}

func (h *Harvester) extract(html, pageURL, category, zip string) []ProductRecord {
	if records := ExtractCards(html, pageURL, category, zip, h.PctThreshold); len(records) > 0 {
		return records
	}
	if records := ExtractEmbedded(html, pageURL, category, zip, h.PctThreshold); len(records) > 0 {
		h.Log.Info("dom strategies empty, embedded json strategy used", zap.String("url", pageURL))
		return records
	}
	return nil
}

// settle scrolls to the bottom until document height stops growing, which
// forces lazy-loaded cards to render.
func (h *Harvester) settle(ctx context.Context) error {
	const maxRounds = 8
	var lastHeight int64 = -1
	for round := 0; round < maxRounds; round++ {
		var height int64
		if err := chromedp.Run(ctx,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight); document.body.scrollHeight`, &height),
		); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		if height == lastHeight {
			return nil
		}
		lastHeight = height
		if err := sleepCtx(ctx, 600*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}

// nextPage clicks the pagination control if one is present and enabled.
func (h *Harvester) nextPage(ctx context.Context) (bool, error) {
	script := fmt.Sprintf(`(() => {
		const selectors = %s;
		for (const sel of selectors) {
			const btn = document.querySelector(sel);
			if (!btn) continue;
			if (btn.disabled || btn.getAttribute("aria-disabled") === "true") return false;
			btn.click();
			return true;
		}
		return false;
	})()`, jsStringArray(nextButtonSelectors))

	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return false, fmt.Errorf("pagination: %w", err)
	}
	if !clicked {
		return false, nil
	}
	if err := chromedp.Run(ctx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return false, fmt.Errorf("pagination load: %w", err)
	}
	return true, nil
}
