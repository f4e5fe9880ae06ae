package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// WaitFunc injects a humanized pause between interactive steps.
type WaitFunc func(ctx context.Context) error

// Resolver binds a browser session to the store serving a ZIP. Listing pages
// only show prices for the bound store, so every harvest for a ZIP must run
// behind a successful Resolve.
type Resolver struct {
	BaseURL    string
	Cache      *StoreCache
	Wait       WaitFunc
	NavTimeout time.Duration
	Log        *zap.Logger

	retry *retryPolicy
}

// NewResolver constructs a Resolver with the default retry policy.
func NewResolver(baseURL string, cache *StoreCache, wait WaitFunc, navTimeout time.Duration, log *zap.Logger) *Resolver {
	if wait == nil {
		wait = func(context.Context) error { return nil }
	}
	if navTimeout <= 0 {
		navTimeout = 45 * time.Second
	}
	return &Resolver{
		BaseURL:    baseURL,
		Cache:      cache,
		Wait:       wait,
		NavTimeout: navTimeout,
		Log:        log.Named("resolver"),
		retry:      newRetryPolicy(),
	}
}

// storeCandidate is one row of the store-locator result list.
type storeCandidate struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Zip   string `json:"zip"`
	Index int    `json:"index"`
}

// chooseCandidate picks the store to bind. A candidate whose advertised ZIP
// equals the requested ZIP wins; otherwise the locator's own ranking (the
// first row, nearest by distance) is trusted.
func chooseCandidate(cands []storeCandidate, zip string) (storeCandidate, bool) {
	if len(cands) == 0 {
		return storeCandidate{}, false
	}
	for _, c := range cands {
		if c.Zip == zip {
			return c, true
		}
	}
	return cands[0], true
}

// Resolve drives the store switcher until the session is bound to a store for
// zip, returning the bound identity. Failures after retries surface as
// *StoreContextError.
func (r *Resolver) Resolve(ctx context.Context, zip string) (StoreIdentity, error) {
	navCtx, cancel := context.WithTimeout(ctx, r.NavTimeout)
	err := chromedp.Run(navCtx, chromedp.Navigate(r.BaseURL))
	cancel()
	if err != nil {
		return StoreIdentity{}, &StoreContextError{Zip: zip, Err: fmt.Errorf("navigate home: %w", err)}
	}
	if err := r.Wait(ctx); err != nil {
		return StoreIdentity{}, &StoreContextError{Zip: zip, Err: err}
	}

	// Fast path: a persistent profile often still carries the binding from
	// the previous cycle, visible in the header badge without any clicking.
	if cached, ok := r.Cache.Get(zip); ok {
		if badge, err := r.readBadge(ctx); err == nil && badgeMatches(badge, cached.Name) {
			r.Log.Debug("store binding confirmed from badge",
				zap.String("zip", zip), zap.String("store", cached.Name))
			return cached, nil
		}
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		id, err := r.bindOnce(ctx, zip)
		if err == nil {
			r.Cache.Put(zip, id)
			return id, nil
		}
		lastErr = err
		if !r.retry.shouldRetry(err, attempt+1) {
			break
		}
		r.Log.Warn("store binding attempt failed, retrying",
			zap.String("zip", zip), zap.Int("attempt", attempt+1), zap.Error(err))
		if err := sleepCtx(ctx, r.retry.backoff(attempt)); err != nil {
			lastErr = err
			break
		}
	}
	return StoreIdentity{}, &StoreContextError{Zip: zip, Err: lastErr}
}

func (r *Resolver) bindOnce(ctx context.Context, zip string) (StoreIdentity, error) {
	if err := r.clickFirst(ctx, storeSwitcherSelectors, "store switcher"); err != nil {
		return StoreIdentity{}, err
	}
	if err := r.Wait(ctx); err != nil {
		return StoreIdentity{}, err
	}

	input, err := r.firstVisible(ctx, zipInputSelectors)
	if err != nil {
		return StoreIdentity{}, fmt.Errorf("zip input: %w", err)
	}
	if err := chromedp.Run(ctx,
		chromedp.Clear(input),
		chromedp.SendKeys(input, zip),
		chromedp.SendKeys(input, "\r"),
	); err != nil {
		return StoreIdentity{}, fmt.Errorf("submit zip: %w", err)
	}
	if err := r.Wait(ctx); err != nil {
		return StoreIdentity{}, err
	}

	cands, err := r.collectCandidates(ctx)
	if err != nil {
		return StoreIdentity{}, err
	}
	chosen, ok := chooseCandidate(cands, zip)
	if !ok {
		return StoreIdentity{}, fmt.Errorf("no store results for zip %s", zip)
	}

	if err := r.selectCandidate(ctx, chosen); err != nil {
		return StoreIdentity{}, err
	}
	if err := r.Wait(ctx); err != nil {
		return StoreIdentity{}, err
	}

	badge, err := r.readBadge(ctx)
	if err != nil {
		return StoreIdentity{}, fmt.Errorf("confirm badge: %w", err)
	}
	if !badgeMatches(badge, chosen.Name) {
		return StoreIdentity{}, fmt.Errorf("badge %q does not reflect selected store %q", badge, chosen.Name)
	}
	return StoreIdentity{ID: storeID(chosen.ID, zip), Name: chosen.Name}, nil
}

// storeID synthesizes a zip-scoped id when the locator row exposes none.
// Observations key on (store id, SKU), so an empty id would collapse
// different stores into one logical key and corrupt price-drop comparisons.
func storeID(candidateID, zip string) string {
	if candidateID != "" {
		return candidateID
	}
	return "zip:" + zip
}

// collectCandidates reads the result list in one evaluation rather than
// round-tripping per row.
func (r *Resolver) collectCandidates(ctx context.Context) ([]storeCandidate, error) {
	script := fmt.Sprintf(`(() => {
		const selectors = %s;
		for (const sel of selectors) {
			const rows = Array.from(document.querySelectorAll(sel));
			if (rows.length === 0) continue;
			return rows.map((row, index) => {
				const zipMatch = (row.textContent || "").match(/\b(\d{5})(?:-\d{4})?\b/);
				const name = row.querySelector("h3, h4, [data-test*='name'], a");
				return {
					id: row.getAttribute("data-store-id") || "",
					name: name ? name.textContent.trim() : "",
					zip: zipMatch ? zipMatch[1] : "",
					index: index,
				};
			}).filter(c => c.name !== "" || c.id !== "");
		}
		return [];
	})()`, jsStringArray(storeResultSelectors))

	var cands []storeCandidate
	pollCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	for {
		if err := chromedp.Run(pollCtx, chromedp.Evaluate(script, &cands)); err != nil {
			return nil, fmt.Errorf("read store results: %w", err)
		}
		if len(cands) > 0 {
			return cands, nil
		}
		if err := sleepCtx(pollCtx, 500*time.Millisecond); err != nil {
			return nil, fmt.Errorf("store results never appeared: %w", err)
		}
	}
}

func (r *Resolver) selectCandidate(ctx context.Context, c storeCandidate) error {
	script := fmt.Sprintf(`(() => {
		const rowSelectors = %s;
		const buttonSelectors = %s;
		for (const sel of rowSelectors) {
			const rows = document.querySelectorAll(sel);
			if (rows.length <= %d) continue;
			const row = rows[%d];
			for (const btnSel of buttonSelectors) {
				const btn = row.querySelector(btnSel);
				if (btn) { btn.click(); return true; }
			}
			const any = row.querySelector("button, a");
			if (any) { any.click(); return true; }
		}
		return false;
	})()`, jsStringArray(storeResultSelectors), jsStringArray(storeSelectButtonSelectors), c.Index, c.Index)

	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return fmt.Errorf("select store: %w", err)
	}
	if !clicked {
		return errors.New("select store: no clickable control in result row")
	}
	return nil
}

func (r *Resolver) readBadge(ctx context.Context) (string, error) {
	sel, err := r.firstVisible(ctx, storeBadgeSelectors)
	if err != nil {
		return "", err
	}
	var text string
	if err := chromedp.Run(ctx, chromedp.Text(sel, &text, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// clickFirst tries each selector in order with a short per-selector deadline.
func (r *Resolver) clickFirst(ctx context.Context, selectors []string, what string) error {
	sel, err := r.firstVisible(ctx, selectors)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if err := chromedp.Run(ctx, chromedp.Click(sel, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%s click %q: %w", what, sel, err)
	}
	return nil
}

func (r *Resolver) firstVisible(ctx context.Context, selectors []string) (string, error) {
	for _, sel := range selectors {
		stepCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := chromedp.Run(stepCtx, chromedp.WaitVisible(sel, chromedp.ByQuery))
		cancel()
		if err == nil {
			return sel, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("none of %d selectors matched a visible element", len(selectors))
}

// badgeMatches tolerates the badge decorating the store name with prefixes
// like "My Store:".
func badgeMatches(badge, storeName string) bool {
	if badge == "" || storeName == "" {
		return false
	}
	b := strings.ToLower(badge)
	n := strings.ToLower(storeName)
	return strings.Contains(b, n) || strings.Contains(n, b)
}

func jsStringArray(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
