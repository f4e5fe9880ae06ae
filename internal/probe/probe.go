// Package probe does lightweight pre-flight checks on category URLs before
// the crawler spends a full browser navigation on them. A dead or redirected
// URL is caught here for the cost of a single HTTP request.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Prober fetches a URL with a plain HTTP client and reports whether it is
// worth navigating to.
type Prober struct {
	UserAgent string
	Timeout   time.Duration
	Log       *zap.Logger
}

// New constructs a Prober.
func New(userAgent string, timeout time.Duration, log *zap.Logger) *Prober {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Prober{UserAgent: userAgent, Timeout: timeout, Log: log.Named("probe")}
}

// Probe returns nil when the URL answers with a non-error status. Bot walls
// that return 403 to plain clients are tolerated: the browser session may
// still get through, so only hard failures are reported.
func (p *Prober) Probe(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Robots directives are skipped so the probe sees exactly what the
	// browser session will.
	c := colly.NewCollector(
		colly.UserAgent(p.UserAgent),
		colly.MaxDepth(1),
		colly.IgnoreRobotsTxt(),
	)
	c.SetRequestTimeout(p.Timeout)

	var status int
	var visitErr error
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		visitErr = err
	})

	if err := c.Visit(url); err != nil && visitErr == nil {
		visitErr = err
	}
	c.Wait()

	switch {
	case status >= 200 && status < 400:
		return nil
	case status == 403 || status == 429:
		p.Log.Debug("probe blocked by bot wall, deferring to browser",
			zap.String("url", url), zap.Int("status", status))
		return nil
	case status >= 400:
		return fmt.Errorf("probe status %d", status)
	case visitErr != nil:
		return fmt.Errorf("probe request: %w", visitErr)
	default:
		return nil
	}
}
