// Package heartbeat pings an external liveness endpoint after each
// successful cycle so a dead crawler pages someone.
package heartbeat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger fires a GET at the configured URL.
type Pinger struct {
	URL    string
	Log    *zap.Logger
	client *http.Client
}

// New constructs a Pinger. An empty URL disables it.
func New(url string, timeout time.Duration, log *zap.Logger) *Pinger {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Pinger{
		URL:    url,
		Log:    log.Named("heartbeat"),
		client: &http.Client{Timeout: timeout},
	}
}

// Ping sends the heartbeat. Failures are logged, never fatal: a monitoring
// outage must not take the crawler with it.
func (p *Pinger) Ping(ctx context.Context) {
	if p.URL == "" {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		p.Log.Warn("heartbeat request build failed", zap.Error(err))
		return
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.Log.Warn("heartbeat failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode >= 300 {
		p.Log.Warn("heartbeat rejected", zap.String("status", fmt.Sprint(resp.StatusCode)))
		return
	}
	p.Log.Debug("heartbeat sent")
}
