// Package browser owns the lifecycle of the chromedp session the crawler
// drives: launching with a persistent profile, attaching to an external
// browser over CDP, and degrading to less capable launch modes when the
// configured one fails.
package browser

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/mwhittaker87/clearcrawl/internal/config"
)

// Session is one live browsing context plus the cancels that tear it down.
type Session struct {
	Ctx context.Context

	remote    bool
	cancels   []context.CancelFunc
	closeOnce sync.Once
}

// Close releases the session. For remote attachments this only disconnects;
// the external browser is never killed. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		for i := len(s.cancels) - 1; i >= 0; i-- {
			s.cancels[i]()
		}
	})
}

// Remote reports whether the session is attached to an external browser.
func (s *Session) Remote() bool { return s.remote }

// Launcher builds sessions per the configured mode. A launch failure walks a
// degradation ladder: configured profile, profile wipe and retry, ephemeral
// profile, minimal flags. Demotion to an ephemeral profile sticks for the
// process lifetime so a corrupt profile dir is not retried every cycle.
type Launcher struct {
	cfg config.BrowserConfig
	log *zap.Logger

	mu      sync.Mutex
	demoted bool
}

// NewLauncher constructs a Launcher.
func NewLauncher(cfg config.BrowserConfig, log *zap.Logger) *Launcher {
	return &Launcher{cfg: cfg, log: log.Named("browser")}
}

// Launch produces a ready session. The returned session must be Closed by
// the caller.
func (l *Launcher) Launch(ctx context.Context) (*Session, error) {
	if l.cfg.CDPURL != "" {
		return l.attach(ctx)
	}
	return l.exec(ctx)
}

// attach connects to an already running browser over the DevTools protocol.
func (l *Launcher) attach(ctx context.Context) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, l.cfg.CDPURL)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("attach to %s: %w", l.cfg.CDPURL, err)
	}
	l.log.Info("attached to remote browser", zap.String("cdp_url", l.cfg.CDPURL))
	return &Session{
		Ctx:     browserCtx,
		remote:  true,
		cancels: []context.CancelFunc{allocCancel, browserCancel},
	}, nil
}

func (l *Launcher) exec(ctx context.Context) (*Session, error) {
	l.mu.Lock()
	demoted := l.demoted
	l.mu.Unlock()

	profileDir := l.cfg.UserDataDir
	if demoted {
		profileDir = ""
	}

	sess, err := l.launchWith(ctx, l.flags(profileDir))
	if err == nil {
		return sess, nil
	}
	firstErr := err

	if profileDir != "" {
		l.log.Warn("launch with configured profile failed, wiping profile and retrying",
			zap.String("profile", profileDir), zap.Error(err))
		if rmErr := os.RemoveAll(profileDir); rmErr != nil {
			l.log.Warn("profile wipe failed", zap.Error(rmErr))
		}
		if sess, err = l.launchWith(ctx, l.flags(profileDir)); err == nil {
			return sess, nil
		}

		l.log.Warn("relaunch after profile wipe failed, demoting to ephemeral profile", zap.Error(err))
		l.mu.Lock()
		l.demoted = true
		l.mu.Unlock()
		if sess, err = l.launchWith(ctx, l.flags("")); err == nil {
			return sess, nil
		}
	}

	l.log.Warn("launch failed, final attempt with minimal flags", zap.Error(err))
	if sess, err = l.launchWith(ctx, l.minimalFlags()); err == nil {
		return sess, nil
	}
	return nil, fmt.Errorf("browser launch exhausted all modes: %w (first failure: %v)", err, firstErr)
}

func (l *Launcher) launchWith(ctx context.Context, opts []chromedp.ExecAllocatorOption) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, err
	}
	return &Session{
		Ctx:     browserCtx,
		cancels: []context.CancelFunc{allocCancel, browserCancel},
	}, nil
}

func (l *Launcher) flags(profileDir string) []chromedp.ExecAllocatorOption {
	width, height := randomWindowSize()
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.WindowSize(width, height),
	)
	if l.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.cfg.UserAgent))
	}
	if profileDir != "" {
		opts = append(opts, chromedp.UserDataDir(profileDir))
	}
	for _, arg := range l.cfg.ExtraArgs {
		opts = append(opts, chromedp.Flag(trimFlag(arg), true))
	}
	return opts
}

func (l *Launcher) minimalFlags() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	return append(opts, chromedp.Flag("headless", l.cfg.Headless))
}

// randomWindowSize varies the viewport a little between launches.
func randomWindowSize() (int, int) {
	width := 1280 + rand.IntN(400)
	height := 860 + rand.IntN(190)
	return width, height
}

func trimFlag(arg string) string {
	for len(arg) > 0 && arg[0] == '-' {
		arg = arg[1:]
	}
	return arg
}
