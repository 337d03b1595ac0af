package render

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Rod renders pages in a Chrome driven through go-rod. One browser process
// is kept between calls; each call opens and closes its own tab.
type Rod struct {
	cfg     Config
	log     *slog.Logger
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	startAt time.Time
	closed  bool
}

func newRod(cfg Config) *Rod {
	return &Rod{cfg: cfg, log: cfg.Logger}
}

// FetchRendered opens a tab, navigates, waits for the load event and
// returns document.documentElement.outerHTML. Launching Chrome, opening the
// tab and navigating all share one deadline of cfg.Timeout.
func (r *Rod) FetchRendered(ctx context.Context, url string) ([]byte, error) {
	navCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	b, err := r.acquire(navCtx)
	if err != nil {
		return nil, err
	}

	page, err := r.openTab(b.Context(navCtx))
	if err != nil {
		// A dead or hung browser fails here; drop it so the next call relaunches.
		r.reset()
		return nil, err
	}
	defer closePage(page)

	if len(r.cfg.ResourceBlocking) > 0 {
		router := applyResourceBlocking(page, r.cfg.ResourceBlocking)
		defer router.Stop()
	}

	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("render: navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("render: wait load %s: %w", url, err)
	}

	res, err := page.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("render: get DOM: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

// Close shuts Chrome down. The Rod renderer cannot be reused afterwards.
func (r *Rod) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.cleanupLocked()
	return nil
}

// openTab creates a tab bound to b's context.
func (r *Rod) openTab(b *rod.Browser) (*rod.Page, error) {
	var page *rod.Page
	var err error
	if r.cfg.DisableStealth {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	} else {
		page, err = stealth.Page(b)
	}
	if err != nil {
		return nil, fmt.Errorf("render: create tab: %w", err)
	}
	if r.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: r.cfg.UserAgent}); err != nil {
			r.log.Warn("render: set user agent failed", "error", err)
		}
	}
	return page, nil
}

// closePage closes the tab on its own short deadline; the navigation
// context may already be done.
func closePage(page *rod.Page) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	page.Context(ctx).Close()
}

type launched struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
	err     error
}

// acquire returns the live browser, launching or recycling it as needed.
// The browser outlives ctx; ctx only bounds how long the caller waits for
// the launch. A launch that finishes after ctx is done is torn down.
func (r *Rod) acquire(ctx context.Context) (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("render: rod renderer is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("render: launch: %w", err)
	}
	if r.browser != nil && time.Since(r.startAt) > r.cfg.RecycleInterval {
		r.log.Info("render: recycling chrome", "uptime", time.Since(r.startAt))
		r.cleanupLocked()
	}
	if r.browser != nil {
		return r.browser, nil
	}

	done := make(chan launched, 1)
	go func() {
		b, l, err := launch(r.cfg.RemoteURL, r.log)
		done <- launched{browser: b, lnch: l, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		r.browser, r.lnch = res.browser, res.lnch
		r.startAt = time.Now()
		return res.browser, nil
	case <-ctx.Done():
		go func() {
			res := <-done
			if res.err == nil {
				res.browser.Close()
			}
			if res.lnch != nil {
				res.lnch.Cleanup()
			}
		}()
		return nil, fmt.Errorf("render: launch: %w", ctx.Err())
	}
}

// launch starts a local Chrome, or attaches to remoteURL when set, and
// connects to it.
func launch(remoteURL string, log *slog.Logger) (*rod.Browser, *launcher.Launcher, error) {
	wsURL := remoteURL
	var l *launcher.Launcher
	if wsURL != "" {
		log.Info("render: connecting to remote chrome", "url", wsURL)
	} else {
		l = launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("render: launch: %w", err)
		}
		wsURL = u
		log.Info("render: launched local chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Cleanup()
		}
		return nil, nil, fmt.Errorf("render: connect: %w", err)
	}
	return b, l, nil
}

func (r *Rod) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanupLocked()
}

func (r *Rod) cleanupLocked() {
	if r.browser != nil {
		r.browser.Close()
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Cleanup()
		r.lnch = nil
	}
}

// applyResourceBlocking fails requests whose resource type is listed.
func applyResourceBlocking(page *rod.Page, types []string) *rod.HijackRouter {
	blockSet := make(map[string]bool, len(types))
	for _, t := range types {
		blockSet[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if shouldBlock(blockSet, string(h.Request.Type())) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}

// shouldBlock maps CDP resource types onto the config's plural names.
func shouldBlock(blockSet map[string]bool, resType string) bool {
	lower := strings.ToLower(resType)
	switch lower {
	case "image":
		return blockSet["images"]
	case "font":
		return blockSet["fonts"]
	case "media":
		return blockSet["media"]
	case "stylesheet":
		return blockSet["stylesheets"]
	}
	return blockSet[lower]
}
