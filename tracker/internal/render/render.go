// Package render acquires the browser-rendered HTML of a page, after
// scripts have run. The tracker only calls it once a change is confirmed.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/pagewatch/tracker/internal/fetch"
)

// Backend names accepted by New.
const (
	BackendRod      = "rod"
	BackendChromedp = "chromedp"
	BackendHTTP     = "http"
)

// Renderer returns the serialised DOM of a loaded page.
type Renderer interface {
	FetchRendered(ctx context.Context, url string) ([]byte, error)
	Close() error
}

// Config configures a rendering backend.
type Config struct {
	// Backend selects the implementation. Default: rod.
	Backend string

	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty = launch a local headless Chrome.
	RemoteURL string

	// DisableStealth skips the go-rod/stealth evasions (rod only).
	DisableStealth bool

	// ResourceBlocking lists resource types to block (images, fonts, media,
	// stylesheets). rod only.
	ResourceBlocking []string

	// Timeout bounds navigation plus serialisation. Default: 30s.
	Timeout time.Duration

	// RecycleInterval is the maximum lifetime of a launched Chrome before
	// it is restarted on next use. Default: 4h.
	RecycleInterval time.Duration

	UserAgent string

	// Plain is used by the http backend. Built from Timeout when nil.
	Plain *fetch.Fetcher

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Backend == "" {
		c.Backend = BackendRod
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// New builds the Renderer named by cfg.Backend. Browser backends launch
// Chrome lazily, on the first FetchRendered.
func New(cfg Config) (Renderer, error) {
	cfg.defaults()
	switch cfg.Backend {
	case BackendRod:
		return newRod(cfg), nil
	case BackendChromedp:
		return newChromedp(cfg), nil
	case BackendHTTP:
		plain := cfg.Plain
		if plain == nil {
			plain = fetch.New(fetch.Config{Timeout: cfg.Timeout, UserAgent: cfg.UserAgent, Logger: cfg.Logger})
		}
		return &HTTP{plain: plain}, nil
	default:
		return nil, fmt.Errorf("render: unknown backend %q", cfg.Backend)
	}
}

// HTTP "renders" with a plain GET. Useful for static sites and for running
// without a browser installed; scripts are not executed.
type HTTP struct {
	plain *fetch.Fetcher
}

func (h *HTTP) FetchRendered(ctx context.Context, url string) ([]byte, error) {
	body, err := h.plain.FetchPlain(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("render: http: %w", err)
	}
	return body, nil
}

func (h *HTTP) Close() error { return nil }
