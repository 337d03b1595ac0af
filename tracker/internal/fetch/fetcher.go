// Package fetch implements the plain HTTP acquisition path used for change
// detection: a single GET whose body is fingerprinted by the tracker.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrStatus is returned (wrapped) when the server answers outside 2xx.
var ErrStatus = errors.New("fetch: unexpected status")

// ErrTooLarge is returned (wrapped) when the body exceeds MaxBytes. A
// truncated body would fingerprint the same as any page sharing its prefix.
var ErrTooLarge = errors.New("fetch: body too large")

// Config configures the fetcher.
type Config struct {
	Timeout  time.Duration // HTTP timeout. Default: 30s.
	MaxBytes int64         // Max response body size. Default: 10MB.
	// UserAgent sent with requests.
	UserAgent string
	// BlockPrivate rejects URLs (and redirects) resolving to private or
	// loopback addresses.
	BlockPrivate bool
	Logger       *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024 // 10MB
	}
	if c.UserAgent == "" {
		c.UserAgent = "pagewatch/1.0"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Fetcher performs plain HTTP GETs.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher. Redirects are capped at 5 hops and re-validated
// when BlockPrivate is set.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if cfg.BlockPrivate {
					if err := ValidateURL(req.URL.String()); err != nil {
						return fmt.Errorf("redirect blocked: %w", err)
					}
				}
				return nil
			},
		},
		config: cfg,
	}
}

// FetchPlain retrieves url and returns the complete response body. Network
// errors, non-2xx statuses and bodies over MaxBytes are returned as errors.
func (f *Fetcher) FetchPlain(ctx context.Context, url string) ([]byte, error) {
	if f.config.BlockPrivate {
		if err := ValidateURL(url); err != nil {
			return nil, fmt.Errorf("fetch: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: http %d", ErrStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}
	if int64(len(body)) > f.config.MaxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.config.MaxBytes)
	}

	f.config.Logger.Debug("fetch: fetched",
		"url", url, "status", resp.StatusCode,
		"size", len(body), "duration", time.Since(start))
	return body, nil
}
