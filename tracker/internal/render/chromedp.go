package render

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
)

// Chromedp renders pages with chromedp. Each call runs in a fresh browser
// context, so nothing is shared between cycles.
type Chromedp struct {
	cfg Config
}

func newChromedp(cfg Config) *Chromedp {
	return &Chromedp{cfg: cfg}
}

func (c *Chromedp) FetchRendered(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	actx, cancelAlloc := c.allocator(ctx)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("render: chromedp %s: %w", url, err)
	}
	return []byte(html), nil
}

func (c *Chromedp) allocator(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.RemoteURL != "" {
		return chromedp.NewRemoteAllocator(ctx, c.cfg.RemoteURL)
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if c.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.cfg.UserAgent))
	}
	return chromedp.NewExecAllocator(ctx, opts...)
}

func (c *Chromedp) Close() error { return nil }
