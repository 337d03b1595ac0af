// Command pagewatch polls one web page and regenerates a static report of
// its text, links and images whenever the content changes.
//
// Usage:
//
//	pagewatch                                # configuration from .env / environment
//	pagewatch -config pagewatch.yaml         # YAML file, environment still overrides
//	pagewatch -url https://example.com -once # single cycle, then exit
//	pagewatch -serve :8080                   # also serve report, /stats and /metrics
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/pagewatch/tracker"
)

func main() {
	configPath := flag.String("config", "", "path to pagewatch.yaml (optional)")
	pageURL := flag.String("url", "", "URL to watch (overrides WEBSITE_URL)")
	once := flag.Bool("once", false, "run a single cycle and exit")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	serveAddr := flag.String("serve", "", "status server address, e.g. :8080")
	flag.Parse()

	cfg, err := tracker.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pagewatch:", err)
		os.Exit(2)
	}
	if *pageURL != "" {
		cfg.URL = *pageURL
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *serveAddr != "" {
		cfg.Server.Addr = *serveAddr
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, *once); err != nil {
		logger.Error("pagewatch: fatal", "error", err)
		if errors.Is(err, tracker.ErrInvalidConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *tracker.Config, once bool) error {
	metrics := tracker.NewMetrics()
	t, err := tracker.FromConfig(cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer t.Close()

	logger.Info("pagewatch: configured",
		"url", cfg.URL,
		"interval", cfg.Interval,
		"render", cfg.Render.Backend,
		"store", cfg.Store.Driver,
		"report", cfg.Report.Path,
		"notify", cfg.Notify.Enabled(),
	)

	if once {
		res, err := t.RunCycle(ctx)
		if err != nil {
			return fmt.Errorf("cycle %s: %w", res.CycleID, err)
		}
		logger.Info("pagewatch: cycle done", "changed", res.Changed, "records", res.Records)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Server.Addr != "" {
		srv := tracker.NewServer(t, metrics, logger)
		g.Go(func() error { return srv.ListenAndServe(gctx, cfg.Server.Addr) })
	}
	g.Go(func() error { return t.Run(gctx) })
	return g.Wait()
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
