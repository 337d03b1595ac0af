package tracker

import (
	"fmt"
	"log/slog"

	"github.com/hazyhaar/pagewatch/tracker/internal/extract"
	"github.com/hazyhaar/pagewatch/tracker/internal/fetch"
	"github.com/hazyhaar/pagewatch/tracker/internal/hashstore"
	"github.com/hazyhaar/pagewatch/tracker/internal/notify"
	"github.com/hazyhaar/pagewatch/tracker/internal/render"
	"github.com/hazyhaar/pagewatch/tracker/internal/report"
)

// FromConfig validates cfg and wires every collaborator it names: plain
// fetcher, fingerprint store, render backend, extractor, report renderer
// and writer, and notifiers. m may be nil. The caller owns the returned
// Tracker and must Close it.
func FromConfig(cfg *Config, logger *slog.Logger, m *Metrics) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	plain := fetch.New(fetch.Config{
		Timeout:      cfg.Fetch.Timeout,
		MaxBytes:     cfg.Fetch.MaxBytes,
		UserAgent:    cfg.Fetch.UserAgent,
		BlockPrivate: cfg.Fetch.BlockPrivate,
		Logger:       logger,
	})

	rendered, err := render.New(render.Config{
		Backend:          cfg.Render.Backend,
		RemoteURL:        cfg.Render.Remote,
		DisableStealth:   cfg.Render.DisableStealth,
		ResourceBlocking: cfg.Render.ResourceBlocking,
		Timeout:          cfg.Render.Timeout,
		RecycleInterval:  cfg.Render.RecycleInterval,
		UserAgent:        cfg.Fetch.UserAgent,
		Plain:            plain,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("tracker: %w", err)
	}

	notifier, compose, err := buildNotifier(cfg.Notify, logger)
	if err != nil {
		rendered.Close()
		return nil, fmt.Errorf("tracker: %w", err)
	}

	store, err := hashstore.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		rendered.Close()
		return nil, fmt.Errorf("tracker: %w: %w", ErrStorage, err)
	}

	var tags extract.TagSet
	if len(cfg.Extract.TextTags) > 0 {
		tags = extract.NewTagSet(cfg.Extract.TextTags...)
	}

	t, err := New(Options{
		URL:      cfg.URL,
		Plain:    plain,
		Store:    store,
		Rendered: rendered,
		Extractor: extract.New(extract.Options{
			TextTags:         tags,
			ImagePlaceholder: cfg.Extract.ImagePlaceholder,
		}),
		Renderer: report.New(report.Options{
			Title: cfg.Report.Title,
			Labels: report.Labels{
				Text:  cfg.Report.Labels.Text,
				Link:  cfg.Report.Labels.Link,
				Image: cfg.Report.Labels.Image,
			},
		}),
		Writer:        report.NewFileWriter(cfg.Report.Path, cfg.Report.MarkdownPath, logger),
		ReportPath:    cfg.Report.Path,
		Notifier:      notifier,
		Compose:       compose,
		Interval:      cfg.Interval,
		FetchTimeout:  cfg.Fetch.Timeout,
		RenderTimeout: cfg.Render.Timeout,
		NotifyTimeout: cfg.Notify.Timeout,
		Metrics:       m,
		Logger:        logger,
	})
	if err != nil {
		rendered.Close()
		store.Close()
		return nil, err
	}
	return t, nil
}

// buildNotifier returns nil when no channel is configured.
func buildNotifier(cfg NotifyConfig, logger *slog.Logger) (Notifier, ComposeFunc, error) {
	if !cfg.Enabled() {
		return nil, nil, nil
	}

	var notifiers []notify.Notifier
	if cfg.SMTP.Host != "" {
		s, err := notify.NewSMTP(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			Insecure: cfg.SMTP.Insecure,
			Timeout:  cfg.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		notifiers = append(notifiers, s)
	}
	for _, u := range cfg.Webhooks {
		notifiers = append(notifiers, notify.NewWebhook(u))
	}

	c, err := notify.NewComposer(cfg.Subject, cfg.Body, cfg.Recipients)
	if err != nil {
		return nil, nil, err
	}
	if len(notifiers) == 1 {
		return notifiers[0], c.Compose, nil
	}
	return notify.NewRouter(logger, notifiers...), c.Compose, nil
}
