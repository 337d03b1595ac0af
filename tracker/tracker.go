// Package tracker watches one web page for content changes. Each poll cycle
// fetches the page, compares a SHA-256 fingerprint of the body with the
// last one persisted and, on change, renders the page in a browser,
// extracts its text, links and images into a static HTML report and
// optionally notifies recipients.
//
// Cycles never overlap and never stop the loop: a failed cycle is logged,
// counted and abandoned, and the next one starts from whatever fingerprint
// was last persisted.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/pagewatch/tracker/internal/notify"
	"github.com/hazyhaar/pagewatch/tracker/snapshot"
)

// State is the poll loop's position within a cycle.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateComparing
	StateUnchanged
	StateChangingReport
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateComparing:
		return "comparing"
	case StateUnchanged:
		return "unchanged"
	case StateChangingReport:
		return "changing_report"
	default:
		return "unknown"
	}
}

// RenderedFetcher returns the browser-rendered HTML of a page.
type RenderedFetcher interface {
	FetchRendered(ctx context.Context, url string) ([]byte, error)
}

// Extractor turns rendered HTML into a Snapshot.
type Extractor interface {
	Extract(rendered []byte, pageURL string, capturedAt time.Time) (snapshot.Snapshot, error)
}

// ReportRenderer turns a Snapshot into a report document.
type ReportRenderer interface {
	Render(s snapshot.Snapshot) ([]byte, error)
}

// ReportWriter publishes a report document, replacing the previous one.
type ReportWriter interface {
	Write(ctx context.Context, doc []byte) error
}

// Message is a change alert.
type Message = notify.Message

// Notifier delivers change alerts.
type Notifier = notify.Notifier

// Event describes a confirmed change to the message composer.
type Event = notify.Event

// ComposeFunc builds the alert for a change.
type ComposeFunc func(Event) (Message, error)

// Options configures a Tracker. URL and every collaborator except Notifier
// are required.
type Options struct {
	URL string

	Plain     PlainFetcher
	Store     HashStore
	Rendered  RenderedFetcher
	Extractor Extractor
	Renderer  ReportRenderer
	Writer    ReportWriter

	// Notifier is optional; nil disables alerts.
	Notifier Notifier
	// Compose defaults to the notify package's default templates.
	Compose ComposeFunc

	// ReportPath is where Writer puts the report, for alerts and the
	// status server.
	ReportPath string

	// Scheduler defaults to IntervalScheduler{Interval}.
	Scheduler Scheduler
	// Interval between cycles. Default: 10s.
	Interval time.Duration

	// Per-call bounds on collaborators. Defaults: 30s, 60s, 30s.
	FetchTimeout  time.Duration
	RenderTimeout time.Duration
	NotifyTimeout time.Duration

	Metrics *Metrics
	Logger  *slog.Logger
	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = 10 * time.Second
	}
	if o.Scheduler == nil {
		o.Scheduler = IntervalScheduler{Interval: o.Interval}
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 30 * time.Second
	}
	if o.RenderTimeout <= 0 {
		o.RenderTimeout = 60 * time.Second
	}
	if o.NotifyTimeout <= 0 {
		o.NotifyTimeout = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = func() string { return uuid.Must(uuid.NewV7()).String() }
	}
}

func (o *Options) validate() error {
	missing := ""
	switch {
	case o.URL == "":
		missing = "URL"
	case o.Plain == nil:
		missing = "Plain"
	case o.Store == nil:
		missing = "Store"
	case o.Rendered == nil:
		missing = "Rendered"
	case o.Extractor == nil:
		missing = "Extractor"
	case o.Renderer == nil:
		missing = "Renderer"
	case o.Writer == nil:
		missing = "Writer"
	}
	if missing != "" {
		return fmt.Errorf("tracker: %w: %s is required", ErrInvalidConfig, missing)
	}
	return nil
}

// Result summarises one cycle.
type Result struct {
	CycleID     string
	Changed     bool
	Reported    bool
	Fingerprint snapshot.Fingerprint
	Records     int
}

// Stats are point-in-time counters, safe to read while the loop runs.
type Stats struct {
	State         string    `json:"state"`
	URL           string    `json:"url"`
	Cycles        int64     `json:"cycles"`
	Changes       int64     `json:"changes"`
	Unchanged     int64     `json:"unchanged"`
	Errors        int64     `json:"errors"`
	Notifications int64     `json:"notifications"`
	NotifyErrors  int64     `json:"notify_errors"`
	Fingerprint   string    `json:"fingerprint,omitempty"`
	Records       int       `json:"records"`
	LastCycleID   string    `json:"last_cycle_id,omitempty"`
	LastCycleAt   time.Time `json:"last_cycle_at,omitzero"`
	LastChangeAt  time.Time `json:"last_change_at,omitzero"`
	LastError     string    `json:"last_error,omitempty"`
	LastErrorKind string    `json:"last_error_kind,omitempty"`
}

// Tracker runs the poll loop for one URL.
type Tracker struct {
	opts     Options
	detector *Detector
	log      *slog.Logger

	state atomic.Int32

	cycles       atomic.Int64
	changes      atomic.Int64
	unchanged    atomic.Int64
	errors       atomic.Int64
	notified     atomic.Int64
	notifyErrors atomic.Int64

	mu   sync.Mutex
	last Stats // only the Last*, Fingerprint and Records fields are used
}

// New creates a Tracker. Call Run to start polling or RunCycle for a
// single pass.
func New(opts Options) (*Tracker, error) {
	opts.defaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Notifier != nil && opts.Compose == nil {
		c, err := notify.NewComposer("", "", nil)
		if err != nil {
			return nil, err
		}
		opts.Compose = c.Compose
	}
	return &Tracker{
		opts:     opts,
		detector: NewDetector(opts.Plain, opts.Store),
		log:      opts.Logger,
	}, nil
}

// URL returns the tracked URL.
func (t *Tracker) URL() string { return t.opts.URL }

// ReportPath returns where reports are written, or "".
func (t *Tracker) ReportPath() string { return t.opts.ReportPath }

// State returns the current loop state.
func (t *Tracker) State() State { return State(t.state.Load()) }

func (t *Tracker) setState(s State) { t.state.Store(int32(s)) }

// Stats returns the current counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	s := t.last
	t.mu.Unlock()
	s.State = t.State().String()
	s.URL = t.opts.URL
	s.Cycles = t.cycles.Load()
	s.Changes = t.changes.Load()
	s.Unchanged = t.unchanged.Load()
	s.Errors = t.errors.Load()
	s.Notifications = t.notified.Load()
	s.NotifyErrors = t.notifyErrors.Load()
	return s
}

// Run polls until ctx is cancelled. Cycle errors are logged and counted,
// never returned.
func (t *Tracker) Run(ctx context.Context) error {
	t.log.Info("tracker: started", "url", t.opts.URL, "interval", t.opts.Interval)
	for ctx.Err() == nil {
		t.RunCycle(ctx)
		if err := t.opts.Scheduler.Wait(ctx); err != nil {
			break
		}
	}
	t.log.Info("tracker: stopped", "cycles", t.cycles.Load())
	return nil
}

// RunCycle performs one detect, persist, render, report and notify pass.
// On change the fingerprint is persisted before anything else, so a later
// failure is not retried until the content changes again. A delivery
// failure is returned but leaves the persisted fingerprint and the report
// in place.
func (t *Tracker) RunCycle(ctx context.Context) (Result, error) {
	start := t.opts.Now()
	res := Result{CycleID: t.opts.NewID()}
	log := t.log.With("cycle_id", res.CycleID, "url", t.opts.URL)

	err := t.cycle(ctx, log, &res)
	t.setState(StateIdle)
	t.record(log, res, err, start)
	return res, err
}

func (t *Tracker) cycle(ctx context.Context, log *slog.Logger, res *Result) error {
	t.setState(StateFetching)
	fctx, cancel := context.WithTimeout(ctx, t.opts.FetchTimeout)
	det, err := t.detector.Detect(fctx, t.opts.URL)
	cancel()
	if err != nil {
		return err
	}

	t.setState(StateComparing)
	res.Fingerprint = det.Current
	if !det.Changed {
		t.setState(StateUnchanged)
		t.setFingerprint(det.Current)
		log.Info("tracker: no change", "fingerprint", det.Current)
		return nil
	}

	res.Changed = true
	t.setState(StateChangingReport)
	log.Info("tracker: change detected", "previous", det.Previous, "current", det.Current)

	if err := t.opts.Store.Save(ctx, det.Current); err != nil {
		return stageErr(ErrStorage, err)
	}
	t.setFingerprint(det.Current)

	capturedAt := t.opts.Now()
	rctx, cancel := context.WithTimeout(ctx, t.opts.RenderTimeout)
	rendered, err := t.opts.Rendered.FetchRendered(rctx, t.opts.URL)
	cancel()
	if err != nil {
		return stageErr(ErrRender, err)
	}

	snap, err := t.opts.Extractor.Extract(rendered, t.opts.URL, capturedAt)
	if err != nil {
		return stageErr(ErrParse, err)
	}
	res.Records = len(snap.Records)

	doc, err := t.opts.Renderer.Render(snap)
	if err != nil {
		return stageErr(ErrReport, err)
	}
	if err := t.opts.Writer.Write(ctx, doc); err != nil {
		return stageErr(ErrReport, err)
	}
	res.Reported = true
	log.Info("tracker: report written",
		"path", t.opts.ReportPath,
		"records", res.Records,
		"text", snap.Count(snapshot.KindText),
		"links", snap.Count(snapshot.KindLink),
		"images", snap.Count(snapshot.KindImage),
	)

	if t.opts.Notifier == nil {
		return nil
	}
	return t.notify(ctx, log, Event{
		URL:         t.opts.URL,
		DetectedAt:  capturedAt,
		Fingerprint: det.Current.String(),
		Records:     res.Records,
		ReportPath:  t.opts.ReportPath,
	})
}

func (t *Tracker) notify(ctx context.Context, log *slog.Logger, ev Event) error {
	msg, err := t.opts.Compose(ev)
	if err != nil {
		t.notifyErrors.Add(1)
		t.opts.Metrics.observeNotification(err)
		return stageErr(ErrDelivery, err)
	}

	nctx, cancel := context.WithTimeout(ctx, t.opts.NotifyTimeout)
	err = t.opts.Notifier.Notify(nctx, msg)
	cancel()
	t.opts.Metrics.observeNotification(err)
	if err != nil {
		t.notifyErrors.Add(1)
		return stageErr(ErrDelivery, err)
	}
	t.notified.Add(1)
	log.Info("tracker: notification sent", "recipients", len(msg.Recipients))
	return nil
}

func (t *Tracker) setFingerprint(fp snapshot.Fingerprint) {
	t.mu.Lock()
	t.last.Fingerprint = fp.String()
	t.mu.Unlock()
}

func (t *Tracker) record(log *slog.Logger, res Result, err error, start time.Time) {
	now := t.opts.Now()
	t.cycles.Add(1)

	result := "unchanged"
	switch {
	case res.Reported:
		result = "changed"
	case err != nil:
		result = "error"
	}
	if res.Changed {
		t.changes.Add(1)
	} else if err == nil {
		t.unchanged.Add(1)
	}
	t.opts.Metrics.observeCycle(result, now.Sub(start))
	if res.Reported {
		t.opts.Metrics.observeChange(now, res.Records)
	}

	t.mu.Lock()
	t.last.LastCycleID = res.CycleID
	t.last.LastCycleAt = now
	if res.Reported {
		t.last.LastChangeAt = now
		t.last.Records = res.Records
	}
	if err != nil {
		t.last.LastError = err.Error()
		t.last.LastErrorKind = ErrorKind(err)
	} else {
		t.last.LastError, t.last.LastErrorKind = "", ""
	}
	t.mu.Unlock()

	if err == nil {
		return
	}
	kind := ErrorKind(err)
	t.errors.Add(1)
	t.opts.Metrics.observeError(kind)
	log.Warn("tracker: cycle failed", "kind", kind, "error", err)
}

// Close releases collaborators that hold resources (browser, database).
func (t *Tracker) Close() error {
	var errs []error
	for _, c := range []any{t.opts.Rendered, t.opts.Store} {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
