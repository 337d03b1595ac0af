// Package notify delivers change alerts. Delivery is best-effort: callers
// log failures and carry on, nothing here retries.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"
	"time"
)

// Message is one alert addressed to a list of recipients.
type Message struct {
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Recipients []string `json:"recipients"`
}

// Notifier sends a Message.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Event carries the facts a message template can reference.
type Event struct {
	URL         string
	DetectedAt  time.Time
	Fingerprint string
	Records     int
	ReportPath  string
}

const (
	DefaultSubject = "Website updated: {{.URL}}"
	DefaultBody    = `The website has been updated.

URL:         {{.URL}}
Detected at: {{.DetectedAt.Format "2006-01-02 15:04:05"}}
Records:     {{.Records}}
{{- if .ReportPath}}
Report:      {{.ReportPath}}
{{- end}}
`
)

// Composer renders subject and body templates into Messages.
type Composer struct {
	subject    *template.Template
	body       *template.Template
	recipients []string
}

// NewComposer parses the subject and body templates. Empty strings select
// the defaults.
func NewComposer(subject, body string, recipients []string) (*Composer, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	if body == "" {
		body = DefaultBody
	}
	st, err := template.New("subject").Parse(subject)
	if err != nil {
		return nil, fmt.Errorf("notify: subject template: %w", err)
	}
	bt, err := template.New("body").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("notify: body template: %w", err)
	}
	return &Composer{subject: st, body: bt, recipients: recipients}, nil
}

// Compose builds the message for ev.
func (c *Composer) Compose(ev Event) (Message, error) {
	var sb, bb bytes.Buffer
	if err := c.subject.Execute(&sb, ev); err != nil {
		return Message{}, fmt.Errorf("notify: subject: %w", err)
	}
	if err := c.body.Execute(&bb, ev); err != nil {
		return Message{}, fmt.Errorf("notify: body: %w", err)
	}
	rcpts := make([]string, len(c.recipients))
	copy(rcpts, c.recipients)
	return Message{Subject: sb.String(), Body: bb.String(), Recipients: rcpts}, nil
}

// Nop discards every message.
type Nop struct{}

func (Nop) Notify(context.Context, Message) error { return nil }

// Router fans a message out to all notifiers. One failure does not stop
// the others; failures are logged and the first is returned.
type Router struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewRouter creates a fan-out Router.
func NewRouter(logger *slog.Logger, notifiers ...Notifier) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{notifiers: notifiers, logger: logger}
}

// Len returns the number of routed notifiers.
func (r *Router) Len() int { return len(r.notifiers) }

func (r *Router) Notify(ctx context.Context, msg Message) error {
	var firstErr error
	for _, n := range r.notifiers {
		if err := n.Notify(ctx, msg); err != nil {
			r.logger.Warn("notify: delivery failed", "notifier", fmt.Sprintf("%T", n), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
