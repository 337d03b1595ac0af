// Package report renders a snapshot into a self-contained static HTML page
// and publishes it at a fixed location.
//
// Rendering is split into a view model (page, rows) and an html/template.
// The output depends only on the snapshot: rendering the same snapshot at
// two capture times differs in the timestamp line alone.
package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"

	"github.com/hazyhaar/pagewatch/tracker/snapshot"
)

// TimeLayout formats the capture time in the header.
const TimeLayout = "2006-01-02 15:04:05"

// DefaultTitle is the page and heading title.
const DefaultTitle = "Scraped Data"

const (
	cellClass     = "py-2 text-wrap w-1/3 break-all px-4 border-b border-gray-200"
	evenCellClass = cellClass + " bg-gray-100"
)

//go:embed report.html.tmpl
var pageTemplate string

// Labels are the human-readable names shown in the type column.
type Labels struct {
	Text  string `yaml:"text"`
	Link  string `yaml:"link"`
	Image string `yaml:"image"`
}

// Options configures a Renderer.
type Options struct {
	Title  string
	Labels Labels
}

func (o *Options) defaults() {
	if o.Title == "" {
		o.Title = DefaultTitle
	}
	if o.Labels.Text == "" {
		o.Labels.Text = "Text"
	}
	if o.Labels.Link == "" {
		o.Labels.Link = "Link"
	}
	if o.Labels.Image == "" {
		o.Labels.Image = "Image"
	}
}

// Renderer turns snapshots into HTML documents.
type Renderer struct {
	opts Options
	tmpl *template.Template
}

// New creates a Renderer.
func New(opts Options) *Renderer {
	opts.defaults()
	return &Renderer{
		opts: opts,
		tmpl: template.Must(template.New("report").Parse(pageTemplate)),
	}
}

type page struct {
	Title      string
	CapturedAt string
	URL        string
	Rows       []row
}

type row struct {
	Class  string
	Kind   string
	Label  string
	Target string
}

// Render returns the report document for s.
func (r *Renderer) Render(s snapshot.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, r.view(s)); err != nil {
		return nil, fmt.Errorf("report: render: %w", err)
	}
	return buf.Bytes(), nil
}

// view builds the template model. Row striping follows the index in the
// combined record list, not the position within a kind.
func (r *Renderer) view(s snapshot.Snapshot) page {
	rows := make([]row, len(s.Records))
	for i, rec := range s.Records {
		class := cellClass
		if i%2 == 0 {
			class = evenCellClass
		}
		rows[i] = row{
			Class:  class,
			Kind:   r.kindLabel(rec.Kind),
			Label:  rec.Label,
			Target: rec.Target,
		}
	}
	return page{
		Title:      r.opts.Title,
		CapturedAt: s.CapturedAt.Format(TimeLayout),
		URL:        s.URL,
		Rows:       rows,
	}
}

func (r *Renderer) kindLabel(k snapshot.Kind) string {
	switch k {
	case snapshot.KindText:
		return r.opts.Labels.Text
	case snapshot.KindLink:
		return r.opts.Labels.Link
	case snapshot.KindImage:
		return r.opts.Labels.Image
	}
	return k.String()
}
