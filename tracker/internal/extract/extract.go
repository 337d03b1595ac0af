// Package extract classifies rendered HTML into typed snapshot records.
//
// The pipeline: rendered HTML → parse → three passes over the tree
// (text, links, images) → concatenated records. Every pass walks the
// document in order; nothing is deduplicated, filtered by visibility, or
// resolved against the page URL.
//
// Link and image records always carry a target: an <a> whose href is
// missing or empty, and an <img> whose src is missing or empty, produce no
// record. An empty alt is kept as an empty label.
package extract

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/pagewatch/tracker/snapshot"
)

// DefaultImagePlaceholder labels images that carry no alt attribute.
const DefaultImagePlaceholder = "No alt text"

// Options controls extraction.
type Options struct {
	// TextTags overrides the allow-list of text-bearing elements.
	TextTags TagSet
	// ImagePlaceholder is used when an <img> has no alt attribute.
	ImagePlaceholder string
}

func (o *Options) defaults() {
	if o.TextTags == nil {
		o.TextTags = TextTags
	}
	if o.ImagePlaceholder == "" {
		o.ImagePlaceholder = DefaultImagePlaceholder
	}
}

// Extractor turns rendered HTML into a Snapshot. It is stateless and safe
// for concurrent use.
type Extractor struct {
	opts Options
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	opts.defaults()
	return &Extractor{opts: opts}
}

// Extract parses rawHTML and returns the snapshot captured from pageURL at
// capturedAt.
func (e *Extractor) Extract(rawHTML []byte, pageURL string, capturedAt time.Time) (snapshot.Snapshot, error) {
	doc, err := html.Parse(bytes.NewReader(rawHTML))
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("extract: parse HTML: %w", err)
	}

	var records []snapshot.Record
	records = append(records, e.textRecords(doc)...)
	records = append(records, linkRecords(doc)...)
	records = append(records, e.imageRecords(doc)...)

	return snapshot.Snapshot{
		URL:        pageURL,
		CapturedAt: capturedAt,
		Records:    records,
	}, nil
}

func (e *Extractor) textRecords(doc *html.Node) []snapshot.Record {
	var out []snapshot.Record
	walkElements(doc, func(n *html.Node) {
		if !e.opts.TextTags.Has(n.Data) {
			return
		}
		if text := collectText(n); text != "" {
			out = append(out, snapshot.Record{Kind: snapshot.KindText, Label: text})
		}
	})
	return out
}

func linkRecords(doc *html.Node) []snapshot.Record {
	var out []snapshot.Record
	walkElements(doc, func(n *html.Node) {
		if n.DataAtom != atom.A {
			return
		}
		href, ok := getAttr(n, "href")
		if !ok || href == "" {
			return
		}
		out = append(out, snapshot.Record{
			Kind:   snapshot.KindLink,
			Label:  collectText(n),
			Target: href,
		})
	})
	return out
}

func (e *Extractor) imageRecords(doc *html.Node) []snapshot.Record {
	var out []snapshot.Record
	walkElements(doc, func(n *html.Node) {
		if n.DataAtom != atom.Img {
			return
		}
		src, ok := getAttr(n, "src")
		if !ok || src == "" {
			return
		}
		label, ok := getAttr(n, "alt")
		if !ok {
			label = e.opts.ImagePlaceholder
		}
		out = append(out, snapshot.Record{
			Kind:   snapshot.KindImage,
			Label:  label,
			Target: src,
		})
	})
	return out
}

// walkElements calls fn for every element node in document order.
func walkElements(root *html.Node, fn func(*html.Node)) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			fn(n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
}

// collectText concatenates the text nodes under n as they appear in the
// source, then collapses whitespace runs to a single space. No separator is
// inserted at element boundaries, so Hel<b>lo</b> reads "Hello". Script and
// style bodies nested below n are skipped; when n itself is a script or
// style element its own source text is returned.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
			return
		}
		if c != n && c.Type == html.ElementNode {
			switch c.DataAtom {
			case atom.Script, atom.Style:
				return
			}
		}
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			f(gc)
		}
	}
	f(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// getAttr returns the value of attribute key and whether it is present.
func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
