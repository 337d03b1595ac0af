// Package snapshot defines the data model shared by the tracker pipeline:
// content fingerprints and the typed records extracted from one rendered
// page capture. Consumers (report renderers, notifiers, tests) import this
// package to read what the tracker produced.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Fingerprint is the lowercase hex SHA-256 digest of a content blob.
// It is only ever compared for equality. The zero value means "no
// fingerprint recorded" and never equals a computed digest.
type Fingerprint string

// Of returns the fingerprint of data.
func Of(data []byte) Fingerprint {
	h := sha256.Sum256(data)
	return Fingerprint(hex.EncodeToString(h[:]))
}

// IsZero reports whether f is the absent fingerprint.
func (f Fingerprint) IsZero() bool { return f == "" }

func (f Fingerprint) String() string { return string(f) }

// Kind classifies an extracted record.
type Kind int

const (
	KindText Kind = iota
	KindLink
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindLink:
		return "link"
	case KindImage:
		return "image"
	}
	return "unknown"
}

// Record is one classified piece of page content.
type Record struct {
	Kind   Kind   `json:"kind"`
	Label  string `json:"label"`            // visible text or alt text
	Target string `json:"target,omitempty"` // raw href/src; empty for text
}

// Valid reports whether the record honours the target invariant:
// links and images carry a target, text never does.
func (r Record) Valid() bool {
	if r.Kind == KindText {
		return r.Target == ""
	}
	return r.Target != ""
}

// Snapshot is the complete set of records extracted from one capture.
// Records are ordered text first, then links, then images, each group in
// document order. A Snapshot is never modified after creation.
type Snapshot struct {
	URL        string    `json:"url"`
	CapturedAt time.Time `json:"captured_at"`
	Records    []Record  `json:"records"`
}

// Count returns the number of records of kind k.
func (s Snapshot) Count(k Kind) int {
	n := 0
	for _, r := range s.Records {
		if r.Kind == k {
			n++
		}
	}
	return n
}

// Ordered reports whether records are grouped text, link, image in that
// order.
func (s Snapshot) Ordered() bool {
	for i := 1; i < len(s.Records); i++ {
		if s.Records[i].Kind < s.Records[i-1].Kind {
			return false
		}
	}
	return true
}
