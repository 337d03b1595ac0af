package tracker

import (
	"context"

	"github.com/hazyhaar/pagewatch/tracker/snapshot"
)

// PlainFetcher retrieves the raw body used for change detection.
type PlainFetcher interface {
	FetchPlain(ctx context.Context, url string) ([]byte, error)
}

// HashStore persists the last-seen fingerprint. Load returns the zero
// Fingerprint when nothing has been stored yet.
type HashStore interface {
	Load(ctx context.Context) (snapshot.Fingerprint, error)
	Save(ctx context.Context, fp snapshot.Fingerprint) error
}

// Detection is the outcome of one comparison.
type Detection struct {
	Changed  bool
	Current  snapshot.Fingerprint
	Previous snapshot.Fingerprint
}

// Detector fetches a page and compares its fingerprint with the stored one.
// It never writes the store: persisting is the caller's job, done only
// once a change is confirmed.
type Detector struct {
	fetcher PlainFetcher
	store   HashStore
}

// NewDetector creates a Detector.
func NewDetector(f PlainFetcher, s HashStore) *Detector {
	return &Detector{fetcher: f, store: s}
}

// Detect fetches url and reports whether its content differs from the
// stored fingerprint. With nothing stored, Previous is zero and Changed is
// always true.
func (d *Detector) Detect(ctx context.Context, url string) (Detection, error) {
	body, err := d.fetcher.FetchPlain(ctx, url)
	if err != nil {
		return Detection{}, stageErr(ErrFetch, err)
	}
	current := snapshot.Of(body)

	previous, err := d.store.Load(ctx)
	if err != nil {
		return Detection{}, stageErr(ErrStorage, err)
	}

	return Detection{
		Changed:  current != previous,
		Current:  current,
		Previous: previous,
	}, nil
}
