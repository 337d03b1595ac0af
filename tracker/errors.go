package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hazyhaar/pagewatch/tracker/internal/config"
)

// Stage errors. A failed cycle returns an error wrapping exactly one of
// these together with the collaborator's own error.
var (
	// ErrFetch: the plain fetch failed (network error or non-2xx status).
	ErrFetch = errors.New("fetch failed")
	// ErrRender: the rendered fetch failed. It also matches ErrFetch.
	ErrRender = fmt.Errorf("render: %w", ErrFetch)
	// ErrParse: rendered content could not be turned into records.
	ErrParse = errors.New("parse failed")
	// ErrStorage: the fingerprint could not be read or written.
	ErrStorage = errors.New("storage failed")
	// ErrReport: the report could not be rendered or written.
	ErrReport = errors.New("report failed")
	// ErrDelivery: a notification could not be delivered. Never undoes
	// the fingerprint update or the report write.
	ErrDelivery = errors.New("delivery failed")
	// ErrInvalidConfig is wrapped by configuration validation errors.
	ErrInvalidConfig = config.ErrInvalid
)

func stageErr(kind, err error) error {
	return fmt.Errorf("tracker: %w: %w", kind, err)
}

// ErrorKind returns a short, stable label for err, suitable for logs and
// metric labels. It returns "" for nil.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	if kind := stageKind(err); kind != "" {
		return kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "unknown"
}

func stageKind(err error) string {
	switch {
	case errors.Is(err, ErrRender):
		return "render"
	case errors.Is(err, ErrFetch):
		return "fetch"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, ErrReport):
		return "report"
	case errors.Is(err, ErrDelivery):
		return "delivery"
	case errors.Is(err, ErrInvalidConfig):
		return "config"
	}
	return ""
}
