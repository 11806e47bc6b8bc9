// Package source defines the adapter contract for upstream sneaker data
// providers. Each provider lives in its own subpackage and normalizes its
// wire format into RawItem before anything else in the pipeline sees it.
package source

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/soledexapp/soledex-server/internal/errors"
)

// Sentinel errors shared by all adapters.
var (
	ErrNotFound    = errors.New("source: not found")
	ErrRateLimited = errors.New("source: rate limited by server")
	ErrBadRequest  = errors.New("source: bad request")
	ErrServer      = errors.New("source: server error")
	ErrBadPayload  = errors.New("source: malformed payload")
)

// RawItem is one provider record normalized to neutral field names. Empty
// fields mean the provider did not supply the value; downstream merging
// treats empty as absent, never as an overwrite.
type RawItem struct {
	Name        string
	Brand       string
	Model       string
	Colorway    string
	SKU         string
	Description string
	Currency    string
	Source      string
	Query       string
	Images      []RawImageRef
	Price       float64
	ReleaseDate time.Time
}

// RawImageRef points at one remote image before download.
type RawImageRef struct {
	URL     string
	Width   int
	Height  int
	Primary bool
}

// Adapter is a metadata provider. Search returns at most limit normalized
// items for a free-text query. Implementations do their own HTTP but never
// their own throttling; the budget tracker owns pacing.
type Adapter interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]RawItem, error)
}

// ImageSearcher is implemented by providers that serve image references
// for an item query in addition to, or instead of, metadata.
type ImageSearcher interface {
	Name() string
	SearchImages(ctx context.Context, query string, limit int) ([]RawImageRef, error)
}

// Classify maps adapter errors onto the pipeline taxonomy so the retry
// policy can treat all providers uniformly. Unknown errors are assumed
// transient; a flaky provider should cost retries, not the run. ErrNotFound
// passes through untouched: a miss on one query says nothing about the
// provider, so it must neither retry nor retire the source.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return err
	case errors.Is(err, ErrBadPayload):
		return apperrors.ErrMalformedPayload.WithCause(err)
	case errors.Is(err, ErrBadRequest):
		return apperrors.ErrSourceFatal.WithCause(err)
	case errors.Is(err, ErrRateLimited), errors.Is(err, ErrServer):
		return apperrors.ErrSourceTransient.WithCause(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apperrors.ErrSourceTransient.WithCause(err)
	}
}
