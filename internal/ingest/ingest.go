// Package ingest runs collection: it walks a worklist of (source, query)
// pairs through a bounded worker pool, resolves raw items into the
// catalog, and pushes every image candidate through dedup, the quality
// gate and the archive sink. One coordinator drives one run.
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/soledexapp/soledex-server/internal/budget"
	"github.com/soledexapp/soledex-server/internal/dedup"
	"github.com/soledexapp/soledex-server/internal/domain"
	"github.com/soledexapp/soledex-server/internal/quality"
	"github.com/soledexapp/soledex-server/internal/source"
	"github.com/soledexapp/soledex-server/internal/storage"
)

// Query is one unit of the worklist.
type Query struct {
	Source string
	Term   string
}

// Config tunes one run.
type Config struct {
	// Queries is the full worklist, consumed in order by the pool.
	Queries []Query
	// Workers bounds pool concurrency. Zero means 4.
	Workers int
	// MaxAttempts bounds retries for transient failures. Zero means 3.
	MaxAttempts int
	// RetryBaseDelay is the first backoff step. Zero means 500ms.
	RetryBaseDelay time.Duration
	// Deadline is the wall-clock budget for the whole run. Zero means
	// no deadline.
	Deadline time.Duration
	// ItemsPerQuery is the result limit passed to adapters. Zero means 10.
	ItemsPerQuery int
	// ImagesPerItem caps how many candidates are fetched per raw item.
	// Zero means 4.
	ImagesPerItem int
	// TargetItems and TargetImages stop the run early once both are
	// reached. Zero disables the target.
	TargetItems  int64
	TargetImages int64
	// ErrorTail is how many recent error strings the report keeps.
	// Zero means 20.
	ErrorTail int
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 500 * time.Millisecond
	}
	if c.ItemsPerQuery <= 0 {
		c.ItemsPerQuery = 10
	}
	if c.ImagesPerItem <= 0 {
		c.ImagesPerItem = 4
	}
	if c.ErrorTail <= 0 {
		c.ErrorTail = 20
	}
}

// Catalog is the store surface the coordinator needs.
type Catalog interface {
	ListItems(ctx context.Context) ([]*domain.CanonicalItem, error)
	ItemImageHashes(ctx context.Context, itemID string) ([]domain.ImageHashes, error)
	HasImageBytes(ctx context.Context, byteHash string) (bool, error)
	AddImage(ctx context.Context, img *domain.AcceptedImage) error
	SetImageStorageRef(ctx context.Context, id, ref string) error
	AddPriceObservation(ctx context.Context, obs *domain.PriceObservation) error
	SaveRunReport(ctx context.Context, report *domain.RunReport) error
}

// Resolver maps raw items onto catalog entities.
type Resolver interface {
	Resolve(ctx context.Context, raw source.RawItem) (*domain.CanonicalItem, bool, error)
}

// ImageFetcher downloads and fingerprints one image reference.
type ImageFetcher interface {
	Fetch(ctx context.Context, ref source.RawImageRef, itemID string) (*domain.ImageCandidate, error)
}

// Deps wires the coordinator to the rest of the pipeline.
type Deps struct {
	Adapters       map[string]source.Adapter
	ImageSearchers map[string]source.ImageSearcher
	Budget         *budget.Tracker
	Resolver       Resolver
	Catalog        Catalog
	Dedup          *dedup.Engine
	Gate           *quality.Gate
	Fetcher        ImageFetcher
	Sink           storage.Sink
}

// errorTail keeps the most recent error strings for the run report.
type errorTail struct {
	entries []string
	next    int
	filled  bool
	mu      sync.Mutex
}

func newErrorTail(size int) *errorTail {
	return &errorTail{entries: make([]string, size)}
}

func (e *errorTail) add(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries[e.next] = msg
	e.next++
	if e.next == len(e.entries) {
		e.next = 0
		e.filled = true
	}
}

// snapshot returns the tail oldest-first.
func (e *errorTail) snapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.filled {
		out := make([]string, e.next)
		copy(out, e.entries[:e.next])
		return out
	}
	out := make([]string, 0, len(e.entries))
	out = append(out, e.entries[e.next:]...)
	out = append(out, e.entries[:e.next]...)
	return out
}
