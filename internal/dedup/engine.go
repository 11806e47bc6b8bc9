package dedup

import (
	"sync"

	"github.com/soledexapp/soledex-server/internal/domain"
)

// DefaultThreshold is the Hamming distance at or below which a perceptual
// hash variant counts as matching. Tuned against catalog photos: resized
// and re-encoded copies land well under it, different colorways land well
// over it.
const DefaultThreshold = 5

// DefaultWindowSize bounds the cross-item recency window.
const DefaultWindowSize = 512

// Config tunes the duplicate detection engine.
type Config struct {
	// Threshold is the max Hamming distance for a variant to match.
	// Zero means DefaultThreshold.
	Threshold int
	// WindowSize is the capacity of the cross-item recency window.
	// Zero disables the window entirely.
	WindowSize int
}

// Result is the outcome of a duplicate check.
type Result struct {
	// DuplicateOf identifies the matched image when Duplicate is true.
	// Empty for window matches, where only the hashes are retained.
	DuplicateOf string
	Duplicate   bool
	// Exact is set when the match was a byte-identical digest.
	Exact bool
}

// Engine decides whether a candidate image duplicates content already in
// the catalog. Per-item checks are pure over the caller-supplied hash set;
// the optional recency window is the only shared state and is safe for
// concurrent use.
type Engine struct {
	window    *recencyWindow
	threshold int
}

// NewEngine builds an engine from cfg, applying defaults.
func NewEngine(cfg Config) *Engine {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	e := &Engine{threshold: cfg.Threshold}
	if cfg.WindowSize > 0 {
		e.window = newRecencyWindow(cfg.WindowSize)
	}
	return e
}

// matches reports whether candidate duplicates known under the engine
// threshold. An image is a duplicate only when EVERY perceptual variant is
// within threshold; a single distant variant is enough to call it unique.
func (e *Engine) matches(candidate, known domain.ImageHashes) (dup, exact bool) {
	if candidate.ByteHash != "" && candidate.ByteHash == known.ByteHash {
		return true, true
	}
	if Distance(candidate.AHash, known.AHash) > e.threshold {
		return false, false
	}
	if Distance(candidate.DHash, known.DHash) > e.threshold {
		return false, false
	}
	return true, false
}

// Check compares candidate against the hashes already stored for an item.
// Exact byte matches short-circuit before any perceptual comparison.
func (e *Engine) Check(candidate domain.ImageHashes, existing []domain.ImageHashes) Result {
	for _, known := range existing {
		if candidate.ByteHash != "" && candidate.ByteHash == known.ByteHash {
			return Result{Duplicate: true, Exact: true, DuplicateOf: known.ImageID}
		}
	}
	for _, known := range existing {
		if dup, _ := e.matches(candidate, known); dup {
			return Result{Duplicate: true, DuplicateOf: known.ImageID}
		}
	}
	if e.window != nil {
		if dup, exact := e.window.match(e, candidate); dup {
			return Result{Duplicate: true, Exact: exact}
		}
	}
	return Result{}
}

// Observe records an accepted image in the recency window. Call it only
// after the image has passed every other gate; rejected images must not
// poison the window.
func (e *Engine) Observe(hashes domain.ImageHashes) {
	if e.window != nil {
		e.window.add(hashes)
	}
}

// recencyWindow is a fixed-size ring of recently accepted hashes shared
// across items. It catches the common case of one source serving the same
// stock photo for several products.
type recencyWindow struct {
	entries []domain.ImageHashes
	next    int
	filled  bool
	mu      sync.Mutex
}

func newRecencyWindow(size int) *recencyWindow {
	return &recencyWindow{entries: make([]domain.ImageHashes, size)}
}

func (w *recencyWindow) add(h domain.ImageHashes) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries[w.next] = h
	w.next++
	if w.next == len(w.entries) {
		w.next = 0
		w.filled = true
	}
}

func (w *recencyWindow) match(e *Engine, candidate domain.ImageHashes) (dup, exact bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := w.next
	if w.filled {
		n = len(w.entries)
	}
	for i := 0; i < n; i++ {
		if dup, exact := e.matches(candidate, w.entries[i]); dup {
			return dup, exact
		}
	}
	return false, false
}
