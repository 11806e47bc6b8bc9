// Package budget enforces per-source request ceilings and pacing for the
// ingestion pipeline. Each source gets an independent request counter and
// token-bucket pacer; once a source's ceiling is reached it stays exhausted
// for the remainder of the run.
package budget

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Outcome classifies an Acquire decision.
type Outcome int

const (
	// Allow grants the request and charges it against the budget.
	Allow Outcome = iota
	// Deny refuses the request for pacing reasons; retry after Decision.RetryAfter.
	Deny
	// Exhausted means the source has no budget left for this run.
	Exhausted
)

// Decision is the result of one Acquire call.
type Decision struct {
	Outcome Outcome
	// RetryAfter is how long to wait before retrying. Set only for Deny.
	RetryAfter time.Duration
}

// SourceConfig bounds one source for a run.
type SourceConfig struct {
	// MaxRequests is the request ceiling. Zero means unlimited.
	MaxRequests int
	// MinInterval is the minimum spacing between granted requests.
	// Zero disables pacing.
	MinInterval time.Duration
}

// Tracker manages budgets for all sources in a run. Safe for concurrent
// use by worker goroutines.
type Tracker struct {
	mu       sync.Mutex
	sources  map[string]*sourceState
	defaults SourceConfig
}

type sourceState struct {
	cfg       SourceConfig
	pacer     *rate.Limiter
	used      int
	exhausted bool
}

// New creates a tracker. Sources without an explicit Configure call get
// the default config.
func New(defaults SourceConfig) *Tracker {
	return &Tracker{
		sources:  make(map[string]*sourceState),
		defaults: defaults,
	}
}

// Configure sets the budget for one source, resetting its counter.
func (t *Tracker) Configure(source string, cfg SourceConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sources[source] = newSourceState(cfg)
}

func newSourceState(cfg SourceConfig) *sourceState {
	st := &sourceState{cfg: cfg}
	if cfg.MinInterval > 0 {
		st.pacer = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return st
}

// Acquire asks permission for one request against a source. Allow charges
// the budget; Deny is a pacing refusal and costs nothing; Exhausted is
// terminal for the run. Never blocks.
func (t *Tracker) Acquire(source string) Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.state(source)
	if st.exhausted || (st.cfg.MaxRequests > 0 && st.used >= st.cfg.MaxRequests) {
		st.exhausted = true
		return Decision{Outcome: Exhausted}
	}

	if st.pacer != nil {
		r := st.pacer.Reserve()
		if delay := r.Delay(); delay > 0 {
			// Too soon; give the token back and tell the caller when.
			r.Cancel()
			return Decision{Outcome: Deny, RetryAfter: delay}
		}
	}

	st.used++
	return Decision{Outcome: Allow}
}

// MarkExhausted retires a source for the rest of the run. Used when the
// source itself signals a hard quota, independent of our own ceiling.
func (t *Tracker) MarkExhausted(source string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state(source).exhausted = true
}

// IsExhausted reports whether a source has any budget left.
func (t *Tracker) IsExhausted(source string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.state(source)
	return st.exhausted || (st.cfg.MaxRequests > 0 && st.used >= st.cfg.MaxRequests)
}

// Used returns the number of requests charged to a source so far.
func (t *Tracker) Used(source string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state(source).used
}

// Remaining returns the budget left for a source. Unlimited sources
// return -1.
func (t *Tracker) Remaining(source string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.state(source)
	if st.cfg.MaxRequests == 0 {
		if st.exhausted {
			return 0
		}
		return -1
	}
	remaining := st.cfg.MaxRequests - st.used
	if st.exhausted || remaining < 0 {
		return 0
	}
	return remaining
}

// state returns the tracked state for a source, creating it with the
// default config on first use. Callers must hold t.mu.
func (t *Tracker) state(source string) *sourceState {
	st, ok := t.sources[source]
	if !ok {
		st = newSourceState(t.defaults)
		t.sources[source] = st
	}
	return st
}
