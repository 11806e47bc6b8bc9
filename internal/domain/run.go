package domain

import (
	"sync"
	"sync/atomic"
	"time"
)

// RunState is the lifecycle state of one coordinator run.
type RunState string

// Run states. A run moves Idle -> Running -> one of the terminal states.
const (
	RunIdle      RunState = "idle"
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunCancelled RunState = "cancelled"
	RunFailed    RunState = "failed"
)

// RunStats accumulates counters for one ingestion run. All methods are safe
// for concurrent use by worker goroutines; there is no ambient global state,
// the coordinator owns the accumulator and passes it down explicitly.
type RunStats struct {
	itemsSeen          atomic.Int64
	itemsCreated       atomic.Int64
	itemsEnriched      atomic.Int64
	imagesSeen         atomic.Int64
	imagesAccepted     atomic.Int64
	duplicatesRejected atomic.Int64
	qualityRejected    atomic.Int64
	queriesSkipped     atomic.Int64
	errors             atomic.Int64

	mu             sync.Mutex
	rejectReasons  map[string]int64
	sourceRequests map[string]int64
}

// NewRunStats creates an empty stats accumulator.
func NewRunStats() *RunStats {
	return &RunStats{
		rejectReasons:  make(map[string]int64),
		sourceRequests: make(map[string]int64),
	}
}

// ItemSeen counts a raw item received from an adapter.
func (s *RunStats) ItemSeen() { s.itemsSeen.Add(1) }

// ItemCreated counts a newly created catalog entity.
func (s *RunStats) ItemCreated() { s.itemsCreated.Add(1) }

// ItemEnriched counts a resolution that matched and enriched an existing entity.
func (s *RunStats) ItemEnriched() { s.itemsEnriched.Add(1) }

// ImageSeen counts an image candidate fetched for processing.
func (s *RunStats) ImageSeen() { s.imagesSeen.Add(1) }

// ImageAccepted counts an image that passed dedup and the quality gate.
func (s *RunStats) ImageAccepted() { s.imagesAccepted.Add(1) }

// DuplicateRejected counts an image rejected as an exact or near duplicate.
func (s *RunStats) DuplicateRejected() {
	s.duplicatesRejected.Add(1)
	s.countReason("duplicate")
}

// QualityRejected counts an image rejected by the quality gate, by reason.
func (s *RunStats) QualityRejected(reason string) {
	s.qualityRejected.Add(1)
	s.countReason(reason)
}

// QuerySkipped counts a (source, query) pair skipped because the source
// budget was exhausted. Skips are expected, not errors.
func (s *RunStats) QuerySkipped() { s.queriesSkipped.Add(1) }

// Error counts a non-fatal error local to one query or image.
func (s *RunStats) Error() { s.errors.Add(1) }

// SourceRequest counts one budgeted request against a source.
func (s *RunStats) SourceRequest(source string) {
	s.mu.Lock()
	s.sourceRequests[source]++
	s.mu.Unlock()
}

func (s *RunStats) countReason(reason string) {
	s.mu.Lock()
	s.rejectReasons[reason]++
	s.mu.Unlock()
}

// ItemsCreated returns the number of catalog entities created so far.
func (s *RunStats) ItemsCreated() int64 { return s.itemsCreated.Load() }

// ImagesAccepted returns the number of images accepted so far.
func (s *RunStats) ImagesAccepted() int64 { return s.imagesAccepted.Load() }

// Snapshot captures the current counter values into a plain struct.
func (s *RunStats) Snapshot() RunStatsSnapshot {
	s.mu.Lock()
	reasons := make(map[string]int64, len(s.rejectReasons))
	for k, v := range s.rejectReasons {
		reasons[k] = v
	}
	requests := make(map[string]int64, len(s.sourceRequests))
	for k, v := range s.sourceRequests {
		requests[k] = v
	}
	s.mu.Unlock()

	return RunStatsSnapshot{
		ItemsSeen:          s.itemsSeen.Load(),
		ItemsCreated:       s.itemsCreated.Load(),
		ItemsEnriched:      s.itemsEnriched.Load(),
		ImagesSeen:         s.imagesSeen.Load(),
		ImagesAccepted:     s.imagesAccepted.Load(),
		DuplicatesRejected: s.duplicatesRejected.Load(),
		QualityRejected:    s.qualityRejected.Load(),
		QueriesSkipped:     s.queriesSkipped.Load(),
		Errors:             s.errors.Load(),
		RejectReasons:      reasons,
		SourceRequests:     requests,
	}
}

// RunStatsSnapshot is an immutable copy of RunStats counters.
type RunStatsSnapshot struct {
	ItemsSeen          int64            `json:"items_seen"`
	ItemsCreated       int64            `json:"items_created"`
	ItemsEnriched      int64            `json:"items_enriched"`
	ImagesSeen         int64            `json:"images_seen"`
	ImagesAccepted     int64            `json:"images_accepted"`
	DuplicatesRejected int64            `json:"duplicates_rejected"`
	QualityRejected    int64            `json:"quality_rejected"`
	QueriesSkipped     int64            `json:"queries_skipped"`
	Errors             int64            `json:"errors"`
	RejectReasons      map[string]int64 `json:"reject_reasons,omitempty"`
	SourceRequests     map[string]int64 `json:"source_requests,omitempty"`
}

// RunReport is the structured record emitted at the end of every run,
// including cancelled and failed ones. Operational tooling consumes it via
// the read API.
type RunReport struct {
	ID         string           `json:"id"`
	State      RunState         `json:"state"`
	StartedAt  time.Time        `json:"started_at"`
	EndedAt    time.Time        `json:"ended_at"`
	Stats      RunStatsSnapshot `json:"stats"`
	RecentErrs []string         `json:"recent_errors,omitempty"`
}
