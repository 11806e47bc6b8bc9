package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/soledexapp/soledex-server/internal/budget"
	"github.com/soledexapp/soledex-server/internal/domain"
	apperrors "github.com/soledexapp/soledex-server/internal/errors"
	"github.com/soledexapp/soledex-server/internal/id"
	"github.com/soledexapp/soledex-server/internal/media/images"
	"github.com/soledexapp/soledex-server/internal/normalize"
	"github.com/soledexapp/soledex-server/internal/source"
	"github.com/soledexapp/soledex-server/internal/store"
)

// Coordinator drives one ingestion run. It is single-use: construct,
// Run once, read the report.
type Coordinator struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	stats *domain.RunStats
	tail  *errorTail
	retry retryPolicy

	mu      sync.Mutex
	state   domain.RunState
	targets context.CancelFunc
	onGoal  bool
}

// NewCoordinator builds a coordinator for one run.
func NewCoordinator(cfg Config, deps Deps, logger *slog.Logger) *Coordinator {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		stats:  domain.NewRunStats(),
		tail:   newErrorTail(cfg.ErrorTail),
		retry:  retryPolicy{maxAttempts: cfg.MaxAttempts, baseDelay: cfg.RetryBaseDelay},
		state:  domain.RunIdle,
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() domain.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a snapshot of the live counters. Safe to call while the
// run is in flight.
func (c *Coordinator) Stats() domain.RunStatsSnapshot {
	return c.stats.Snapshot()
}

// Run executes the worklist and always produces a report, including on
// cancellation. The context governs the whole run; cancellation and the
// configured deadline are honored between items, never mid-download.
func (c *Coordinator) Run(ctx context.Context) (*domain.RunReport, error) {
	c.mu.Lock()
	if c.state != domain.RunIdle {
		c.mu.Unlock()
		return nil, apperrors.Validation("run already started")
	}
	c.state = domain.RunRunning
	c.mu.Unlock()

	startedAt := time.Now()

	runCtx := ctx
	var cancelDeadline context.CancelFunc
	if c.cfg.Deadline > 0 {
		runCtx, cancelDeadline = context.WithTimeout(runCtx, c.cfg.Deadline)
		defer cancelDeadline()
	}
	runCtx, cancelTargets := context.WithCancel(runCtx)
	defer cancelTargets()
	c.mu.Lock()
	c.targets = cancelTargets
	c.mu.Unlock()

	c.logger.LogAttrs(runCtx, slog.LevelInfo, "ingestion run started",
		slog.Int("queries", len(c.cfg.Queries)),
		slog.Int("workers", c.cfg.Workers),
	)

	g := &errgroup.Group{}
	g.SetLimit(c.cfg.Workers)

	for _, q := range c.cfg.Queries {
		if runCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			return c.processQuery(runCtx, q)
		})
	}

	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		runErr = nil
	}

	report := c.buildReport(startedAt, runCtx.Err(), runErr)

	saveCtx, cancelSave := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSave()
	if err := c.deps.Catalog.SaveRunReport(saveCtx, report); err != nil {
		c.logger.LogAttrs(saveCtx, slog.LevelError, "failed to persist run report",
			slog.String("run_id", report.ID),
			slog.Any("error", err),
		)
	}

	c.logger.LogAttrs(saveCtx, slog.LevelInfo, "ingestion run finished",
		slog.String("run_id", report.ID),
		slog.String("state", string(report.State)),
		slog.Int64("items_created", report.Stats.ItemsCreated),
		slog.Int64("images_accepted", report.Stats.ImagesAccepted),
		slog.Int64("errors", report.Stats.Errors),
	)

	return report, runErr
}

// buildReport assembles the terminal report and flips the state machine.
func (c *Coordinator) buildReport(startedAt time.Time, ctxErr, runErr error) *domain.RunReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case runErr != nil:
		c.state = domain.RunFailed
	case ctxErr != nil && !c.onGoal:
		c.state = domain.RunCancelled
	default:
		c.state = domain.RunCompleted
	}

	// Run IDs are plain UUIDs: reports are operational artifacts, not
	// catalog entities.
	return &domain.RunReport{
		ID:         uuid.NewString(),
		State:      c.state,
		StartedAt:  startedAt,
		EndedAt:    time.Now(),
		Stats:      c.stats.Snapshot(),
		RecentErrs: c.tail.snapshot(),
	}
}

// checkTargets cancels remaining work once both collection targets are
// reached. With no targets configured the run always drains the worklist.
func (c *Coordinator) checkTargets() {
	if c.cfg.TargetItems <= 0 && c.cfg.TargetImages <= 0 {
		return
	}
	if c.stats.ItemsCreated() < c.cfg.TargetItems || c.stats.ImagesAccepted() < c.cfg.TargetImages {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.onGoal {
		c.onGoal = true
		c.logger.Info("collection targets reached, stopping early")
		if c.targets != nil {
			c.targets()
		}
	}
}

// recordError counts a non-fatal error and keeps it in the report tail.
func (c *Coordinator) recordError(scope string, err error) {
	c.stats.Error()
	c.tail.add(fmt.Sprintf("%s: %v", scope, err))
	c.logger.LogAttrs(context.Background(), slog.LevelWarn, "ingestion error",
		slog.String("scope", scope),
		slog.Any("error", err),
	)
}

// acquireBudget blocks through pacing denials until the source grants a
// slot, the budget is exhausted, or the context ends.
func (c *Coordinator) acquireBudget(ctx context.Context, src string) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		decision := c.deps.Budget.Acquire(src)
		switch decision.Outcome {
		case budget.Allow:
			return true
		case budget.Exhausted:
			c.stats.QuerySkipped()
			return false
		case budget.Deny:
			timer := time.NewTimer(decision.RetryAfter)
			select {
			case <-ctx.Done():
				timer.Stop()
				return false
			case <-timer.C:
			}
		}
	}
}

// processQuery runs one worklist entry end to end. It returns an error
// only for failures that should abort the whole run; everything local to
// the query is counted and swallowed.
func (c *Coordinator) processQuery(ctx context.Context, q Query) error {
	if ctx.Err() != nil {
		return nil
	}

	if adapter, ok := c.deps.Adapters[q.Source]; ok {
		return c.processMetadataQuery(ctx, adapter, q)
	}
	if searcher, ok := c.deps.ImageSearchers[q.Source]; ok {
		return c.processImageQuery(ctx, searcher, q)
	}

	c.recordError(q.Source, fmt.Errorf("no adapter registered for source %q", q.Source))
	return nil
}

func (c *Coordinator) processMetadataQuery(ctx context.Context, adapter source.Adapter, q Query) error {
	if !c.acquireBudget(ctx, q.Source) {
		return nil
	}
	c.stats.SourceRequest(q.Source)

	var rawItems []source.RawItem
	err := c.retry.do(ctx, func() error {
		items, searchErr := adapter.Search(ctx, q.Term, c.cfg.ItemsPerQuery)
		if searchErr != nil {
			return source.Classify(searchErr)
		}
		rawItems = items
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, source.ErrNotFound) {
			// A miss on one query is not a provider failure.
			c.logger.LogAttrs(ctx, slog.LevelDebug, "query returned no results",
				slog.String("source", q.Source),
				slog.String("query", q.Term),
			)
			c.stats.QuerySkipped()
			return nil
		}
		if errors.Is(err, apperrors.ErrSourceFatal) {
			// The source is rejecting us outright; stop charging budget
			// at it for the rest of the run.
			c.deps.Budget.MarkExhausted(q.Source)
		}
		c.recordError(fmt.Sprintf("%s/%s", q.Source, q.Term), err)
		return nil
	}

	for _, raw := range rawItems {
		if ctx.Err() != nil {
			return nil
		}
		if raw.Source == "" {
			raw.Source = q.Source
		}
		if raw.Query == "" {
			raw.Query = q.Term
		}
		if err := c.processRawItem(ctx, raw); err != nil {
			return err
		}
		c.checkTargets()
	}
	return nil
}

// processRawItem resolves one raw record into the catalog and walks its
// image references.
func (c *Coordinator) processRawItem(ctx context.Context, raw source.RawItem) error {
	c.stats.ItemSeen()

	item, created, err := c.deps.Resolver.Resolve(ctx, raw)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		c.recordError(fmt.Sprintf("%s/resolve", raw.Source), err)
		return nil
	}
	if created {
		c.stats.ItemCreated()
	} else {
		c.stats.ItemEnriched()
	}

	if raw.Price > 0 {
		obs := &domain.PriceObservation{
			ItemID:     item.ID,
			Source:     raw.Source,
			Price:      raw.Price,
			Currency:   raw.Currency,
			Kind:       "retail",
			ObservedAt: time.Now(),
		}
		obs.ID = id.MustGenerate("price")
		obs.InitTimestamps()
		if err := c.deps.Catalog.AddPriceObservation(ctx, obs); err != nil {
			c.recordError(fmt.Sprintf("%s/price", raw.Source), err)
		}
	}

	refs := raw.Images
	if len(refs) > c.cfg.ImagesPerItem {
		refs = refs[:c.cfg.ImagesPerItem]
	}
	for _, ref := range refs {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.processImage(ctx, item, ref, raw.Source); err != nil {
			return err
		}
	}
	return nil
}

// processImageQuery attaches image-only search results to an already
// cataloged item. Queries that match nothing in the catalog are skipped;
// an image source cannot create entities.
func (c *Coordinator) processImageQuery(ctx context.Context, searcher source.ImageSearcher, q Query) error {
	item, err := c.matchItem(ctx, q.Term)
	if err != nil {
		c.recordError(fmt.Sprintf("%s/%s", q.Source, q.Term), err)
		return nil
	}
	if item == nil {
		c.logger.LogAttrs(ctx, slog.LevelDebug, "image query matches no catalog item",
			slog.String("source", q.Source),
			slog.String("query", q.Term),
		)
		c.stats.QuerySkipped()
		return nil
	}

	if !c.acquireBudget(ctx, q.Source) {
		return nil
	}
	c.stats.SourceRequest(q.Source)

	var refs []source.RawImageRef
	err = c.retry.do(ctx, func() error {
		found, searchErr := searcher.SearchImages(ctx, q.Term, c.cfg.ImagesPerItem)
		if searchErr != nil {
			return source.Classify(searchErr)
		}
		refs = found
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, source.ErrNotFound) {
			c.stats.QuerySkipped()
			return nil
		}
		if errors.Is(err, apperrors.ErrSourceFatal) {
			c.deps.Budget.MarkExhausted(q.Source)
		}
		c.recordError(fmt.Sprintf("%s/%s", q.Source, q.Term), err)
		return nil
	}

	for _, ref := range refs {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.processImage(ctx, item, ref, q.Source); err != nil {
			return err
		}
		c.checkTargets()
	}
	return nil
}

// matchItem finds the catalog item an image query refers to, by name
// containment against the full catalog.
func (c *Coordinator) matchItem(ctx context.Context, term string) (*domain.CanonicalItem, error) {
	items, err := c.deps.Catalog.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if normalize.ContainsName(item.Brand+" "+item.Name, term) {
			return item, nil
		}
	}
	return nil, nil
}

// processImage pushes one image reference through fetch, dedup, the
// quality gate and the archive sink.
func (c *Coordinator) processImage(ctx context.Context, item *domain.CanonicalItem, ref source.RawImageRef, src string) error {
	c.stats.ImageSeen()

	var cand *domain.ImageCandidate
	err := c.retry.do(ctx, func() error {
		fetched, fetchErr := c.deps.Fetcher.Fetch(ctx, ref, item.ID)
		if fetchErr != nil {
			return fetchErr
		}
		cand = fetched
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		c.recordError(fmt.Sprintf("%s/fetch", src), err)
		return nil
	}
	cand.Source = src

	// Exact bytes anywhere in the catalog end it here, before any
	// perceptual work.
	seen, err := c.deps.Catalog.HasImageBytes(ctx, cand.Hashes.ByteHash)
	if err != nil {
		return fmt.Errorf("check byte hash: %w", err)
	}
	if seen {
		c.stats.DuplicateRejected()
		return nil
	}

	existing, err := c.deps.Catalog.ItemImageHashes(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("load item hashes: %w", err)
	}
	if res := c.deps.Dedup.Check(cand.Hashes, existing); res.Duplicate {
		c.logger.LogAttrs(ctx, slog.LevelDebug, "image rejected as duplicate",
			slog.String("item_id", item.ID),
			slog.String("duplicate_of", res.DuplicateOf),
			slog.Bool("exact", res.Exact),
		)
		c.stats.DuplicateRejected()
		return nil
	}

	img, _, _, err := images.Decode(cand.Bytes)
	if err != nil {
		c.recordError(fmt.Sprintf("%s/decode", src), err)
		return nil
	}

	if verdict := c.deps.Gate.Inspect(cand, img); !verdict.Accepted {
		c.logger.LogAttrs(ctx, slog.LevelDebug, "image rejected by quality gate",
			slog.String("item_id", item.ID),
			slog.String("reason", verdict.Reason),
		)
		c.stats.QualityRejected(verdict.Reason)
		return nil
	}

	role := domain.RoleDetail
	if ref.Primary || len(existing) == 0 {
		role = domain.RolePrimary
	}

	accepted := &domain.AcceptedImage{
		ItemID:    item.ID,
		SourceURL: cand.SourceURL,
		Source:    src,
		Hashes:    cand.Hashes,
		Width:     cand.Width,
		Height:    cand.Height,
		ByteSize:  cand.ByteSize,
		Role:      role,
	}
	accepted.ID = id.MustGenerate("img")
	accepted.InitTimestamps()

	if bh, bhErr := images.ComputeBlurHash(img); bhErr == nil {
		accepted.BlurHash = bh
	}

	// AddImage claims the byte-hash index atomically; a racing worker
	// loses here rather than uploading the same bytes twice.
	if err := c.deps.Catalog.AddImage(ctx, accepted); err != nil {
		if errors.Is(err, store.ErrImageExists) {
			c.stats.DuplicateRejected()
			return nil
		}
		return fmt.Errorf("persist image: %w", err)
	}
	c.deps.Dedup.Observe(cand.Hashes)
	c.stats.ImageAccepted()

	c.archiveImage(ctx, item, accepted, cand.Bytes)
	return nil
}

// archiveImage uploads accepted bytes to the sink. Upload failure is not
// fatal: the image record stays with an empty StorageRef for a later
// repair pass.
func (c *Coordinator) archiveImage(ctx context.Context, item *domain.CanonicalItem, img *domain.AcceptedImage, data []byte) {
	folder := normalize.Filename(item.Brand)
	if folder == "" {
		folder = "unbranded"
	}
	name := fmt.Sprintf("%s-%s.jpg", normalize.Filename(item.Name), img.Hashes.ByteHash[:12])

	var storageRef string
	err := c.retry.do(ctx, func() error {
		ref, storeErr := c.deps.Sink.Store(ctx, folder, name, data)
		if storeErr != nil {
			return storeErr
		}
		storageRef = ref
		return nil
	})
	if err != nil {
		if ctx.Err() == nil {
			c.recordError("sink", err)
		}
		return
	}

	if err := c.deps.Catalog.SetImageStorageRef(ctx, img.ID, storageRef); err != nil {
		c.recordError("sink", err)
		return
	}
	img.StorageRef = storageRef
}
