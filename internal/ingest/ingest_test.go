package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soledexapp/soledex-server/internal/budget"
	"github.com/soledexapp/soledex-server/internal/dedup"
	"github.com/soledexapp/soledex-server/internal/domain"
	apperrors "github.com/soledexapp/soledex-server/internal/errors"
	"github.com/soledexapp/soledex-server/internal/media/images"
	"github.com/soledexapp/soledex-server/internal/quality"
	"github.com/soledexapp/soledex-server/internal/resolver"
	"github.com/soledexapp/soledex-server/internal/source"
	"github.com/soledexapp/soledex-server/internal/storage"
	"github.com/soledexapp/soledex-server/internal/store"
)

// noisePNG encodes a 200x200 image of seeded pseudo-random pixels.
// Different seeds produce images far apart on every perceptual variant.
func noisePNG(t *testing.T, seed uint64) []byte {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, 200, 200))
	state := seed*2654435761 + 1
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			state = state*6364136223846793005 + 1442695040888963407
			img.SetGray(x, y, color.Gray{Y: uint8(state >> 56)})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeAdapter struct {
	name    string
	results map[string][]source.RawItem
	onCall  func(n int)

	mu    sync.Mutex
	errs  []error
	calls int
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) Search(_ context.Context, query string, _ int) ([]source.RawItem, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.onCall != nil {
		a.onCall(a.calls)
	}
	if len(a.errs) > 0 {
		err := a.errs[0]
		a.errs = a.errs[1:]
		return nil, err
	}
	return a.results[query], nil
}

func (a *fakeAdapter) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type fakeImageSearcher struct {
	name string
	refs []source.RawImageRef
}

func (s *fakeImageSearcher) Name() string { return s.name }

func (s *fakeImageSearcher) SearchImages(_ context.Context, _ string, _ int) ([]source.RawImageRef, error) {
	return s.refs, nil
}

// fakeFetcher serves canned bytes keyed by URL and fingerprints them the
// same way the real downloader does.
type fakeFetcher struct {
	data map[string][]byte
}

func (f *fakeFetcher) Fetch(_ context.Context, ref source.RawImageRef, itemID string) (*domain.ImageCandidate, error) {
	data, ok := f.data[ref.URL]
	if !ok {
		return nil, apperrors.ErrSourceFatal
	}
	img, w, h, err := images.Decode(data)
	if err != nil {
		return nil, apperrors.ErrMalformedPayload.WithCause(err)
	}
	return &domain.ImageCandidate{
		SourceURL:   ref.URL,
		OwnerItemID: itemID,
		Bytes:       data,
		Hashes:      dedup.Fingerprint(img, data),
		Width:       w,
		Height:      h,
		ByteSize:    int64(len(data)),
	}, nil
}

type pipeline struct {
	store  *store.Store
	budget *budget.Tracker
	deps   Deps
}

func setupPipeline(t *testing.T) *pipeline {
	t.Helper()

	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})

	sink, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	tracker := budget.New(budget.SourceConfig{})

	return &pipeline{
		store:  st,
		budget: tracker,
		deps: Deps{
			Adapters:       map[string]source.Adapter{},
			ImageSearchers: map[string]source.ImageSearcher{},
			Budget:         tracker,
			Resolver:       resolver.New(st, nil),
			Catalog:        st,
			Dedup:          dedup.NewEngine(dedup.Config{}),
			Gate:           quality.NewGate(quality.Config{}),
			Fetcher:        &fakeFetcher{data: map[string][]byte{}},
			Sink:           sink,
		},
	}
}

func rawShoe(name, query string) source.RawItem {
	return source.RawItem{
		Name:  name,
		Brand: "Nike",
		Query: query,
	}
}

func TestRunBudgetCeiling(t *testing.T) {
	p := setupPipeline(t)
	p.budget.Configure("api", budget.SourceConfig{MaxRequests: 5})

	adapter := &fakeAdapter{name: "api", results: map[string][]source.RawItem{}}
	queries := make([]Query, 0, 10)
	for i := 0; i < 10; i++ {
		term := fmt.Sprintf("query %d", i)
		adapter.results[term] = []source.RawItem{rawShoe(fmt.Sprintf("Shoe Number %d", i), term)}
		queries = append(queries, Query{Source: "api", Term: term})
	}
	p.deps.Adapters["api"] = adapter

	coord := NewCoordinator(Config{Queries: queries}, p.deps, nil)
	report, err := coord.Run(context.Background())
	require.NoError(t, err)

	// Ten attempts against a ceiling of five: exactly five get through.
	assert.Equal(t, 5, adapter.callCount())
	assert.Equal(t, int64(5), report.Stats.QueriesSkipped)
	assert.Equal(t, int64(5), report.Stats.ItemsCreated)
	assert.Equal(t, int64(5), report.Stats.SourceRequests["api"])
	assert.Equal(t, domain.RunCompleted, report.State)
	assert.Equal(t, domain.RunCompleted, coord.State())
}

func TestRunFullPipeline(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()

	item := rawShoe("Dunk Low Retro Panda", "dunk low")
	item.SKU = "DD1391-100"
	item.Price = 110
	item.Currency = "USD"
	item.Images = []source.RawImageRef{
		{URL: "https://img.test/a.png", Primary: true},
		{URL: "https://img.test/b.png"},
	}
	adapter := &fakeAdapter{name: "api", results: map[string][]source.RawItem{
		"dunk low": {item},
	}}
	p.deps.Adapters["api"] = adapter
	p.deps.Fetcher = &fakeFetcher{data: map[string][]byte{
		"https://img.test/a.png": noisePNG(t, 1),
		"https://img.test/b.png": noisePNG(t, 2),
	}}

	coord := NewCoordinator(Config{Queries: []Query{{Source: "api", Term: "dunk low"}}}, p.deps, nil)
	report, err := coord.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, report.State)
	assert.Equal(t, int64(1), report.Stats.ItemsSeen)
	assert.Equal(t, int64(1), report.Stats.ItemsCreated)
	assert.Equal(t, int64(2), report.Stats.ImagesSeen)
	assert.Equal(t, int64(2), report.Stats.ImagesAccepted)
	assert.Zero(t, report.Stats.DuplicatesRejected)
	assert.Zero(t, report.Stats.Errors)

	stored, err := p.store.GetItemByKey(ctx, "Nike", "Dunk Low Retro Panda")
	require.NoError(t, err)
	assert.Equal(t, "DD1391-100", stored.SKU)

	imgs, err := p.store.ListImagesByItem(ctx, stored.ID)
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, domain.RolePrimary, imgs[0].Role)
	for _, img := range imgs {
		assert.NotEmpty(t, img.StorageRef)
		assert.NotEmpty(t, img.BlurHash)
	}

	prices, err := p.store.ListPricesByItem(ctx, stored.ID)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, 110.0, prices[0].Price)

	saved, err := p.store.GetRunReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.Stats.ImagesAccepted, saved.Stats.ImagesAccepted)
}

func TestRunIdempotentSecondRun(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()

	item := rawShoe("Air Max 90 Infrared", "air max")
	item.Images = []source.RawImageRef{
		{URL: "https://img.test/a.png", Primary: true},
		{URL: "https://img.test/b.png"},
	}
	p.deps.Adapters["api"] = &fakeAdapter{name: "api", results: map[string][]source.RawItem{
		"air max": {item},
	}}
	p.deps.Fetcher = &fakeFetcher{data: map[string][]byte{
		"https://img.test/a.png": noisePNG(t, 3),
		"https://img.test/b.png": noisePNG(t, 4),
	}}

	cfg := Config{Queries: []Query{{Source: "api", Term: "air max"}}}

	first, err := NewCoordinator(cfg, p.deps, nil).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), first.Stats.ItemsCreated)
	require.Equal(t, int64(2), first.Stats.ImagesAccepted)

	second, err := NewCoordinator(cfg, p.deps, nil).Run(ctx)
	require.NoError(t, err)

	// Same inputs again: nothing new is created, everything dedupes.
	assert.Zero(t, second.Stats.ItemsCreated)
	assert.Equal(t, int64(1), second.Stats.ItemsEnriched)
	assert.Zero(t, second.Stats.ImagesAccepted)
	assert.Equal(t, int64(2), second.Stats.DuplicatesRejected)

	count, err := p.store.CountItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	p := setupPipeline(t)
	p.deps.Adapters["api"] = &fakeAdapter{name: "api"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	coord := NewCoordinator(Config{Queries: []Query{{Source: "api", Term: "anything"}}}, p.deps, nil)
	report, err := coord.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, domain.RunCancelled, report.State)
	assert.Zero(t, report.Stats.ItemsSeen)
	assert.False(t, report.EndedAt.Before(report.StartedAt))

	// The report is persisted even for a cancelled run.
	saved, err := p.store.GetRunReport(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCancelled, saved.State)
}

func TestRunCancelledMidRunStatsMatchStore(t *testing.T) {
	p := setupPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapter := &fakeAdapter{name: "api", results: map[string][]source.RawItem{}}
	fetchData := map[string][]byte{}
	queries := make([]Query, 0, 8)
	for i := 0; i < 8; i++ {
		term := fmt.Sprintf("query %d", i)
		url := fmt.Sprintf("https://img.test/%d.png", i)
		item := rawShoe(fmt.Sprintf("Shoe Number %d", i), term)
		item.Images = []source.RawImageRef{{URL: url, Primary: true}}
		adapter.results[term] = []source.RawItem{item}
		fetchData[url] = noisePNG(t, uint64(10+i))
		queries = append(queries, Query{Source: "api", Term: term})
	}
	// Stop the run from inside the fourth query, with work still queued
	// and an item in flight.
	adapter.onCall = func(n int) {
		if n == 4 {
			cancel()
		}
	}
	p.deps.Adapters["api"] = adapter
	p.deps.Fetcher = &fakeFetcher{data: fetchData}

	report, err := NewCoordinator(Config{Queries: queries, Workers: 1}, p.deps, nil).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, domain.RunCancelled, report.State)

	// The in-flight item finishes or is dropped whole; the report counts
	// exactly what the catalog holds.
	itemCount, err := p.store.CountItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.Stats.ItemsCreated, int64(itemCount))

	imageCount, err := p.store.CountImages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.Stats.ImagesAccepted, int64(imageCount))

	// Progress before the stop signal is retained, the rest never ran.
	assert.Equal(t, int64(3), report.Stats.ItemsCreated)
	assert.Less(t, report.Stats.ItemsCreated, int64(len(queries)))
}

func TestRunNotFoundSkipsQueryOnly(t *testing.T) {
	p := setupPipeline(t)

	adapter := &fakeAdapter{
		name: "api",
		errs: []error{source.ErrNotFound},
		results: map[string][]source.RawItem{
			"second": {rawShoe("Shoe Two", "second")},
		},
	}
	p.deps.Adapters["api"] = adapter

	cfg := Config{
		Queries: []Query{
			{Source: "api", Term: "first"},
			{Source: "api", Term: "second"},
		},
		Workers: 1,
	}
	report, err := NewCoordinator(cfg, p.deps, nil).Run(context.Background())
	require.NoError(t, err)

	// A miss on one query does not retire the source or count as an
	// error; the next query still reaches the adapter.
	assert.Equal(t, 2, adapter.callCount())
	assert.False(t, p.budget.IsExhausted("api"))
	assert.Equal(t, int64(1), report.Stats.QueriesSkipped)
	assert.Equal(t, int64(1), report.Stats.ItemsCreated)
	assert.Zero(t, report.Stats.Errors)
	assert.Equal(t, domain.RunCompleted, report.State)
}

func TestRunRetriesTransientSearch(t *testing.T) {
	p := setupPipeline(t)

	adapter := &fakeAdapter{
		name: "api",
		errs: []error{source.ErrServer, source.ErrRateLimited},
		results: map[string][]source.RawItem{
			"samba": {rawShoe("Samba OG", "samba")},
		},
	}
	p.deps.Adapters["api"] = adapter

	cfg := Config{
		Queries:        []Query{{Source: "api", Term: "samba"}},
		RetryBaseDelay: time.Millisecond,
	}
	report, err := NewCoordinator(cfg, p.deps, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, adapter.callCount())
	assert.Equal(t, int64(1), report.Stats.ItemsCreated)
	assert.Zero(t, report.Stats.Errors)
	assert.Equal(t, domain.RunCompleted, report.State)
}

func TestRunFatalErrorExhaustsSource(t *testing.T) {
	p := setupPipeline(t)

	adapter := &fakeAdapter{
		name: "api",
		errs: []error{source.ErrBadRequest, source.ErrBadRequest},
	}
	p.deps.Adapters["api"] = adapter

	cfg := Config{
		Queries: []Query{
			{Source: "api", Term: "first"},
			{Source: "api", Term: "second"},
		},
		Workers: 1,
	}
	report, err := NewCoordinator(cfg, p.deps, nil).Run(context.Background())
	require.NoError(t, err)

	// The first fatal response writes the source off; the second query
	// never reaches the adapter.
	assert.Equal(t, 1, adapter.callCount())
	assert.True(t, p.budget.IsExhausted("api"))
	assert.Equal(t, int64(1), report.Stats.Errors)
	assert.Equal(t, int64(1), report.Stats.QueriesSkipped)
	assert.NotEmpty(t, report.RecentErrs)
}

func TestRunQualityRejections(t *testing.T) {
	p := setupPipeline(t)

	item := rawShoe("Yeezy Boost 350", "yeezy")
	item.Images = []source.RawImageRef{
		{URL: "https://img.test/a.png"},
		{URL: "https://img.test/b.png"},
	}
	p.deps.Adapters["api"] = &fakeAdapter{name: "api", results: map[string][]source.RawItem{
		"yeezy": {item},
	}}
	p.deps.Fetcher = &fakeFetcher{data: map[string][]byte{
		"https://img.test/a.png": noisePNG(t, 5),
		"https://img.test/b.png": noisePNG(t, 6),
	}}
	p.deps.Gate = quality.NewGate(quality.Config{MinBytes: 1 << 20})

	report, err := NewCoordinator(Config{Queries: []Query{{Source: "api", Term: "yeezy"}}}, p.deps, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.Stats.ImagesAccepted)
	assert.Equal(t, int64(2), report.Stats.QualityRejected)
	assert.Equal(t, int64(2), report.Stats.RejectReasons[quality.ReasonTooSmall])
}

func TestImageQueryAttachesToCatalogItem(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()

	item, created, err := resolver.New(p.store, nil).Resolve(ctx, rawShoe("Dunk Low Retro Panda", ""))
	require.NoError(t, err)
	require.True(t, created)

	p.deps.ImageSearchers["imgsrc"] = &fakeImageSearcher{
		name: "imgsrc",
		refs: []source.RawImageRef{{URL: "https://img.test/x.png", Primary: true}},
	}
	p.deps.Fetcher = &fakeFetcher{data: map[string][]byte{
		"https://img.test/x.png": noisePNG(t, 7),
	}}

	report, err := NewCoordinator(Config{Queries: []Query{{Source: "imgsrc", Term: "dunk low"}}}, p.deps, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Stats.ImagesAccepted)

	imgs, err := p.store.ListImagesByItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, imgs, 1)
	assert.Equal(t, "imgsrc", imgs[0].Source)
}

func TestImageQueryWithoutCatalogMatchSkips(t *testing.T) {
	p := setupPipeline(t)

	p.deps.ImageSearchers["imgsrc"] = &fakeImageSearcher{name: "imgsrc"}

	report, err := NewCoordinator(Config{Queries: []Query{{Source: "imgsrc", Term: "no such shoe"}}}, p.deps, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), report.Stats.QueriesSkipped)
	assert.Zero(t, report.Stats.ImagesSeen)
}

func TestRunIsSingleUse(t *testing.T) {
	p := setupPipeline(t)
	p.deps.Adapters["api"] = &fakeAdapter{name: "api"}

	coord := NewCoordinator(Config{}, p.deps, nil)
	_, err := coord.Run(context.Background())
	require.NoError(t, err)

	_, err = coord.Run(context.Background())
	assert.Error(t, err)
}

func TestErrorTailKeepsMostRecent(t *testing.T) {
	tail := newErrorTail(3)
	for i := 0; i < 7; i++ {
		tail.add(fmt.Sprintf("err %d", i))
	}
	assert.Equal(t, []string{"err 4", "err 5", "err 6"}, tail.snapshot())
}
