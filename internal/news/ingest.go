package news

import (
	"context"
	"log/slog"
	"time"

	"github.com/ajitpratap0/facultyhub/internal/metrics"
	"github.com/ajitpratap0/facultyhub/internal/models"
	"github.com/ajitpratap0/facultyhub/internal/store"
)

// Defaults for the ingestion query.
const (
	DefaultQuery = `"job vacancy" OR hiring VL`
	DefaultCount = 8
)

// Options tunes the ingester.
type Options struct {
	Query     string
	Count     int
	Retention time.Duration
}

// Result reports one fetch run.
type Result struct {
	Inserted  int `json:"inserted"`
	Processed int `json:"processed"`
}

// Ingester fetches news from a Source and stores new items.
type Ingester struct {
	source Source
	store  store.Store
	opts   Options
	now    func() time.Time
	logger *slog.Logger
}

// NewIngester creates an ingester. A nil source disables fetching.
func NewIngester(src Source, st store.Store, opts Options, logger *slog.Logger) *Ingester {
	if opts.Query == "" {
		opts.Query = DefaultQuery
	}
	if opts.Count <= 0 {
		opts.Count = DefaultCount
	}
	if opts.Retention <= 0 {
		opts.Retention = models.DefaultNewsRetention
	}
	return &Ingester{
		source: src,
		store:  st,
		opts:   opts,
		now:    time.Now,
		logger: logger.With("component", "news"),
	}
}

// WithClock replaces the ingester's clock. Used by tests.
func (i *Ingester) WithClock(now func() time.Time) *Ingester {
	i.now = now
	return i
}

// Enabled reports whether a source is configured.
func (i *Ingester) Enabled() bool {
	return i.source != nil
}

// FetchAndStore runs one ingestion pass. It never returns an error: source and
// storage failures are logged and reported as zero inserts.
func (i *Ingester) FetchAndStore(ctx context.Context) Result {
	if i.source == nil {
		i.logger.Warn("skipping news fetch: search API key or engine id not set")
		return Result{}
	}
	metrics.Inc(metrics.NewsFetchRuns)

	raw, err := i.source.Search(ctx, i.opts.Query, i.opts.Count)
	if err != nil {
		metrics.Inc(metrics.NewsFetchFailures)
		i.logger.Error("news fetch failed", "error", err)
		return Result{}
	}
	items := Normalize(raw, i.now(), i.opts.Retention)
	if len(items) == 0 {
		i.logger.Info("news fetch returned no items")
		return Result{}
	}

	inserted, err := i.store.InsertNewsIfAbsent(ctx, items)
	if err != nil {
		i.logger.Error("storing some news items failed", "error", err)
	}
	metrics.Add(metrics.NewsInserted, inserted)
	i.logger.Info("news fetch complete", "processed", len(items), "inserted", inserted)
	return Result{Inserted: inserted, Processed: len(items)}
}

// Job adapts FetchAndStore to a scheduler job.
func (i *Ingester) Job(ctx context.Context, _ time.Time) {
	i.FetchAndStore(ctx)
}
