package newswire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/pevans/newswire/fetcher"
	"github.com/pevans/newswire/logging"
	"github.com/pevans/newswire/metrics"
)

// SlowFetchThreshold is how long a source may take before its fetch is
// logged at WARN instead of INFO.
const SlowFetchThreshold = 5 * time.Second

// GathererConfig holds configuration for a Gatherer.
type GathererConfig struct {
	// Timeout per source fetch, covering connect, redirects and body
	FetchTimeout time.Duration
	// Maximum description length passed to ParseFeed
	DescriptionMax int
	// Maximum number of sources fetched at once; <= 0 means one goroutine
	// per source
	Concurrency int
}

// DefaultGathererConfig returns the default configuration.
func DefaultGathererConfig() GathererConfig {
	return GathererConfig{
		FetchTimeout:   8 * time.Second,
		DescriptionMax: DefaultDescriptionMax,
	}
}

// SourceResult is the settled outcome of fetching and parsing one source.
// Exactly one of Articles or Err is meaningful.
type SourceResult struct {
	Source   Source
	Articles []Article
	Err      error
	Duration time.Duration
}

// Gatherer fetches every source concurrently and parses the responses. A
// failing source never affects the others.
type Gatherer struct {
	fetcher fetcher.Fetcher
	config  GathererConfig
	logger  *log.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewGatherer creates a Gatherer. logger and m may be nil.
func NewGatherer(f fetcher.Fetcher, config GathererConfig, logger *log.Logger, m *metrics.Metrics) *Gatherer {
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultGathererConfig().FetchTimeout
	}
	if logger == nil {
		logger = logging.Logger
	}
	return &Gatherer{
		fetcher: f,
		config:  config,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// GatherAll fetches and parses all sources and returns the combined
// articles, in source order and then document order within each source.
// Failed sources are logged and contribute nothing. GatherAll returns once
// every source has either finished or timed out.
func (g *Gatherer) GatherAll(ctx context.Context, sources []Source) []Article {
	var articles []Article
	for _, res := range g.Settle(ctx, sources) {
		articles = append(articles, res.Articles...)
	}
	return articles
}

// Settle fetches and parses all sources and returns one result per source,
// in the order given.
func (g *Gatherer) Settle(ctx context.Context, sources []Source) []SourceResult {
	results := make([]SourceResult, len(sources))

	// Errors are recorded per source, never returned, so one failure does
	// not cancel its siblings.
	var eg errgroup.Group
	if g.config.Concurrency > 0 {
		eg.SetLimit(g.config.Concurrency)
	}
	for i, src := range sources {
		eg.Go(func() error {
			results[i] = g.gatherOne(ctx, src)
			return nil
		})
	}
	_ = eg.Wait()

	return results
}

// gatherOne fetches and parses a single source under its own timeout.
func (g *Gatherer) gatherOne(ctx context.Context, src Source) (res SourceResult) {
	start := time.Now()
	res.Source = src

	defer func() {
		if r := recover(); r != nil {
			res.Articles = nil
			res.Err = fmt.Errorf("panic while processing source: %v", r)
		}
		res.Duration = time.Since(start)
		g.report(res)
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, g.config.FetchTimeout)
	defer cancel()

	body, err := g.fetcher.Fetch(fetchCtx, src.URL)
	if err != nil {
		res.Err = fmt.Errorf("failed to fetch feed: %w", err)
		return res
	}

	opts := ParseOptions{
		DescriptionMax: g.config.DescriptionMax,
		Now:            g.now(),
	}
	if src.Scrape != nil {
		res.Articles, res.Err = ParseListing(body, src, opts)
		return res
	}
	res.Articles = ParseFeed(body, src, opts)
	return res
}

// report logs a settled source and updates failure counters.
func (g *Gatherer) report(res SourceResult) {
	if res.Err != nil {
		if g.metrics != nil {
			g.metrics.RecordSourceFailure()
		}
		g.logger.Warn("source failed",
			"source", res.Source.Label,
			"url", res.Source.URL,
			"reason", FailureReason(res.Err),
			"err", res.Err,
			"duration", res.Duration)
		return
	}

	if res.Duration > SlowFetchThreshold {
		g.logger.Warn("slow source", "source", res.Source.Label, "articles", len(res.Articles), "duration", res.Duration)
		return
	}
	g.logger.Debug("source fetched", "source", res.Source.Label, "articles", len(res.Articles), "duration", res.Duration)
}

// FailureReason classifies a fetch error as "timeout", "status",
// "redirects", "cancelled" or "transport".
func FailureReason(err error) string {
	var statusErr *fetcher.StatusError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.As(err, &statusErr):
		return "status"
	case errors.Is(err, fetcher.ErrTooManyRedirects):
		return "redirects"
	default:
		return "transport"
	}
}
