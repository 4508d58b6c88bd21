package newswire

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pevans/newswire/cache"
	"github.com/pevans/newswire/classify"
	"github.com/pevans/newswire/logging"
	"github.com/pevans/newswire/metrics"
)

// PipelineConfig wires the stages of a Pipeline together.
type PipelineConfig struct {
	Sources  []Source
	Gatherer *Gatherer
	Policy   classify.Policy
	Ranking  RankOptions
	Cache    *cache.Cache[Payload]
	// Optional; nil disables counters
	Metrics *metrics.Metrics
	// Optional; nil uses logging.Logger
	Logger *log.Logger
	// Optional; nil uses time.Now
	Clock func() time.Time
}

// Pipeline turns the configured sources into a cached Payload.
type Pipeline struct {
	sources  []Source
	gatherer *Gatherer
	policy   classify.Policy
	ranking  RankOptions
	cache    *cache.Cache[Payload]
	metrics  *metrics.Metrics
	logger   *log.Logger
	now      func() time.Time
}

// NewPipeline creates a Pipeline. A nil Cache gets one with the default
// TTL and coalescing enabled.
func NewPipeline(config PipelineConfig) *Pipeline {
	p := &Pipeline{
		sources:  config.Sources,
		gatherer: config.Gatherer,
		policy:   config.Policy,
		ranking:  config.Ranking.withDefaults(),
		cache:    config.Cache,
		metrics:  config.Metrics,
		logger:   config.Logger,
		now:      config.Clock,
	}
	if p.logger == nil {
		p.logger = logging.Logger
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.cache == nil {
		p.cache = NewPayloadCache(DefaultCacheTTL, true, p.now)
	}
	return p
}

// DefaultCacheTTL is how long a built Payload is served before rebuilding.
const DefaultCacheTTL = 8 * time.Minute

// NewPayloadCache creates the result cache for Payloads. Empty payloads
// never replace non-empty ones.
func NewPayloadCache(ttl time.Duration, coalesce bool, clock func() time.Time) *cache.Cache[Payload] {
	opts := []cache.Option[Payload]{
		cache.WithEmptyFunc(Payload.IsEmpty),
		cache.WithCoalescing[Payload](coalesce),
	}
	if clock != nil {
		opts = append(opts, cache.WithClock[Payload](clock))
	}
	return cache.New(ttl, opts...)
}

// Sources returns the configured sources.
func (p *Pipeline) Sources() []Source {
	return p.sources
}

// CacheTTL returns the freshness window of the result cache.
func (p *Pipeline) CacheTTL() time.Duration {
	return p.cache.TTL()
}

// Rebuild fetches every source, classifies and ranks the articles, and
// returns the fresh Payload without touching the cache. Individual source
// failures only reduce the article count; Rebuild fails only when ctx is
// done before the sources settle, or when a stage panics.
func (p *Pipeline) Rebuild(ctx context.Context) (payload Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rebuild panicked: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return Payload{}, fmt.Errorf("failed to rebuild: %w", err)
	}

	start := time.Now()
	gathered := p.gatherer.GatherAll(ctx, p.sources)
	if err := ctx.Err(); err != nil {
		return Payload{}, fmt.Errorf("failed to rebuild: %w", err)
	}

	kept := make([]Article, 0, len(gathered))
	for _, a := range gathered {
		ok, category := p.policy.Apply(a.Title, a.Description)
		if !ok {
			continue
		}
		a.Category = category
		kept = append(kept, a)
	}

	payload = Finalize(kept, p.ranking, p.now())
	p.logger.Info("rebuilt payload",
		"sources", len(p.sources),
		"gathered", len(gathered),
		"relevant", len(kept),
		"served", payload.Count,
		"duration", time.Since(start))
	return payload, nil
}

// Payload returns the cached Payload, rebuilding it on a miss. hit reports
// whether the cached value was served without a rebuild. After an empty
// rebuild the previous non-empty Payload is returned.
func (p *Pipeline) Payload(ctx context.Context) (payload Payload, hit bool, err error) {
	payload, hit, err = p.cache.GetOrBuild(ctx, p.build)
	if err != nil {
		if p.metrics != nil {
			p.metrics.SetError(err.Error(), p.now())
		}
		return Payload{}, false, err
	}

	if p.metrics != nil {
		p.metrics.RecordRequest(hit, payload.Count)
	}
	if hit {
		p.logger.Debug("cache hit", "articles", payload.Count)
	}
	return payload, hit, nil
}

// build is the cache's rebuild callback.
func (p *Pipeline) build(ctx context.Context) (Payload, error) {
	p.logger.Debug("cache miss, rebuilding")

	start := time.Now()
	payload, err := p.Rebuild(ctx)
	if err != nil {
		return Payload{}, err
	}

	stored := true
	if payload.IsEmpty() {
		if prev, _, ok := p.cache.Peek(); ok && !prev.IsEmpty() {
			stored = false
			p.logger.Warn("rebuild produced no articles, keeping previous payload", "previous", prev.Count)
		}
	}
	if p.metrics != nil {
		p.metrics.RecordRebuild(time.Since(start), stored, p.now())
	}
	return payload, nil
}
