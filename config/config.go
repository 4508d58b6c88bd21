// Package config loads the service configuration: the feed sources, the
// cache window, and the fetch, parse, and ranking limits.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/pevans/newswire/classify"
	"github.com/pevans/newswire/scraper"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Cache    CacheConfig    `yaml:"cache"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Feed     FeedConfig     `yaml:"feed"`
	Ranking  RankingConfig  `yaml:"ranking"`
	Classify ClassifyConfig `yaml:"classify"`
	Sources  []SourceConfig `yaml:"sources"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// CacheConfig holds the result cache settings.
type CacheConfig struct {
	TTL                  time.Duration `yaml:"ttl"`
	StaleWhileRevalidate time.Duration `yaml:"stale_while_revalidate"`
	// Coalesce shares one rebuild between concurrent misses.
	Coalesce bool `yaml:"coalesce"`
}

// FetchConfig holds the outbound transport settings.
type FetchConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	MaxRedirects  int           `yaml:"max_redirects"`
	UserAgent     string        `yaml:"user_agent"`
	Accept        string        `yaml:"accept"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes"`
	// Concurrency caps simultaneous source fetches. Zero means no cap.
	Concurrency int `yaml:"concurrency"`
}

// FeedConfig holds item parsing settings.
type FeedConfig struct {
	DescriptionMax int `yaml:"description_max"`
}

// RankingConfig holds dedup and truncation settings.
type RankingConfig struct {
	MaxArticles    int `yaml:"max_articles"`
	FingerprintLen int `yaml:"fingerprint_len"`
}

// ClassifyConfig selects the relevance policy.
type ClassifyConfig struct {
	Mode string `yaml:"mode"`
}

// SourceConfig is one feed to poll.
type SourceConfig struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
	Color string `yaml:"color"`
	// Scrape turns the source into an HTML listing page.
	Scrape *scraper.Config `yaml:"scrape,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Cache: CacheConfig{
			TTL:                  8 * time.Minute,
			StaleWhileRevalidate: 2 * time.Minute,
			Coalesce:             true,
		},
		Fetch: FetchConfig{
			Timeout:      8 * time.Second,
			MaxRedirects: 3,
			UserAgent:    "Mozilla/5.0 (compatible; newswire/1.0; +https://github.com/pevans/newswire)",
			Accept:       "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5",
			MaxBodyBytes: 5 << 20,
		},
		Feed:     FeedConfig{DescriptionMax: 280},
		Ranking:  RankingConfig{MaxArticles: 120, FingerprintLen: 65},
		Classify: ClassifyConfig{Mode: string(classify.ModeBoth)},
		Sources:  DefaultSources(),
	}
}

// DefaultSources returns the feeds polled when the config file lists none.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{
			Name:  "Google News",
			Label: "GNews",
			URL:   "https://news.google.com/rss/search?q=florida+marijuana+OR+cannabis&hl=en-US&gl=US&ceid=US:en",
			Color: "#4285f4",
		},
		{
			Name:  "Florida Politics",
			Label: "FlaPol",
			URL:   "https://floridapolitics.com/archives/tag/medical-marijuana/feed",
			Color: "#c8102e",
		},
		{
			Name:  "Florida Phoenix",
			Label: "Phoenix",
			URL:   "https://floridaphoenix.com/feed/",
			Color: "#e26a2c",
		},
		{
			Name:  "Marijuana Moment",
			Label: "MMoment",
			URL:   "https://www.marijuanamoment.net/feed/",
			Color: "#2e7d32",
		},
		{
			Name:  "MJBizDaily",
			Label: "MJBiz",
			URL:   "https://mjbizdaily.com/feed/",
			Color: "#00695c",
		},
	}
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Cache.TTL < time.Minute || c.Cache.TTL > time.Hour {
		errs = append(errs, fmt.Errorf("cache.ttl must be between 1m and 1h, got %s", c.Cache.TTL))
	}
	if c.Cache.StaleWhileRevalidate < 0 {
		errs = append(errs, errors.New("cache.stale_while_revalidate must not be negative"))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch.timeout must be positive"))
	}
	if c.Fetch.MaxRedirects < 0 || c.Fetch.MaxRedirects > 10 {
		errs = append(errs, fmt.Errorf("fetch.max_redirects must be between 0 and 10, got %d", c.Fetch.MaxRedirects))
	}
	if c.Fetch.Concurrency < 0 {
		errs = append(errs, errors.New("fetch.concurrency must not be negative"))
	}
	if c.Fetch.RatePerSecond < 0 {
		errs = append(errs, errors.New("fetch.rate_per_second must not be negative"))
	}
	if c.Feed.DescriptionMax < 0 {
		errs = append(errs, errors.New("feed.description_max must not be negative"))
	}
	if c.Ranking.MaxArticles < 1 || c.Ranking.MaxArticles > 1000 {
		errs = append(errs, fmt.Errorf("ranking.max_articles must be between 1 and 1000, got %d", c.Ranking.MaxArticles))
	}
	if c.Ranking.FingerprintLen < 1 {
		errs = append(errs, errors.New("ranking.fingerprint_len must be positive"))
	}
	if _, err := classify.ParseMode(c.Classify.Mode); err != nil {
		errs = append(errs, err)
	}

	if len(c.Sources) == 0 {
		errs = append(errs, errors.New("at least one source is required"))
	}
	for i, s := range c.Sources {
		if err := s.validate(); err != nil {
			errs = append(errs, fmt.Errorf("sources[%d]: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

func (s SourceConfig) validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Label == "" {
		return errors.New("label is required")
	}
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url %q must be an absolute http(s) URL", s.URL)
	}
	if s.Scrape != nil {
		if err := s.Scrape.Validate(); err != nil {
			return fmt.Errorf("scrape: %w", err)
		}
	}
	return nil
}
