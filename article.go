package newswire

import (
	"time"

	"github.com/google/uuid"

	"github.com/pevans/newswire/scraper"
)

// Source is a configured syndication feed. Sources are fixed for the
// lifetime of the process.
type Source struct {
	// Internal identifier, used in logs
	Name string
	// Short human-readable label surfaced on each article
	Label string
	// Feed location
	URL string
	// Optional display color for front ends
	Color string
	// When set, URL is an HTML listing page scraped with these selectors
	// instead of a feed
	Scrape *scraper.Config
}

// Article is a single news story extracted from a feed item.
type Article struct {
	// Deterministic identifier derived from Link
	ID uuid.UUID `json:"id"`
	// Plain-text headline, never empty
	Title string `json:"title"`
	// Absolute http(s) URL of the story
	Link string `json:"link"`
	// Plain-text summary, possibly truncated
	Description string `json:"description"`
	// Absolute image URL, or empty
	Thumbnail string `json:"thumbnail"`
	// Publication time, or ingestion time when the feed's date was unusable
	PublishedAt time.Time `json:"publishedAt"`
	// Label of the Source the article came from
	SourceLabel string `json:"source"`
	// Name of the Source the article came from
	SourceName string `json:"sourceName,omitempty"`
	// Color of the Source the article came from
	SourceColor string `json:"sourceColor,omitempty"`
	// Topic label assigned by the classifier
	Category string `json:"category,omitempty"`
}

// Payload is the merged, ranked result served to clients.
type Payload struct {
	OK        bool      `json:"ok"`
	Count     int       `json:"count"`
	FetchedAt time.Time `json:"fetchedAt"`
	Articles  []Article `json:"articles"`
}

// IsEmpty reports whether the payload carries no articles. An empty payload
// never replaces a cached non-empty one.
func (p Payload) IsEmpty() bool {
	return len(p.Articles) == 0
}

// ArticleID returns the stable identifier for a story link. The same link
// always yields the same ID, so clients can track stories across rebuilds.
func ArticleID(link string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(link))
}
