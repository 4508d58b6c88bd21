// Package scraper extracts article entries from HTML listing pages using CSS
// selectors.
package scraper

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// minDate is the earliest publication date accepted from a page.
var minDate = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

// Entry holds the data extracted for one listing item before it becomes an
// Article.
type Entry struct {
	Title       string
	Link        string
	Summary     string
	Image       string
	PublishedAt *time.Time
}

// Extract finds every item in a listing page and extracts its fields.
// Relative links and image sources are resolved against pageURL. Items
// failing ValidateEntry are skipped.
func Extract(html, pageURL string, config Config, now time.Time) ([]Entry, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	maxItems := config.MaxItems
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}

	var entries []Entry
	doc.Find(config.ItemSelector).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		entry := extractEntry(item, base, config)
		if ValidateEntry(entry, now) == nil {
			entries = append(entries, entry)
		}
		return len(entries) < maxItems
	})
	return entries, nil
}

// extractEntry extracts one item's fields using the configured selectors.
func extractEntry(item *goquery.Selection, base *url.URL, config Config) Entry {
	var entry Entry

	// Title: normalize whitespace
	entry.Title = normalize(item.Find(config.TitleSelector).First().Text())

	// Link: explicit selector, else the title's own anchor, else the first
	// anchor in the item
	linkSel := item.Find("a[href]").First()
	if config.LinkSelector != "" {
		linkSel = item.Find(config.LinkSelector).First()
	} else if title := item.Find(config.TitleSelector).First(); title.Is("a[href]") {
		linkSel = title
	} else if inner := title.Find("a[href]").First(); inner.Length() > 0 {
		linkSel = inner
	}
	if href, ok := linkSel.Attr("href"); ok {
		entry.Link = resolve(base, href)
	}

	// Summary (optional)
	if config.SummarySelector != "" {
		entry.Summary = normalize(item.Find(config.SummarySelector).First().Text())
	}

	// Image: explicit selector, else first img; src, then lazy-load data-src
	imgSel := item.Find("img").First()
	if config.ImageSelector != "" {
		imgSel = item.Find(config.ImageSelector).First()
	}
	for _, attr := range []string{"src", "data-src"} {
		if src, ok := imgSel.Attr(attr); ok && strings.TrimSpace(src) != "" {
			entry.Image = resolve(base, src)
			break
		}
	}

	// Published date (optional): a datetime attribute wins over text
	if config.DateSelector != "" && config.DateFormat != "" {
		dateSel := item.Find(config.DateSelector).First()
		dateText, ok := dateSel.Attr("datetime")
		if !ok {
			dateText = dateSel.Text()
		}
		if t, ok := parseDate(strings.TrimSpace(dateText), config.DateFormat); ok {
			entry.PublishedAt = &t
		}
	}

	return entry
}

// parseDate tries the configured format, then RFC 3339 for datetime
// attributes.
func parseDate(s, format string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{format, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ValidateEntry validates an extracted entry. A missing date is allowed; an
// implausible one is not.
func ValidateEntry(entry Entry, now time.Time) error {
	if entry.Title == "" {
		return fmt.Errorf("title is empty")
	}
	if len(entry.Title) > 500 {
		return fmt.Errorf("title too long (%d characters, max 500)", len(entry.Title))
	}

	u, err := url.Parse(entry.Link)
	if err != nil {
		return fmt.Errorf("invalid article URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("article URL must use http or https scheme")
	}

	if entry.PublishedAt != nil {
		if entry.PublishedAt.Before(minDate) {
			return fmt.Errorf("published date (%s) is before minimum date (1990-01-01)",
				entry.PublishedAt.Format("2006-01-02"))
		}
		// A day of slack for pages that stamp dates in a later timezone
		if entry.PublishedAt.After(now.Add(24 * time.Hour)) {
			return fmt.Errorf("published date (%s) is in the future",
				entry.PublishedAt.Format("2006-01-02"))
		}
	}
	return nil
}

// resolve makes ref absolute against base. Unparsable references are
// returned unchanged and later rejected by validation.
func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// normalize collapses runs of whitespace into single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
