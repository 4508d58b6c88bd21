package newswire

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/pevans/newswire/markup"
	"github.com/pevans/newswire/scraper"
)

// DefaultDescriptionMax is the description length, in characters, used when
// ParseOptions leaves it unset.
const DefaultDescriptionMax = 280

var itemRe = regexp.MustCompile(`(?is)<item(?:\s[^>]*)?>(.*?)</item\s*>`)

// dateLayouts are tried in order against pubDate / dc:date values.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04 -0700",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// zoneOffsets maps North American zone abbreviations to their UTC offsets
// in seconds. time.Parse only knows the abbreviations of the local zone and
// reads any other as UTC.
var zoneOffsets = map[string]int{
	"EST":  -5 * 3600,
	"EDT":  -4 * 3600,
	"CST":  -6 * 3600,
	"CDT":  -5 * 3600,
	"MST":  -7 * 3600,
	"MDT":  -6 * 3600,
	"PST":  -8 * 3600,
	"PDT":  -7 * 3600,
	"AKST": -9 * 3600,
	"AKDT": -8 * 3600,
	"HST":  -10 * 3600,
}

// ParseOptions controls item parsing.
type ParseOptions struct {
	// Maximum description length in characters; <= 0 selects
	// DefaultDescriptionMax
	DescriptionMax int
	// Ingestion time, used when an item's date is missing or unparsable.
	// Zero means time.Now().
	Now time.Time
}

func (o ParseOptions) withDefaults() ParseOptions {
	if o.DescriptionMax <= 0 {
		o.DescriptionMax = DefaultDescriptionMax
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	return o
}

// ParseFeed extracts articles from a raw feed document. Item blocks are
// located with a lenient scan rather than a full XML parse, so malformed
// feeds still yield whatever items are readable. Blocks without a title or
// an absolute link are dropped. When no item blocks are found (Atom, for
// example) the document is handed to gofeed instead.
//
// ParseFeed never fails; an unreadable document yields no articles.
func ParseFeed(document string, src Source, opts ParseOptions) []Article {
	opts = opts.withDefaults()

	blocks := itemRe.FindAllStringSubmatch(document, -1)
	if len(blocks) == 0 {
		return parseWithGofeed(document, src, opts)
	}

	articles := make([]Article, 0, len(blocks))
	for _, m := range blocks {
		if article, ok := parseItem(m[1], src, opts); ok {
			articles = append(articles, article)
		}
	}
	return articles
}

// parseItem converts the inner content of one <item> block.
func parseItem(block string, src Source, opts ParseOptions) (Article, bool) {
	// Link: <link>text</link>, else <guid>, else <link href="..."/>
	link := markup.ExtractField(block, "link")
	if link == "" {
		link = markup.ExtractField(block, "guid")
	}
	if link == "" {
		link = markup.FirstAttr(block, "link", "href")
	}

	// Published: <pubDate>, else Dublin Core <dc:date>
	dateText := markup.ExtractField(block, "pubDate")
	if dateText == "" {
		dateText = markup.ExtractField(block, "dc:date")
	}

	rawDescription := markup.ExtractRawField(block, "description")
	rawContent := markup.ExtractRawField(block, "content:encoded")

	description := markup.CleanText(rawDescription)
	if description == "" {
		description = markup.CleanText(rawContent)
	}

	thumbnail := firstURL(
		markup.FirstAttr(block, "media:content", "url"),
		markup.FirstAttr(block, "media:thumbnail", "url"),
		imageEnclosure(block),
		firstImage(rawDescription),
		firstImage(rawContent),
	)

	return newArticle(src, articleFields{
		title:       markup.ExtractField(block, "title"),
		link:        link,
		description: description,
		thumbnail:   thumbnail,
		publishedAt: parseDate(dateText, opts.Now),
	}, opts)
}

// parseWithGofeed handles documents the item scanner cannot, such as Atom.
func parseWithGofeed(document string, src Source, opts ParseOptions) []Article {
	if strings.TrimSpace(document) == "" {
		return nil
	}

	feed, err := gofeed.NewParser().ParseString(document)
	if err != nil {
		return nil
	}

	articles := make([]Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if article, ok := feedItemToArticle(item, src, opts); ok {
			articles = append(articles, article)
		}
	}
	return articles
}

// feedItemToArticle maps a gofeed item through the same rules as parseItem.
func feedItemToArticle(item *gofeed.Item, src Source, opts ParseOptions) (Article, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		link = strings.TrimSpace(item.GUID)
	}
	if link == "" && len(item.Links) > 0 {
		link = strings.TrimSpace(item.Links[0])
	}

	// gofeed normalizes <published>/<updated> and <pubDate> into *Parsed
	publishedAt := opts.Now
	if item.PublishedParsed != nil {
		publishedAt = withZoneOffset(*item.PublishedParsed)
	} else if item.UpdatedParsed != nil {
		publishedAt = withZoneOffset(*item.UpdatedParsed)
	}

	description := markup.CleanText(item.Description)
	if description == "" {
		description = markup.CleanText(item.Content)
	}

	var image string
	if item.Image != nil {
		image = item.Image.URL
	}
	var enclosure string
	for _, enc := range item.Enclosures {
		if isImageType(enc.Type) {
			enclosure = enc.URL
			break
		}
	}

	thumbnail := firstURL(
		mediaAttr(item.Extensions, "content", "url"),
		mediaAttr(item.Extensions, "thumbnail", "url"),
		enclosure,
		image,
		firstImage(item.Description),
		firstImage(item.Content),
	)

	return newArticle(src, articleFields{
		title:       markup.CleanText(item.Title),
		link:        link,
		description: description,
		thumbnail:   thumbnail,
		publishedAt: publishedAt,
	}, opts)
}

// ParseListing extracts articles from an HTML listing page using the
// source's scrape selectors. Entries pass through the same validation gate
// as feed items; an entry without a usable date gets the ingestion time.
func ParseListing(html string, src Source, opts ParseOptions) ([]Article, error) {
	if src.Scrape == nil {
		return nil, fmt.Errorf("source %s has no scrape config", src.Name)
	}
	opts = opts.withDefaults()

	entries, err := scraper.Extract(html, src.URL, *src.Scrape, opts.Now)
	if err != nil {
		return nil, fmt.Errorf("failed to scrape listing: %w", err)
	}

	articles := make([]Article, 0, len(entries))
	for _, e := range entries {
		publishedAt := opts.Now
		if e.PublishedAt != nil {
			publishedAt = *e.PublishedAt
		}
		article, ok := newArticle(src, articleFields{
			title:       markup.CleanText(e.Title),
			link:        e.Link,
			description: markup.CleanText(e.Summary),
			thumbnail:   firstURL(e.Image),
			publishedAt: publishedAt,
		}, opts)
		if ok {
			articles = append(articles, article)
		}
	}
	return articles, nil
}

type articleFields struct {
	title       string
	link        string
	description string
	thumbnail   string
	publishedAt time.Time
}

// newArticle applies the validation gate and builds the Article.
func newArticle(src Source, f articleFields, opts ParseOptions) (Article, bool) {
	if f.title == "" || !hasURLScheme(f.link) {
		return Article{}, false
	}

	return Article{
		ID:          ArticleID(f.link),
		Title:       f.title,
		Link:        f.link,
		Description: markup.Truncate(f.description, opts.DescriptionMax),
		Thumbnail:   f.thumbnail,
		PublishedAt: f.publishedAt,
		SourceLabel: src.Label,
		SourceName:  src.Name,
		SourceColor: src.Color,
	}, true
}

// parseDate tries each known layout, falling back to fallback.
func parseDate(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return withZoneOffset(t)
		}
	}
	return fallback
}

// withZoneOffset re-reads the wall clock of t in the fixed zone named by its
// abbreviation, when that abbreviation is in zoneOffsets.
func withZoneOffset(t time.Time) time.Time {
	name, _ := t.Zone()
	offset, ok := zoneOffsets[name]
	if !ok {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
		time.FixedZone(name, offset))
}

// imageEnclosure returns the url of the first enclosure typed image/*.
func imageEnclosure(block string) string {
	for _, tag := range markup.OpenTags(block, "enclosure") {
		if isImageType(markup.Attr(tag, "type")) {
			if u := markup.Attr(tag, "url"); u != "" {
				return u
			}
		}
	}
	return ""
}

func isImageType(t string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(t)), "image/")
}

// mediaAttr reads an attribute from a Media RSS extension element.
func mediaAttr(extensions ext.Extensions, element, attr string) string {
	for _, e := range extensions["media"][element] {
		if v := strings.TrimSpace(e.Attrs[attr]); v != "" {
			return v
		}
	}
	return ""
}

// firstImage returns the src of the first <img> in an HTML fragment. Feeds
// often entity-escape the markup in descriptions, so a fragment without any
// literal tags is decoded first.
func firstImage(fragment string) string {
	if fragment == "" {
		return ""
	}
	if !strings.Contains(fragment, "<") {
		fragment = markup.DecodeEntities(fragment)
	}
	if !strings.Contains(strings.ToLower(fragment), "<img") {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}

// firstURL returns the first candidate that is an absolute http(s) URL.
func firstURL(candidates ...string) string {
	for _, c := range candidates {
		if hasURLScheme(c) {
			return c
		}
	}
	return ""
}

func hasURLScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
