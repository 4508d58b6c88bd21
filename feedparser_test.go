package newswire

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pevans/newswire/scraper"
)

var ingestTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func parseOpts() ParseOptions {
	return ParseOptions{Now: ingestTime}
}

// TestParseFeed_BasicRSSItem verifies conversion of a basic RSS item
func TestParseFeed_BasicRSSItem(t *testing.T) {
	src := Source{Name: "phoenix", Label: "Phoenix", URL: "https://example.com/feed", Color: "#ff0000"}
	doc := `<rss><channel>
		<item>
			<title>Florida House Advances Marijuana Bill</title>
			<link>https://example.com/florida-bill</link>
			<description>Lawmakers in &lt;b&gt;Tallahassee&lt;/b&gt; voted.</description>
			<pubDate>Mon, 15 Jan 2024 10:30:00 +0000</pubDate>
		</item>
	</channel></rss>`

	articles := ParseFeed(doc, src, parseOpts())

	require.Len(t, articles, 1)
	a := articles[0]
	assert.Equal(t, ArticleID("https://example.com/florida-bill"), a.ID)
	assert.Equal(t, "Florida House Advances Marijuana Bill", a.Title)
	assert.Equal(t, "https://example.com/florida-bill", a.Link)
	assert.Equal(t, "Lawmakers in Tallahassee voted.", a.Description)
	assert.True(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC).Equal(a.PublishedAt))
	assert.Equal(t, "Phoenix", a.SourceLabel)
	assert.Equal(t, "phoenix", a.SourceName)
	assert.Equal(t, "#ff0000", a.SourceColor)
	assert.Empty(t, a.Thumbnail)
	assert.Empty(t, a.Category, "categories are assigned by the pipeline")
}

// TestParseFeed_ValidationGate verifies an article is emitted iff it has a
// title and an absolute http(s) link
func TestParseFeed_ValidationGate(t *testing.T) {
	tests := []struct {
		name     string
		block    string
		wantLink string
	}{
		{
			name:     "title and link",
			block:    `<title>A</title><link>http://example.com/a</link>`,
			wantLink: "http://example.com/a",
		},
		{
			name:  "missing title",
			block: `<link>http://example.com/a</link>`,
		},
		{
			name:  "whitespace title",
			block: `<title>   </title><link>http://example.com/a</link>`,
		},
		{
			name:  "missing link",
			block: `<title>A</title>`,
		},
		{
			name:  "relative link",
			block: `<title>A</title><link>/news/a</link>`,
		},
		{
			name:  "non-http scheme",
			block: `<title>A</title><link>ftp://example.com/a</link>`,
		},
		{
			name:     "guid fallback",
			block:    `<title>A</title><link></link><guid isPermaLink="true">https://example.com/guid</guid>`,
			wantLink: "https://example.com/guid",
		},
		{
			name:  "non-url guid",
			block: `<title>A</title><guid isPermaLink="false">tag:example.com,2024:1</guid>`,
		},
		{
			name:     "link href fallback",
			block:    `<title>A</title><link rel="alternate" href="https://example.com/href"/>`,
			wantLink: "https://example.com/href",
		},
		{
			name:     "upper case scheme",
			block:    `<title>A</title><link>HTTPS://example.com/a</link>`,
			wantLink: "HTTPS://example.com/a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			articles := ParseFeed("<item>"+tt.block+"</item>", testSource("s"), parseOpts())

			if tt.wantLink == "" {
				assert.Empty(t, articles)
				return
			}
			require.Len(t, articles, 1)
			assert.Equal(t, tt.wantLink, articles[0].Link)
			assert.NotEmpty(t, articles[0].Title)
		})
	}
}

// TestParseFeed_MalformedItemsDoNotAffectOthers verifies a bad block is
// dropped while its neighbours survive, in document order
func TestParseFeed_MalformedItemsDoNotAffectOthers(t *testing.T) {
	doc := `<item><title>First</title><link>https://example.com/1</link></item>
		<item><title></title><link>https://example.com/2</link></item>
		<ITEM><title>Third</title><link>https://example.com/3</link></ITEM>
		<item><title>Unclosed</title><link>https://example.com/4</link>`

	articles := ParseFeed(doc, testSource("s"), parseOpts())

	require.Len(t, articles, 2)
	assert.Equal(t, "First", articles[0].Title)
	assert.Equal(t, "Third", articles[1].Title)
}

// TestParseFeed_Dates verifies date parsing and the ingestion-time fallback
func TestParseFeed_Dates(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		expected time.Time
	}{
		{
			name:     "rfc1123z",
			field:    `<pubDate>Tue, 02 Jan 2024 15:04:05 -0500</pubDate>`,
			expected: time.Date(2024, 1, 2, 20, 4, 5, 0, time.UTC),
		},
		{
			name:     "single digit day",
			field:    `<pubDate>Tue, 2 Jan 2024 15:04:05 +0000</pubDate>`,
			expected: time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC),
		},
		{
			name:     "gmt",
			field:    `<pubDate>Tue, 02 Jan 2024 15:04:05 GMT</pubDate>`,
			expected: time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC),
		},
		{
			name:     "eastern daylight",
			field:    `<pubDate>Tue, 10 Jun 2025 14:00:00 EDT</pubDate>`,
			expected: time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC),
		},
		{
			name:     "eastern standard",
			field:    `<pubDate>Tue, 14 Jan 2025 09:30:00 EST</pubDate>`,
			expected: time.Date(2025, 1, 14, 14, 30, 0, 0, time.UTC),
		},
		{
			name:     "pacific standard",
			field:    `<pubDate>Tue, 14 Jan 2025 09:30:00 PST</pubDate>`,
			expected: time.Date(2025, 1, 14, 17, 30, 0, 0, time.UTC),
		},
		{
			name:     "dublin core date",
			field:    `<dc:date>2024-03-10T08:00:00Z</dc:date>`,
			expected: time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC),
		},
		{
			name:     "unparsable",
			field:    `<pubDate>sometime last week</pubDate>`,
			expected: ingestTime,
		},
		{
			name:     "missing",
			field:    ``,
			expected: ingestTime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `<item><title>A</title><link>https://example.com/a</link>` + tt.field + `</item>`

			articles := ParseFeed(doc, testSource("s"), parseOpts())

			require.Len(t, articles, 1)
			assert.True(t, tt.expected.Equal(articles[0].PublishedAt),
				"expected %v, got %v", tt.expected, articles[0].PublishedAt)
		})
	}
}

// TestParseFeed_ThumbnailPriority verifies thumbnail resolution order and
// that non-URL values are discarded
func TestParseFeed_ThumbnailPriority(t *testing.T) {
	tests := []struct {
		name     string
		fields   string
		expected string
	}{
		{
			name: "media content wins",
			fields: `<media:thumbnail url="https://img.example.com/thumb.jpg"/>
				<media:content url="https://img.example.com/content.jpg" medium="image"/>
				<enclosure url="https://img.example.com/enc.jpg" type="image/jpeg"/>`,
			expected: "https://img.example.com/content.jpg",
		},
		{
			name: "media thumbnail second",
			fields: `<enclosure url="https://img.example.com/enc.jpg" type="image/jpeg"/>
				<media:thumbnail url="https://img.example.com/thumb.jpg"/>`,
			expected: "https://img.example.com/thumb.jpg",
		},
		{
			name: "image enclosure only",
			fields: `<enclosure url="https://cdn.example.com/episode.mp3" type="audio/mpeg"/>
				<enclosure url="https://img.example.com/enc.png" type="IMAGE/PNG"/>`,
			expected: "https://img.example.com/enc.png",
		},
		{
			name:     "img in cdata description",
			fields:   `<description><![CDATA[<p><img alt="x" src="https://img.example.com/body.jpg"> text</p>]]></description>`,
			expected: "https://img.example.com/body.jpg",
		},
		{
			name:     "img in escaped description",
			fields:   `<description>&lt;img src=&quot;https://img.example.com/escaped.jpg&quot;&gt; text</description>`,
			expected: "https://img.example.com/escaped.jpg",
		},
		{
			name:     "relative url discarded",
			fields:   `<media:content url="/images/a.jpg"/>`,
			expected: "",
		},
		{
			name: "relative media content falls through",
			fields: `<media:content url="/images/a.jpg"/>
				<media:thumbnail url="https://img.example.com/thumb.jpg"/>`,
			expected: "https://img.example.com/thumb.jpg",
		},
		{
			name:     "none",
			fields:   `<description>No pictures here</description>`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `<item><title>A</title><link>https://example.com/a</link>` + tt.fields + `</item>`

			articles := ParseFeed(doc, testSource("s"), parseOpts())

			require.Len(t, articles, 1)
			assert.Equal(t, tt.expected, articles[0].Thumbnail)
		})
	}
}

// TestParseFeed_DescriptionTruncated verifies descriptions are cleaned and
// cut to the configured length
func TestParseFeed_DescriptionTruncated(t *testing.T) {
	long := strings.Repeat("cannabis news ", 60)
	doc := `<item><title>A</title><link>https://example.com/a</link><description><![CDATA[<p>` + long + `</p>]]></description></item>`

	articles := ParseFeed(doc, testSource("s"), parseOpts())

	require.Len(t, articles, 1)
	desc := articles[0].Description
	assert.True(t, strings.HasSuffix(desc, "…"))
	assert.LessOrEqual(t, len([]rune(desc)), DefaultDescriptionMax)
	assert.NotContains(t, desc, "<p>")

	articles = ParseFeed(doc, testSource("s"), ParseOptions{Now: ingestTime, DescriptionMax: 20})
	require.Len(t, articles, 1)
	assert.LessOrEqual(t, len([]rune(articles[0].Description)), 20)
}

// TestParseFeed_ContentEncodedFallback verifies content:encoded is used
// when there is no description
func TestParseFeed_ContentEncodedFallback(t *testing.T) {
	doc := `<item><title>A</title><link>https://example.com/a</link>
		<content:encoded><![CDATA[<p>Full body <img src="https://img.example.com/c.jpg"></p>]]></content:encoded></item>`

	articles := ParseFeed(doc, testSource("s"), parseOpts())

	require.Len(t, articles, 1)
	assert.Equal(t, "Full body", articles[0].Description)
	assert.Equal(t, "https://img.example.com/c.jpg", articles[0].Thumbnail)
}

// TestParseFeed_EntitiesInTitle verifies titles are entity-decoded
func TestParseFeed_EntitiesInTitle(t *testing.T) {
	doc := `<item><title>Trulieve &amp; Curaleaf&#8217;s &quot;big&quot; week</title><link>https://example.com/a?x=1&amp;y=2</link></item>`

	articles := ParseFeed(doc, testSource("s"), parseOpts())

	require.Len(t, articles, 1)
	assert.Equal(t, `Trulieve & Curaleaf’s "big" week`, articles[0].Title)
	assert.Equal(t, "https://example.com/a?x=1&y=2", articles[0].Link)
}

// TestParseFeed_AtomFallback verifies documents without <item> blocks are
// parsed with gofeed
func TestParseFeed_AtomFallback(t *testing.T) {
	doc := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
	<title>Atom Test</title>
	<entry>
		<title>Hemp rules change in Florida</title>
		<link href="https://example.com/atom/1"/>
		<id>urn:uuid:1</id>
		<updated>2024-02-01T09:00:00Z</updated>
		<summary type="html">&lt;p&gt;The &lt;img src="https://img.example.com/atom.jpg"&gt; FDACS update&lt;/p&gt;</summary>
	</entry>
	<entry>
		<title></title>
		<link href="https://example.com/atom/2"/>
		<id>urn:uuid:2</id>
	</entry>
</feed>`

	articles := ParseFeed(doc, testSource("atom"), parseOpts())

	require.Len(t, articles, 1)
	a := articles[0]
	assert.Equal(t, "Hemp rules change in Florida", a.Title)
	assert.Equal(t, "https://example.com/atom/1", a.Link)
	assert.Equal(t, "The FDACS update", a.Description)
	assert.Equal(t, "https://img.example.com/atom.jpg", a.Thumbnail)
	assert.True(t, time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC).Equal(a.PublishedAt))
}

// TestParseFeed_Garbage verifies unreadable documents yield no articles
func TestParseFeed_Garbage(t *testing.T) {
	assert.Empty(t, ParseFeed("", testSource("s"), parseOpts()))
	assert.Empty(t, ParseFeed("<html><body>Not a feed</body></html>", testSource("s"), parseOpts()))
	assert.Empty(t, ParseFeed("{\"json\": true}", testSource("s"), parseOpts()))
}

// TestArticleID_Stable verifies IDs depend only on the link
func TestArticleID_Stable(t *testing.T) {
	assert.Equal(t, ArticleID("https://example.com/a"), ArticleID("https://example.com/a"))
	assert.NotEqual(t, ArticleID("https://example.com/a"), ArticleID("https://example.com/b"))
}

// TestParseListing verifies listing-page sources go through the same
// validation gate and defaults as feeds
func TestParseListing(t *testing.T) {
	src := Source{
		Name:  "listing",
		Label: "LIST",
		URL:   "https://example.com/news/",
		Scrape: &scraper.Config{
			ItemSelector:    "article",
			TitleSelector:   "h2 a",
			SummarySelector: "p",
		},
	}
	html := `<main>
		<article><h2><a href="/2024/florida-hemp">Florida hemp &amp; CBD rules</a></h2>
			<p>FDACS issued <b>new</b> rules.</p><img src="/img/hemp.jpg"></article>
		<article><h2><a href="/2024/no-title"></a></h2></article>
	</main>`

	articles, err := ParseListing(html, src, parseOpts())

	require.NoError(t, err)
	require.Len(t, articles, 1)
	a := articles[0]
	assert.Equal(t, "Florida hemp & CBD rules", a.Title)
	assert.Equal(t, "https://example.com/2024/florida-hemp", a.Link)
	assert.Equal(t, "FDACS issued new rules.", a.Description)
	assert.Equal(t, "https://example.com/img/hemp.jpg", a.Thumbnail)
	assert.Equal(t, ingestTime, a.PublishedAt)
	assert.Equal(t, "LIST", a.SourceLabel)

	_, err = ParseListing(html, Source{Name: "feed"}, parseOpts())
	assert.Error(t, err)
}
