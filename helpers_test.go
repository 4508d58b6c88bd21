package newswire

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// fakeFetcher serves canned bodies or errors keyed by URL.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	delays map[string]time.Duration
	panics map[string]bool
	calls  atomic.Int64
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies: map[string]string{},
		errs:   map[string]error{},
		delays: map[string]time.Duration{},
		panics: map[string]bool{},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.calls.Add(1)

	f.mu.Lock()
	body, ok := f.bodies[url]
	err := f.errs[url]
	delay := f.delays[url]
	shouldPanic := f.panics[url]
	f.mu.Unlock()

	if shouldPanic {
		panic("fetcher exploded")
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no such feed: %s", url)
	}
	return body, nil
}

func (f *fakeFetcher) set(url, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[url] = body
	delete(f.errs, url)
}

func (f *fakeFetcher) fail(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[url] = err
}

// testItem describes one <item> for rssDocument.
type testItem struct {
	title       string
	link        string
	description string
	pubDate     string
}

// rssDocument renders a minimal RSS 2.0 document.
func rssDocument(items ...testItem) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>Test</title>`)
	for _, it := range items {
		b.WriteString("<item>")
		fmt.Fprintf(&b, "<title>%s</title>", it.title)
		fmt.Fprintf(&b, "<link>%s</link>", it.link)
		if it.description != "" {
			fmt.Fprintf(&b, "<description><![CDATA[%s]]></description>", it.description)
		}
		if it.pubDate != "" {
			fmt.Fprintf(&b, "<pubDate>%s</pubDate>", it.pubDate)
		}
		b.WriteString("</item>")
	}
	b.WriteString("</channel></rss>")
	return b.String()
}

// relevantItem returns an item that passes the admission filter.
func relevantItem(n int, published time.Time) testItem {
	return testItem{
		title:       fmt.Sprintf("Florida medical marijuana update number %d", n),
		link:        fmt.Sprintf("https://example.com/story/%d", n),
		description: "Regulators in Tallahassee reviewed dispensary licenses.",
		pubDate:     published.UTC().Format(time.RFC1123Z),
	}
}

func testSource(name string) Source {
	return Source{
		Name:  name,
		Label: strings.ToUpper(name),
		URL:   "https://feeds.example.com/" + name,
	}
}
