package newswire

import (
	"sort"
	"strings"
	"time"
	"unicode"
)

const (
	// DefaultMaxArticles bounds the size of a Payload.
	DefaultMaxArticles = 120
	// DefaultFingerprintLen is how many leading title characters identify a
	// story for deduplication.
	DefaultFingerprintLen = 65
)

// RankOptions controls Finalize.
type RankOptions struct {
	MaxArticles    int
	FingerprintLen int
}

func (o RankOptions) withDefaults() RankOptions {
	if o.MaxArticles <= 0 {
		o.MaxArticles = DefaultMaxArticles
	}
	if o.FingerprintLen <= 0 {
		o.FingerprintLen = DefaultFingerprintLen
	}
	return o
}

// Fingerprint returns the dedup key for a title: the first n characters,
// lower-cased, with everything but letters and digits removed. Syndicated
// copies of a story usually share a headline but differ in trailing
// punctuation, suffixes or case.
func Fingerprint(title string, n int) string {
	runes := []rune(strings.ToLower(title))
	if n > 0 && len(runes) > n {
		runes = runes[:n]
	}

	var b strings.Builder
	for _, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Dedupe keeps the first article seen for each fingerprint, preserving
// input order. Articles whose title has no letters or digits are keyed by
// link instead, so they are never collapsed into each other.
func Dedupe(articles []Article, fingerprintLen int) []Article {
	seen := make(map[string]struct{}, len(articles))
	out := make([]Article, 0, len(articles))
	for _, a := range articles {
		key := Fingerprint(a.Title, fingerprintLen)
		if key == "" {
			key = "link:" + a.Link
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}

// Finalize deduplicates, orders newest first and truncates the merged
// articles into a Payload stamped with now. Articles with equal timestamps
// keep their relative order.
func Finalize(articles []Article, opts RankOptions, now time.Time) Payload {
	opts = opts.withDefaults()

	unique := Dedupe(articles, opts.FingerprintLen)
	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].PublishedAt.After(unique[j].PublishedAt)
	})
	if len(unique) > opts.MaxArticles {
		unique = unique[:opts.MaxArticles]
	}

	return Payload{
		OK:        true,
		Count:     len(unique),
		FetchedAt: now,
		Articles:  unique,
	}
}
