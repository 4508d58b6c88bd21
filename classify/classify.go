// Package classify decides whether an article is on topic and which topic
// label it carries. Both decisions are plain keyword matches over the title
// and description; there is no state between calls.
package classify

import (
	"fmt"
	"regexp"
	"strings"
)

// Mode selects which policies a Policy applies.
type Mode string

const (
	// ModeFilter drops articles that fail Admit.
	ModeFilter Mode = "filter"
	// ModeCategorize labels every article without dropping any.
	ModeCategorize Mode = "categorize"
	// ModeBoth drops articles that fail Admit and labels the rest.
	ModeBoth Mode = "both"
)

// ParseMode validates a mode string. An empty string selects ModeBoth.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeBoth:
		return ModeBoth, nil
	case ModeFilter:
		return ModeFilter, nil
	case ModeCategorize:
		return ModeCategorize, nil
	}
	return "", fmt.Errorf("invalid classify mode %q: must be filter, categorize, or both", s)
}

// Policy applies a Mode to title/description pairs.
type Policy struct {
	Mode Mode
}

// Apply reports whether the article is kept and, when the mode categorizes,
// the label to attach. The label is "" for ModeFilter.
func (p Policy) Apply(title, description string) (bool, string) {
	switch p.Mode {
	case ModeFilter:
		return Admit(title, description), ""
	case ModeCategorize:
		return true, Categorize(title, description)
	default:
		if !Admit(title, description) {
			return false, ""
		}
		return true, Categorize(title, description)
	}
}

// Admit reports whether the text mentions both the region and the topic.
func Admit(title, description string) bool {
	text := strings.ToLower(title + " " + description)
	return containsAny(text, regionKeywords) && containsAny(text, topicKeywords)
}

// Categorize returns the first category with any keyword as a substring of
// the text, or DefaultCategory. Unlike Admit there are no word boundaries,
// so "bill" matches "bills".
func Categorize(title, description string) string {
	text := strings.ToLower(title + " " + description)
	for _, c := range categories {
		if containsSubstring(text, c.Keywords) {
			return c.Name
		}
	}
	return DefaultCategory
}

// Categories returns the category names in match order.
func Categories() []string {
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	return names
}

// wordPatterns holds word-boundary patterns for the short keywords, so "thc"
// does not match inside another word and "muv" does not match "muvment".
var wordPatterns = compileShortKeywords(regionKeywords, topicKeywords)

func compileShortKeywords(lists ...[]string) map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp)
	for _, list := range lists {
		for _, k := range list {
			if isShort(k) {
				patterns[k] = regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`)
			}
		}
	}
	return patterns
}

func isShort(k string) bool {
	return len(k) <= 4 && !strings.ContainsAny(k, " .-")
}

// containsAny expects text already lower-cased. Phrases and long tokens are
// substring matches; short tokens must match a whole word.
func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if re, ok := wordPatterns[k]; ok {
			if re.MatchString(text) {
				return true
			}
			continue
		}
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func containsSubstring(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
