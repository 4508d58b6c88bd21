package markup

import (
	"regexp"
	"strings"
	"sync"
)

var (
	tagPatterns  sync.Map
	attrPatterns sync.Map
)

func openTagPattern(name string) *regexp.Regexp {
	key := strings.ToLower(name)
	if re, ok := tagPatterns.Load(key); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(`(?is)<` + regexp.QuoteMeta(name) + `(?:\s[^>]*)?/?>`)
	actual, _ := tagPatterns.LoadOrStore(key, re)
	return actual.(*regexp.Regexp)
}

func attrPattern(name string) *regexp.Regexp {
	key := strings.ToLower(name)
	if re, ok := attrPatterns.Load(key); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(`(?is)\s` + regexp.QuoteMeta(name) + `\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'>]+))`)
	actual, _ := attrPatterns.LoadOrStore(key, re)
	return actual.(*regexp.Regexp)
}

// OpenTags returns every opening (or self-closing) name tag in fragment, in
// document order.
func OpenTags(fragment, name string) []string {
	if fragment == "" || name == "" {
		return nil
	}
	return openTagPattern(name).FindAllString(fragment, -1)
}

// Attr returns the entity-decoded value of attr on a single tag such as
// `<enclosure url="..." type="image/jpeg"/>`, or "" if it is not set.
func Attr(tag, attr string) string {
	m := attrPattern(attr).FindStringSubmatch(tag)
	if m == nil {
		return ""
	}
	for _, v := range m[1:] {
		if v != "" {
			return strings.TrimSpace(DecodeEntities(v))
		}
	}
	return ""
}

// FirstAttr returns attr from the first name tag in fragment that sets it.
func FirstAttr(fragment, name, attr string) string {
	for _, tag := range OpenTags(fragment, name) {
		if v := Attr(tag, attr); v != "" {
			return v
		}
	}
	return ""
}
