// Package markup pulls field values out of loosely formed XML/HTML feed
// fragments. It is a lenient, single-pass extractor rather than a parser:
// feeds in the wild are rarely well formed enough for encoding/xml, and all
// that is needed is the text of a handful of named elements.
package markup

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

var (
	tagRe        = regexp.MustCompile(`</?[a-zA-Z!?][^<>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	numericRe    = regexp.MustCompile(`&#([xX][0-9a-fA-F]+|[0-9]+);`)
)

// namedEntities is the fixed table of named references that are decoded.
// Anything else is left as-is.
var namedEntities = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&nbsp;", " ",
)

// openTail matches the rest of an opening tag that carries content: optional
// attributes, but not self-closing.
const openTail = `(?:\s(?:[^>]*[^/>])?)?>`

// fieldPatterns caches the compiled CDATA and plain patterns per field name.
var fieldPatterns sync.Map

type fieldPattern struct {
	cdata *regexp.Regexp
	plain *regexp.Regexp
}

func patternsFor(name string) *fieldPattern {
	key := strings.ToLower(name)
	if p, ok := fieldPatterns.Load(key); ok {
		return p.(*fieldPattern)
	}

	quoted := regexp.QuoteMeta(name)
	p := &fieldPattern{
		cdata: regexp.MustCompile(`(?is)<` + quoted + openTail + `\s*<!\[CDATA\[(.*?)\]\]>\s*</` + quoted + `\s*>`),
		plain: regexp.MustCompile(`(?is)<` + quoted + openTail + `(.*?)</` + quoted + `\s*>`),
	}
	actual, _ := fieldPatterns.LoadOrStore(key, p)
	return actual.(*fieldPattern)
}

// ExtractRawField returns the untouched inner content of the first name
// element in fragment. A CDATA-wrapped element is preferred over a plain one.
// Returns "" when the field is absent.
func ExtractRawField(fragment, name string) string {
	if fragment == "" || name == "" {
		return ""
	}

	p := patternsFor(name)
	if m := p.cdata.FindStringSubmatch(fragment); m != nil {
		return m[1]
	}
	if m := p.plain.FindStringSubmatch(fragment); m != nil {
		return m[1]
	}
	return ""
}

// ExtractField returns the plain-text content of the first name element in
// fragment: nested tags stripped, entities decoded and whitespace collapsed.
// Returns "" when the field is absent.
func ExtractField(fragment, name string) string {
	return CleanText(ExtractRawField(fragment, name))
}

// CleanText strips tags, decodes entities and collapses whitespace.
//
// Escaped markup (e.g. "&lt;p&gt;hello&lt;/p&gt;", common in RSS
// descriptions) is stripped again after decoding. Only tag-shaped sequences
// count as tags, so decoded text such as "a < b > c" survives.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = StripTags(s)
	s = DecodeEntities(s)
	s = StripTags(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// StripTags replaces every tag in s with a space. A tag opens with "<"
// followed by a letter, "/", "!" or "?"; a bare "<" is text.
func StripTags(s string) string {
	return tagRe.ReplaceAllString(s, " ")
}

// DecodeEntities decodes the fixed entity table plus decimal and hexadecimal
// character references. &amp; goes first: feeds routinely double-escape, and
// "&amp;lt;" should come out as "<" rather than a residual "&lt;".
func DecodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = numericRe.ReplaceAllStringFunc(s, decodeNumeric)
	return namedEntities.Replace(s)
}

func decodeNumeric(ref string) string {
	body := ref[2 : len(ref)-1]

	var (
		n   uint64
		err error
	)
	if body[0] == 'x' || body[0] == 'X' {
		n, err = strconv.ParseUint(body[1:], 16, 32)
	} else {
		n, err = strconv.ParseUint(body, 10, 32)
	}
	if err != nil || n == 0 || !utf8.ValidRune(rune(n)) {
		return ref
	}
	return string(rune(n))
}

// Truncate shortens s to at most max runes, the trailing ellipsis included,
// when anything was cut. The cut backs off to the previous space when one is
// close by, so words are not split. max <= 0 disables truncation.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}

	runes := []rune(s)
	cut := string(runes[:max-1])
	if i := strings.LastIndex(cut, " "); i > len(cut)*3/4 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:.-") + "…"
}
