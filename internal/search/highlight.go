package search

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// Open and Close delimit highlighted text.
const (
	Open  = "<mark>"
	Close = "</mark>"
)

// Span is a half-open byte range [Start, End) of a source text.
type Span struct {
	Start int
	End   int
}

// FindSpans returns the byte ranges of words in text that match any term,
// merged so that no two spans overlap or touch.
func FindSpans(text string, terms []Term) []Span {
	if len(terms) == 0 {
		return nil
	}

	var spans []Span
	start := -1
	for i, r := range text {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if matchesAny(text[start:i], terms) {
				spans = append(spans, Span{Start: start, End: i})
			}
			start = -1
		}
	}
	if start >= 0 && matchesAny(text[start:], terms) {
		spans = append(spans, Span{Start: start, End: len(text)})
	}

	return MergeSpans(spans)
}

func matchesAny(word string, terms []Term) bool {
	w := fold(word)
	for _, t := range terms {
		if w == t.Text || (t.Prefix && strings.HasPrefix(w, t.Text)) {
			return true
		}
	}
	return false
}

// MergeSpans sorts spans and joins any that overlap or are adjacent.
func MergeSpans(spans []Span) []Span {
	if len(spans) == 0 {
		return nil
	}

	sorted := slices.Clone(spans)
	slices.SortFunc(sorted, func(a, b Span) int {
		if a.Start != b.Start {
			return a.Start - b.Start
		}
		return a.End - b.End
	})

	merged := []Span{sorted[0]}
	for _, s := range sorted[1:] {
		last := &merged[len(merged)-1]
		if s.Start <= last.End {
			last.End = max(last.End, s.End)
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// Mark wraps each span of text in Open/Close. Spans must be merged.
func Mark(text string, spans []Span) string {
	var b strings.Builder
	b.Grow(len(text) + len(spans)*(len(Open)+len(Close)))

	pos := 0
	for _, s := range spans {
		b.WriteString(text[pos:s.Start])
		b.WriteString(Open)
		b.WriteString(text[s.Start:s.End])
		b.WriteString(Close)
		pos = s.End
	}
	b.WriteString(text[pos:])
	return b.String()
}

// Highlight marks every word of text that matches a term.
func Highlight(text string, terms []Term) string {
	return Mark(text, FindSpans(text, terms))
}

// Snippet returns up to about radius bytes either side of the first match,
// highlighted, with whitespace flattened and "…" where text was cut. Without
// a match it returns the start of text.
func Snippet(text string, terms []Term, radius int) string {
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		return r
	}, text)

	spans := FindSpans(text, terms)

	lo, hi := 0, min(len(text), 2*radius)
	if len(spans) > 0 {
		lo = max(0, spans[0].Start-radius)
		hi = min(len(text), spans[0].End+radius)
	}
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}

	var window []Span
	for _, s := range spans {
		if s.Start >= hi {
			break
		}
		if s.End > hi {
			hi = s.End
		}
		window = append(window, Span{Start: s.Start - lo, End: s.End - lo})
	}

	out := Mark(text[lo:hi], window)
	if lo > 0 {
		out = "…" + out
	}
	if hi < len(text) {
		out += "…"
	}
	return out
}
