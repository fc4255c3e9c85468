package search

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrEmptyQuery is returned when the input holds no searchable words.
var ErrEmptyQuery = errors.New("search query has no searchable terms")

// Term is one word of a query. Prefix terms were written with a trailing "*".
type Term struct {
	Text   string
	Prefix bool
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// fold normalizes a word the way the index tokenizer does: each rune is
// lowercased on its own and combining marks are dropped. Multi-rune folds
// such as "ß" to "ss" are not applied.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Map(unicode.ToLower, stripped)
}

// ParseTerms splits input into words the way the index tokenizer does.
// Punctuation separates words and is dropped. Duplicate terms are removed.
func ParseTerms(input string) []Term {
	var terms []Term
	seen := make(map[Term]bool)

	var word strings.Builder
	flush := func(prefix bool) {
		if word.Len() == 0 {
			return
		}
		t := Term{Text: fold(word.String()), Prefix: prefix}
		word.Reset()
		if !seen[t] {
			seen[t] = true
			terms = append(terms, t)
		}
	}

	for _, r := range input {
		switch {
		case isWordRune(r):
			word.WriteRune(r)
		case r == '*':
			flush(true)
		default:
			flush(false)
		}
	}
	flush(false)

	return terms
}

// BuildQuery turns user input into an FTS5 MATCH expression in which every
// term must appear. Each term is quoted, so FTS5 operators in the input are
// matched literally.
func BuildQuery(input string) (string, []Term, error) {
	terms := ParseTerms(input)
	if len(terms) == 0 {
		return "", nil, ErrEmptyQuery
	}

	parts := make([]string, len(terms))
	for i, t := range terms {
		q := `"` + strings.ReplaceAll(t.Text, `"`, `""`) + `"`
		if t.Prefix {
			q += "*"
		}
		parts[i] = q
	}
	return strings.Join(parts, " AND "), terms, nil
}
