package catalog

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// keywordFilter holds the fixed tokenizer configuration. It is never mutated
// after initialization.
type keywordFilter struct {
	stopWords map[string]struct{}
	minRunes  int
}

var defaultKeywordFilter = keywordFilter{
	stopWords: map[string]struct{}{
		"and": {}, "or": {}, "the": {}, "a": {}, "for": {}, "in": {},
		"to": {}, "of": {}, "with": {}, "on": {}, "is": {}, "it": {}, "": {},
	},
	minRunes: 3,
}

// ExtractKeywords lowercases text, strips punctuation other than apostrophes
// and hyphens, splits on whitespace and drops stop words and tokens of two
// runes or fewer. Order and duplicates are preserved.
func ExtractKeywords(text string) []string {
	return defaultKeywordFilter.extract(text)
}

func (f keywordFilter) extract(text string) []string {
	if text == "" {
		return nil
	}
	cleaned := strings.Map(keepKeywordRune, strings.ToLower(text))

	var out []string
	for _, tok := range strings.Fields(cleaned) {
		if _, stop := f.stopWords[tok]; stop {
			continue
		}
		if utf8.RuneCountInString(tok) < f.minRunes {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// keepKeywordRune keeps word characters, whitespace, apostrophes and hyphens.
func keepKeywordRune(r rune) rune {
	switch {
	case r == '\'' || r == '-' || r == '_':
		return r
	case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r), unicode.Is(unicode.Pc, r):
		return r
	case unicode.IsSpace(r):
		return r
	}
	return -1
}

// keywordSet builds a membership set from a keyword sequence.
func keywordSet(keywords []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		set[k] = struct{}{}
	}
	return set
}
