// Package analyzer provides text analysis for the search engine: it
// lower-cases input, splits on non-alphanumeric boundaries, removes Spanish
// stop-words, and optionally applies a suffix-based stemmer or character
// n-grams. All analyzers are pure functions of their input.
package analyzer

import (
	"strings"
	"unicode"
)

// Name identifies a configured analyzer.
type Name string

const (
	Standard Name = "standard"
	Simple   Name = "simple"
	Spanish  Name = "spanish"
	NGram    Name = "ngram"
)

// Default is the analyzer used when an index does not name one.
const Default = Standard

const ngramSize = 3

// Valid reports whether n names a known analyzer.
func Valid(n Name) bool {
	switch n {
	case Standard, Simple, Spanish, NGram:
		return true
	}
	return false
}

// Analyze breaks text into normalised tokens using the named analyzer.
// Unknown names fall back to the standard analyzer. Empty input yields an
// empty token sequence; Analyze never fails.
func Analyze(text string, name Name) []string {
	if text == "" {
		return nil
	}
	switch name {
	case Simple:
		return split(text)
	case Spanish:
		tokens := dropStopWords(split(text))
		for i, tok := range tokens {
			tokens[i] = stem(tok)
		}
		return tokens
	case NGram:
		return ngrams(split(text), ngramSize)
	default:
		return dropStopWords(split(text))
	}
}

// split lower-cases text and breaks it on every non-letter, non-digit rune.
// Accented letters count as word characters.
func split(text string) []string {
	text = strings.ToLower(text)
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func dropStopWords(words []string) []string {
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if _, isStop := stopWords[word]; isStop {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// suffixes tried longest-first so "adora" wins over "ador".
var suffixes = []string{
	"adora", "iendo", "mente",
	"ador", "ando", "ante", "ción", "ente",
}

// stem strips a single Spanish suffix when the remaining stem is long enough
// (stem length must exceed suffix length + 2).
func stem(word string) string {
	runes := []rune(word)
	for _, suffix := range suffixes {
		sr := []rune(suffix)
		if len(runes) <= len(sr) {
			continue
		}
		if !strings.HasSuffix(word, suffix) {
			continue
		}
		stemLen := len(runes) - len(sr)
		if stemLen > len(sr)+2 {
			return string(runes[:stemLen])
		}
	}
	return word
}

// ngrams emits every substring of n runes from each token. Tokens shorter
// than n produce no grams.
func ngrams(words []string, n int) []string {
	grams := make([]string, 0, len(words))
	for _, word := range words {
		runes := []rune(word)
		for i := 0; i+n <= len(runes); i++ {
			grams = append(grams, string(runes[i:i+n]))
		}
	}
	return grams
}
