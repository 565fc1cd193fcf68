package textutil

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// Fingerprint is a bag-of-words vector used to tell whether a translation
// merely echoes its source.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint counts the tokens of text. It returns nil when text has no
// token of two or more runes.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	fp := &Fingerprint{tokens: make(map[string]float64, len(tokens))}
	for _, token := range tokens {
		fp.tokens[token]++
	}
	var sum float64
	for _, n := range fp.tokens {
		sum += n * n
	}
	fp.norm = math.Sqrt(sum)
	return fp
}

// Tokenize case-folds text and splits it on anything that is not a letter,
// digit or combining mark. Single-rune tokens are dropped.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(folder.String(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.Is(unicode.Mn, r)
	})
	out := words[:0]
	for _, w := range words {
		if utf8.RuneCountInString(w) >= 2 {
			out = append(out, w)
		}
	}
	return out
}

// Fold case-folds text and collapses runs of whitespace.
func Fold(text string) string {
	return strings.Join(strings.Fields(folder.String(text)), " ")
}

// CosineSimilarity scores two fingerprints between 0 and 1. Nil or empty
// fingerprints score 0.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	if len(b.tokens) < len(a.tokens) {
		a, b = b, a
	}
	var dot float64
	for token, n := range a.tokens {
		dot += n * b.tokens[token]
	}
	return dot / (a.norm * b.norm)
}

// TextSimilarity returns the token cosine similarity of two texts. Texts that
// are equal after case and whitespace folding score 1.
func TextSimilarity(a, b string) float64 {
	if Fold(a) == Fold(b) {
		return 1
	}
	return CosineSimilarity(NewFingerprint(a), NewFingerprint(b))
}
