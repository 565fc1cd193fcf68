package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitChunks splits text into pieces of at most maxRunes runes. It breaks on
// sentence boundaries first, then on whitespace, and hard-splits words longer
// than maxRunes. Blank input yields no chunks.
func SplitChunks(text string, maxRunes int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return []string{text}
	}

	var (
		chunks  []string
		current strings.Builder
		length  int
	)
	flush := func() {
		if chunk := strings.TrimSpace(current.String()); chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
		length = 0
	}
	add := func(piece string) {
		n := utf8.RuneCountInString(piece)
		if length > 0 && length+1+n > maxRunes {
			flush()
		}
		if length > 0 {
			current.WriteByte(' ')
			length++
		}
		current.WriteString(piece)
		length += n
	}

	for _, sentence := range splitSentences(text) {
		if utf8.RuneCountInString(sentence) <= maxRunes {
			add(sentence)
			continue
		}
		for _, word := range strings.Fields(sentence) {
			for _, piece := range hardSplit(word, maxRunes) {
				add(piece)
			}
		}
	}
	flush()
	return chunks
}

func splitSentences(text string) []string {
	var (
		sentences []string
		start     int
	)
	runes := []rune(text)
	for i, r := range runes {
		if !isSentenceEnd(r) {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

func hardSplit(word string, maxRunes int) []string {
	runes := []rune(word)
	if len(runes) <= maxRunes {
		return []string{word}
	}
	var parts []string
	for len(runes) > maxRunes {
		parts = append(parts, string(runes[:maxRunes]))
		runes = runes[maxRunes:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
