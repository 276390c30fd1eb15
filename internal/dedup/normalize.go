package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Stop words dropped before comparison, English plus common Bengali particles.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"এ": {}, "এই": {}, "ও": {}, "এবং": {}, "কিন্তু": {}, "তবে": {}, "যে": {},
	"যা": {}, "যার": {}, "যাকে": {}, "যাদের": {}, "সে": {}, "তার": {}, "তাকে": {}, "তাদের": {},
}

// NormalizeText lowercases, strips punctuation (keeping Bengali script),
// collapses whitespace and drops stop words and fragments of one or two runes.
// Two articles differing only in markup or spacing normalize identically.
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		// Marks are kept for Bengali vowel signs and hasanta.
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		if _, stop := stopWords[w]; stop {
			continue
		}
		if len([]rune(w)) <= 2 {
			continue
		}
		kept = append(kept, w)
	}

	return strings.Join(kept, " ")
}

// Fingerprint computes the stable content hash over the normalized title and a
// bounded-length prefix of the normalized body.
func Fingerprint(title, body string, bodyPrefixRunes int) string {
	normTitle := NormalizeText(title)
	normBody := NormalizeText(body)

	if bodyPrefixRunes > 0 {
		runes := []rune(normBody)
		if len(runes) > bodyPrefixRunes {
			normBody = string(runes[:bodyPrefixRunes])
		}
	}

	sum := sha256.Sum256([]byte(normTitle + "|" + normBody))
	return hex.EncodeToString(sum[:])
}
