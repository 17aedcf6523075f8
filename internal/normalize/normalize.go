// Package normalize applies deterministic, non-discarding cleanup to parsed
// ingredient names. Every correction is conservative: when a fix could
// plausibly change meaning the input is left alone, so the worst case is the
// trimmed original.
package normalize

import (
	"strings"
	"unicode"
)

// leading articles removed in English and French. Elided French articles
// ("l'oignon", "d'ail") are handled separately since they glue to the noun.
var leadingArticles = map[string]struct{}{
	"the": {}, "a": {}, "an": {},
	"le": {}, "la": {}, "les": {},
	"un": {}, "une": {}, "des": {}, "du": {},
	"de": {}, "of": {},
}

// digitConfusions maps OCR digit misreads to the letter they stand for when
// surrounded by letters. Only shapes with a single plausible letter reading
// are fixed; ambiguous ones (e.g. "6") are left alone.
var digitConfusions = map[rune]rune{
	'0': 'o',
	'1': 'l',
	'5': 's',
}

// Name cleans a parsed ingredient name. Idempotent: normalizing an already
// normalized name returns an identical string.
func Name(s string) string {
	s = collapseWhitespace(s)
	s = trimPunct(s)
	s = stripLeadingArticles(s)
	s = fixDigitConfusions(s)
	// Article stripping can expose fresh edge punctuation ("the , flour").
	s = collapseWhitespace(trimPunct(s))
	return s
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// trimPunct removes punctuation from both ends but keeps interior
// punctuation ("self-raising flour" stays intact).
func trimPunct(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

func stripLeadingArticles(s string) string {
	for {
		fields := strings.Fields(s)
		if len(fields) == 0 {
			return s
		}
		// Elided articles glue to the noun: "l'oignon" -> "oignon".
		if rest, ok := cutElision(fields[0]); ok && rest != "" {
			fields[0] = rest
			s = strings.Join(fields, " ")
			continue
		}
		if len(fields) < 2 {
			// Never strip the whole name away.
			return s
		}
		head := strings.ToLower(fields[0])
		if _, ok := leadingArticles[head]; ok {
			s = strings.Join(fields[1:], " ")
			continue
		}
		return s
	}
}

// cutElision splits a French elided article off a word, if present.
func cutElision(word string) (string, bool) {
	lower := strings.ToLower(word)
	for _, prefix := range []string{"l'", "d'", "l’", "d’"} {
		if strings.HasPrefix(lower, prefix) && len(word) > len(prefix) {
			return word[len(prefix):], true
		}
	}
	return word, false
}

// fixDigitConfusions replaces a stray digit inside an alphabetic run with
// its letter look-alike. A digit next to another digit is genuine ("100g")
// and stays.
func fixDigitConfusions(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		repl, confusable := digitConfusions[r]
		if !confusable {
			continue
		}
		if isLetterAt(runes, i-1) && isLetterAt(runes, i+1) {
			runes[i] = repl
		}
	}
	return string(runes)
}

func isLetterAt(runes []rune, i int) bool {
	return i >= 0 && i < len(runes) && unicode.IsLetter(runes[i])
}
