package measure

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer decomposes, strips combining marks and recomposes, so
// "cuillère" and "cuillere" compare equal.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases and removes diacritics for vocabulary comparisons. Table
// keys and input tokens go through the same fold, which keeps matching
// case- and diacritic-insensitive for both languages.
func fold(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		// Transform only fails on malformed UTF-8; fall back to the input so
		// a bad byte degrades matching instead of dropping the token.
		out = s
	}
	return strings.ToLower(out)
}

// trimTokenPunct strips punctuation that OCR tends to glue onto tokens
// ("tsp.", "flour,") without touching interior characters.
func trimTokenPunct(s string) string {
	return strings.Trim(s, ".,;:!?)(")
}
