package measure

import (
	"math/big"
	"strings"
)

// vulgarFractions maps single Unicode fraction glyphs to exact values.
var vulgarFractions = map[rune]*big.Rat{
	'¼': big.NewRat(1, 4),
	'½': big.NewRat(1, 2),
	'¾': big.NewRat(3, 4),
	'⅓': big.NewRat(1, 3),
	'⅔': big.NewRat(2, 3),
	'⅕': big.NewRat(1, 5),
	'⅖': big.NewRat(2, 5),
	'⅗': big.NewRat(3, 5),
	'⅘': big.NewRat(4, 5),
	'⅙': big.NewRat(1, 6),
	'⅚': big.NewRat(5, 6),
	'⅐': big.NewRat(1, 7),
	'⅛': big.NewRat(1, 8),
	'⅜': big.NewRat(3, 8),
	'⅝': big.NewRat(5, 8),
	'⅞': big.NewRat(7, 8),
	'⅑': big.NewRat(1, 9),
	'⅒': big.NewRat(1, 10),
}

// parseQuantity consumes leading tokens as a quantity and returns the exact
// value plus the number of tokens consumed. Accepted shapes: integer,
// decimal with dot or comma, simple fraction, vulgar-fraction glyph,
// integer glued to a glyph ("1½"), and two-token mixed numbers
// ("1 1/2", "1 ½"). Quantities are never negative by construction.
func parseQuantity(tokens []string) (*big.Rat, int, bool) {
	if len(tokens) == 0 {
		return nil, 0, false
	}

	first, firstIsInt, ok := parseNumberToken(tokens[0])
	if !ok {
		return nil, 0, false
	}

	// A whole number may be followed by a proper-fraction token, forming a
	// mixed number. Only fractions combine; "1 2" stays two tokens.
	if firstIsInt && len(tokens) > 1 {
		if frac, ok := parseFractionToken(tokens[1]); ok {
			sum := new(big.Rat).Add(first, frac)
			return sum, 2, true
		}
	}
	return first, 1, true
}

// parseNumberToken parses a single token as a quantity. isInt reports a
// plain integer, which is the only shape allowed to start a mixed number.
func parseNumberToken(tok string) (v *big.Rat, isInt bool, ok bool) {
	if tok == "" {
		return nil, false, false
	}
	if n, ok := parseDigits(tok); ok {
		return n, true, true
	}
	if f, ok := parseFractionToken(tok); ok {
		return f, false, true
	}
	if d, ok := parseDecimalToken(tok); ok {
		return d, false, true
	}
	// Integer glued to a vulgar glyph ("1½").
	runes := []rune(tok)
	if len(runes) > 1 {
		if frac, isVulgar := vulgarFractions[runes[len(runes)-1]]; isVulgar {
			if whole, ok := parseDigits(string(runes[:len(runes)-1])); ok {
				return new(big.Rat).Add(whole, frac), false, true
			}
		}
	}
	return nil, false, false
}

// parseFractionToken accepts "a/b" with b>0, or a lone vulgar glyph.
func parseFractionToken(tok string) (*big.Rat, bool) {
	runes := []rune(tok)
	if len(runes) == 1 {
		if frac, ok := vulgarFractions[runes[0]]; ok {
			return new(big.Rat).Set(frac), true
		}
	}

	num, den, found := strings.Cut(tok, "/")
	if !found {
		return nil, false
	}
	n, okN := parseDigits(num)
	d, okD := parseDigits(den)
	if !okN || !okD || d.Sign() == 0 {
		return nil, false
	}
	return new(big.Rat).Quo(n, d), true
}

// parseDecimalToken accepts "12.5" and the locale form "12,5".
func parseDecimalToken(tok string) (*big.Rat, bool) {
	sep := strings.IndexAny(tok, ".,")
	if sep <= 0 || sep == len(tok)-1 {
		return nil, false
	}
	whole, okW := parseDigits(tok[:sep])
	frac := tok[sep+1:]
	fracVal, okF := parseDigits(frac)
	if !okW || !okF {
		return nil, false
	}
	scale := new(big.Rat).SetInt64(1)
	ten := big.NewRat(10, 1)
	for range frac {
		scale.Mul(scale, ten)
	}
	return new(big.Rat).Add(whole, new(big.Rat).Quo(fracVal, scale)), true
}

// parseDigits accepts a non-empty run of ASCII digits.
func parseDigits(s string) (*big.Rat, bool) {
	if s == "" {
		return nil, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return nil, false
		}
	}
	n, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, false
	}
	return n, true
}
