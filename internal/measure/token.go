// Package measure turns raw OCR text into typed ingredient records. Each
// line runs through an ordered, non-backtracking cascade of matchers, most
// specific first; quantities are exact rationals and units come from a
// closed synonym vocabulary.
package measure

import "math/big"

// Token is one parsed ingredient line. Immutable once constructed.
type Token struct {
	// Quantity is the exact parsed amount, nil when the line carried none.
	// Never negative.
	Quantity *big.Rat `json:"-"`
	// Unit is the canonical unit value, or "" when no unit was recognized.
	Unit string `json:"unit,omitempty"`
	// Name is the ingredient name after normalization.
	Name string `json:"name"`
	// Raw is the source line as received.
	Raw string `json:"raw"`
	// Line is the zero-based source line index.
	Line int `json:"line"`
}

// QuantityString renders the quantity for display, "" when absent. Whole
// numbers print without a denominator.
func (t Token) QuantityString() string {
	if t.Quantity == nil {
		return ""
	}
	if t.Quantity.IsInt() {
		return t.Quantity.Num().String()
	}
	return t.Quantity.RatString()
}

// QuantityFloat returns the quantity as a float64 for JSON/display use, with
// ok=false when the line carried no quantity.
func (t Token) QuantityFloat() (float64, bool) {
	if t.Quantity == nil {
		return 0, false
	}
	f, _ := t.Quantity.Float64()
	return f, true
}

// IngredientList is the ordered parse result for one submission.
type IngredientList struct {
	Tokens []Token `json:"tokens"`
}
