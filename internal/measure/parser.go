package measure

import (
	"errors"
	"math/big"
	"strings"

	"github.com/pantrysnap/pantrysnap/internal/normalize"
)

// Config controls parser behavior around the cascade edges.
type Config struct {
	// KeepUnmatched emits lines without a detected quantity as name-only
	// tokens instead of dropping them.
	KeepUnmatched bool `mapstructure:"keep_unmatched" yaml:"keep_unmatched" json:"keep_unmatched"`
	// RequireCountable restricts the quantity-without-unit class to names in
	// the countable-noun dictionary. Off by default: bare quantities are
	// accepted unit-less.
	RequireCountable bool `mapstructure:"require_countable" yaml:"require_countable" json:"require_countable"`
}

// DefaultConfig returns the stock parser behavior.
func DefaultConfig() Config {
	return Config{
		KeepUnmatched:    true,
		RequireCountable: false,
	}
}

// Parser extracts measurement tokens from raw OCR text. Pure and safe for
// concurrent use once constructed.
type Parser struct {
	cfg    Config
	tables *Tables
	// matchers run in order per line; the first full match wins and later
	// classes are never consulted. Most specific first.
	matchers []matcher
}

// match is a matcher's successful result before token assembly.
type match struct {
	quantity *big.Rat
	unit     string
	name     string
}

// matcher attempts one pattern class over the tokenized line. A nil result
// means no match; the cascade moves on without backtracking.
type matcher func(tokens []string) *match

// New creates a parser over the given vocabulary tables. Nil tables use the
// built-in English+French defaults.
func New(cfg Config, tables *Tables) (*Parser, error) {
	if tables == nil {
		tables = DefaultTables()
	}
	if len(tables.units) == 0 {
		return nil, errors.New("measure: empty unit table")
	}
	p := &Parser{cfg: cfg, tables: tables}
	p.matchers = []matcher{
		p.matchQuantityUnitName,
		p.matchQuantityName,
		p.matchNameOnly,
	}
	return p, nil
}

// Parse splits raw text on line breaks and runs each line through the
// cascade. Unparseable lines never fail the call; depending on
// configuration they are emitted name-only or omitted.
func (p *Parser) Parse(rawText string) IngredientList {
	var list IngredientList
	for i, line := range strings.Split(rawText, "\n") {
		line = strings.TrimRight(line, "\r")
		token, ok := p.parseLine(line, i)
		if ok {
			list.Tokens = append(list.Tokens, token)
		}
	}
	return list
}

func (p *Parser) parseLine(line string, index int) (Token, bool) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return Token{}, false
	}

	for _, m := range p.matchers {
		result := m(tokens)
		if result == nil {
			continue
		}
		return Token{
			Quantity: result.quantity,
			Unit:     result.unit,
			Name:     normalize.Name(result.name),
			Raw:      strings.TrimSpace(line),
			Line:     index,
		}, true
	}
	return Token{}, false
}

// matchQuantityUnitName: "2 cups flour", "250 g de farine". The token after
// the quantity must be a recognized unit synonym and a name must remain.
func (p *Parser) matchQuantityUnitName(tokens []string) *match {
	qty, used, ok := parseQuantity(tokens)
	if !ok {
		return nil
	}
	rest := tokens[used:]
	canonical, unitTokens, ok := p.tables.LookupUnit(rest)
	if !ok {
		return nil
	}
	name := strings.Join(rest[unitTokens:], " ")
	if strings.TrimSpace(name) == "" {
		return nil
	}
	return &match{quantity: qty, unit: canonical, name: name}
}

// matchQuantityName: "6 eggs". The token adjacent to the quantity is not a
// unit synonym, so it belongs to the name.
func (p *Parser) matchQuantityName(tokens []string) *match {
	qty, used, ok := parseQuantity(tokens)
	if !ok {
		return nil
	}
	name := strings.Join(tokens[used:], " ")
	if strings.TrimSpace(name) == "" {
		return nil
	}
	if p.cfg.RequireCountable && !p.tables.IsCountable(name) {
		return nil
	}
	return &match{quantity: qty, name: name}
}

// matchNameOnly is the fallback for lines without a quantity. Enabled by
// KeepUnmatched; with it off such lines are omitted from the result.
func (p *Parser) matchNameOnly(tokens []string) *match {
	if !p.cfg.KeepUnmatched {
		return nil
	}
	return &match{name: strings.Join(tokens, " ")}
}
