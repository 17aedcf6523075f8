package measure

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tables holds the closed unit vocabulary and the countable-noun dictionary.
// Built once at startup and never mutated afterwards; safe for concurrent
// readers.
type Tables struct {
	units     map[string]string   // folded synonym -> canonical unit
	countable map[string]struct{} // folded noun
	// maxUnitWords is the longest synonym length in words, bounding how many
	// tokens a unit lookup may consume.
	maxUnitWords int
}

// tablesFile is the YAML shape for externally supplied tables.
type tablesFile struct {
	Units     map[string][]string `yaml:"units"`
	Countable []string            `yaml:"countable"`
}

// NewTables builds lookup tables from a canonical-unit-to-synonyms mapping
// and a noun list. All keys are folded, so table files may carry diacritics
// and mixed case freely.
func NewTables(units map[string][]string, countable []string) *Tables {
	t := &Tables{
		units:     make(map[string]string),
		countable: make(map[string]struct{}),
	}
	for canonical, synonyms := range units {
		t.addUnit(canonical, canonical)
		for _, syn := range synonyms {
			t.addUnit(syn, canonical)
		}
	}
	for _, noun := range countable {
		n := fold(strings.TrimSpace(noun))
		if n != "" {
			t.countable[n] = struct{}{}
		}
	}
	return t
}

func (t *Tables) addUnit(synonym, canonical string) {
	syn := fold(strings.TrimSpace(synonym))
	if syn == "" {
		return
	}
	t.units[syn] = fold(canonical)
	if words := len(strings.Fields(syn)); words > t.maxUnitWords {
		t.maxUnitWords = words
	}
}

// LoadTables reads a YAML table file. Missing sections fall back to the
// built-in defaults so a deployment can override only one table.
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: reading an operator-provided table file is expected
	if err != nil {
		return nil, fmt.Errorf("read tables file: %w", err)
	}
	var tf tablesFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse tables file %s: %w", path, err)
	}
	if tf.Units == nil {
		tf.Units = defaultUnitSynonyms()
	}
	if tf.Countable == nil {
		tf.Countable = defaultCountableNouns()
	}
	return NewTables(tf.Units, tf.Countable), nil
}

// DefaultTables returns the built-in English+French vocabulary.
func DefaultTables() *Tables {
	return NewTables(defaultUnitSynonyms(), defaultCountableNouns())
}

// LookupUnit tries to recognize a unit at the front of tokens, preferring
// the longest synonym ("cuillère à soupe" before "cuillère"). Returns the
// canonical unit and the number of tokens consumed.
func (t *Tables) LookupUnit(tokens []string) (canonical string, consumed int, ok bool) {
	limit := t.maxUnitWords
	if limit > len(tokens) {
		limit = len(tokens)
	}
	for n := limit; n >= 1; n-- {
		candidate := fold(trimTokenPunct(strings.Join(tokens[:n], " ")))
		if c, found := t.units[candidate]; found {
			return c, n, true
		}
		// Plural synonym not in the table: retry without a trailing "s".
		if strings.HasSuffix(candidate, "s") {
			if c, found := t.units[strings.TrimSuffix(candidate, "s")]; found {
				return c, n, true
			}
		}
	}
	return "", 0, false
}

// IsCountable reports whether the noun (or its first word) is in the
// countable dictionary.
func (t *Tables) IsCountable(name string) bool {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return false
	}
	head := fold(trimTokenPunct(fields[0]))
	if _, ok := t.countable[head]; ok {
		return true
	}
	if strings.HasSuffix(head, "s") {
		if _, ok := t.countable[strings.TrimSuffix(head, "s")]; ok {
			return true
		}
	}
	return false
}

// Units returns the sorted canonical unit values, mostly for diagnostics.
func (t *Tables) Units() []string {
	seen := make(map[string]struct{})
	for _, c := range t.units {
		seen[c] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// defaultUnitSynonyms covers the English and French unit vocabulary of
// typical recipe photos. Keys are the canonical values.
func defaultUnitSynonyms() map[string][]string {
	return map[string][]string{
		"cup":   {"cups", "c", "tasse", "tasses"},
		"tbsp":  {"tablespoon", "tablespoons", "tbs", "cuillère à soupe", "cuillères à soupe", "c.à.s", "cas"},
		"tsp":   {"teaspoon", "teaspoons", "cuillère à café", "cuillères à café", "c.à.c", "cac"},
		"g":     {"gr", "gram", "grams", "gramme", "grammes"},
		"kg":    {"kilogram", "kilograms", "kilo", "kilos", "kilogramme", "kilogrammes"},
		"mg":    {"milligram", "milligrams", "milligramme", "milligrammes"},
		"l":     {"liter", "liters", "litre", "litres"},
		"ml":    {"milliliter", "milliliters", "millilitre", "millilitres"},
		"cl":    {"centiliter", "centiliters", "centilitre", "centilitres"},
		"oz":    {"ounce", "ounces", "once", "onces"},
		"lb":    {"lbs", "pound", "pounds", "livre", "livres"},
		"pinch": {"pinches", "pincée", "pincées"},
		"clove": {"cloves", "gousse", "gousses"},
		"slice": {"slices", "tranche", "tranches"},
		"can":   {"cans", "boîte", "boîtes"},
		"pack":  {"packet", "packets", "sachet", "sachets"},
	}
}

// defaultCountableNouns lists produce typically written bare ("6 eggs").
func defaultCountableNouns() []string {
	return []string{
		"egg", "eggs", "œuf", "œufs", "oeuf", "oeufs",
		"onion", "onions", "oignon", "oignons",
		"apple", "apples", "pomme", "pommes",
		"banana", "bananas", "banane", "bananes",
		"carrot", "carrots", "carotte", "carottes",
		"tomato", "tomatoes", "tomate", "tomates",
		"lemon", "lemons", "citron", "citrons",
		"potato", "potatoes", "pomme de terre", "pommes de terre",
		"shallot", "shallots", "échalote", "échalotes",
	}
}
