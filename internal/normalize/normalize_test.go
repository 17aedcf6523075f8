package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already clean", "flour", "flour"},
		{"collapse whitespace", "  plain \t flour  ", "plain flour"},
		{"trim punctuation", ",flour.", "flour"},
		{"keep interior punctuation", "self-raising flour", "self-raising flour"},
		{"english article", "the brown sugar", "brown sugar"},
		{"stacked articles", "a the flour", "flour"},
		{"french article", "la farine", "farine"},
		{"french plural article", "les oignons", "oignons"},
		{"french elision", "l'oignon rouge", "oignon rouge"},
		{"bare elision", "l'ail", "ail"},
		{"article never empties name", "the", "the"},
		{"zero inside word", "fl0ur", "flour"},
		{"one inside word", "f1our", "flour"},
		{"five inside word", "ba5il", "basil"},
		{"digit run untouched", "100g chocolate", "100g chocolate"},
		{"digit at edge untouched", "flour 2", "flour 2"},
		{"empty", "", ""},
		{"punctuation only", "...", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Name(tt.in))
		})
	}
}

func TestName_Idempotent(t *testing.T) {
	inputs := []string{
		"  the  fl0ur ",
		"l'oignon rouge",
		"self-raising flour",
		"100g chocolate",
		"des tomates, ",
	}
	for _, in := range inputs {
		once := Name(in)
		assert.Equal(t, once, Name(once), "input %q", in)
	}
}
