package measure

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTables_LookupUnit(t *testing.T) {
	tables := DefaultTables()

	tests := []struct {
		tokens    []string
		canonical string
		consumed  int
	}{
		{[]string{"cup"}, "cup", 1},
		{[]string{"cups", "flour"}, "cup", 1},
		{[]string{"Tasse"}, "cup", 1},
		{[]string{"grammes", "de", "sucre"}, "g", 1},
		{[]string{"cuillère", "à", "soupe"}, "tbsp", 3},
		{[]string{"cuilleres", "a", "cafe", "de", "sel"}, "tsp", 3},
		{[]string{"tbsp."}, "tbsp", 1},
	}
	for _, tt := range tests {
		canonical, consumed, ok := tables.LookupUnit(tt.tokens)
		require.True(t, ok, "tokens %v", tt.tokens)
		assert.Equal(t, tt.canonical, canonical)
		assert.Equal(t, tt.consumed, consumed)
	}

	_, _, ok := tables.LookupUnit([]string{"flour"})
	assert.False(t, ok)
	_, _, ok = tables.LookupUnit(nil)
	assert.False(t, ok)
}

func TestDefaultTables_Countable(t *testing.T) {
	tables := DefaultTables()

	assert.True(t, tables.IsCountable("eggs"))
	assert.True(t, tables.IsCountable("œufs"))
	assert.True(t, tables.IsCountable("Oignons rouges"))
	assert.False(t, tables.IsCountable("flour"))
	assert.False(t, tables.IsCountable(""))
}

func TestNewTables_FoldsKeys(t *testing.T) {
	tables := NewTables(map[string][]string{"CUP": {"Tasses", "CUPS"}}, []string{"ŒUF", "Égg"})

	canonical, _, ok := tables.LookupUnit([]string{"tasses"})
	require.True(t, ok)
	assert.Equal(t, "cup", canonical)

	assert.True(t, tables.IsCountable("egg"))
}

func TestLoadTables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.yaml")
	content := `units:
  cup: [cups, tasse]
  handful: [handfuls, poignée]
countable:
  - egg
  - eggs
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tables, err := LoadTables(path)
	require.NoError(t, err)

	canonical, _, ok := tables.LookupUnit([]string{"poignée"})
	require.True(t, ok)
	assert.Equal(t, "handful", canonical)

	// Sections replace the defaults wholesale; "tbsp" is gone.
	_, _, ok = tables.LookupUnit([]string{"tbsp"})
	assert.False(t, ok)

	assert.True(t, tables.IsCountable("eggs"))
	assert.False(t, tables.IsCountable("oignon"))
}

func TestLoadTables_MissingSectionsUseDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte("countable: [egg]\n"), 0o644))

	tables, err := LoadTables(path)
	require.NoError(t, err)

	_, _, ok := tables.LookupUnit([]string{"tbsp"})
	assert.True(t, ok)
}

func TestLoadTables_Errors(t *testing.T) {
	_, err := LoadTables("no/such/file.yaml")
	require.Error(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("units: [not a map]\n"), 0o644))
	_, err = LoadTables(path)
	require.Error(t, err)
}

func TestTables_Units(t *testing.T) {
	units := DefaultTables().Units()
	assert.Contains(t, units, "cup")
	assert.Contains(t, units, "tsp")
	assert.IsType(t, []string{}, units)
	// Sorted, closed vocabulary.
	for i := 1; i < len(units); i++ {
		assert.Less(t, units[i-1], units[i])
	}
}
