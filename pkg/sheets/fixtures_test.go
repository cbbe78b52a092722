package sheets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient_LoadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
spreadsheets:
  sheet-acme:
    Active:
      - ["Violation ID", "Reason"]
      - ["V-1", "Counterfeit"]
    "Resolved Violations":
      - ["Violation ID", "Reason"]
`), 0o644))

	client := NewMemoryClient()
	require.NoError(t, client.LoadFixtures(path))

	assert.Equal(t, [][]string{{"Violation ID", "Reason"}, {"V-1", "Counterfeit"}}, client.Rows("sheet-acme", "Active"))
	assert.Len(t, client.Rows("sheet-acme", "Resolved Violations"), 1)
	assert.Nil(t, client.Rows("sheet-acme", "Missing"))
}

func TestMemoryClient_ParseFixturesErrors(t *testing.T) {
	client := NewMemoryClient()
	assert.Error(t, client.ParseFixtures([]byte("spreadsheets: [")))
	assert.Error(t, client.ParseFixtures([]byte("spreadsheets:\n  \"\":\n    Active: []\n")))
	assert.Error(t, client.LoadFixtures(filepath.Join(t.TempDir(), "absent.yaml")))
}
