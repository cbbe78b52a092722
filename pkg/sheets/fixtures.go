package sheets

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fixtureFile is the on-disk seed for a MemoryClient:
//
//	spreadsheets:
//	  sheet-acme:
//	    Active:
//	      - ["Violation ID", "Reason", ...]
//	      - ["V-1", "Counterfeit", ...]
type fixtureFile struct {
	Spreadsheets map[string]map[string][][]string `yaml:"spreadsheets"`
}

// LoadFixtures seeds m from a YAML fixture file. Existing tabs with the
// same name are replaced.
func (m *MemoryClient) LoadFixtures(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read sheet fixtures: %w", err)
	}
	return m.ParseFixtures(data)
}

// ParseFixtures seeds m from YAML fixture data.
func (m *MemoryClient) ParseFixtures(data []byte) error {
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse sheet fixtures: %w", err)
	}
	for spreadsheetID, tabs := range f.Spreadsheets {
		if spreadsheetID == "" {
			return fmt.Errorf("sheet fixture with empty spreadsheet id")
		}
		for tab, rows := range tabs {
			m.AddTab(spreadsheetID, tab, rows...)
		}
	}
	return nil
}
