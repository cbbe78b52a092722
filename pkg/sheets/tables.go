package sheets

// LogicalTable is a named partition of a tenant's violations backed by one
// tab whose name is one of Aliases, in priority order.
type LogicalTable struct {
	Key     string
	Aliases []string
	Schema  *Schema
}

var (
	ActiveTable = &LogicalTable{
		Key:     "active",
		Aliases: []string{"Active Violations", "Active", "Violations", "Current Violations"},
		Schema:  ActiveSchema,
	}
	ResolvedTable = &LogicalTable{
		Key:     "resolved",
		Aliases: []string{"Resolved Violations", "Resolved", "Closed Violations"},
		Schema:  ResolvedSchema,
	}
)

// TableByKey looks up a logical table by key ("active" or "resolved").
func TableByKey(key string) (*LogicalTable, bool) {
	switch key {
	case ActiveTable.Key:
		return ActiveTable, true
	case ResolvedTable.Key:
		return ResolvedTable, true
	}
	return nil, false
}

// DisplayName is the label to show for the table. When no tab was found it
// falls back to the conventional first alias; never use it to address writes.
func (t *LogicalTable) DisplayName(res TabResolution) string {
	if res.Found {
		return res.Name
	}
	return t.Aliases[0]
}
