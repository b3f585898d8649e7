package models

// ColumnType constants for declared column types. Closed set so the planner
// and validator can reason exhaustively over known kinds.
const (
	ColumnTypeInteger   = "integer"
	ColumnTypeReal      = "real"
	ColumnTypeText      = "text"
	ColumnTypeBoolean   = "boolean"
	ColumnTypeTimestamp = "timestamp"
)

// SemanticRole constants describing what a column means to the planner.
const (
	RoleIdentifier = "identifier" // primary/foreign keys
	RoleMeasure    = "measure"    // numeric values worth aggregating (price, count)
	RoleCategory   = "category"   // grouping/filter dimensions (name, type)
	RoleTimestamp  = "timestamp"  // event/update times
	RoleFlag       = "flag"       // boolean state (is_available)
)

// ColumnDescriptor describes one column of a catalog table.
type ColumnDescriptor struct {
	Name         string `json:"name" yaml:"name"`
	DeclaredType string `json:"declared_type" yaml:"type"`
	IsIndexed    bool   `json:"is_indexed" yaml:"indexed"`
	SemanticRole string `json:"semantic_role" yaml:"role"`
}

// Relationship describes a join edge from one table to another.
type Relationship struct {
	ForeignTable  string `json:"foreign_table" yaml:"table"`
	LocalColumn   string `json:"local_column" yaml:"local_column"`
	ForeignColumn string `json:"foreign_column" yaml:"foreign_column"`
}

// TableDescriptor is the immutable catalog record for one table. Owned by
// the schema index; never mutated after load. Refreshes replace the whole
// catalog by atomic swap.
type TableDescriptor struct {
	Name             string             `json:"name" yaml:"name"`
	Description      string             `json:"description" yaml:"description"`
	Columns          []ColumnDescriptor `json:"columns" yaml:"columns"`
	SemanticKeywords []string           `json:"semantic_keywords" yaml:"keywords"`
	RowCountEstimate int64              `json:"row_count_estimate" yaml:"row_estimate"`
	Relationships    []Relationship     `json:"relationships" yaml:"relationships"`
}

// Column returns the descriptor for the named column, or nil.
func (t *TableDescriptor) Column(name string) *ColumnDescriptor {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// ColumnNames returns the column names in declaration order.
func (t *TableDescriptor) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}
