package entities

// LinkDef represents a many-to-many link table
// Example: "link items_x_tags = 101 { left items item_id; right tags tag_id; type type_id }"
type LinkDef struct {
	Name                string `yaml:"name"`
	Number              int    `yaml:"number"`
	Key                 string `yaml:"key"`
	LeftTable           string `yaml:"left_table"`
	LeftField           string `yaml:"left_field"`
	RightTable          string `yaml:"right_table"`
	RightField          string `yaml:"right_field"`
	TypeField           string `yaml:"type,omitempty"`
	RankField           string `yaml:"rank,omitempty"`
	EffectiveStartField string `yaml:"effective_start,omitempty"`
	EffectiveEndField   string `yaml:"effective_end,omitempty"`
	SourceInfoField     string `yaml:"source_info,omitempty"`
	PrimaryField        string `yaml:"primary,omitempty"`
}

// IsSelf reports whether both sides of the link reference the same table
func (l *LinkDef) IsSelf() bool {
	return l.LeftTable == l.RightTable
}

// HasType reports whether link rows carry a relationship type
func (l *LinkDef) HasType() bool {
	return l.TypeField != ""
}

// HasRank reports whether link rows carry an explicit rank
func (l *LinkDef) HasRank() bool {
	return l.RankField != ""
}

// HasEffectiveDate reports whether link rows carry an effective date range
func (l *LinkDef) HasEffectiveDate() bool {
	return l.EffectiveStartField != "" && l.EffectiveEndField != ""
}

// HasSourceInfo reports whether link rows carry source information
func (l *LinkDef) HasSourceInfo() bool {
	return l.SourceInfoField != ""
}

// HasPrimary reports whether link rows carry an is_primary flag
func (l *LinkDef) HasPrimary() bool {
	return l.PrimaryField != ""
}

// Sides returns the field holding the given table's id and the field holding
// the other side's id. For self links the subject is assumed to be on the left.
func (l *LinkDef) Sides(table string) (own, other string, ok bool) {
	switch table {
	case l.LeftTable:
		return l.LeftField, l.RightField, true
	case l.RightTable:
		return l.RightField, l.LeftField, true
	}
	return "", "", false
}

// OtherTable returns the table on the opposite side of the given one
func (l *LinkDef) OtherTable(table string) string {
	if table == l.LeftTable {
		return l.RightTable
	}
	return l.LeftTable
}

// Touches reports whether one side of the link references the table
func (l *LinkDef) Touches(table string) bool {
	return l.LeftTable == table || l.RightTable == table
}
