package parser

// DatamodelAST represents the parsed datamodel AST
type DatamodelAST struct {
	Entities []*EntityAST
	Links    []*LinkAST
	Labels   []*LabelsAST
}

// EntityAST represents an entity block
// Example: "entity items = 57 { idno idno sort idno_sort; labels item_labels }"
type EntityAST struct {
	Name        string
	Number      int
	Key         string
	Idno        string
	IdnoSort    string
	Type        string
	Access      string
	Deleted     string
	Labels      string
	Self        string
	References  []*ReferenceAST
	Polymorphic *PolymorphicAST
	Line        int
}

// ReferenceAST represents a many-to-one reference directive
// Example: "reference collection_id @collections"
type ReferenceAST struct {
	Field string
	Table string
}

// PolymorphicAST represents a (table_num, row_id) directive
// Example: "polymorphic table_num row_id"
type PolymorphicAST struct {
	TableNumField string
	RowIDField    string
}

// LinkAST represents a link table block
// Example: "link items_x_tags = 101 { left items item_id; right tags tag_id; type type_id }"
type LinkAST struct {
	Name           string
	Number         int
	Key            string
	LeftTable      string
	LeftField      string
	RightTable     string
	RightField     string
	Type           string
	Rank           string
	EffectiveStart string
	EffectiveEnd   string
	SourceInfo     string
	Primary        string
	Line           int
}

// LabelsAST represents a label sub-table block
// Example: "labels item_labels { display name; locale locale; preferred is_preferred }"
type LabelsAST struct {
	Name      string
	Key       string
	Owner     string
	Display   string
	Locale    string
	Preferred string
	Line      int
}
