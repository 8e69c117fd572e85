package entities

// EntityDef represents an entity table in the datamodel
// Example: "entity items = 57 { idno idno sort idno_sort; type type_id; labels item_labels }"
type EntityDef struct {
	Name          string         `yaml:"name"`                  // Table name (e.g., "items", "tags")
	Number        int            `yaml:"number"`                // Table number used by polymorphic references and the search index
	Key           string         `yaml:"key"`                   // Primary key field (e.g., "item_id")
	IdnoField     string         `yaml:"idno,omitempty"`        // External identifier field
	IdnoSortField string         `yaml:"idno_sort,omitempty"`   // Sortable form of the identifier
	TypeField     string         `yaml:"type,omitempty"`        // Type id field (entity type taxonomy)
	AccessField   string         `yaml:"access,omitempty"`      // Public access level field
	DeletedField  string         `yaml:"deleted,omitempty"`     // Soft-delete flag field
	LabelTable    string         `yaml:"labels,omitempty"`      // Localizable label sub-table
	SelfLink      string         `yaml:"self,omitempty"`        // Link table used for self-relations
	References    []*ForeignKey  `yaml:"references,omitempty"`  // Many-to-one references held by this table
	Polymorphic   *PolymorphicFK `yaml:"polymorphic,omitempty"` // table_num/row_id reference to any table
}

// ForeignKey represents a many-to-one reference: Field on the owning
// (many) table holds the primary key of Table (the one side).
type ForeignKey struct {
	Field string `yaml:"field"`
	Table string `yaml:"table"`
}

// PolymorphicFK represents a (table_num, row_id) combination that can point at a row of any table.
type PolymorphicFK struct {
	TableNumField string `yaml:"table_num"`
	RowIDField    string `yaml:"row_id"`
}

// GetReference returns the reference definition pointing at the given table
func (e *EntityDef) GetReference(table string) *ForeignKey {
	for _, fk := range e.References {
		if fk.Table == table {
			return fk
		}
	}
	return nil
}

// HasLabels reports whether the entity has a label sub-table
func (e *EntityDef) HasLabels() bool {
	return e.LabelTable != ""
}

// LabelDef represents a localizable label sub-table
type LabelDef struct {
	Name           string `yaml:"name"`
	Key            string `yaml:"key"`
	OwnerField     string `yaml:"owner"`
	DisplayField   string `yaml:"display"`
	LocaleField    string `yaml:"locale"`
	PreferredField string `yaml:"preferred,omitempty"`
}
