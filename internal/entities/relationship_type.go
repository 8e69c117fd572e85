package entities

// RelationshipType represents a node of the relationship type taxonomy
// scoped to one link table
// Example: items_x_tags "depicts" (reverse: "is depicted by")
type RelationshipType struct {
	ID              int64  `yaml:"-"`
	ParentID        *int64 `yaml:"-"`
	TableName       string `yaml:"table"`
	TypeCode        string `yaml:"code"`
	Typename        string `yaml:"typename"`
	TypenameReverse string `yaml:"typename_reverse"`
	Rank            int    `yaml:"rank,omitempty"`
}

// DisplayName returns the forward or reverse name depending on the reading direction
func (t *RelationshipType) DisplayName(reverse bool) string {
	if reverse && t.TypenameReverse != "" {
		return t.TypenameReverse
	}
	return t.Typename
}

// EntityType represents a node of an entity table's type taxonomy
// Example: items "photograph" under "image"
type EntityType struct {
	ID        int64
	ParentID  *int64
	TableName string
	Idno      string
}
