package entities

import "fmt"

// Direction tells which side of a self-relation link row the subject occupies
type Direction string

const (
	DirectionAny         Direction = ""
	DirectionLeftToRight Direction = "ltor"
	DirectionRightToLeft Direction = "rtol"
)

// ParseDirection parses "ltor", "rtol" or an empty string
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionAny, DirectionLeftToRight, DirectionRightToLeft:
		return Direction(s), nil
	}
	return DirectionAny, fmt.Errorf("invalid direction %q (expected ltor or rtol)", s)
}

// Relation represents one row of a link table
// Example: items_x_tags row 12 = (item 1, tag 7, type 3, rank 12)
type Relation struct {
	ID            int64
	LinkTable     string
	LeftID        int64
	RightID       int64
	TypeID        int64
	Rank          int64
	EffectiveDate *EffectiveDate
	SourceInfo    string
	IsPrimary     bool
}

// String returns a string representation of the relation
// Format: link_table#id(left -> right:type)
func (r *Relation) String() string {
	return fmt.Sprintf("%s#%d(%d -> %d:%d)", r.LinkTable, r.ID, r.LeftID, r.RightID, r.TypeID)
}

// Validate checks if the relation is valid for writing
func (r *Relation) Validate() error {
	if r.LinkTable == "" {
		return fmt.Errorf("link table is required")
	}
	if r.LeftID <= 0 {
		return fmt.Errorf("left id is required")
	}
	if r.RightID <= 0 {
		return fmt.Errorf("right id is required")
	}
	return nil
}

// Clone returns a copy of the relation without its primary key
func (r *Relation) Clone() *Relation {
	c := *r
	c.ID = 0
	if r.EffectiveDate != nil {
		d := *r.EffectiveDate
		c.EffectiveDate = &d
	}
	return &c
}

// Side returns the id stored on the given side field of the link
func (r *Relation) Side(link *LinkDef, field string) int64 {
	if field == link.LeftField {
		return r.LeftID
	}
	return r.RightID
}

// SetSide stores an id on the given side field of the link
func (r *Relation) SetSide(link *LinkDef, field string, id int64) {
	if field == link.LeftField {
		r.LeftID = id
	} else {
		r.RightID = id
	}
}

// EntityRef identifies a row of an entity table
type EntityRef struct {
	Table string
	ID    int64
}

// WriteResult is the outcome of Add and Edit: the link row for link-table paths,
// or the entity whose foreign key was assigned for many-to-one paths
type WriteResult struct {
	Kind     PathKind
	Relation *Relation
	Entity   *EntityRef
}

// ID returns the relation id, or the mutated entity's id for many-to-one paths
func (w *WriteResult) ID() int64 {
	if w.Relation != nil {
		return w.Relation.ID
	}
	if w.Entity != nil {
		return w.Entity.ID
	}
	return 0
}

// ItemResult is the per-item outcome of a batch operation
type ItemResult struct {
	RelationID int64
	Err        error
}

// OK reports whether the item succeeded
func (r ItemResult) OK() bool {
	return r.Err == nil
}

// Row returns the relation as a column map of the link table
func (r *Relation) Row(link *LinkDef) map[string]interface{} {
	row := map[string]interface{}{
		link.Key:        r.ID,
		link.LeftField:  r.LeftID,
		link.RightField: r.RightID,
	}
	if link.HasType() {
		row[link.TypeField] = r.TypeID
	}
	if link.HasRank() {
		row[link.RankField] = r.Rank
	}
	if link.HasEffectiveDate() && r.EffectiveDate != nil {
		row[link.EffectiveStartField] = r.EffectiveDate.Start
		row[link.EffectiveEndField] = r.EffectiveDate.End
	}
	if link.HasSourceInfo() {
		row[link.SourceInfoField] = r.SourceInfo
	}
	if link.HasPrimary() {
		row[link.PrimaryField] = r.IsPrimary
	}
	return row
}
