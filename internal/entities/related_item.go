package entities

// Label is one localized label of a related item
type Label struct {
	Text      string
	Locale    string
	Preferred bool
}

// RelatedItem is one row returned by the related-items query
type RelatedItem struct {
	RelationID           int64
	SubjectID            int64
	ItemID               int64
	Table                string
	TypeID               int64
	Idno                 string
	Access               int
	RelationshipTypeID   int64
	RelationshipTypeCode string
	RelationshipTypename string
	Direction            Direction
	Rank                 int64
	EffectiveDate        *EffectiveDate
	SourceInfo           string
	IsPrimary            bool
	Label                string
	Locale               string
	Labels               []Label
	Fields               map[string]interface{}
}

// Record is a hydrated entity row
type Record struct {
	Table  string
	ID     int64
	Fields map[string]interface{}
}

// Get returns a field value of the record
func (r *Record) Get(field string) interface{} {
	if r.Fields == nil {
		return nil
	}
	return r.Fields[field]
}
