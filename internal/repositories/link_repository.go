package repositories

import (
	"context"

	"github.com/asakaida/relata/internal/entities"
)

// TypeRestriction keeps link rows whose entity on Field has a type in TypeIDs
type TypeRestriction struct {
	Field   string
	Entity  *entities.EntityDef
	TypeIDs []int64
}

// LinkFilter defines filter criteria for querying link rows. Zero values match anything.
type LinkFilter struct {
	LeftID        int64
	RightID       int64
	TypeIDs       []int64
	EffectiveDate *entities.EffectiveDate
	ExcludeID     int64
	Restrict      []TypeRestriction
}

// LinkRepository stores rows of the link tables described by the datamodel
type LinkRepository interface {
	// Insert stores a new row and sets rel.ID. A zero rank on a ranked link becomes the new id.
	Insert(ctx context.Context, link *entities.LinkDef, rel *entities.Relation) error

	// Update rewrites every column of an existing row
	Update(ctx context.Context, link *entities.LinkDef, rel *entities.Relation) error

	// Delete removes a row; ErrNotFound when it does not exist
	Delete(ctx context.Context, link *entities.LinkDef, id int64) error

	// Get loads a row; ErrNotFound when it does not exist
	Get(ctx context.Context, link *entities.LinkDef, id int64) (*entities.Relation, error)

	// Find returns rows matching the filter ordered by primary key
	Find(ctx context.Context, link *entities.LinkDef, filter *LinkFilter) ([]*entities.Relation, error)

	// Repoint sets field to toID on every row where it equals fromID and returns the number of rows changed
	Repoint(ctx context.Context, link *entities.LinkDef, field string, fromID, toID int64) (int64, error)

	// ClearPrimary unsets the primary flag on rows where field equals id, except keepID
	ClearPrimary(ctx context.Context, link *entities.LinkDef, field string, id, keepID int64) error
}
