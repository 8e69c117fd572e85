package repositories

import (
	"context"

	"github.com/asakaida/relata/internal/entities"
)

// EntityRepository reads and updates rows of entity tables described by the datamodel
type EntityRepository interface {
	// IDByIdno looks up a primary key through the entity's idno field; ErrNotFound when missing
	IDByIdno(ctx context.Context, entity *entities.EntityDef, idno string) (int64, error)

	Exists(ctx context.Context, entity *entities.EntityDef, id int64) (bool, error)

	// GetForeignKey returns the value of a reference field; 0 when NULL
	GetForeignKey(ctx context.Context, entity *entities.EntityDef, id int64, field string) (int64, error)

	// SetForeignKey assigns a reference field; a zero value stores NULL
	SetForeignKey(ctx context.Context, entity *entities.EntityDef, id int64, field string, value int64) error

	// IDsByForeignKey returns the ids of rows whose field equals value, optionally restricted to types
	IDsByForeignKey(ctx context.Context, entity *entities.EntityDef, field string, value int64, typeIDs []int64) ([]int64, error)

	// RepointForeignKey moves every reference from fromID to toID and returns the ids changed
	RepointForeignKey(ctx context.Context, entity *entities.EntityDef, field string, fromID, toID int64) ([]int64, error)

	// CountReferences counts rows of table whose field equals id
	CountReferences(ctx context.Context, table, field string, id int64) (int64, error)

	// GetMany loads full rows keyed by primary key, in the order given
	GetMany(ctx context.Context, entity *entities.EntityDef, ids []int64) ([]*entities.Record, error)
}
