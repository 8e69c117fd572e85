package repositories

import (
	"context"

	"github.com/asakaida/relata/internal/entities"
)

// AttributeRepository defines the interface for attribute values attached to rows
type AttributeRepository interface {
	// Add stores a value and returns its id
	Add(ctx context.Context, value *entities.AttributeValue) (int64, error)

	// ListForRow returns the values attached to one row ordered by id
	ListForRow(ctx context.Context, tableNum int, rowID int64) ([]*entities.AttributeValue, error)

	// DeleteForRow removes every value attached to one row
	DeleteForRow(ctx context.Context, tableNum int, rowID int64) error
}
