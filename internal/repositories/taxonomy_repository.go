package repositories

import (
	"context"

	"github.com/asakaida/relata/internal/entities"
)

// TaxonomyRepository stores the relationship type and entity type hierarchies
type TaxonomyRepository interface {
	CreateRelationshipType(ctx context.Context, t *entities.RelationshipType) (int64, error)

	// ListRelationshipTypes returns the types of a link table ordered by rank then id
	ListRelationshipTypes(ctx context.Context, table string) ([]*entities.RelationshipType, error)

	// GetRelationshipTypes loads types by id
	GetRelationshipTypes(ctx context.Context, ids []int64) (map[int64]*entities.RelationshipType, error)

	CreateEntityType(ctx context.Context, t *entities.EntityType) (int64, error)

	ListEntityTypes(ctx context.Context, table string) ([]*entities.EntityType, error)
}
