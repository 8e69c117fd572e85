package sqlstore

import (
	"context"
	"fmt"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/repositories"
)

// TaxonomyRepository implements repositories.TaxonomyRepository
type TaxonomyRepository struct {
	store *Store
}

// NewTaxonomyRepository creates a new taxonomy repository
func NewTaxonomyRepository(store *Store) repositories.TaxonomyRepository {
	return &TaxonomyRepository{store: store}
}

func parentArg(id *int64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func parentValue(row repositories.Row, col string) *int64 {
	if row.IsNull(col) {
		return nil
	}
	v := row.Int64(col)
	return &v
}

// CreateRelationshipType stores a relationship type
func (r *TaxonomyRepository) CreateRelationshipType(ctx context.Context, t *entities.RelationshipType) (int64, error) {
	id, err := r.store.insert(ctx, "relationship_types", "type_id",
		[]string{"parent_id", "table_name", "type_code", "typename", "typename_reverse", "rank"},
		[]interface{}{parentArg(t.ParentID), t.TableName, t.TypeCode, t.Typename, t.TypenameReverse, t.Rank},
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return 0, fmt.Errorf("relationship type %s/%s: %w", t.TableName, t.TypeCode, repositories.ErrAlreadyExists)
		}
		return 0, fmt.Errorf("failed to create relationship type: %w", err)
	}
	t.ID = id
	return id, nil
}

func (r *TaxonomyRepository) relationshipTypes(ctx context.Context, where string, args ...interface{}) ([]*entities.RelationshipType, error) {
	d := r.store.dialect
	query := fmt.Sprintf(`SELECT type_id, parent_id, table_name, type_code, typename, typename_reverse, %s
		FROM relationship_types WHERE %s ORDER BY %s, type_id`, d.Quote("rank"), where, d.Quote("rank"))

	rows, err := r.store.Select(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationship types: %w", err)
	}

	types := make([]*entities.RelationshipType, 0, len(rows))
	for _, row := range rows {
		types = append(types, &entities.RelationshipType{
			ID:              row.Int64("type_id"),
			ParentID:        parentValue(row, "parent_id"),
			TableName:       row.String("table_name"),
			TypeCode:        row.String("type_code"),
			Typename:        row.String("typename"),
			TypenameReverse: row.String("typename_reverse"),
			Rank:            int(row.Int64("rank")),
		})
	}
	return types, nil
}

// ListRelationshipTypes returns the types of a link table ordered by rank then id
func (r *TaxonomyRepository) ListRelationshipTypes(ctx context.Context, table string) ([]*entities.RelationshipType, error) {
	return r.relationshipTypes(ctx, "table_name = ?", table)
}

// GetRelationshipTypes loads types by id
func (r *TaxonomyRepository) GetRelationshipTypes(ctx context.Context, ids []int64) (map[int64]*entities.RelationshipType, error) {
	out := make(map[int64]*entities.RelationshipType, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cond, args := r.store.in("type_id", ids)
	types, err := r.relationshipTypes(ctx, cond, args...)
	if err != nil {
		return nil, err
	}
	for _, t := range types {
		out[t.ID] = t
	}
	return out, nil
}

// CreateEntityType stores an entity type
func (r *TaxonomyRepository) CreateEntityType(ctx context.Context, t *entities.EntityType) (int64, error) {
	id, err := r.store.insert(ctx, "entity_types", "type_id",
		[]string{"parent_id", "table_name", "idno"},
		[]interface{}{parentArg(t.ParentID), t.TableName, t.Idno},
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return 0, fmt.Errorf("entity type %s/%s: %w", t.TableName, t.Idno, repositories.ErrAlreadyExists)
		}
		return 0, fmt.Errorf("failed to create entity type: %w", err)
	}
	t.ID = id
	return id, nil
}

// ListEntityTypes returns the types of an entity table ordered by id
func (r *TaxonomyRepository) ListEntityTypes(ctx context.Context, table string) ([]*entities.EntityType, error) {
	rows, err := r.store.Select(ctx,
		"SELECT type_id, parent_id, table_name, idno FROM entity_types WHERE table_name = ? ORDER BY type_id", table)
	if err != nil {
		return nil, fmt.Errorf("failed to query entity types: %w", err)
	}

	types := make([]*entities.EntityType, 0, len(rows))
	for _, row := range rows {
		types = append(types, &entities.EntityType{
			ID:        row.Int64("type_id"),
			ParentID:  parentValue(row, "parent_id"),
			TableName: row.String("table_name"),
			Idno:      row.String("idno"),
		})
	}
	return types, nil
}
