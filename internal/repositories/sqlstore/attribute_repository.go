package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/repositories"
)

// AttributeRepository implements repositories.AttributeRepository
type AttributeRepository struct {
	store *Store
}

// NewAttributeRepository creates a new attribute value repository
func NewAttributeRepository(store *Store) repositories.AttributeRepository {
	return &AttributeRepository{store: store}
}

// Add stores a value and returns its id
func (r *AttributeRepository) Add(ctx context.Context, value *entities.AttributeValue) (int64, error) {
	if err := value.Validate(); err != nil {
		return 0, fmt.Errorf("invalid attribute value: %w", err)
	}
	if value.CreatedAt.IsZero() {
		value.CreatedAt = time.Now().UTC()
	}

	id, err := r.store.insert(ctx, "attribute_values", "value_id",
		[]string{"table_num", "row_id", "element_code", "value_text", "created_at"},
		[]interface{}{value.TableNum, value.RowID, value.ElementCode, value.Value, value.CreatedAt},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add attribute value: %w", err)
	}
	value.ID = id
	return id, nil
}

// ListForRow returns the values attached to one row ordered by id
func (r *AttributeRepository) ListForRow(ctx context.Context, tableNum int, rowID int64) ([]*entities.AttributeValue, error) {
	rows, err := r.store.Select(ctx, `
		SELECT value_id, table_num, row_id, element_code, value_text, created_at
		FROM attribute_values
		WHERE table_num = ? AND row_id = ?
		ORDER BY value_id
	`, tableNum, rowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attribute values: %w", err)
	}

	values := make([]*entities.AttributeValue, 0, len(rows))
	for _, row := range rows {
		values = append(values, &entities.AttributeValue{
			ID:          row.Int64("value_id"),
			TableNum:    int(row.Int64("table_num")),
			RowID:       row.Int64("row_id"),
			ElementCode: row.String("element_code"),
			Value:       row.String("value_text"),
			CreatedAt:   timeValue(row["created_at"]),
		})
	}
	return values, nil
}

// DeleteForRow removes every value attached to one row
func (r *AttributeRepository) DeleteForRow(ctx context.Context, tableNum int, rowID int64) error {
	if _, err := r.store.exec(ctx, "DELETE FROM attribute_values WHERE table_num = ? AND row_id = ?", tableNum, rowID); err != nil {
		return fmt.Errorf("failed to delete attribute values: %w", err)
	}
	return nil
}
