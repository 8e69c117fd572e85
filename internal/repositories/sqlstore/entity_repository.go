package sqlstore

import (
	"context"
	"fmt"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/repositories"
)

// EntityRepository implements repositories.EntityRepository
type EntityRepository struct {
	store *Store
}

// NewEntityRepository creates a new entity table repository
func NewEntityRepository(store *Store) repositories.EntityRepository {
	return &EntityRepository{store: store}
}

// IDByIdno looks up a primary key through the entity's idno field. Soft-deleted rows are skipped.
func (r *EntityRepository) IDByIdno(ctx context.Context, entity *entities.EntityDef, idno string) (int64, error) {
	if entity.IdnoField == "" {
		return 0, fmt.Errorf("%s has no idno field: %w", entity.Name, repositories.ErrNotFound)
	}
	d := r.store.dialect
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		d.Quote(entity.Key), d.Quote(entity.Name), d.Quote(entity.IdnoField))
	if entity.DeletedField != "" {
		query += " AND " + d.Quote(entity.DeletedField) + " = 0"
	}
	query += " ORDER BY " + d.Quote(entity.Key)

	rows, err := r.store.Select(ctx, query, idno)
	if err != nil {
		return 0, fmt.Errorf("failed to look up %s by idno: %w", entity.Name, err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("%s idno %q: %w", entity.Name, idno, repositories.ErrNotFound)
	}
	return rows[0].Int64(entity.Key), nil
}

// Exists reports whether the row exists
func (r *EntityRepository) Exists(ctx context.Context, entity *entities.EntityDef, id int64) (bool, error) {
	d := r.store.dialect
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", d.Quote(entity.Name), d.Quote(entity.Key))
	var n int64
	if err := r.store.queryRow(ctx, query, id).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check %s row: %w", entity.Name, err)
	}
	return n > 0, nil
}

// GetForeignKey returns the value of a reference field
func (r *EntityRepository) GetForeignKey(ctx context.Context, entity *entities.EntityDef, id int64, field string) (int64, error) {
	d := r.store.dialect
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", d.Quote(field), d.Quote(entity.Name), d.Quote(entity.Key))
	rows, err := r.store.Select(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s.%s: %w", entity.Name, field, err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("%s row %d: %w", entity.Name, id, repositories.ErrNotFound)
	}
	return rows[0].Int64(field), nil
}

// SetForeignKey assigns a reference field
func (r *EntityRepository) SetForeignKey(ctx context.Context, entity *entities.EntityDef, id int64, field string, value int64) error {
	d := r.store.dialect
	query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", d.Quote(entity.Name), d.Quote(field), d.Quote(entity.Key))
	res, err := r.store.exec(ctx, query, nullInt64(value), id)
	if err != nil {
		return fmt.Errorf("failed to set %s.%s: %w", entity.Name, field, err)
	}
	return expectRow(res, entity.Name, id)
}

// IDsByForeignKey returns the ids of rows whose field equals value
func (r *EntityRepository) IDsByForeignKey(ctx context.Context, entity *entities.EntityDef, field string, value int64, typeIDs []int64) ([]int64, error) {
	d := r.store.dialect
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", d.Quote(entity.Key), d.Quote(entity.Name), d.Quote(field))
	args := []interface{}{value}
	if len(typeIDs) > 0 && entity.TypeField != "" {
		cond, condArgs := r.store.in(d.Quote(entity.TypeField), typeIDs)
		query += " AND " + cond
		args = append(args, condArgs...)
	}
	query += " ORDER BY " + d.Quote(entity.Key)

	rows, err := r.store.Select(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", entity.Name, field, err)
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.Int64(entity.Key))
	}
	return ids, nil
}

// RepointForeignKey moves every reference from fromID to toID and returns the ids changed
func (r *EntityRepository) RepointForeignKey(ctx context.Context, entity *entities.EntityDef, field string, fromID, toID int64) ([]int64, error) {
	var ids []int64
	err := r.store.inTx(ctx, func(ctx context.Context) error {
		var err error
		ids, err = r.IDsByForeignKey(ctx, entity, field, fromID, nil)
		if err != nil || len(ids) == 0 {
			return err
		}
		d := r.store.dialect
		query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", d.Quote(entity.Name), d.Quote(field), d.Quote(field))
		if _, err := r.store.exec(ctx, query, toID, fromID); err != nil {
			return fmt.Errorf("failed to repoint %s.%s: %w", entity.Name, field, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// CountReferences counts rows of table whose field equals id
func (r *EntityRepository) CountReferences(ctx context.Context, table, field string, id int64) (int64, error) {
	d := r.store.dialect
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", d.Quote(table), d.Quote(field))
	var n int64
	if err := r.store.queryRow(ctx, query, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s rows: %w", table, err)
	}
	return n, nil
}

// GetMany loads full rows in the order of ids. Missing ids are skipped.
func (r *EntityRepository) GetMany(ctx context.Context, entity *entities.EntityDef, ids []int64) ([]*entities.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	d := r.store.dialect
	cond, args := r.store.in(d.Quote(entity.Key), ids)
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s", d.Quote(entity.Name), cond)

	rows, err := r.store.Select(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s rows: %w", entity.Name, err)
	}

	byID := make(map[int64]*entities.Record, len(rows))
	for _, row := range rows {
		id := row.Int64(entity.Key)
		byID[id] = &entities.Record{Table: entity.Name, ID: id, Fields: map[string]interface{}(row)}
	}

	records := make([]*entities.Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			records = append(records, rec)
		}
	}
	return records, nil
}
