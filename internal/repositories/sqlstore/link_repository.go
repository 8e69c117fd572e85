package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/repositories"
)

// LinkRepository implements repositories.LinkRepository
type LinkRepository struct {
	store *Store
}

// NewLinkRepository creates a new link table repository
func NewLinkRepository(store *Store) repositories.LinkRepository {
	return &LinkRepository{store: store}
}

// columns returns the writable columns of the link (all but the key) with their values for rel
func (r *LinkRepository) columns(link *entities.LinkDef, rel *entities.Relation) ([]string, []interface{}) {
	cols := []string{link.LeftField, link.RightField}
	args := []interface{}{rel.LeftID, rel.RightID}

	if link.HasType() {
		cols = append(cols, link.TypeField)
		args = append(args, nullInt64(rel.TypeID))
	}
	if link.HasRank() {
		cols = append(cols, link.RankField)
		args = append(args, rel.Rank)
	}
	if link.HasEffectiveDate() {
		cols = append(cols, link.EffectiveStartField, link.EffectiveEndField)
		if rel.EffectiveDate != nil {
			args = append(args, rel.EffectiveDate.Start, rel.EffectiveDate.End)
		} else {
			args = append(args, nil, nil)
		}
	}
	if link.HasSourceInfo() {
		cols = append(cols, link.SourceInfoField)
		args = append(args, rel.SourceInfo)
	}
	if link.HasPrimary() {
		cols = append(cols, link.PrimaryField)
		args = append(args, boolInt(rel.IsPrimary))
	}
	return cols, args
}

func (r *LinkRepository) selectList(link *entities.LinkDef) string {
	cols, _ := r.columns(link, &entities.Relation{})
	quoted := make([]string, 0, len(cols)+1)
	quoted = append(quoted, r.store.dialect.Column("l", link.Key))
	for _, c := range cols {
		quoted = append(quoted, r.store.dialect.Column("l", c))
	}
	return strings.Join(quoted, ", ")
}

func (r *LinkRepository) toRelation(link *entities.LinkDef, row repositories.Row) *entities.Relation {
	rel := &entities.Relation{
		ID:        row.Int64(link.Key),
		LinkTable: link.Name,
		LeftID:    row.Int64(link.LeftField),
		RightID:   row.Int64(link.RightField),
	}
	if link.HasType() {
		rel.TypeID = row.Int64(link.TypeField)
	}
	if link.HasRank() {
		rel.Rank = row.Int64(link.RankField)
	}
	if link.HasEffectiveDate() && !row.IsNull(link.EffectiveStartField) {
		rel.EffectiveDate = &entities.EffectiveDate{
			Start: row.Float64(link.EffectiveStartField),
			End:   row.Float64(link.EffectiveEndField),
		}
	}
	if link.HasSourceInfo() {
		rel.SourceInfo = row.String(link.SourceInfoField)
	}
	if link.HasPrimary() {
		rel.IsPrimary = row.Bool(link.PrimaryField)
	}
	return rel
}

// Insert stores a new row and sets rel.ID
func (r *LinkRepository) Insert(ctx context.Context, link *entities.LinkDef, rel *entities.Relation) error {
	cols, args := r.columns(link, rel)
	id, err := r.store.insert(ctx, link.Name, link.Key, cols, args)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("failed to insert into %s: %w", link.Name, repositories.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert into %s: %w", link.Name, err)
	}
	rel.ID = id
	rel.LinkTable = link.Name

	if link.HasRank() && rel.Rank == 0 {
		query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?",
			r.store.dialect.Quote(link.Name), r.store.dialect.Quote(link.RankField), r.store.dialect.Quote(link.Key))
		if _, err := r.store.exec(ctx, query, id, id); err != nil {
			return fmt.Errorf("failed to set rank on %s: %w", link.Name, err)
		}
		rel.Rank = id
	}
	return nil
}

// Update rewrites every column of an existing row
func (r *LinkRepository) Update(ctx context.Context, link *entities.LinkDef, rel *entities.Relation) error {
	cols, args := r.columns(link, rel)
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = r.store.dialect.Quote(c) + " = ?"
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		r.store.dialect.Quote(link.Name), strings.Join(sets, ", "), r.store.dialect.Quote(link.Key))

	res, err := r.store.exec(ctx, query, append(args, rel.ID)...)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("failed to update %s: %w", link.Name, repositories.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to update %s: %w", link.Name, err)
	}
	return expectRow(res, link.Name, rel.ID)
}

// Delete removes a row
func (r *LinkRepository) Delete(ctx context.Context, link *entities.LinkDef, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?",
		r.store.dialect.Quote(link.Name), r.store.dialect.Quote(link.Key))
	res, err := r.store.exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", link.Name, err)
	}
	return expectRow(res, link.Name, id)
}

// Get loads a row
func (r *LinkRepository) Get(ctx context.Context, link *entities.LinkDef, id int64) (*entities.Relation, error) {
	query := fmt.Sprintf("SELECT %s FROM %s l WHERE %s = ?",
		r.selectList(link), r.store.dialect.Quote(link.Name), r.store.dialect.Column("l", link.Key))
	rows, err := r.store.Select(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s row: %w", link.Name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s row %d: %w", link.Name, id, repositories.ErrNotFound)
	}
	return r.toRelation(link, rows[0]), nil
}

// Find returns rows matching the filter ordered by primary key
func (r *LinkRepository) Find(ctx context.Context, link *entities.LinkDef, filter *repositories.LinkFilter) ([]*entities.Relation, error) {
	d := r.store.dialect
	query := fmt.Sprintf("SELECT %s FROM %s l WHERE 1 = 1", r.selectList(link), d.Quote(link.Name))
	var args []interface{}

	if filter != nil {
		if filter.LeftID != 0 {
			query += " AND " + d.Column("l", link.LeftField) + " = ?"
			args = append(args, filter.LeftID)
		}
		if filter.RightID != 0 {
			query += " AND " + d.Column("l", link.RightField) + " = ?"
			args = append(args, filter.RightID)
		}
		if len(filter.TypeIDs) > 0 && link.HasType() {
			cond, condArgs := r.store.in(d.Column("l", link.TypeField), filter.TypeIDs)
			query += " AND " + cond
			args = append(args, condArgs...)
		}
		if filter.EffectiveDate != nil && link.HasEffectiveDate() {
			query += " AND " + d.Column("l", link.EffectiveStartField) + " = ? AND " + d.Column("l", link.EffectiveEndField) + " = ?"
			args = append(args, filter.EffectiveDate.Start, filter.EffectiveDate.End)
		}
		if filter.ExcludeID != 0 {
			query += " AND " + d.Column("l", link.Key) + " <> ?"
			args = append(args, filter.ExcludeID)
		}
		for i, restrict := range filter.Restrict {
			if restrict.Entity == nil || restrict.Entity.TypeField == "" || len(restrict.TypeIDs) == 0 {
				continue
			}
			alias := fmt.Sprintf("r%d", i)
			cond, condArgs := r.store.in(d.Column(alias, restrict.Entity.TypeField), restrict.TypeIDs)
			query += fmt.Sprintf(" AND %s IN (SELECT %s FROM %s %s WHERE %s)",
				d.Column("l", restrict.Field), d.Column(alias, restrict.Entity.Key), d.Quote(restrict.Entity.Name), alias, cond)
			args = append(args, condArgs...)
		}
	}
	query += " ORDER BY " + d.Column("l", link.Key)

	rows, err := r.store.Select(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", link.Name, err)
	}

	relations := make([]*entities.Relation, 0, len(rows))
	for _, row := range rows {
		relations = append(relations, r.toRelation(link, row))
	}
	return relations, nil
}

// Repoint sets field to toID on every row where it equals fromID
func (r *LinkRepository) Repoint(ctx context.Context, link *entities.LinkDef, field string, fromID, toID int64) (int64, error) {
	query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?",
		r.store.dialect.Quote(link.Name), r.store.dialect.Quote(field), r.store.dialect.Quote(field))
	res, err := r.store.exec(ctx, query, toID, fromID)
	if err != nil {
		return 0, fmt.Errorf("failed to repoint %s.%s: %w", link.Name, field, err)
	}
	return res.RowsAffected()
}

// ClearPrimary unsets the primary flag on rows where field equals id, except keepID
func (r *LinkRepository) ClearPrimary(ctx context.Context, link *entities.LinkDef, field string, id, keepID int64) error {
	if !link.HasPrimary() {
		return nil
	}
	d := r.store.dialect
	query := fmt.Sprintf("UPDATE %s SET %s = 0 WHERE %s = ? AND %s <> ?",
		d.Quote(link.Name), d.Quote(link.PrimaryField), d.Quote(field), d.Quote(link.Key))
	if _, err := r.store.exec(ctx, query, id, keepID); err != nil {
		return fmt.Errorf("failed to clear primary flag on %s: %w", link.Name, err)
	}
	return nil
}

// expectRow maps an update or delete that touched nothing to ErrNotFound
func expectRow(res interface{ RowsAffected() (int64, error) }, table string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s row %d: %w", table, id, repositories.ErrNotFound)
	}
	return nil
}

