package relationships

import (
	"context"
	"fmt"
	"time"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/repositories"
	"go.uber.org/zap"
)

// Move re-points every relationship between the subject and target rows to
// the row toID of the subject's table and returns the number of rows moved.
// Without an ambient transaction Move opens its own and rolls it back on failure.
func (e *Engine) Move(ctx context.Context, subject entities.Subject, target string, toID int64) (n int64, err error) {
	defer func(start time.Time) { e.finish(OpMove, start, err) }(time.Now())

	ctx, err = e.begin(ctx, subject)
	if err != nil {
		return 0, err
	}
	res, err := e.resolve(ctx, OpMove, subject, target)
	if err != nil {
		return 0, err
	}
	if err := e.checkEdit(ctx, OpMove, subject); err != nil {
		return 0, err
	}

	if subject.Tx != nil || e.transactor == nil {
		return e.move(ctx, subject, res, toID)
	}

	tx, err := e.transactor.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	n, err = e.move(repositories.WithTx(ctx, tx), subject, res, toID)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			e.logger.Error("failed to roll back move", zap.Error(rbErr))
		}
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, writeErr(OpMove, fmt.Errorf("failed to commit transaction: %w", err))
	}
	return n, nil
}

func (e *Engine) move(ctx context.Context, subject entities.Subject, res *entities.Resolution, toID int64) (int64, error) {
	var moved []*entities.Relation
	var link *entities.LinkDef
	var exclusion string

	switch p := res.Path.(type) {
	case *entities.ManyToOnePath:
		return e.moveManyToOne(ctx, subject, p, toID)

	case *entities.SelfRelationPath:
		link = p.Link
		exclusion = e.resolver.Graph().PrimaryKey(subject.Table)
		rows, err := e.relationsOf(ctx, link, subject.ID, true)
		if err != nil {
			return 0, err
		}
		if len(rows) == 0 {
			return 0, nil
		}
		moved = rows
		for _, field := range []string{link.LeftField, link.RightField} {
			if _, err := e.repos.Links.Repoint(ctx, link, field, subject.ID, toID); err != nil {
				return 0, writeErr(OpMove, err)
			}
		}

	case *entities.ManyToManyPath:
		link = p.Link
		field := p.SubjectField()
		exclusion = field
		rows, err := e.relationsOf(ctx, link, subject.ID, p.SubjectIsLeft())
		if err != nil {
			return 0, err
		}
		if len(rows) == 0 {
			return 0, nil
		}
		moved = rows
		if _, err := e.repos.Links.Repoint(ctx, link, field, subject.ID, toID); err != nil {
			return 0, writeErr(OpMove, err)
		}
		if link.HasPrimary() {
			if err := e.keepFirstPrimary(ctx, link, field, toID, p.SubjectIsLeft()); err != nil {
				return 0, err
			}
		}
	}

	for _, rel := range moved {
		e.reindex(ctx, link, rel, []string{exclusion})
	}
	e.logger.Info("relationships moved",
		zap.String("table", link.Name), zap.Int64("from", subject.ID), zap.Int64("to", toID), zap.Int("count", len(moved)))
	return int64(len(moved)), nil
}

// keepFirstPrimary leaves only the first primary row of the destination flagged
func (e *Engine) keepFirstPrimary(ctx context.Context, link *entities.LinkDef, field string, toID int64, left bool) error {
	rows, err := e.relationsOf(ctx, link, toID, left)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.IsPrimary {
			if err := e.repos.Links.ClearPrimary(ctx, link, field, toID, r.ID); err != nil {
				return writeErr(OpMove, err)
			}
			return nil
		}
	}
	return nil
}

// relationsOf loads the link rows holding id on the left (or right) side. For
// self links with left set, both sides are searched.
func (e *Engine) relationsOf(ctx context.Context, link *entities.LinkDef, id int64, left bool) ([]*entities.Relation, error) {
	var filter repositories.LinkFilter
	if left {
		filter.LeftID = id
	} else {
		filter.RightID = id
	}
	rows, err := e.repos.Links.Find(ctx, link, &filter)
	if err != nil {
		return nil, writeErr(OpMove, err)
	}
	if !link.IsSelf() || !left {
		return rows, nil
	}

	right, err := e.repos.Links.Find(ctx, link, &repositories.LinkFilter{RightID: id})
	if err != nil {
		return nil, writeErr(OpMove, err)
	}
	seen := make(map[int64]bool, len(rows))
	for _, r := range rows {
		seen[r.ID] = true
	}
	for _, r := range right {
		if !seen[r.ID] {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

// moveManyToOne re-points references held by the many table. A subject on the
// many side holds a single reference of its own and has nothing to move.
func (e *Engine) moveManyToOne(ctx context.Context, subject entities.Subject, p *entities.ManyToOnePath, toID int64) (int64, error) {
	if !p.SubjectIsOne() {
		return 0, nil
	}
	many := e.resolver.Graph().Entity(p.ManyTable)
	ids, err := e.repos.Entities.RepointForeignKey(ctx, many, p.FKField, subject.ID, toID)
	if err != nil {
		return 0, writeErr(OpMove, err)
	}
	for _, id := range ids {
		row := map[string]interface{}{many.Key: id, p.FKField: toID}
		locale := entities.ScopeFromContext(ctx).Locale
		if err := e.indexer.IndexRow(ctx, many.Number, id, row, false, locale, []string{p.FKField}); err != nil {
			e.logger.Warn("failed to reindex row", zap.String("table", many.Name), zap.Int64("id", id), zap.Error(err))
			continue
		}
		e.instr.Reindexed(1)
	}
	e.logger.Info("references moved",
		zap.String("table", many.Name), zap.Int64("from", subject.ID), zap.Int64("to", toID), zap.Int("count", len(ids)))
	return int64(len(ids)), nil
}

// Copy duplicates every relationship between the subject and target rows onto
// the row toID, keeping the other columns, and returns the number of rows created.
// With copyAttributes the attribute values of each row are copied too.
func (e *Engine) Copy(ctx context.Context, subject entities.Subject, target string, toID int64, copyAttributes bool) (n int64, err error) {
	defer func(start time.Time) { e.finish(OpCopy, start, err) }(time.Now())

	ctx, err = e.begin(ctx, subject)
	if err != nil {
		return 0, err
	}
	res, err := e.resolve(ctx, OpCopy, subject, target)
	if err != nil {
		return 0, err
	}
	if err := e.checkEdit(ctx, OpCopy, subject); err != nil {
		return 0, err
	}

	if p, ok := res.Path.(*entities.ManyToOnePath); ok {
		return e.copyManyToOne(ctx, subject, p, toID)
	}

	link := res.Link()
	var exclusion, subjectField string
	var rows []*entities.Relation
	switch p := res.Path.(type) {
	case *entities.SelfRelationPath:
		exclusion = e.resolver.Graph().PrimaryKey(subject.Table)
		rows, err = e.relationsOf(ctx, link, subject.ID, true)
	case *entities.ManyToManyPath:
		exclusion = p.SubjectField()
		subjectField = p.SubjectField()
		rows, err = e.relationsOf(ctx, link, subject.ID, p.SubjectIsLeft())
	}
	if err != nil {
		return 0, writeErr(OpCopy, err)
	}

	for _, rel := range rows {
		clone := rel.Clone()
		switch {
		case subjectField != "":
			clone.SetSide(link, subjectField, toID)
		case rel.LeftID == subject.ID:
			clone.LeftID = toID
		default:
			clone.RightID = toID
		}
		if err := e.repos.Links.Insert(ctx, link, clone); err != nil {
			return n, writeErr(OpCopy, err)
		}
		if copyAttributes && e.repos.Attributes != nil {
			if err := e.copyAttributes(ctx, link, rel.ID, clone.ID); err != nil {
				return n, writeErr(OpCopy, err)
			}
		}
		n++
		e.reindex(ctx, link, clone, []string{exclusion})
	}
	e.logger.Info("relationships copied",
		zap.String("table", link.Name), zap.Int64("from", subject.ID), zap.Int64("to", toID), zap.Int64("count", n))
	return n, nil
}

func (e *Engine) copyAttributes(ctx context.Context, link *entities.LinkDef, fromID, toID int64) error {
	values, err := e.repos.Attributes.ListForRow(ctx, link.Number, fromID)
	if err != nil {
		return err
	}
	for _, v := range values {
		if _, err := e.repos.Attributes.Add(ctx, v.CopyTo(toID)); err != nil {
			return err
		}
	}
	return nil
}

// copyManyToOne gives toID the subject's reference. A subject on the one side
// cannot share its referencing rows, so there is no path to copy along.
func (e *Engine) copyManyToOne(ctx context.Context, subject entities.Subject, p *entities.ManyToOnePath, toID int64) (int64, error) {
	if p.SubjectIsOne() {
		return 0, entities.NewNoPathError(OpCopy, p.Subject, p.Target)
	}
	many := e.resolver.Graph().Entity(p.ManyTable)
	current, err := e.repos.Entities.GetForeignKey(ctx, many, subject.ID, p.FKField)
	if err != nil {
		return 0, writeErr(OpCopy, err)
	}
	if current == 0 {
		return 0, nil
	}
	if err := e.repos.Entities.SetForeignKey(ctx, many, toID, p.FKField, current); err != nil {
		return 0, writeErr(OpCopy, err)
	}
	return 1, nil
}

// HasRelationships counts, per table, the rows referencing the subject. Tables
// without references are omitted.
func (e *Engine) HasRelationships(ctx context.Context, subject entities.Subject) (counts map[string]int64, err error) {
	defer func(start time.Time) { e.finish(OpHasRelationships, start, err) }(time.Now())

	ctx, err = e.begin(ctx, subject)
	if err != nil {
		return nil, err
	}
	graph := e.resolver.Graph()
	if graph.Entity(subject.Table) == nil {
		return nil, entities.NewInvalidTableError(OpHasRelationships, subject.Table)
	}

	counts = make(map[string]int64)
	for _, rel := range graph.OneToManyRelations(subject.Table, "") {
		n, err := e.repos.Entities.CountReferences(ctx, rel.ManyTable, rel.ManyField, subject.ID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			counts[rel.ManyTable] += n
		}
	}
	return counts, nil
}
