package relationships

import (
	"context"
	"errors"
	"time"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/repositories"
	"go.uber.org/zap"
)

// Remove deletes one relationship. relationID is the link row id, or for
// many-to-one paths the id of the many-side row whose reference is cleared.
func (e *Engine) Remove(ctx context.Context, subject entities.Subject, target string, relationID int64) (err error) {
	defer func(start time.Time) { e.finish(OpRemove, start, err) }(time.Now())

	ctx, err = e.begin(ctx, subject)
	if err != nil {
		return err
	}
	res, err := e.resolve(ctx, OpRemove, subject, target)
	if err != nil {
		return err
	}
	if err := e.checkEdit(ctx, OpRemove, subject); err != nil {
		return err
	}
	return e.remove(ctx, subject, res, relationID)
}

func (e *Engine) remove(ctx context.Context, subject entities.Subject, res *entities.Resolution, relationID int64) error {
	if p, ok := res.Path.(*entities.ManyToOnePath); ok {
		return e.removeManyToOne(ctx, subject, p, relationID)
	}

	link := res.Link()
	if _, err := e.ownedRelation(ctx, OpRemove, subject, res, relationID); err != nil {
		return err
	}
	if err := e.repos.Links.Delete(ctx, link, relationID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return entities.NewNotFoundError(OpRemove, link.Name, relationID)
		}
		return writeErr(OpRemove, err)
	}
	if e.repos.Attributes != nil {
		if err := e.repos.Attributes.DeleteForRow(ctx, link.Number, relationID); err != nil {
			return writeErr(OpRemove, err)
		}
	}
	e.logger.Debug("relationship removed", zap.String("table", link.Name), zap.Int64("relation_id", relationID))
	return nil
}

func (e *Engine) removeManyToOne(ctx context.Context, subject entities.Subject, p *entities.ManyToOnePath, relationID int64) error {
	many := e.resolver.Graph().Entity(p.ManyTable)
	id := subject.ID
	if p.SubjectIsOne() {
		current, err := e.repos.Entities.GetForeignKey(ctx, many, relationID, p.FKField)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return entities.NewNotFoundError(OpRemove, p.ManyTable, relationID)
			}
			return writeErr(OpRemove, err)
		}
		if current != subject.ID {
			return entities.NewNotFoundError(OpRemove, p.ManyTable, relationID)
		}
		id = relationID
	}
	if err := e.repos.Entities.SetForeignKey(ctx, many, id, p.FKField, 0); err != nil {
		return writeErr(OpRemove, err)
	}
	return nil
}

// RemoveAllRequest selects the relationships RemoveAll deletes. Empty lists select everything.
type RemoveAllRequest struct {
	Target          string
	Types           []string // Relationship type ids or codes, subtypes included
	RestrictToTypes []string // Entity type ids or idnos of the related rows, subtypes included
}

// RemoveAll removes every matching relationship one by one and returns a result
// per relationship. It is not atomic: it stops at the first failure and rows
// removed before it stay removed.
func (e *Engine) RemoveAll(ctx context.Context, subject entities.Subject, req RemoveAllRequest) (results []entities.ItemResult, err error) {
	defer func(start time.Time) { e.finish(OpRemoveAll, start, err) }(time.Now())

	ctx, err = e.begin(ctx, subject)
	if err != nil {
		return nil, err
	}
	res, err := e.resolve(ctx, OpRemoveAll, subject, req.Target)
	if err != nil {
		return nil, err
	}
	if err := e.checkEdit(ctx, OpRemoveAll, subject); err != nil {
		return nil, err
	}

	ids, err := e.matching(ctx, subject, res, &req)
	if err != nil {
		return nil, err
	}

	results = make([]entities.ItemResult, 0, len(ids))
	for _, id := range ids {
		rerr := e.remove(ctx, subject, res, id)
		results = append(results, entities.ItemResult{RelationID: id, Err: rerr})
		if rerr != nil {
			e.post(rerr)
			return results, rerr
		}
	}
	e.logger.Info("relationships removed",
		zap.String("table", subject.Table), zap.Int64("id", subject.ID),
		zap.String("target", res.TargetTable), zap.Int("count", len(results)))
	return results, nil
}

// matching returns the ids RemoveAll deletes
func (e *Engine) matching(ctx context.Context, subject entities.Subject, res *entities.Resolution, req *RemoveAllRequest) ([]int64, error) {
	graph := e.resolver.Graph()
	targetEntity := graph.Entity(res.TargetTable)

	var restrictTypes []int64
	if len(req.RestrictToTypes) > 0 && e.types != nil {
		var err error
		restrictTypes, err = e.types.ExpandEntityTypes(ctx, res.TargetTable, req.RestrictToTypes, true)
		if err != nil {
			return nil, err
		}
	}

	if p, ok := res.Path.(*entities.ManyToOnePath); ok {
		if !p.SubjectIsOne() {
			current, err := e.repos.Entities.GetForeignKey(ctx, graph.Entity(p.ManyTable), subject.ID, p.FKField)
			if err != nil || current == 0 {
				return nil, err
			}
			return []int64{subject.ID}, nil
		}
		return e.repos.Entities.IDsByForeignKey(ctx, graph.Entity(p.ManyTable), p.FKField, subject.ID, restrictTypes)
	}

	link := res.Link()
	var typeIDs []int64
	if len(req.Types) > 0 && link.HasType() && e.types != nil {
		var err error
		typeIDs, err = e.types.ExpandRelationshipTypes(ctx, link.Name, req.Types, true)
		if err != nil {
			return nil, err
		}
		if len(typeIDs) == 0 {
			return nil, nil
		}
	}

	restrict := func(field string) []repositories.TypeRestriction {
		if len(restrictTypes) == 0 {
			return nil
		}
		return []repositories.TypeRestriction{{Field: field, Entity: targetEntity, TypeIDs: restrictTypes}}
	}

	switch p := res.Path.(type) {
	case *entities.ManyToManyPath:
		filter := &repositories.LinkFilter{TypeIDs: typeIDs, Restrict: restrict(p.TargetField())}
		if p.SubjectIsLeft() {
			filter.LeftID = subject.ID
		} else {
			filter.RightID = subject.ID
		}
		return e.linkIDs(ctx, link, filter)

	case *entities.SelfRelationPath:
		// a row matches when either side has one of the types; the subject is always one side
		if len(restrictTypes) > 0 && targetEntity.TypeField != "" {
			subjectType, err := e.repos.Entities.GetForeignKey(ctx, targetEntity, subject.ID, targetEntity.TypeField)
			if err != nil {
				return nil, err
			}
			for _, t := range restrictTypes {
				if t == subjectType {
					restrictTypes = nil
					break
				}
			}
		}
		left, err := e.linkIDs(ctx, link, &repositories.LinkFilter{LeftID: subject.ID, TypeIDs: typeIDs, Restrict: restrict(link.RightField)})
		if err != nil {
			return nil, err
		}
		right, err := e.linkIDs(ctx, link, &repositories.LinkFilter{RightID: subject.ID, TypeIDs: typeIDs, Restrict: restrict(link.LeftField)})
		if err != nil {
			return nil, err
		}
		return union(left, right), nil
	}
	return nil, nil
}

func (e *Engine) linkIDs(ctx context.Context, link *entities.LinkDef, filter *repositories.LinkFilter) ([]int64, error) {
	rows, err := e.repos.Links.Find(ctx, link, filter)
	if err != nil {
		return nil, writeErr(OpRemoveAll, err)
	}
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids, nil
}

// union merges two ascending id lists without duplicates
func union(a, b []int64) []int64 {
	out := make([]int64, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j >= len(b) || (i < len(a) && a[i] < b[j]):
			out = append(out, a[i])
			i++
		case i >= len(a) || b[j] < a[i]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
