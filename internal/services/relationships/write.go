package relationships

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/repositories"
	"go.uber.org/zap"
)

// Interstitial value keys stored on link columns rather than as attribute values
const (
	ValueEffectiveDate = "effective_date"
	ValueSourceInfo    = "source_info"
)

// AddRequest describes a relationship to create or, for Edit, the new state of one
type AddRequest struct {
	Target        string             // Related table name or number (e.g., "tags", "58")
	TargetRef     string             // Related row: primary key or idno
	Type          string             // Relationship type id or type_code; empty for none
	EffectiveDate string             // Date expression; empty falls back to Values["effective_date"]
	SourceInfo    string             // Empty falls back to Values["source_info"]
	Direction     entities.Direction // Self relations only; default ltor
	Rank          int64              // 0 keeps the existing rank (Edit) or uses the new id (Add)
	Values        map[string]interface{}

	AllowDuplicates     bool // Overrides the configured default when true
	SetErrorOnDuplicate bool // Post duplicate failures to the error list
}

func (r *AddRequest) effectiveDate() string {
	if r.EffectiveDate != "" {
		return r.EffectiveDate
	}
	if v, ok := r.Values[ValueEffectiveDate]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func (r *AddRequest) sourceInfo() string {
	if r.SourceInfo != "" {
		return r.SourceInfo
	}
	if v, ok := r.Values[ValueSourceInfo]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// attributes returns the interstitial values that are not link columns, sorted by key
func (r *AddRequest) attributes() []string {
	keys := make([]string, 0, len(r.Values))
	for k := range r.Values {
		if k == ValueEffectiveDate || k == ValueSourceInfo {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Add creates a relationship between the subject and the target row
func (e *Engine) Add(ctx context.Context, subject entities.Subject, req AddRequest) (result *entities.WriteResult, err error) {
	defer func(start time.Time) { e.finish(OpAdd, start, err) }(time.Now())
	return e.write(ctx, OpAdd, subject, 0, req)
}

// Edit changes an existing relationship. relationID is the link row id, or for
// many-to-one paths the id of the many-side row whose reference is reassigned.
func (e *Engine) Edit(ctx context.Context, subject entities.Subject, relationID int64, req AddRequest) (result *entities.WriteResult, err error) {
	defer func(start time.Time) { e.finish(OpEdit, start, err) }(time.Now())
	if relationID <= 0 {
		return nil, entities.NewNotFoundError(OpEdit, req.Target, relationID)
	}
	return e.write(ctx, OpEdit, subject, relationID, req)
}

func (e *Engine) write(ctx context.Context, op string, subject entities.Subject, relationID int64, req AddRequest) (*entities.WriteResult, error) {
	ctx, err := e.begin(ctx, subject)
	if err != nil {
		return nil, err
	}
	res, err := e.resolve(ctx, op, subject, req.Target)
	if err != nil {
		return nil, err
	}
	if err := e.checkEdit(ctx, op, subject); err != nil {
		return nil, err
	}

	typeID, err := e.resolveType(ctx, op, res.Link(), req.Type)
	if err != nil {
		return nil, err
	}

	targetID, err := e.resolver.TargetID(ctx, res.TargetTable, req.TargetRef)
	if err != nil {
		return nil, err
	}

	var existing *entities.Relation
	if _, ok := res.Path.(*entities.ManyToOnePath); !ok && relationID != 0 {
		existing, err = e.ownedRelation(ctx, op, subject, res, relationID)
		if err != nil {
			return nil, err
		}
	}

	var date *entities.EffectiveDate
	if expr := req.effectiveDate(); expr != "" || existing == nil {
		date, err = entities.ParseEffectiveDate(expr)
		if err != nil {
			return nil, entities.NewWriteError(op, err)
		}
	} else {
		date = existing.EffectiveDate
	}

	if !req.AllowDuplicates && !e.cfg.AllowDuplicates {
		ids, err := e.exists(ctx, subject, res, targetID, typeID, date, req.Direction, relationID)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			dup := entities.NewDuplicateError(op, ids)
			if req.SetErrorOnDuplicate {
				e.post(dup)
			}
			return nil, dup
		}
	}

	switch p := res.Path.(type) {
	case *entities.ManyToOnePath:
		return e.writeManyToOne(ctx, op, subject, p, relationID, targetID)
	default:
		return e.writeLink(ctx, op, subject, res, existing, targetID, typeID, date, &req)
	}
}

// writeLink inserts a link row for self and many-to-many paths, or updates
// existing when it is set. Columns the request leaves empty keep their stored value.
func (e *Engine) writeLink(ctx context.Context, op string, subject entities.Subject, res *entities.Resolution, existing *entities.Relation, targetID, typeID int64, date *entities.EffectiveDate, req *AddRequest) (*entities.WriteResult, error) {
	link := res.Link()

	rel := &entities.Relation{LinkTable: link.Name}
	if existing != nil {
		rel = existing
	}

	left, right := subject.ID, targetID
	switch p := res.Path.(type) {
	case *entities.SelfRelationPath:
		if req.Direction == entities.DirectionRightToLeft {
			left, right = targetID, subject.ID
		}
	case *entities.ManyToManyPath:
		if !p.SubjectIsLeft() {
			left, right = targetID, subject.ID
		}
	}

	rel.LeftID = left
	rel.RightID = right
	rel.TypeID = typeID
	rel.EffectiveDate = date
	if src := req.sourceInfo(); src != "" || existing == nil {
		rel.SourceInfo = src
	}
	if req.Rank > 0 {
		rel.Rank = req.Rank
	}

	if existing == nil {
		if err := e.repos.Links.Insert(ctx, link, rel); err != nil {
			return nil, writeErr(op, err)
		}
	} else if err := e.repos.Links.Update(ctx, link, rel); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, entities.NewNotFoundError(op, link.Name, rel.ID)
		}
		return nil, writeErr(op, err)
	}

	if err := e.storeAttributes(ctx, link, rel.ID, req); err != nil {
		return nil, writeErr(op, err)
	}

	e.logger.Debug("relationship written",
		zap.String("op", op), zap.String("table", link.Name), zap.Int64("relation_id", rel.ID))
	return &entities.WriteResult{Kind: res.Path.Kind(), Relation: rel}, nil
}

// ownedRelation loads a link row and checks that the subject is on its side of
// the link, either side for self relations. Rows of other subjects are reported
// as not found.
func (e *Engine) ownedRelation(ctx context.Context, op string, subject entities.Subject, res *entities.Resolution, relationID int64) (*entities.Relation, error) {
	link := res.Link()
	rel, err := e.repos.Links.Get(ctx, link, relationID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, entities.NewNotFoundError(op, link.Name, relationID)
		}
		return nil, writeErr(op, err)
	}

	var owned bool
	switch p := res.Path.(type) {
	case *entities.SelfRelationPath:
		owned = rel.LeftID == subject.ID || rel.RightID == subject.ID
	case *entities.ManyToManyPath:
		if p.SubjectIsLeft() {
			owned = rel.LeftID == subject.ID
		} else {
			owned = rel.RightID == subject.ID
		}
	}
	if !owned {
		return nil, entities.NewNotFoundError(op, link.Name, relationID)
	}
	return rel, nil
}

// storeAttributes attaches the remaining interstitial values to the link row.
// On Edit the previous values are replaced when new ones are given.
func (e *Engine) storeAttributes(ctx context.Context, link *entities.LinkDef, rowID int64, req *AddRequest) error {
	keys := req.attributes()
	if len(keys) == 0 || e.repos.Attributes == nil {
		return nil
	}
	if err := e.repos.Attributes.DeleteForRow(ctx, link.Number, rowID); err != nil {
		return err
	}
	for _, k := range keys {
		v := req.Values[k]
		if v == nil {
			continue
		}
		value := &entities.AttributeValue{TableNum: link.Number, RowID: rowID, ElementCode: k, Value: fmt.Sprint(v)}
		if _, err := e.repos.Attributes.Add(ctx, value); err != nil {
			return err
		}
	}
	return nil
}

// writeManyToOne assigns the foreign key. When the subject is the one side the
// target row's reference is set to the subject; otherwise the subject's own
// reference is set to the target.
func (e *Engine) writeManyToOne(ctx context.Context, op string, subject entities.Subject, p *entities.ManyToOnePath, relationID, targetID int64) (*entities.WriteResult, error) {
	graph := e.resolver.Graph()
	many := graph.Entity(p.ManyTable)

	if p.SubjectIsOne() {
		if relationID != 0 && relationID != targetID {
			current, err := e.repos.Entities.GetForeignKey(ctx, many, relationID, p.FKField)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return nil, entities.NewNotFoundError(op, p.ManyTable, relationID)
				}
				return nil, writeErr(op, err)
			}
			if current != subject.ID {
				return nil, entities.NewNotFoundError(op, p.ManyTable, relationID)
			}
			if err := e.repos.Entities.SetForeignKey(ctx, many, relationID, p.FKField, 0); err != nil {
				return nil, writeErr(op, err)
			}
		}
		if err := e.repos.Entities.SetForeignKey(ctx, many, targetID, p.FKField, subject.ID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, entities.NewNotFoundError(op, p.ManyTable, targetID)
			}
			return nil, writeErr(op, err)
		}
		return &entities.WriteResult{Kind: entities.PathManyToOne, Entity: &entities.EntityRef{Table: p.ManyTable, ID: targetID}}, nil
	}

	if err := e.repos.Entities.SetForeignKey(ctx, many, subject.ID, p.FKField, targetID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, entities.NewNotFoundError(op, p.ManyTable, subject.ID)
		}
		return nil, writeErr(op, err)
	}
	return &entities.WriteResult{Kind: entities.PathManyToOne, Entity: &entities.EntityRef{Table: p.ManyTable, ID: subject.ID}}, nil
}
