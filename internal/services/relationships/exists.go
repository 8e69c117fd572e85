package relationships

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/repositories"
)

// ExistsRequest describes the relationship to look for
type ExistsRequest struct {
	Target            string
	TargetRef         string
	Type              string // Relationship type id or code; empty matches any type
	EffectiveDate     string // Empty matches any date
	Direction         entities.Direction
	ExcludeRelationID int64
}

// Exists returns the ids of the relationships matching req. An empty slice means none exist.
// Self relations match in both orientations.
func (e *Engine) Exists(ctx context.Context, subject entities.Subject, req ExistsRequest) (ids []int64, err error) {
	defer func(start time.Time) { e.finish(OpExists, start, err) }(time.Now())

	ctx, err = e.begin(ctx, subject)
	if err != nil {
		return nil, err
	}
	res, err := e.resolve(ctx, OpExists, subject, req.Target)
	if err != nil {
		return nil, err
	}
	typeID, err := e.resolveType(ctx, OpExists, res.Link(), req.Type)
	if err != nil {
		return nil, err
	}
	targetID, err := e.resolver.TargetID(ctx, res.TargetTable, req.TargetRef)
	if err != nil {
		if errors.Is(err, entities.ErrTargetNotFound) {
			return []int64{}, nil
		}
		return nil, err
	}
	date, err := entities.ParseEffectiveDate(req.EffectiveDate)
	if err != nil {
		return nil, entities.NewWriteError(OpExists, err)
	}
	return e.exists(ctx, subject, res, targetID, typeID, date, req.Direction, req.ExcludeRelationID)
}

func (e *Engine) exists(ctx context.Context, subject entities.Subject, res *entities.Resolution, targetID, typeID int64, date *entities.EffectiveDate, dir entities.Direction, excludeID int64) ([]int64, error) {
	if p, ok := res.Path.(*entities.ManyToOnePath); ok {
		return e.existsManyToOne(ctx, subject, p, targetID, excludeID)
	}

	link := res.Link()
	filter := &repositories.LinkFilter{EffectiveDate: date, ExcludeID: excludeID}
	if typeID != 0 {
		filter.TypeIDs = []int64{typeID}
	}

	switch p := res.Path.(type) {
	case *entities.SelfRelationPath:
		filter.LeftID, filter.RightID = subject.ID, targetID
		if dir == entities.DirectionRightToLeft {
			filter.LeftID, filter.RightID = targetID, subject.ID
		}
	case *entities.ManyToManyPath:
		filter.LeftID, filter.RightID = subject.ID, targetID
		if !p.SubjectIsLeft() {
			filter.LeftID, filter.RightID = targetID, subject.ID
		}
	}

	rows, err := e.repos.Links.Find(ctx, link, filter)
	if err != nil {
		return nil, writeErr(OpExists, err)
	}
	seen := make(map[int64]bool, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		seen[r.ID] = true
		ids = append(ids, r.ID)
	}

	if _, self := res.Path.(*entities.SelfRelationPath); self && filter.LeftID != filter.RightID {
		filter.LeftID, filter.RightID = filter.RightID, filter.LeftID
		rows, err := e.repos.Links.Find(ctx, link, filter)
		if err != nil {
			return nil, writeErr(OpExists, err)
		}
		for _, r := range rows {
			if !seen[r.ID] {
				ids = append(ids, r.ID)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return ids, nil
}

// existsManyToOne compares the stored reference with the expected one and returns the target id on a match
func (e *Engine) existsManyToOne(ctx context.Context, subject entities.Subject, p *entities.ManyToOnePath, targetID, excludeID int64) ([]int64, error) {
	many := e.resolver.Graph().Entity(p.ManyTable)
	manyID, oneID := subject.ID, targetID
	if p.SubjectIsOne() {
		manyID, oneID = targetID, subject.ID
	}

	current, err := e.repos.Entities.GetForeignKey(ctx, many, manyID, p.FKField)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return []int64{}, nil
		}
		return nil, writeErr(OpExists, err)
	}
	if current == 0 || current != oneID || targetID == excludeID {
		return []int64{}, nil
	}
	return []int64{targetID}, nil
}
