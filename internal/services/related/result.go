package related

import (
	"context"
	"fmt"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/repositories"
)

// Result is the outcome of GetRelated. Which fields are set depends on Shape;
// Count is always the number of matches before pagination.
type Result struct {
	Shape   ReturnShape
	Count   int
	Items   []*entities.RelatedItem
	IDs     []int64
	Records []*entities.Record
	Search  *SearchResult
	FirstID int64
	First   *entities.Record
}

// SearchResult is a lazily hydrated list of related rows
type SearchResult struct {
	Table string
	IDs   []int64

	entity *entities.EntityDef
	repo   repositories.EntityRepository
}

// Len returns the number of rows
func (r *SearchResult) Len() int {
	return len(r.IDs)
}

// Records loads the rows in order
func (r *SearchResult) Records(ctx context.Context) ([]*entities.Record, error) {
	if r.repo == nil {
		return nil, fmt.Errorf("no repository for %s", r.Table)
	}
	return r.repo.GetMany(ctx, r.entity, r.IDs)
}

// shape builds the result for the requested return shape
func (s *Service) shape(ctx context.Context, res *entities.Resolution, items []*entities.RelatedItem, count int, opts *Options) (*Result, error) {
	result := &Result{Shape: opts.ReturnAs, Count: count}

	switch opts.ReturnAs {
	case ReturnCount:
		return result, nil
	case ReturnData:
		result.Items = items
		result.IDs = itemIDs(items)
		return result, nil
	case ReturnIDs:
		result.IDs = itemIDs(items)
		return result, nil
	case ReturnFirstID:
		if len(items) > 0 {
			result.FirstID = items[0].ItemID
		}
		return result, nil
	}

	entity := s.relatedEntity(res)
	ids := itemIDs(items)
	switch opts.ReturnAs {
	case ReturnSearchResult:
		result.Search = &SearchResult{Table: entity.Name, IDs: ids, entity: entity, repo: s.entityRepo}
	case ReturnEntities:
		records, err := s.entityRepo.GetMany(ctx, entity, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load related %s: %w", entity.Name, err)
		}
		result.Records = records
	case ReturnFirstEntity:
		if len(ids) == 0 {
			return result, nil
		}
		records, err := s.entityRepo.GetMany(ctx, entity, ids[:1])
		if err != nil {
			return nil, fmt.Errorf("failed to load related %s: %w", entity.Name, err)
		}
		if len(records) > 0 {
			result.First = records[0]
		}
	}
	return result, nil
}

// relatedEntity returns the definition rows of the related table are loaded with
func (s *Service) relatedEntity(res *entities.Resolution) *entities.EntityDef {
	if p, ok := res.Path.(*entities.LinkRowsPath); ok {
		return &entities.EntityDef{Name: p.Link.Name, Number: res.TargetNumber, Key: p.Link.Key}
	}
	return s.resolver.Graph().Entity(res.TargetTable)
}

// itemIDs returns the distinct item ids in order
func itemIDs(items []*entities.RelatedItem) []int64 {
	ids := make([]int64, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, it := range items {
		if !seen[it.ItemID] {
			seen[it.ItemID] = true
			ids = append(ids, it.ItemID)
		}
	}
	return ids
}
