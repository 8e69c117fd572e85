// Package taxonomy resolves relationship type and entity type references and
// expands them through the type hierarchy.
package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/repositories"
	"go.uber.org/zap"
)

// ErrUnknownType is returned when a type reference matches no type of the table
var ErrUnknownType = errors.New("unknown type")

// Service reads the relationship type and entity type taxonomies
type Service struct {
	repo   repositories.TaxonomyRepository
	logger *zap.Logger
}

// NewService creates a new taxonomy service
func NewService(repo repositories.TaxonomyRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// ResolveRelationshipType maps a type id or type code to the id of a relationship
// type of linkTable. An empty reference resolves to 0.
func (s *Service) ResolveRelationshipType(ctx context.Context, linkTable, ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == "0" {
		return 0, nil
	}

	types, err := s.repo.ListRelationshipTypes(ctx, linkTable)
	if err != nil {
		return 0, fmt.Errorf("failed to load relationship types: %w", err)
	}

	id, numeric := parseID(ref)
	for _, t := range types {
		if (numeric && t.ID == id) || (!numeric && t.TypeCode == ref) {
			return t.ID, nil
		}
	}
	return 0, fmt.Errorf("%s: %q: %w", linkTable, ref, ErrUnknownType)
}

// RelationshipTypes loads relationship types by id
func (s *Service) RelationshipTypes(ctx context.Context, ids []int64) (map[int64]*entities.RelationshipType, error) {
	return s.repo.GetRelationshipTypes(ctx, ids)
}

// ListRelationshipTypes returns the relationship types of a link table ordered by rank
func (s *Service) ListRelationshipTypes(ctx context.Context, linkTable string) ([]*entities.RelationshipType, error) {
	return s.repo.ListRelationshipTypes(ctx, linkTable)
}

// ExpandRelationshipTypes resolves references (ids or codes) of linkTable's types,
// adding every descendant when includeSubtypes is set. Unknown references are skipped.
func (s *Service) ExpandRelationshipTypes(ctx context.Context, linkTable string, refs []string, includeSubtypes bool) ([]int64, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	types, err := s.repo.ListRelationshipTypes(ctx, linkTable)
	if err != nil {
		return nil, fmt.Errorf("failed to load relationship types: %w", err)
	}

	nodes := make([]node, len(types))
	for i, t := range types {
		nodes[i] = node{id: t.ID, parent: t.ParentID, code: t.TypeCode}
	}
	return s.expand(linkTable, nodes, refs, includeSubtypes), nil
}

// ExpandEntityTypes resolves references (ids or idnos) of table's entity types,
// adding every descendant when includeSubtypes is set. Unknown references are skipped.
func (s *Service) ExpandEntityTypes(ctx context.Context, table string, refs []string, includeSubtypes bool) ([]int64, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	types, err := s.repo.ListEntityTypes(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to load entity types: %w", err)
	}

	nodes := make([]node, len(types))
	for i, t := range types {
		nodes[i] = node{id: t.ID, parent: t.ParentID, code: t.Idno}
	}
	return s.expand(table, nodes, refs, includeSubtypes), nil
}

type node struct {
	id     int64
	parent *int64
	code   string
}

func (s *Service) expand(table string, nodes []node, refs []string, includeSubtypes bool) []int64 {
	byCode := make(map[string]int64, len(nodes))
	known := make(map[int64]bool, len(nodes))
	children := make(map[int64][]int64)
	for _, n := range nodes {
		byCode[n.code] = n.id
		known[n.id] = true
		if n.parent != nil {
			children[*n.parent] = append(children[*n.parent], n.id)
		}
	}

	seen := make(map[int64]bool)
	var out []int64
	var visit func(id int64)
	visit = func(id int64) {
		if seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
		if includeSubtypes {
			for _, child := range children[id] {
				visit(child)
			}
		}
	}

	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if id, ok := parseID(ref); ok {
			if known[id] {
				visit(id)
				continue
			}
		}
		if id, ok := byCode[ref]; ok {
			visit(id)
			continue
		}
		s.logger.Debug("skipping unknown type reference", zap.String("table", table), zap.String("ref", ref))
	}
	return out
}

func parseID(ref string) (int64, bool) {
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
