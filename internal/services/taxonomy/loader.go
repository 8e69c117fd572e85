package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/asakaida/relata/internal/entities"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Fixture is the YAML layout of a taxonomy file:
//
//	relationship_types:
//	  items_x_tags:
//	    - code: depicts
//	      typename: depicts
//	      typename_reverse: is depicted by
//	      children:
//	        - code: portrait
//	entity_types:
//	  items:
//	    - idno: image
//	      children:
//	        - idno: photograph
type Fixture struct {
	RelationshipTypes map[string][]RelationshipTypeNode `yaml:"relationship_types"`
	EntityTypes       map[string][]EntityTypeNode       `yaml:"entity_types"`
}

// RelationshipTypeNode is one relationship type with its subtypes
type RelationshipTypeNode struct {
	Code            string                 `yaml:"code"`
	Typename        string                 `yaml:"typename"`
	TypenameReverse string                 `yaml:"typename_reverse"`
	Rank            int                    `yaml:"rank"`
	Children        []RelationshipTypeNode `yaml:"children"`
}

// EntityTypeNode is one entity type with its subtypes
type EntityTypeNode struct {
	Idno     string           `yaml:"idno"`
	Children []EntityTypeNode `yaml:"children"`
}

// LoadResult counts the types created and the ones that already existed
type LoadResult struct {
	Created int
	Skipped int
}

// LoadYAML creates every type of the fixture read from r. Types that already
// exist are kept and their subtypes are attached to them.
func (s *Service) LoadYAML(ctx context.Context, r io.Reader) (*LoadResult, error) {
	var fixture Fixture
	if err := yaml.NewDecoder(r).Decode(&fixture); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode taxonomy fixture: %w", err)
	}

	result := &LoadResult{}
	for _, table := range sortedKeys(fixture.RelationshipTypes) {
		existing, err := s.repo.ListRelationshipTypes(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to load relationship types: %w", err)
		}
		ids := make(map[string]int64, len(existing))
		for _, t := range existing {
			ids[t.TypeCode] = t.ID
		}
		for _, n := range fixture.RelationshipTypes[table] {
			if err := s.loadRelationshipType(ctx, table, nil, n, ids, result); err != nil {
				return nil, err
			}
		}
	}

	for _, table := range sortedKeys(fixture.EntityTypes) {
		existing, err := s.repo.ListEntityTypes(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to load entity types: %w", err)
		}
		ids := make(map[string]int64, len(existing))
		for _, t := range existing {
			ids[t.Idno] = t.ID
		}
		for _, n := range fixture.EntityTypes[table] {
			if err := s.loadEntityType(ctx, table, nil, n, ids, result); err != nil {
				return nil, err
			}
		}
	}

	s.logger.Info("taxonomy loaded", zap.Int("created", result.Created), zap.Int("skipped", result.Skipped))
	return result, nil
}

func (s *Service) loadRelationshipType(ctx context.Context, table string, parent *int64, n RelationshipTypeNode, ids map[string]int64, result *LoadResult) error {
	if n.Code == "" {
		return fmt.Errorf("relationship type of %s has no code", table)
	}
	id, ok := ids[n.Code]
	if ok {
		result.Skipped++
	} else {
		t := &entities.RelationshipType{
			ParentID:        parent,
			TableName:       table,
			TypeCode:        n.Code,
			Typename:        n.Typename,
			TypenameReverse: n.TypenameReverse,
			Rank:            n.Rank,
		}
		if t.Typename == "" {
			t.Typename = n.Code
		}
		created, err := s.repo.CreateRelationshipType(ctx, t)
		if err != nil {
			return fmt.Errorf("failed to create relationship type %s/%s: %w", table, n.Code, err)
		}
		id = created
		ids[n.Code] = id
		result.Created++
	}

	for _, child := range n.Children {
		if err := s.loadRelationshipType(ctx, table, &id, child, ids, result); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) loadEntityType(ctx context.Context, table string, parent *int64, n EntityTypeNode, ids map[string]int64, result *LoadResult) error {
	if n.Idno == "" {
		return fmt.Errorf("entity type of %s has no idno", table)
	}
	id, ok := ids[n.Idno]
	if ok {
		result.Skipped++
	} else {
		created, err := s.repo.CreateEntityType(ctx, &entities.EntityType{ParentID: parent, TableName: table, Idno: n.Idno})
		if err != nil {
			return fmt.Errorf("failed to create entity type %s/%s: %w", table, n.Idno, err)
		}
		id = created
		ids[n.Idno] = id
		result.Created++
	}

	for _, child := range n.Children {
		if err := s.loadEntityType(ctx, table, &id, child, ids, result); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
