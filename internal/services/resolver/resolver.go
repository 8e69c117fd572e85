// Package resolver finds and classifies the join path between two entity tables.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/repositories"
	"github.com/asakaida/relata/internal/services/schemagraph"
	"github.com/asakaida/relata/pkg/cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const opResolve = "Resolve"

// Resolver resolves (subject table, target) pairs into paths. Resolutions are
// cached for the lifetime of the cache; the datamodel is immutable so entries
// are never invalidated.
type Resolver struct {
	graph      *schemagraph.Graph
	cache      cache.Cache
	entityRepo repositories.EntityRepository
	logger     *zap.Logger
	group      singleflight.Group
}

// New creates a resolver. pathCache and entityRepo may be nil: without a cache
// every call walks the graph, without a repository idno targets cannot be resolved.
func New(graph *schemagraph.Graph, pathCache cache.Cache, entityRepo repositories.EntityRepository, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		graph:      graph,
		cache:      pathCache,
		entityRepo: entityRepo,
		logger:     logger,
	}
}

// Graph returns the schema graph the resolver walks
func (r *Resolver) Graph() *schemagraph.Graph {
	return r.graph
}

// Resolve returns the path from subjectTable to target, which may be a table
// name, a table number or a "table.field" reference.
func (r *Resolver) Resolve(ctx context.Context, subjectTable, target string) (*entities.Resolution, error) {
	key := cacheKey(subjectTable, target)
	if res, ok := r.cached(ctx, key); ok {
		return res, nil
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		targetTable, err := r.graph.ResolveTableRef(target)
		if err != nil {
			return nil, entities.NewInvalidTableError(opResolve, target)
		}

		resolvedKey := cacheKey(subjectTable, targetTable)
		if res, ok := r.cached(ctx, resolvedKey); ok {
			r.store(ctx, key, res)
			return res, nil
		}

		r.logger.Debug("resolving relationship path",
			zap.String("subject", subjectTable), zap.String("target", targetTable))

		res, err := r.resolve(subjectTable, targetTable)
		if err != nil {
			return nil, err
		}
		r.store(ctx, resolvedKey, res)
		r.store(ctx, key, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entities.Resolution), nil
}

func (r *Resolver) resolve(subjectTable, targetTable string) (*entities.Resolution, error) {
	if r.graph.Entity(subjectTable) == nil {
		return nil, entities.NewInvalidTableError(opResolve, subjectTable)
	}
	number, _ := r.graph.TableNumber(targetTable)
	res := &entities.Resolution{SubjectTable: subjectTable, TargetTable: targetTable, TargetNumber: number}

	if subjectTable == targetTable {
		link := r.graph.SelfRelationLink(subjectTable)
		if link == nil {
			return nil, entities.NewNoPathError(opResolve, subjectTable, targetTable)
		}
		res.Path = &entities.SelfRelationPath{Table: subjectTable, Link: link}
		return res, nil
	}

	if link := r.graph.Link(targetTable); link != nil {
		if !link.Touches(subjectTable) {
			return nil, entities.NewNoPathError(opResolve, subjectTable, targetTable)
		}
		res.Path = &entities.LinkRowsPath{Subject: subjectTable, Link: link}
		return res, nil
	}

	path, err := r.graph.Path(subjectTable, targetTable)
	if err != nil {
		if holder := r.graph.Entity(targetTable); holder != nil && holder.Polymorphic != nil {
			res.Path = &entities.PolymorphicPath{Subject: subjectTable, Target: targetTable, Holder: targetTable, Ref: holder.Polymorphic}
			return res, nil
		}
		return nil, entities.NewNoPathError(opResolve, subjectTable, targetTable)
	}

	switch len(path) {
	case 3:
		link := r.graph.Link(path[1])
		if link == nil {
			return nil, entities.NewNoPathError(opResolve, subjectTable, targetTable)
		}
		res.Path = &entities.ManyToManyPath{Subject: subjectTable, Target: targetTable, Link: link}
		return res, nil
	case 2:
		if p := r.manyToOne(subjectTable, targetTable); p != nil {
			res.Path = p
			return res, nil
		}
	}
	return nil, entities.NewNoPathError(opResolve, subjectTable, targetTable)
}

func (r *Resolver) manyToOne(subjectTable, targetTable string) *entities.ManyToOnePath {
	for _, rel := range r.graph.ManyToOneRelations(subjectTable) {
		if rel.OneTable == targetTable {
			return &entities.ManyToOnePath{Subject: subjectTable, Target: targetTable, OneTable: targetTable, ManyTable: subjectTable, FKField: rel.ManyField}
		}
	}
	for _, rel := range r.graph.ManyToOneRelations(targetTable) {
		if rel.OneTable == subjectTable {
			return &entities.ManyToOnePath{Subject: subjectTable, Target: targetTable, OneTable: subjectTable, ManyTable: targetTable, FKField: rel.ManyField}
		}
	}
	return nil
}

// RelationshipTableName returns the table holding relationship rows between
// subjectTable and target: the link table, or the foreign key holder for
// many-to-one paths.
func (r *Resolver) RelationshipTableName(ctx context.Context, subjectTable, target string) (string, error) {
	res, err := r.Resolve(ctx, subjectTable, target)
	if err != nil {
		return "", err
	}
	return res.LinkTable(), nil
}

// TargetID resolves a target row reference: a numeric primary key, or an idno
// looked up through the table's idno field. Unresolvable idnos return ErrTargetNotFound.
func (r *Resolver) TargetID(ctx context.Context, table, ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if id <= 0 {
			return 0, entities.ErrTargetNotFound
		}
		return id, nil
	}

	entity := r.graph.Entity(table)
	if entity == nil || entity.IdnoField == "" || r.entityRepo == nil || ref == "" {
		return 0, entities.ErrTargetNotFound
	}
	id, err := r.entityRepo.IDByIdno(ctx, entity, ref)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return 0, entities.ErrTargetNotFound
		}
		return 0, fmt.Errorf("failed to resolve %s idno %q: %w", table, ref, err)
	}
	return id, nil
}

func (r *Resolver) cached(ctx context.Context, key string) (*entities.Resolution, bool) {
	if r.cache == nil {
		return nil, false
	}
	v, ok := r.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	res, ok := v.(*entities.Resolution)
	return res, ok
}

func (r *Resolver) store(ctx context.Context, key string, res *entities.Resolution) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, key, res, 0); err != nil {
		r.logger.Warn("failed to cache relationship path", zap.String("key", key), zap.Error(err))
	}
}

func cacheKey(subject, target string) string {
	return subject + "/" + target
}
