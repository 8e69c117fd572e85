// Package relationships creates, edits, removes, moves and copies relationships
// between rows along the path the resolver finds between their tables.
package relationships

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/infrastructure/config"
	"github.com/asakaida/relata/internal/infrastructure/metrics"
	"github.com/asakaida/relata/internal/repositories"
	"github.com/asakaida/relata/internal/services/access"
	"github.com/asakaida/relata/internal/services/resolver"
	"github.com/asakaida/relata/internal/services/search"
	"github.com/asakaida/relata/internal/services/taxonomy"
	"go.uber.org/zap"
)

// Operation names used in error contexts, logs and metrics
const (
	OpAdd              = "Add"
	OpEdit             = "Edit"
	OpRemove           = "Remove"
	OpRemoveAll        = "RemoveAll"
	OpExists           = "Exists"
	OpMove             = "Move"
	OpCopy             = "Copy"
	OpHasRelationships = "HasRelationships"
)

// Repositories groups the stores the engine writes through
type Repositories struct {
	Links      repositories.LinkRepository
	Entities   repositories.EntityRepository
	Attributes repositories.AttributeRepository
}

// Engine is the relationship CRUD engine. It is safe for concurrent use; every
// call takes the subject row it acts on and runs inside the subject's
// transaction when one is set.
type Engine struct {
	resolver   *resolver.Resolver
	repos      Repositories
	types      *taxonomy.Service
	cfg        config.RelationshipsConfig
	access     *access.Evaluator
	indexer    search.Indexer
	transactor repositories.Transactor
	logger     *zap.Logger
	instr      *metrics.Instrumenter

	mu     sync.Mutex
	errors *entities.ErrorList
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithIndexer sets the search indexer informed by Move and Copy
func WithIndexer(indexer search.Indexer) Option {
	return func(e *Engine) { e.indexer = indexer }
}

// WithAccess enables item-level access checks when the configuration asks for them
func WithAccess(evaluator *access.Evaluator) Option {
	return func(e *Engine) { e.access = evaluator }
}

// WithTransactor lets Move open its own transaction when the subject has none
func WithTransactor(tx repositories.Transactor) Option {
	return func(e *Engine) { e.transactor = tx }
}

// WithInstrumenter records every call
func WithInstrumenter(instr *metrics.Instrumenter) Option {
	return func(e *Engine) { e.instr = instr }
}

// WithErrorList posts relationship errors to list as they occur
func WithErrorList(list *entities.ErrorList) Option {
	return func(e *Engine) { e.errors = list }
}

// NewEngine creates a CRUD engine
func NewEngine(res *resolver.Resolver, repos Repositories, types *taxonomy.Service, cfg config.RelationshipsConfig, opts ...Option) *Engine {
	e := &Engine{
		resolver: res,
		repos:    repos,
		types:    types,
		cfg:      cfg,
		indexer:  search.NopIndexer{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.indexer == nil {
		e.indexer = search.NopIndexer{}
	}
	return e
}

// RelationshipTableName returns the table holding relationship rows between
// subjectTable and target
func (e *Engine) RelationshipTableName(ctx context.Context, subjectTable, target string) (string, error) {
	return e.resolver.RelationshipTableName(ctx, subjectTable, target)
}

// begin validates the subject and binds its transaction to ctx
func (e *Engine) begin(ctx context.Context, subject entities.Subject) (context.Context, error) {
	if !subject.Loaded() {
		return ctx, entities.ErrSubjectNotLoaded
	}
	return repositories.WithTx(ctx, subject.Tx), nil
}

// resolve resolves the path and rejects kinds that carry no writable relationship rows
func (e *Engine) resolve(ctx context.Context, op string, subject entities.Subject, target string) (*entities.Resolution, error) {
	res, err := e.resolver.Resolve(ctx, subject.Table, target)
	if err != nil {
		var re *entities.RelationshipError
		if errors.As(err, &re) {
			return nil, &entities.RelationshipError{Kind: re.Kind, Code: re.Code, Message: re.Message, Context: op}
		}
		return nil, err
	}
	switch res.Path.(type) {
	case *entities.LinkRowsPath, *entities.PolymorphicPath:
		return nil, entities.NewNoPathError(op, subject.Table, res.TargetTable)
	}
	return res, nil
}

// checkEdit enforces edit access on the subject row
func (e *Engine) checkEdit(ctx context.Context, op string, subject entities.Subject) error {
	if e.access == nil || !e.cfg.ItemLevelAccessChecking {
		return nil
	}
	tableNum, _ := e.resolver.Graph().TableNumber(subject.Table)
	scope := entities.ScopeFromContext(ctx)
	ok, err := e.access.CanEdit(ctx, scope, tableNum, subject.ID)
	if err != nil {
		return fmt.Errorf("failed to check access: %w", err)
	}
	if !ok {
		return entities.NewPermissionError(op,
			fmt.Sprintf("user %d may not edit relationships of %s %d", scope.UserID, subject.Table, subject.ID))
	}
	return nil
}

// resolveType maps a relationship type reference to an id of the link table's taxonomy
func (e *Engine) resolveType(ctx context.Context, op string, link *entities.LinkDef, ref string) (int64, error) {
	if link == nil || !link.HasType() || e.types == nil {
		return 0, nil
	}
	id, err := e.types.ResolveRelationshipType(ctx, link.Name, ref)
	if err != nil {
		if errors.Is(err, taxonomy.ErrUnknownType) {
			return 0, entities.NewInvalidTypeError(op, ref, link.Name)
		}
		return 0, err
	}
	return id, nil
}

// post records a relationship error on the error list
func (e *Engine) post(err error) {
	if e.errors == nil || err == nil {
		return
	}
	var re *entities.RelationshipError
	if !errors.As(err, &re) {
		return
	}
	e.mu.Lock()
	e.errors.Post(re)
	e.mu.Unlock()
}

// finish posts failures, except duplicates which the caller posts explicitly, and records metrics
func (e *Engine) finish(op string, start time.Time, err error) {
	e.instr.Observe(op, start, err)
	if err == nil || errors.Is(err, entities.ErrSubjectNotLoaded) || errors.Is(err, entities.ErrDuplicateRelationship) {
		return
	}
	e.post(err)
}

// writeErr wraps a persistence failure, passing relationship errors through
func writeErr(op string, err error) error {
	var re *entities.RelationshipError
	if errors.As(err, &re) {
		return err
	}
	return entities.NewWriteError(op, err)
}

// reindex informs the indexer, logging failures without failing the operation
func (e *Engine) reindex(ctx context.Context, link *entities.LinkDef, rel *entities.Relation, exclusions []string) {
	locale := entities.ScopeFromContext(ctx).Locale
	if err := e.indexer.IndexRow(ctx, link.Number, rel.ID, rel.Row(link), false, locale, exclusions); err != nil {
		e.logger.Warn("failed to reindex relationship",
			zap.String("table", link.Name), zap.Int64("relation_id", rel.ID), zap.Error(err))
		return
	}
	e.instr.Reindexed(1)
}
