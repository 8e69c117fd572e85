package main

import (
	"context"
	"fmt"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/infrastructure/config"
	"github.com/asakaida/relata/internal/infrastructure/database"
	"github.com/asakaida/relata/internal/infrastructure/metrics"
	"github.com/asakaida/relata/internal/repositories/sqlstore"
	"github.com/asakaida/relata/internal/services/access"
	"github.com/asakaida/relata/internal/services/related"
	"github.com/asakaida/relata/internal/services/relationships"
	"github.com/asakaida/relata/internal/services/resolver"
	"github.com/asakaida/relata/internal/services/schemagraph"
	"github.com/asakaida/relata/internal/services/search"
	"github.com/asakaida/relata/internal/services/taxonomy"
	"github.com/asakaida/relata/pkg/cache/memorycache"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// app holds the wired services of one command invocation
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	db         *database.Database
	store      *sqlstore.Store
	datamodels *schemagraph.DatamodelService
	types      *taxonomy.Service

	// set by loadGraph
	graph     *schemagraph.Graph
	pathCache *memorycache.Cache
	resolver  *resolver.Resolver
	engine    *relationships.Engine
	related   *related.Service

	registry  *prometheus.Registry
	collector *metrics.Collector
	exporter  *metrics.PrometheusExporter
	instr     *metrics.Instrumenter
	errors    *entities.ErrorList
}

// newApp connects to the database and wires the services that do not need the datamodel
func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	store, err := sqlstore.New(db.DB, db.Driver)
	if err != nil {
		db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector()
	exporter := metrics.NewPrometheusExporter(collector, registry)

	return &app{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		store:      store,
		datamodels: schemagraph.NewDatamodelService(sqlstore.NewDatamodelRepository(store), logger),
		types:      taxonomy.NewService(sqlstore.NewTaxonomyRepository(store), logger),
		registry:   registry,
		collector:  collector,
		exporter:   exporter,
		instr:      metrics.NewInstrumenter(collector, exporter),
		errors:     &entities.ErrorList{},
	}, nil
}

// loadGraph loads the datamodel and wires the relationship engines over it
func (a *app) loadGraph(ctx context.Context) error {
	var err error
	if a.cfg.Datamodel.Path != "" {
		a.graph, err = schemagraph.LoadFile(a.cfg.Datamodel.Path)
	} else {
		a.graph, err = a.datamodels.Load(ctx, "")
	}
	if err != nil {
		return fmt.Errorf("failed to load datamodel: %w", err)
	}

	a.pathCache, err = memorycache.New(&memorycache.Config{
		MaxEntries:    a.cfg.Cache.PathCacheMaxEntries,
		EnableMetrics: a.cfg.Cache.Metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create path cache: %w", err)
	}
	if a.cfg.Cache.Metrics {
		a.collector.SetCache(a.pathCache)
	}

	entityRepo := sqlstore.NewEntityRepository(a.store)
	a.resolver = resolver.New(a.graph, a.pathCache, entityRepo, a.logger)

	rel := a.cfg.Relationships
	engineOpts := []relationships.Option{
		relationships.WithLogger(a.logger),
		relationships.WithIndexer(search.NewQueueIndexer(sqlstore.NewReindexQueueRepository(a.store))),
		relationships.WithTransactor(a.store),
		relationships.WithInstrumenter(a.instr),
		relationships.WithErrorList(a.errors),
	}
	relatedOpts := []related.Option{
		related.WithLogger(a.logger),
		related.WithInstrumenter(a.instr),
	}
	if rel.ItemLevelAccessChecking {
		policy, err := access.NewPolicy(rel.AccessPolicy)
		if err != nil {
			return err
		}
		evaluator := access.NewEvaluator(sqlstore.NewACLRepository(a.store), policy, rel.DefaultItemAccessLevel)
		engineOpts = append(engineOpts, relationships.WithAccess(evaluator))
		relatedOpts = append(relatedOpts, related.WithAccess(evaluator))
	}

	a.engine = relationships.NewEngine(a.resolver, relationships.Repositories{
		Links:      sqlstore.NewLinkRepository(a.store),
		Entities:   entityRepo,
		Attributes: sqlstore.NewAttributeRepository(a.store),
	}, a.types, rel, engineOpts...)
	a.related = related.NewService(a.resolver, sqlstore.NewQueryRepository(a.store), entityRepo, a.types, rel, relatedOpts...)
	return nil
}

// scope attaches the request scope given on the command line
func (a *app) scope(ctx context.Context) context.Context {
	return entities.WithScope(ctx, entities.Scope{
		UserID:    userFlag,
		Locale:    localeFlag,
		RequestID: uuid.NewString(),
	})
}

func (a *app) close() {
	if a.pathCache != nil {
		a.pathCache.Close()
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}
