//go:build e2e

package e2e

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/infrastructure/config"
	"github.com/asakaida/relata/internal/infrastructure/database"
	"github.com/asakaida/relata/internal/repositories/sqlstore"
	"github.com/asakaida/relata/internal/services/related"
	"github.com/asakaida/relata/internal/services/relationships"
	"github.com/asakaida/relata/internal/services/resolver"
	"github.com/asakaida/relata/internal/services/schemagraph"
	"github.com/asakaida/relata/internal/services/search"
	"github.com/asakaida/relata/internal/services/taxonomy"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
)

// E2EEnv is a migrated PostgreSQL container with the engines wired over the
// sample collections datamodel
type E2EEnv struct {
	Config  config.DatabaseConfig
	DB      *database.Database
	Store   *sqlstore.Store
	Types   *taxonomy.Service
	Engine  *relationships.Engine
	Related *related.Service
	Queue   *search.Listener
}

// SetupE2E starts PostgreSQL and wires the services. Everything is torn down when the test ends.
func SetupE2E(t *testing.T, handler search.Handler) *E2EEnv {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("relata_test"),
		tcpostgres.WithUsername("relata"),
		tcpostgres.WithPassword("relata"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := config.DatabaseConfig{
		Driver:   config.DriverPostgres,
		Host:     host,
		Port:     port.Int(),
		User:     "relata",
		Password: "relata",
		Database: "relata_test",
		SSLMode:  "disable",
	}
	db, err := database.Open(&cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.RunMigrations())

	store, err := sqlstore.New(db.DB, db.Driver)
	require.NoError(t, err)

	datamodels := schemagraph.NewDatamodelService(sqlstore.NewDatamodelRepository(store), logger)
	_, err = datamodels.Push(ctx, database.CollectionsDatamodel)
	require.NoError(t, err)
	graph, err := datamodels.Load(ctx, "")
	require.NoError(t, err)

	relCfg := config.RelationshipsConfig{DefaultLocale: "en_US", RelatedDefaultLimit: 100}
	entityRepo := sqlstore.NewEntityRepository(store)
	res := resolver.New(graph, nil, entityRepo, logger)
	types := taxonomy.NewService(sqlstore.NewTaxonomyRepository(store), logger)
	queue := sqlstore.NewReindexQueueRepository(store)

	env := &E2EEnv{
		Config: cfg,
		DB:     db,
		Store:  store,
		Types:  types,
		Engine: relationships.NewEngine(res, relationships.Repositories{
			Links:      sqlstore.NewLinkRepository(store),
			Entities:   entityRepo,
			Attributes: sqlstore.NewAttributeRepository(store),
		}, types, relCfg,
			relationships.WithLogger(logger),
			relationships.WithIndexer(search.NewQueueIndexer(queue)),
			relationships.WithTransactor(store),
		),
		Related: related.NewService(res, sqlstore.NewQueryRepository(store), entityRepo, types, relCfg,
			related.WithLogger(logger)),
	}

	if handler != nil {
		env.Queue = search.NewListener(queue, store, handler, search.ListenerConfig{
			ConnString:   cfg.ConnectionString(),
			PollInterval: time.Minute,
			BatchSize:    10,
		}, logger, nil)
		require.NoError(t, env.Queue.Start(ctx))
		t.Cleanup(func() {
			_ = env.Queue.Stop()
			env.Queue.Wait()
		})
	}
	return env
}

// Exec runs a seed statement written with $n placeholders
func (e *E2EEnv) Exec(t *testing.T, query string, args ...interface{}) {
	t.Helper()
	_, err := e.DB.DB.Exec(query, args...)
	require.NoError(t, err, query)
}

// Item returns the items row with the given id as a subject
func Item(id int64) entities.Subject {
	return entities.Subject{Table: "items", ID: id}
}

func stringsReader(s string) *strings.Reader {
	return strings.NewReader(s)
}
