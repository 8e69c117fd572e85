package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/asakaida/relata/internal/infrastructure/config"
	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

//go:embed datamodels/collections.relata
var CollectionsDatamodel string

// Database represents a connection to one of the supported SQL databases
type Database struct {
	DB     *sql.DB
	Driver string
}

// Open connects to the database described by cfg
func Open(cfg *config.DatabaseConfig) (*Database, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Driver == config.DriverSQLite {
		// in-memory databases live as long as their only connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(1 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db, Driver: cfg.Driver}, nil
}

// NewMigrate creates a migrate instance over the embedded migrations for the driver.
// Closing the returned instance also closes the database.
func (d *Database) NewMigrate() (*migrate.Migrate, error) {
	dir, err := fs.Sub(migrationsFS, "migrations/"+d.Driver)
	if err != nil {
		return nil, fmt.Errorf("no migrations for driver %s: %w", d.Driver, err)
	}
	source, err := iofs.New(dir, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}

	driver, err := d.migrateDriver()
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, d.Driver, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

func (d *Database) migrateDriver() (migratedb.Driver, error) {
	switch d.Driver {
	case config.DriverPostgres:
		return migratepostgres.WithInstance(d.DB, &migratepostgres.Config{})
	case config.DriverMySQL:
		return migratemysql.WithInstance(d.DB, &migratemysql.Config{})
	case config.DriverSQLite:
		return migratesqlite.WithInstance(d.DB, &migratesqlite.Config{})
	}
	return nil, fmt.Errorf("unsupported driver: %s", d.Driver)
}

// RunMigrations applies every pending migration
func (d *Database) RunMigrations() error {
	m, err := d.NewMigrate()
	if err != nil {
		return err
	}
	// m.Close would close d.DB as well

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HealthCheck checks if the database connection is healthy
func (d *Database) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
