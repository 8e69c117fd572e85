package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// DefaultAccessPolicy requires read access (1) to see a row and edit access (2) to change its relationships
const DefaultAccessPolicy = `action == "edit" ? acl >= 2 : acl >= 1`

// Config represents the application configuration
type Config struct {
	Database      DatabaseConfig
	Cache         CacheConfig
	Relationships RelationshipsConfig
	Datamodel     DatamodelConfig
	Log           LogConfig
	Metrics       MetricsConfig
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Path     string // sqlite database file
}

// CacheConfig represents the relationship path cache configuration
type CacheConfig struct {
	PathCacheMaxEntries int
	Metrics             bool
}

// RelationshipsConfig holds the settings the relationship engines consult at runtime
type RelationshipsConfig struct {
	AllowDuplicates         bool
	DefaultItemAccessLevel  int
	ItemLevelAccessChecking bool
	AccessPolicy            string // CEL expression over user, item, acl and action
	RelatedDefaultLimit     int
	DefaultLocale           string
}

// DatamodelConfig points at the datamodel source
type DatamodelConfig struct {
	Path string // DSL file; empty means the latest version stored in the database
}

// LogConfig represents logger configuration
type LogConfig struct {
	Level       string
	Development bool
}

// MetricsConfig represents Prometheus exporter configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// findProjectRoot finds the project root directory by looking for go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

// InitConfig initializes viper configuration
// env: environment name (dev, test, prod)
func InitConfig(env string) error {
	if env == "" {
		env = "dev"
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		return fmt.Errorf("failed to find project root: %w", err)
	}

	viper.SetConfigName(fmt.Sprintf(".env.%s", env))
	viper.SetConfigType("env")
	viper.AddConfigPath(projectRoot)

	// Read config file (optional, ignore error if not found)
	_ = viper.ReadInConfig()

	// Environment variables take precedence over config file
	viper.AutomaticEnv()

	setDefaults()
	return nil
}

func setDefaults() {
	viper.SetDefault("DB_DRIVER", DriverPostgres)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 15432)
	viper.SetDefault("DB_USER", "relata")
	viper.SetDefault("DB_NAME", "relata_dev")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_PATH", "relata.db")

	viper.SetDefault("PATH_CACHE_MAX_ENTRIES", 4096)
	viper.SetDefault("PATH_CACHE_METRICS", true)

	viper.SetDefault("ALLOW_DUPLICATE_RELATIONSHIPS", false)
	viper.SetDefault("DEFAULT_ITEM_ACCESS_LEVEL", 0)
	viper.SetDefault("ITEM_LEVEL_ACCESS_CHECKING", false)
	viper.SetDefault("ACCESS_POLICY", DefaultAccessPolicy)
	viper.SetDefault("RELATED_DEFAULT_LIMIT", 1000)
	viper.SetDefault("DEFAULT_LOCALE", "en_US")

	viper.SetDefault("DATAMODEL_PATH", "")

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_DEVELOPMENT", false)

	viper.SetDefault("METRICS_ENABLED", true)
	viper.SetDefault("METRICS_PORT", 9090)
}

// Load loads configuration from viper
func Load() (*Config, error) {
	driver := strings.ToLower(viper.GetString("DB_DRIVER"))
	if driver == "" {
		driver = DriverPostgres
	}
	if driver != DriverPostgres && driver != DriverMySQL && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (expected postgres, mysql or sqlite)", driver)
	}

	dbPassword := viper.GetString("DB_PASSWORD")
	if dbPassword == "" && driver != DriverSQLite {
		return nil, fmt.Errorf("DB_PASSWORD is required (set via environment variable or .env file)")
	}

	config := &Config{
		Database: DatabaseConfig{
			Driver:   driver,
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetInt("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: dbPassword,
			Database: viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
			Path:     viper.GetString("DB_PATH"),
		},
		Cache: CacheConfig{
			PathCacheMaxEntries: viper.GetInt("PATH_CACHE_MAX_ENTRIES"),
			Metrics:             viper.GetBool("PATH_CACHE_METRICS"),
		},
		Relationships: RelationshipsConfig{
			AllowDuplicates:         viper.GetBool("ALLOW_DUPLICATE_RELATIONSHIPS"),
			DefaultItemAccessLevel:  viper.GetInt("DEFAULT_ITEM_ACCESS_LEVEL"),
			ItemLevelAccessChecking: viper.GetBool("ITEM_LEVEL_ACCESS_CHECKING"),
			AccessPolicy:            viper.GetString("ACCESS_POLICY"),
			RelatedDefaultLimit:     viper.GetInt("RELATED_DEFAULT_LIMIT"),
			DefaultLocale:           viper.GetString("DEFAULT_LOCALE"),
		},
		Datamodel: DatamodelConfig{
			Path: viper.GetString("DATAMODEL_PATH"),
		},
		Log: LogConfig{
			Level:       viper.GetString("LOG_LEVEL"),
			Development: viper.GetBool("LOG_DEVELOPMENT"),
		},
		Metrics: MetricsConfig{
			Enabled: viper.GetBool("METRICS_ENABLED"),
			Port:    viper.GetInt("METRICS_PORT"),
		},
	}

	return config, nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
}

// DSN returns the data source name for the configured driver
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
		mc.DBName = c.Database
		mc.ParseTime = true
		mc.MultiStatements = true
		// RowsAffected counts matched rows
		mc.ClientFoundRows = true
		return mc.FormatDSN()
	case DriverSQLite:
		return c.Path
	default:
		return c.ConnectionString()
	}
}
