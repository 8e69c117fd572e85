package repositories

import "context"

// QueryRepository runs read statements written with ? placeholders
type QueryRepository interface {
	Select(ctx context.Context, query string, args ...interface{}) ([]Row, error)

	// Dialect returns the SQL flavour statements must be written in
	Dialect() Dialect
}
