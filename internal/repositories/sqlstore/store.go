// Package sqlstore implements the repository interfaces on database/sql for
// PostgreSQL, MySQL and SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asakaida/relata/internal/repositories"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Store is the shared connection every repository of this package runs on.
// Statements are written with ? placeholders and rebound per dialect.
type Store struct {
	db      *sql.DB
	dialect repositories.Dialect
}

// New creates a store for a database opened with the given driver name
func New(db *sql.DB, driver string) (*Store, error) {
	dialect, ok := repositories.ParseDialect(driver)
	if !ok {
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
	return &Store{db: db, dialect: dialect}, nil
}

// DB returns the underlying connection pool
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL flavour of the store
func (s *Store) Dialect() repositories.Dialect {
	return s.dialect
}

// BeginTx starts a transaction on the underlying pool
func (s *Store) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, opts)
}

// conn returns the ambient transaction of ctx, or the pool
func (s *Store) conn(ctx context.Context) repositories.DBTX {
	if tx, ok := repositories.TxFromContext(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.conn(ctx).ExecContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.conn(ctx).QueryRowContext(ctx, s.dialect.Rebind(query), args...)
}

// Select runs a read statement and returns every row
func (s *Store) Select(ctx context.Context, query string, args ...interface{}) ([]repositories.Row, error) {
	rs, err := s.conn(ctx).QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	return repositories.ScanRows(rs)
}

// inTx runs fn inside the ambient transaction, or a new one committed on success
func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := repositories.TxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(repositories.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// insert adds a row and returns the generated key
func (s *Store) insert(ctx context.Context, table, key string, cols []string, args []interface{}) (int64, error) {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = s.dialect.Quote(c)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.dialect.Quote(table), strings.Join(quoted, ", "), repositories.Placeholders(len(cols)))

	if s.dialect == repositories.DialectMySQL {
		res, err := s.exec(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}

	var id int64
	if err := s.queryRow(ctx, query+" RETURNING "+s.dialect.Quote(key), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// in builds a membership condition on col. An empty id list matches nothing.
func (s *Store) in(col string, ids []int64) (string, []interface{}) {
	return s.dialect.In(col, ids)
}

// IsUniqueViolation reports whether err is a unique constraint violation on any supported driver
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeValue converts a scanned timestamp column to a time
func timeValue(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05.999999999", "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}
