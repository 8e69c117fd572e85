package repositories

import (
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Dialect names the SQL flavour of a database
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect maps a driver name to a dialect
func ParseDialect(driver string) (Dialect, bool) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, true
	case "mysql", "mariadb":
		return DialectMySQL, true
	case "sqlite", "sqlite3":
		return DialectSQLite, true
	}
	return "", false
}

// Quote quotes an identifier. Datamodel identifiers are validated, so no escaping is needed.
func (d Dialect) Quote(ident string) string {
	if d == DialectMySQL {
		return "`" + ident + "`"
	}
	return `"` + ident + `"`
}

// Column returns a qualified, quoted column reference
func (d Dialect) Column(alias, field string) string {
	if alias == "" {
		return d.Quote(field)
	}
	return alias + "." + d.Quote(field)
}

// Rebind rewrites ? placeholders to $N for PostgreSQL. Placeholders inside
// single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			sb.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// Placeholders returns "?, ?, ?" for n values
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Int64Args converts ids to query arguments
func Int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// In builds a membership condition on col: "= ANY(?)" with an array on
// PostgreSQL, an expanded list elsewhere. An empty id list matches nothing.
func (d Dialect) In(col string, ids []int64) (string, []interface{}) {
	if len(ids) == 0 {
		return "1 = 0", nil
	}
	if d == DialectPostgres {
		return col + " = ANY(?)", []interface{}{pq.Array(ids)}
	}
	return col + " IN (" + Placeholders(len(ids)) + ")", Int64Args(ids)
}

// NotIn is the negation of In. An empty id list matches everything.
func (d Dialect) NotIn(col string, ids []int64) (string, []interface{}) {
	if len(ids) == 0 {
		return "1 = 1", nil
	}
	if d == DialectPostgres {
		return "NOT (" + col + " = ANY(?))", []interface{}{pq.Array(ids)}
	}
	return col + " NOT IN (" + Placeholders(len(ids)) + ")", Int64Args(ids)
}
