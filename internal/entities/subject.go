package entities

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// Subject is the loaded row relationship operations act on.
// Tx is the caller's ambient transaction; when set, every read and write
// made on behalf of the subject runs inside it.
type Subject struct {
	Table string
	ID    int64
	Tx    *sql.Tx
}

// Loaded reports whether the subject has a primary key
func (s Subject) Loaded() bool {
	return s.Table != "" && s.ID > 0
}

// Scope carries the request-scoped caller identity and locale
type Scope struct {
	UserID    int64
	GroupIDs  []int64
	Locale    string
	RequestID string
}

type scopeKey struct{}

// WithScope returns a context carrying the scope. A request id is assigned when missing.
func WithScope(ctx context.Context, scope Scope) context.Context {
	if scope.RequestID == "" {
		scope.RequestID = uuid.NewString()
	}
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFromContext returns the scope stored in ctx, or the zero scope
func ScopeFromContext(ctx context.Context) Scope {
	if scope, ok := ctx.Value(scopeKey{}).(Scope); ok {
		return scope
	}
	return Scope{}
}
