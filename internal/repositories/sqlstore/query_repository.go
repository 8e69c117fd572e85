package sqlstore

import "github.com/asakaida/relata/internal/repositories"

// NewQueryRepository returns the store as a read-only statement runner
func NewQueryRepository(store *Store) repositories.QueryRepository {
	return store
}
