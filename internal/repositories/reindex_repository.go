package repositories

import (
	"context"

	"github.com/asakaida/relata/internal/entities"
)

// ReindexQueueRepository stores pending search index updates
type ReindexQueueRepository interface {
	// Enqueue stores an entry and returns its id. On PostgreSQL listeners are notified.
	Enqueue(ctx context.Context, entry *entities.IndexEntry) (int64, error)

	// Dequeue removes and returns up to limit of the oldest entries
	Dequeue(ctx context.Context, limit int) ([]*entities.IndexEntry, error)
}
