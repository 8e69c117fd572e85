package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/repositories"
)

// ReindexChannel is the PostgreSQL NOTIFY channel signalled for every queued entry
const ReindexChannel = "relata_reindex"

// ReindexQueueRepository implements repositories.ReindexQueueRepository
type ReindexQueueRepository struct {
	store *Store
}

// NewReindexQueueRepository creates a new search reindex queue repository
func NewReindexQueueRepository(store *Store) repositories.ReindexQueueRepository {
	return &ReindexQueueRepository{store: store}
}

// Enqueue stores an entry and returns its id
func (r *ReindexQueueRepository) Enqueue(ctx context.Context, entry *entities.IndexEntry) (int64, error) {
	payload, err := json.Marshal(entry.Row)
	if err != nil {
		return 0, fmt.Errorf("failed to encode reindex payload: %w", err)
	}
	exclusions, err := json.Marshal(entry.Exclusions)
	if err != nil {
		return 0, fmt.Errorf("failed to encode reindex exclusions: %w", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	id, err := r.store.insert(ctx, "search_reindex_queue", "queue_id",
		[]string{"table_num", "row_id", "is_delete", "payload", "locale", "exclusions", "created_at"},
		[]interface{}{entry.TableNum, entry.RowID, boolInt(entry.IsDelete), string(payload), entry.Locale, string(exclusions), entry.CreatedAt},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue reindex entry: %w", err)
	}
	entry.ID = id

	// Delivered on commit when running inside a transaction
	if r.store.dialect == repositories.DialectPostgres {
		if _, err := r.store.exec(ctx, "SELECT pg_notify(?, ?)", ReindexChannel, strconv.FormatInt(id, 10)); err != nil {
			return 0, fmt.Errorf("failed to notify reindex listeners: %w", err)
		}
	}
	return id, nil
}

// Dequeue removes and returns up to limit of the oldest entries
func (r *ReindexQueueRepository) Dequeue(ctx context.Context, limit int) ([]*entities.IndexEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	var out []*entities.IndexEntry
	err := r.store.inTx(ctx, func(ctx context.Context) error {
		rows, err := r.store.Select(ctx, `
			SELECT queue_id, table_num, row_id, is_delete, payload, locale, exclusions, created_at
			FROM search_reindex_queue
			ORDER BY queue_id
			LIMIT ?
		`, limit)
		if err != nil {
			return fmt.Errorf("failed to read reindex queue: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(rows))
		for _, row := range rows {
			entry := &entities.IndexEntry{
				ID:        row.Int64("queue_id"),
				TableNum:  int(row.Int64("table_num")),
				RowID:     row.Int64("row_id"),
				IsDelete:  row.Bool("is_delete"),
				Locale:    row.String("locale"),
				CreatedAt: timeValue(row["created_at"]),
			}
			if err := json.Unmarshal([]byte(row.String("payload")), &entry.Row); err != nil {
				return fmt.Errorf("failed to decode reindex payload %d: %w", entry.ID, err)
			}
			if err := json.Unmarshal([]byte(row.String("exclusions")), &entry.Exclusions); err != nil {
				return fmt.Errorf("failed to decode reindex exclusions %d: %w", entry.ID, err)
			}
			out = append(out, entry)
			ids = append(ids, entry.ID)
		}

		cond, args := r.store.in("queue_id", ids)
		if _, err := r.store.exec(ctx, "DELETE FROM search_reindex_queue WHERE "+cond, args...); err != nil {
			return fmt.Errorf("failed to delete dequeued entries: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
