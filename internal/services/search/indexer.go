// Package search connects relationship changes to an external search index.
package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/repositories"
)

// Indexer is informed whenever relationship rows are created, moved or copied.
// exclusions names fields that did not change and need no reindexing.
type Indexer interface {
	IndexRow(ctx context.Context, tableNum int, rowID int64, row map[string]interface{}, isDelete bool, locale string, exclusions []string) error
}

// NopIndexer discards every update
type NopIndexer struct{}

// IndexRow does nothing
func (NopIndexer) IndexRow(ctx context.Context, tableNum int, rowID int64, row map[string]interface{}, isDelete bool, locale string, exclusions []string) error {
	return nil
}

// QueueIndexer stores updates in the reindex queue for a separate worker.
// Inside an ambient transaction the entry commits with the relationship change.
type QueueIndexer struct {
	repo repositories.ReindexQueueRepository
}

// NewQueueIndexer creates an indexer backed by the reindex queue
func NewQueueIndexer(repo repositories.ReindexQueueRepository) *QueueIndexer {
	return &QueueIndexer{repo: repo}
}

// IndexRow enqueues the update
func (q *QueueIndexer) IndexRow(ctx context.Context, tableNum int, rowID int64, row map[string]interface{}, isDelete bool, locale string, exclusions []string) error {
	_, err := q.repo.Enqueue(ctx, &entities.IndexEntry{
		TableNum:   tableNum,
		RowID:      rowID,
		IsDelete:   isDelete,
		Row:        row,
		Locale:     locale,
		Exclusions: exclusions,
	})
	if err != nil {
		return fmt.Errorf("failed to queue reindex of %d:%d: %w", tableNum, rowID, err)
	}
	return nil
}

// MemoryIndexer keeps updates in memory. It is safe for concurrent use.
type MemoryIndexer struct {
	mu      sync.Mutex
	entries []*entities.IndexEntry
}

// IndexRow records the update
func (m *MemoryIndexer) IndexRow(ctx context.Context, tableNum int, rowID int64, row map[string]interface{}, isDelete bool, locale string, exclusions []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, &entities.IndexEntry{
		TableNum:   tableNum,
		RowID:      rowID,
		IsDelete:   isDelete,
		Row:        row,
		Locale:     locale,
		Exclusions: exclusions,
	})
	return nil
}

// Entries returns a copy of the recorded updates in order
func (m *MemoryIndexer) Entries() []*entities.IndexEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entities.IndexEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Reset discards the recorded updates
func (m *MemoryIndexer) Reset() {
	m.mu.Lock()
	m.entries = nil
	m.mu.Unlock()
}
