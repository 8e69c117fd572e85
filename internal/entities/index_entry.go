package entities

import "time"

// IndexEntry is a pending search index update for one row
type IndexEntry struct {
	ID         int64
	TableNum   int
	RowID      int64
	IsDelete   bool
	Row        map[string]interface{}
	Locale     string
	Exclusions []string // fields that did not change and need no reindexing
	CreatedAt  time.Time
}
