package store

import (
	"context"

	"github.com/milohq/milo-memory/internal/model"
)

// ExportAll returns all entries, oldest first, so an import replays them in order.
func (s *SQLiteStore) ExportAll(ctx context.Context) ([]model.Entry, error) {
	return s.queryEntries(ctx,
		`SELECT id, content, entry_type, importance, created_at FROM memory_entries
		 ORDER BY created_at, id`)
}

// Import stores entries from an export. Ids and timestamps are reassigned;
// content, type, and importance are kept.
func (s *SQLiteStore) Import(ctx context.Context, entries []model.Entry) (int, error) {
	imported := 0
	for _, e := range entries {
		_, err := s.Insert(ctx, InsertParams{
			Content:    e.Content,
			EntryType:  e.EntryType,
			Importance: e.Importance,
		})
		if err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
