package store

import (
	"context"
	"strings"

	"github.com/milohq/milo-memory/internal/model"
)

// likeEscaper makes the query a literal substring inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search finds entries whose content contains the query substring.
// Matching is case-insensitive for ASCII letters (SQLite LIKE semantics).
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]model.Entry, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	pattern := "%" + likeEscaper.Replace(p.Query) + "%"

	query := `SELECT id, content, entry_type, importance, created_at FROM memory_entries
		WHERE content LIKE ? ESCAPE '\'`
	args := []interface{}{pattern}

	if p.EntryType != "" {
		query += ` AND entry_type = ?`
		args = append(args, p.EntryType)
	}

	query += ` ORDER BY importance DESC, created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	return s.queryEntries(ctx, query, args...)
}

// SearchResults runs Search and tags each entry with the "db" provenance.
func (s *SQLiteStore) SearchResults(ctx context.Context, query string, limit int) ([]model.SearchResult, error) {
	entries, err := s.Search(ctx, SearchParams{Query: query, Limit: limit})
	if err != nil {
		return nil, err
	}
	results := make([]model.SearchResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, model.SearchResult{
			ID:         e.ID,
			Content:    e.Content,
			Source:     model.SourceDB,
			EntryType:  e.EntryType,
			Importance: e.Importance,
		})
	}
	return results, nil
}
