package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath      string         `json:"db_path" yaml:"db_path"`
	DBSizeBytes int64          `json:"db_size_bytes" yaml:"db_size_bytes"`
	Total       int            `json:"total" yaml:"total"`
	PerType     map[string]int `json:"per_type" yaml:"per_type"`
	// Types lists the keys of PerType, most frequent first.
	Types []string `json:"-" yaml:"-"`
}

// Stats returns entry counts overall and per entry type.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{DBPath: s.path, PerType: map[string]int{}}

	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_entries`).Scan(&st.Total); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(entry_type, 'fact') AS t, COUNT(*) AS cnt
		FROM memory_entries GROUP BY t ORDER BY cnt DESC, t`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return st, err
		}
		st.PerType[t] = n
		st.Types = append(st.Types, t)
	}

	return st, rows.Err()
}
