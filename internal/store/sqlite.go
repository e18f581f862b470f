package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/milohq/milo-memory/internal/apperr"
	"github.com/milohq/milo-memory/internal/logging"
	"github.com/milohq/milo-memory/internal/model"
)

const defaultLimit = 20

// TimeLayout matches SQLite's CURRENT_TIMESTAMP so rows written by older
// tooling sort together with ours.
const TimeLayout = "2006-01-02 15:04:05"

var validate = validator.New()

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	path  string
	log   *zap.Logger
	nowFn func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the logger used for schema and write diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLiteStore) { s.log = logging.OrNop(l) }
}

// WithClock overrides the clock used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.nowFn = now }
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
// The schema is created on first use.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.StorageUnavailable("open store", fmt.Errorf("create db dir: %w", err))
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, apperr.StorageUnavailable("open store", fmt.Errorf("open db: %w", err))
	}

	s := &SQLiteStore{
		db:    db,
		path:  dbPath,
		log:   zap.NewNop(),
		nowFn: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, apperr.StorageUnavailable("open store", fmt.Errorf("migrate: %w", err))
	}
	s.log.Debug("memory store ready", zap.String("path", dbPath))

	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memory_entries (
		id          INTEGER PRIMARY KEY,
		content     TEXT NOT NULL,
		entry_type  TEXT DEFAULT 'fact',
		importance  INTEGER DEFAULT 5,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_entries_type ON memory_entries(entry_type);
	CREATE INDEX IF NOT EXISTS idx_entries_created ON memory_entries(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Insert(ctx context.Context, p InsertParams) (*model.Entry, error) {
	p = p.withDefaults()
	if err := validateInsert(p); err != nil {
		return nil, err
	}

	now := s.nowFn().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_entries (content, entry_type, importance, created_at) VALUES (?, ?, ?, ?)`,
		p.Content, p.EntryType, p.Importance, now.Format(TimeLayout))
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	s.log.Debug("stored entry", zap.Int64("id", id), zap.String("type", p.EntryType), zap.Int("importance", p.Importance))

	return &model.Entry{
		ID:         id,
		Content:    p.Content,
		EntryType:  p.EntryType,
		Importance: p.Importance,
		CreatedAt:  now,
	}, nil
}

// Validate reports whether Insert would accept p, without touching the
// database. Callers with side effects of their own check this first.
func Validate(p InsertParams) error {
	return validateInsert(p.withDefaults())
}

func (p InsertParams) withDefaults() InsertParams {
	p.Content = strings.TrimSpace(p.Content)
	p.EntryType = strings.TrimSpace(p.EntryType)
	if p.EntryType == "" {
		p.EntryType = model.DefaultEntryType
	}
	if p.Importance == 0 {
		p.Importance = model.DefaultImportance
	}
	return p
}

func validateInsert(p InsertParams) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("insert", "%v", err)
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Content":
		return apperr.Validation("insert", "content is required")
	case "Importance":
		return apperr.Validation("insert", "importance must be between %d and %d, got %d",
			model.MinImportance, model.MaxImportance, p.Importance)
	case "EntryType":
		return apperr.Validation("insert", "entry type %q is too long", p.EntryType)
	}
	return apperr.Validation("insert", "invalid %s", strings.ToLower(fe.Field()))
}

func (s *SQLiteStore) List(ctx context.Context, p ListParams) ([]model.Entry, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	query := `SELECT id, content, entry_type, importance, created_at FROM memory_entries`
	var args []interface{}
	if p.EntryType != "" {
		query += ` WHERE entry_type = ?`
		args = append(args, p.EntryType)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	return s.queryEntries(ctx, query, args...)
}

// All returns every entry, newest first.
func (s *SQLiteStore) All(ctx context.Context) ([]model.Entry, error) {
	return s.queryEntries(ctx,
		`SELECT id, content, entry_type, importance, created_at FROM memory_entries
		 ORDER BY created_at DESC, id DESC`)
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memory_entries WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete entry: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryEntries(ctx context.Context, query string, args ...interface{}) ([]model.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (model.Entry, error) {
	var e model.Entry
	var entryType sql.NullString
	var importance sql.NullInt64
	var createdAt sql.NullString

	if err := row.Scan(&e.ID, &e.Content, &entryType, &importance, &createdAt); err != nil {
		return e, err
	}

	e.EntryType = model.DefaultEntryType
	if entryType.Valid && entryType.String != "" {
		e.EntryType = entryType.String
	}
	e.Importance = model.DefaultImportance
	if importance.Valid {
		e.Importance = int(importance.Int64)
	}
	if createdAt.Valid {
		e.CreatedAt = ParseTime(createdAt.String)
	}
	return e, nil
}

// ParseTime accepts the layouts SQLite drivers hand back for DATETIME columns.
func ParseTime(s string) time.Time {
	layouts := []string{
		TimeLayout,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05.999999999-07:00",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
