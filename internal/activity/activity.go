// Package activity records the requests the agent picks up and how they ended,
// in a SQLite database separate from the memory entries.
package activity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/milohq/milo-memory/internal/apperr"
	"github.com/milohq/milo-memory/internal/logging"
	"github.com/milohq/milo-memory/internal/model"
	"github.com/milohq/milo-memory/internal/store"
)

const defaultLimit = 20

var validate = validator.New()

// AddParams describes a new task.
type AddParams struct {
	Source  string `validate:"max=64"`
	Request string `validate:"required"`
	Status  string `validate:"omitempty,oneof=pending running"`
}

// CompleteParams closes a task.
type CompleteParams struct {
	ID      string `validate:"required"`
	Status  string `validate:"oneof=done failed"`
	Summary string
}

// ListParams filters a task listing.
type ListParams struct {
	Status string `validate:"omitempty,oneof=pending running done failed"`
	Limit  int
}

// Store is the activity database.
type Store struct {
	db      *sql.DB
	path    string
	log     *zap.Logger
	now     func() time.Time
	entropy io.Reader
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = logging.OrNop(l) }
}

// WithClock overrides the clock used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens or creates the activity database at path.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperr.StorageUnavailable("open activity", fmt.Errorf("create db dir: %w", err))
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, apperr.StorageUnavailable("open activity", fmt.Errorf("open db: %w", err))
	}

	s := &Store{
		db:      db,
		path:    path,
		log:     zap.NewNop(),
		now:     time.Now,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, apperr.StorageUnavailable("open activity", fmt.Errorf("migrate: %w", err))
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id           TEXT PRIMARY KEY,
		source       TEXT,
		request      TEXT,
		status       TEXT DEFAULT 'pending',
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
		completed_at DATETIME,
		summary      TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) newID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

// Add records a new task, pending unless p.Status says running.
func (s *Store) Add(ctx context.Context, p AddParams) (*model.Task, error) {
	p.Request = strings.TrimSpace(p.Request)
	p.Source = strings.TrimSpace(p.Source)
	if err := check("add task", p); err != nil {
		return nil, err
	}
	if p.Status == "" {
		p.Status = model.TaskPending
	}

	now := s.now().UTC().Truncate(time.Second)
	t := &model.Task{
		ID:        s.newID(now),
		Source:    p.Source,
		Request:   p.Request,
		Status:    p.Status,
		CreatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, source, request, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Source, t.Request, t.Status, now.Format(store.TimeLayout))
	if err != nil {
		return nil, fmt.Errorf("add task: %w", err)
	}
	s.log.Debug("added task", zap.String("id", t.ID), zap.String("status", t.Status))
	return t, nil
}

// Complete marks a task done or failed with a summary.
func (s *Store) Complete(ctx context.Context, p CompleteParams) (*model.Task, error) {
	p.ID = strings.TrimSpace(p.ID)
	if err := check("complete task", p); err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, completed_at = ?, summary = ? WHERE id = ?`,
		p.Status, now.Format(store.TimeLayout), p.Summary, p.ID)
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.NotFound("complete task", "task %s not found", p.ID)
	}
	return s.Get(ctx, p.ID)
}

// Get returns one task.
func (s *Store) Get(ctx context.Context, id string) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, request, status, created_at, completed_at, summary FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("get task", "task %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &t, nil
}

// List returns tasks newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, p ListParams) ([]model.Task, error) {
	if err := check("list tasks", p); err != nil {
		return nil, err
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	query := `SELECT id, source, request, status, created_at, completed_at, summary FROM tasks`
	var args []interface{}
	if p.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, p.Status)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row scanner) (model.Task, error) {
	var t model.Task
	var source, request, status, summary, createdAt, completedAt sql.NullString
	if err := row.Scan(&t.ID, &source, &request, &status, &createdAt, &completedAt, &summary); err != nil {
		return t, err
	}
	t.Source = source.String
	t.Request = request.String
	t.Summary = summary.String
	t.Status = model.TaskPending
	if status.Valid && status.String != "" {
		t.Status = status.String
	}
	if createdAt.Valid {
		t.CreatedAt = store.ParseTime(createdAt.String)
	}
	if completedAt.Valid && completedAt.String != "" {
		c := store.ParseTime(completedAt.String)
		t.CompletedAt = &c
	}
	return t, nil
}

func check(op string, v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(op, "%v", err)
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return apperr.Validation(op, "%s is required", field)
	case "oneof":
		return apperr.Validation(op, "%s must be one of %s, got %q", field, fe.Param(), fe.Value())
	}
	return apperr.Validation(op, "invalid %s", field)
}
