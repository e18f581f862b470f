// Package hybrid fans a query out to the entry store, the curated document,
// and the recent daily logs, and groups what each source found.
package hybrid

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/milohq/milo-memory/internal/apperr"
	"github.com/milohq/milo-memory/internal/logging"
	"github.com/milohq/milo-memory/internal/model"
	"github.com/milohq/milo-memory/internal/store"
)

// DefaultRecentLogFiles is how many of the newest daily logs are searched.
const DefaultRecentLogFiles = 7

// DefaultLimit bounds the store results of one search.
const DefaultLimit = 15

// EntrySource is the relational entry store.
type EntrySource interface {
	SearchResults(ctx context.Context, query string, limit int) ([]model.SearchResult, error)
	List(ctx context.Context, p store.ListParams) ([]model.Entry, error)
}

// CuratedSource is the curated markdown document.
type CuratedSource interface {
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
	Read(ctx context.Context) (string, error)
}

// LogSource is the directory of daily logs.
type LogSource interface {
	Search(ctx context.Context, query string, maxFiles int) ([]model.SearchResult, error)
	Read(ctx context.Context, date string) (string, error)
}

// Coordinator queries the three memory sources. It keeps no state between
// calls; a nil source contributes nothing.
type Coordinator struct {
	entries    EntrySource
	curated    CuratedSource
	logs       LogSource
	recentLogs int
	log        *zap.Logger
	now        func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.log = logging.OrNop(l) }
}

// WithRecentLogFiles sets how many daily logs are searched.
func WithRecentLogFiles(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.recentLogs = n
		}
	}
}

// WithClock overrides the clock used to pick today's and yesterday's logs.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New returns a Coordinator over the given sources.
func New(entries EntrySource, curated CuratedSource, logs LogSource, opts ...Option) *Coordinator {
	c := &Coordinator{
		entries:    entries,
		curated:    curated,
		logs:       logs,
		recentLogs: DefaultRecentLogFiles,
		log:        zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs query against every source. The store is bounded by limit;
// the curated document and the logs return all matches. A failing source
// is recorded on the report and the others still run.
func (c *Coordinator) Search(ctx context.Context, query string, limit int) (*Report, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.Validation("hybrid search", "query is required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	r := &Report{Query: query}

	if c.entries != nil {
		res, err := c.entries.SearchResults(ctx, query, limit)
		r.Database = c.collect(r, model.SourceDB, res, err)
	}
	if c.curated != nil {
		res, err := c.curated.Search(ctx, query)
		r.Curated = c.collect(r, model.SourceCurated, res, err)
	}
	if c.logs != nil {
		res, err := c.logs.Search(ctx, query, c.recentLogs)
		r.Logs = c.collect(r, SourceLogs, res, err)
	}

	c.log.Debug("hybrid search",
		zap.String("query", query),
		zap.Int("db", len(r.Database)),
		zap.Int("curated", len(r.Curated)),
		zap.Int("logs", len(r.Logs)),
		zap.Int("errors", len(r.Errors)))
	return r, nil
}

func (c *Coordinator) collect(r *Report, source string, res []model.SearchResult, err error) []model.SearchResult {
	if err != nil {
		c.log.Warn("memory source failed", zap.String("source", source), zap.Error(err))
		r.Errors = append(r.Errors, SourceError{Source: source, Err: err})
		return nil
	}
	return res
}
