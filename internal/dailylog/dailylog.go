// Package dailylog writes and searches the date-partitioned markdown logs,
// one file per calendar day named YYYY-MM-DD.md.
package dailylog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/milohq/milo-memory/internal/apperr"
	"github.com/milohq/milo-memory/internal/logging"
	"github.com/milohq/milo-memory/internal/model"
)

// DateLayout is the layout of log file names and date arguments.
const DateLayout = "2006-01-02"

// Log is a directory of daily log files.
type Log struct {
	dir string
	log *zap.Logger
	now func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(lg *Log) { lg.log = logging.OrNop(l) }
}

// WithClock overrides the clock used for today's date and bullet times.
func WithClock(now func() time.Time) Option {
	return func(lg *Log) { lg.now = now }
}

// New returns a Log rooted at dir. The directory is created on first append.
func New(dir string, opts ...Option) *Log {
	lg := &Log{dir: dir, log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(lg)
	}
	return lg
}

// Dir returns the log directory.
func (lg *Log) Dir() string { return lg.dir }

// Today returns today's date in DateLayout.
func (lg *Log) Today() string { return lg.now().Format(DateLayout) }

// Path returns the file path for date. An empty date means today.
func (lg *Log) Path(date string) (string, error) {
	date, err := lg.normalizeDate(date)
	if err != nil {
		return "", err
	}
	return filepath.Join(lg.dir, date+".md"), nil
}

func (lg *Log) normalizeDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return lg.Today(), nil
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return "", apperr.Validation("daily log", "invalid date %q, want YYYY-MM-DD", date)
	}
	return date, nil
}

// Header returns the block written at the top of a new log file.
func Header(date string) (string, error) {
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", apperr.Validation("daily log", "invalid date %q, want YYYY-MM-DD", date)
	}
	return fmt.Sprintf("# Daily Log: %s\n\n> Session log for %s\n\n---\n\n## Events & Notes\n\n",
		date, day.Format("Monday, January 02, 2006")), nil
}

// Append writes "- [HH:MM] content" to the log for date, creating the file
// with its header when needed, and returns the file path.
func (lg *Log) Append(_ context.Context, content, date string) (string, error) {
	content = strings.TrimSpace(strings.NewReplacer("\r\n", " ", "\n", " ").Replace(content))
	if content == "" {
		return "", apperr.Validation("daily log", "content is required")
	}
	date, err := lg.normalizeDate(date)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(lg.dir, 0o755); err != nil {
		return "", fmt.Errorf("daily log: %w", err)
	}
	path := filepath.Join(lg.dir, date+".md")
	if err := ensureHeader(path, date); err != nil {
		return "", fmt.Errorf("daily log: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("daily log: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("- [%s] %s\n", lg.now().Format("15:04"), content)
	if _, err := f.WriteString(line); err != nil {
		return "", fmt.Errorf("daily log: %w", err)
	}
	lg.log.Debug("appended daily log", zap.String("path", path))
	return path, nil
}

func ensureHeader(path, date string) error {
	info, err := os.Stat(path)
	if err == nil && info.Size() > 0 {
		return nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	header, err := Header(date)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(header), 0o644)
}

// Read returns the log for date. A missing file is a NotFound error.
func (lg *Log) Read(_ context.Context, date string) (string, error) {
	path, err := lg.Path(date)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperr.NotFound("read daily log", "no log for %s", strings.TrimSuffix(filepath.Base(path), ".md"))
		}
		return "", fmt.Errorf("read daily log: %w", err)
	}
	return string(data), nil
}

// Recent returns the paths of the newest n log files, newest first.
// n <= 0 returns every file. A missing directory yields none.
func (lg *Log) Recent(n int) ([]string, error) {
	entries, err := os.ReadDir(lg.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".md") {
			continue
		}
		names = append(names, de.Name())
	}
	slices.Sort(names)
	slices.Reverse(names)
	if n > 0 && len(names) > n {
		names = names[:n]
	}

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(lg.dir, name)
	}
	return paths, nil
}

// Search returns every line containing query, case-insensitively, across
// the newest maxFiles logs. Results keep file order then line order.
func (lg *Log) Search(_ context.Context, query string, maxFiles int) ([]model.SearchResult, error) {
	paths, err := lg.Recent(maxFiles)
	if err != nil {
		return nil, fmt.Errorf("search daily logs: %w", err)
	}

	q := strings.ToLower(query)
	var results []model.SearchResult
	for _, path := range paths {
		lines, err := readLines(path)
		if err != nil {
			lg.log.Warn("skipping unreadable log", zap.String("path", path), zap.Error(err))
			continue
		}
		name := filepath.Base(path)
		for i, line := range lines {
			if strings.Contains(strings.ToLower(line), q) {
				results = append(results, model.SearchResult{
					Content:   strings.TrimSpace(line),
					Source:    name,
					EntryType: model.EntryTypeLog,
					Line:      i + 1,
				})
			}
		}
	}
	return results, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
