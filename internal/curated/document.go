// Package curated maintains MEMORY.md, the hand-curated long-term memory
// document made of "## " sections of bullet points.
package curated

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/milohq/milo-memory/internal/apperr"
	"github.com/milohq/milo-memory/internal/logging"
	"github.com/milohq/milo-memory/internal/model"
)

// DefaultSection is used when no section key is given.
const DefaultSection = "key_facts"

// sectionHeaders maps friendly section keys to their headers.
var sectionHeaders = map[string]string{
	"user_preferences":  "## User Preferences",
	"key_facts":         "## Key Facts",
	"learned_behaviors": "## Learned Behaviors",
	"current_projects":  "## Current Projects",
	"technical_context": "## Technical Context",
}

var stampRe = regexp.MustCompile(`\*Last updated:.*?\*`)

// HeaderFor returns the header for a section key. Unlisted keys become
// "## <key>", flattened to one line.
func HeaderFor(key string) string {
	key = oneLine(key)
	if key == "" {
		key = DefaultSection
	}
	norm := strings.ToLower(strings.NewReplacer(" ", "_", "-", "_").Replace(key))
	if h, ok := sectionHeaders[norm]; ok {
		return h
	}
	return "## " + key
}

// sectionHeader is HeaderFor for writes. A key with a line of its own
// starting with "#" would add a header to the document and is rejected.
func sectionHeader(key string) (string, error) {
	for _, line := range strings.Split(key, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			return "", apperr.Validation("update curated", "section %q must not contain a markdown header", oneLine(key))
		}
	}
	return HeaderFor(key), nil
}

// SectionKeys returns the friendly keys in document order.
func SectionKeys() []string {
	return []string{"user_preferences", "key_facts", "learned_behaviors", "current_projects", "technical_context"}
}

// Document is the curated markdown file on disk.
type Document struct {
	path string
	log  *zap.Logger
	now  func() time.Time
}

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Document) { d.log = logging.OrNop(l) }
}

// WithClock overrides the clock used for the "Last updated" stamp.
func WithClock(now func() time.Time) Option {
	return func(d *Document) { d.now = now }
}

// New returns a Document backed by path. The file is not touched.
func New(path string, opts ...Option) *Document {
	d := &Document{path: path, log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Path returns the file path.
func (d *Document) Path() string { return d.path }

// Name returns the file name used as the provenance tag of search results.
func (d *Document) Name() string { return filepath.Base(d.path) }

// Read returns the full document. A missing file is a NotFound error.
func (d *Document) Read(_ context.Context) (string, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperr.NotFound("read curated", "%s not found", d.Name())
		}
		return "", fmt.Errorf("read curated: %w", err)
	}
	return string(data), nil
}

// AppendResult describes a section append.
type AppendResult struct {
	Header  string `json:"header"`
	Created bool   `json:"created"`
	Stamp   string `json:"stamp"`
}

// AppendToSection adds content as a new bullet of the section named by key.
// Placeholder bullets in that section are dropped; a missing section is
// created. The "Last updated" stamp is rewritten to today's date.
func (d *Document) AppendToSection(ctx context.Context, content, key string) (*AppendResult, error) {
	content = oneLine(content)
	if content == "" {
		return nil, apperr.Validation("update curated", "content is required")
	}

	header, err := sectionHeader(key)
	if err != nil {
		return nil, err
	}

	text, err := d.Read(ctx)
	if err != nil {
		return nil, err
	}

	ix := Parse(text)
	for _, dup := range ix.Duplicates {
		d.log.Warn("duplicate section header, editing the first occurrence",
			zap.String("header", dup), zap.String("path", d.path))
	}

	res := &AppendResult{Header: header}
	if sec, ok := ix.Find(header); ok {
		ix.appendBullet(sec, content)
	} else {
		ix.addSection(header, content)
		res.Created = true
	}

	res.Stamp = d.now().Format("2006-01-02")
	out := stampRe.ReplaceAllString(ix.String(), "*Last updated: "+res.Stamp+"*")

	if err := writeFilePreservingMode(d.path, []byte(out)); err != nil {
		return nil, fmt.Errorf("update curated: %w", err)
	}
	d.log.Debug("updated curated document", zap.String("header", header), zap.Bool("created", res.Created))
	return res, nil
}

// Search returns every line containing query, case-insensitively.
// A missing document yields no results.
func (d *Document) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	text, err := d.Read(ctx)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}

	q := strings.ToLower(query)
	var results []model.SearchResult
	for i, line := range strings.Split(text, "\n") {
		if strings.Contains(strings.ToLower(line), q) {
			results = append(results, model.SearchResult{
				Content:   strings.TrimSpace(line),
				Source:    d.Name(),
				EntryType: model.EntryTypeCurated,
				Line:      i + 1,
			})
		}
	}
	return results, nil
}

// Scaffold writes the default template when the document does not exist.
// It reports whether a file was created.
func (d *Document) Scaffold(_ context.Context) (bool, error) {
	if _, err := os.Stat(d.path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return false, err
	}
	f, err := os.OpenFile(d.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	if _, err := f.WriteString(Template(d.now())); err != nil {
		return false, err
	}
	return true, nil
}

// Template returns the initial document.
func Template(now time.Time) string {
	var b strings.Builder
	b.WriteString("# Long-Term Memory\n\n")
	b.WriteString("> Curated facts and preferences. Day-to-day events live in the daily logs.\n\n")
	hints := map[string]string{
		"user_preferences":  "Communication style, tools, and habits the user prefers",
		"key_facts":         "Stable facts about the user and their world",
		"learned_behaviors": "Approaches that worked, and mistakes to avoid",
		"current_projects":  "Active work and its status",
		"technical_context": "Machines, accounts, and environment details",
	}
	for _, key := range SectionKeys() {
		fmt.Fprintf(&b, "%s\n\n- (%s)\n\n", sectionHeaders[key], hints[key])
	}
	fmt.Fprintf(&b, "---\n\n*Last updated: %s*\n", now.Format("2006-01-02"))
	return b.String()
}

func oneLine(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	return strings.TrimSpace(s)
}

func writeFilePreservingMode(path string, data []byte) error {
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	return os.WriteFile(path, data, mode)
}
