// Package model defines the core memory data types.
package model

import "time"

const (
	// DefaultEntryType is used when a write does not name a type.
	DefaultEntryType = "fact"
	// DefaultImportance is used when a write does not set an importance.
	DefaultImportance = 5
	// MinImportance and MaxImportance bound Entry.Importance.
	MinImportance = 1
	MaxImportance = 10
)

// Entry represents a stored memory entry.
type Entry struct {
	ID         int64     `json:"id" yaml:"id"`
	Content    string    `json:"content" yaml:"content"`
	EntryType  string    `json:"entry_type" yaml:"entry_type"`
	Importance int       `json:"importance" yaml:"importance"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// Provenance tags for search results.
const (
	SourceDB      = "db"
	SourceCurated = "MEMORY.md"

	// EntryTypeCurated and EntryTypeLog tag results from the markdown sources.
	EntryTypeCurated = "curated"
	EntryTypeLog     = "log"
)

// SearchResult is a single match produced by one memory source.
// Source is "db", "MEMORY.md", or the name of a daily log file.
type SearchResult struct {
	ID         int64   `json:"id,omitempty" yaml:"id,omitempty"`
	Content    string  `json:"content" yaml:"content"`
	Source     string  `json:"source" yaml:"source"`
	EntryType  string  `json:"entry_type" yaml:"entry_type"`
	Importance int     `json:"importance,omitempty" yaml:"importance,omitempty"`
	Score      float64 `json:"score,omitempty" yaml:"score,omitempty"`
	Line       int     `json:"line,omitempty" yaml:"line,omitempty"`
}

// Task is a row of the activity log: a request the agent picked up and its outcome.
type Task struct {
	ID          string     `json:"id" yaml:"id"`
	Source      string     `json:"source,omitempty" yaml:"source,omitempty"`
	Request     string     `json:"request" yaml:"request"`
	Status      string     `json:"status" yaml:"status"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Summary     string     `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// KnownEntryTypes lists the entry types the agent is prompted with.
// The set is open-ended; any non-empty tag is accepted.
var KnownEntryTypes = []string{
	"fact",
	"preference",
	"event",
	"insight",
	"task",
	"relationship",
}

// Task statuses.
const (
	TaskPending = "pending"
	TaskRunning = "running"
	TaskDone    = "done"
	TaskFailed  = "failed"
)

// ValidTaskStatuses are the allowed task statuses.
var ValidTaskStatuses = map[string]bool{
	TaskPending: true,
	TaskRunning: true,
	TaskDone:    true,
	TaskFailed:  true,
}
