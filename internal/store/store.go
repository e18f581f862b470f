// Package store provides the memory entry storage interface and SQLite implementation.
package store

import (
	"context"

	"github.com/milohq/milo-memory/internal/model"
)

// InsertParams holds parameters for storing an entry.
type InsertParams struct {
	Content    string `validate:"required"`
	EntryType  string `validate:"required,max=64"`
	Importance int    `validate:"min=1,max=10"`
}

// SearchParams holds parameters for searching entries.
type SearchParams struct {
	Query     string
	EntryType string
	Limit     int
}

// ListParams holds parameters for listing entries.
type ListParams struct {
	EntryType string
	Limit     int
}

// Store defines the entry storage interface.
type Store interface {
	// Insert stores a new entry and returns it with its assigned id.
	Insert(ctx context.Context, p InsertParams) (*model.Entry, error)

	// Search returns entries whose content contains the query,
	// most important and newest first.
	Search(ctx context.Context, p SearchParams) ([]model.Entry, error)

	// List returns entries newest first.
	List(ctx context.Context, p ListParams) ([]model.Entry, error)

	// Delete removes the entry with the given id and reports how many rows went away.
	Delete(ctx context.Context, id int64) (int64, error)

	// Close closes the store.
	Close() error
}
