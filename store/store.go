// Package store defines the document-store primitives the adapter consumes.
// A single backend (mongo, memory) implements all of them. Filters are
// equality conjunctions over named fields; every delete directive removes
// at most one matching record.
package store

import (
	"context"

	"github.com/polstore/mongoadapter/rule"
)

// Replacement pairs a filter with the record that replaces its first match.
type Replacement struct {
	Filter rule.Filter
	Rule   rule.Rule
}

// Store is the persistence interface over one logical collection of rule
// records. Implementations must be safe for concurrent use; consistency
// across calls is delegated to the backend's per-operation atomicity.
type Store interface {
	// FindAll returns every record in the collection, order unspecified.
	FindAll(ctx context.Context) ([]rule.Rule, error)

	// Find returns the records matching any of the given filters,
	// order unspecified. An empty filter slice matches no records.
	Find(ctx context.Context, filters []rule.Filter) ([]rule.Rule, error)

	// InsertOne stores a single record.
	InsertOne(ctx context.Context, r rule.Rule) error

	// InsertMany stores the given records in one round trip. The slice
	// must be non-empty.
	InsertMany(ctx context.Context, rules []rule.Rule) error

	// DeleteOne removes at most one record matching the filter.
	DeleteOne(ctx context.Context, f rule.Filter) error

	// BulkDeleteOne executes one delete-one directive per filter in a
	// single round trip. Each directive independently removes at most
	// one matching record. The slice must be non-empty.
	BulkDeleteOne(ctx context.Context, filters []rule.Filter) error

	// ReplaceOne replaces at most one record matching the filter.
	ReplaceOne(ctx context.Context, f rule.Filter, r rule.Rule) error

	// BulkReplaceOne executes one replace-one directive per replacement
	// in a single round trip. The slice must be non-empty.
	BulkReplaceOne(ctx context.Context, reps []Replacement) error

	// Drop removes every record in the collection.
	Drop(ctx context.Context) error

	// Migrate creates the collection's indexes.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}
