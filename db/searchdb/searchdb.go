// Package searchdb stores Indexes of document records in SQLite, with an FTS5
// table per Index and a catalog of all Indexes.
package searchdb

import (
	"context"
	"regexp"

	"github.com/meghashyamc/corescout/errs"
)

type DB interface {
	// IndexExists reports whether the catalog has an Index with this name.
	IndexExists(ctx context.Context, name string) (bool, error)
	// ReplaceIndex writes records as the complete content of the named Index in
	// one transaction. Records must be sorted by SourcePath.
	ReplaceIndex(ctx context.Context, name string, overwrite bool, records []Record, warningCount int) (IndexInfo, error)
	// Search runs an FTS5 match expression. An empty expression matches every
	// record.
	Search(ctx context.Context, name string, expression string, limit int) (*Page, error)
	GetRecord(ctx context.Context, name string, id int64) (Record, error)
	GetIndex(ctx context.Context, name string) (IndexInfo, error)
	ListIndexes(ctx context.Context) ([]IndexInfo, error)
	Ping(ctx context.Context) error
	Close() error
}

var indexNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// ValidateIndexName returns an *errs.InvalidIndexNameError unless name is a
// lowercase identifier that is safe to embed in table names.
func ValidateIndexName(name string) error {
	if !indexNamePattern.MatchString(name) {
		return &errs.InvalidIndexNameError{Name: name}
	}
	return nil
}
