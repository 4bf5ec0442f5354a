// Package search runs read-only queries against stored Indexes and builds
// highlighted snippets for the matches.
package search

import (
	"context"
	"fmt"

	"github.com/meghashyamc/corescout/config"
	"github.com/meghashyamc/corescout/db/searchdb"
	"github.com/meghashyamc/corescout/errs"
	"github.com/meghashyamc/corescout/logger"
)

type Result struct {
	ID                int64    `json:"id"`
	SourcePath        string   `json:"source_path"`
	FileType          string   `json:"file_type"`
	Score             float64  `json:"score"`
	Snippet           string   `json:"highlighted_snippet"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`
	RawCoordinateText *string  `json:"raw_coordinate_text,omitempty"`
}

// ResultSet holds up to limit results; Total counts every match.
type ResultSet struct {
	IndexName string   `json:"index_name"`
	Query     string   `json:"query"`
	Total     int      `json:"total"`
	Results   []Result `json:"results"`
}

type Service struct {
	logger       logger.Logger
	db           searchdb.DB
	highlighter  *Highlighter
	defaultLimit int
	maxLimit     int
}

func New(logger logger.Logger, cfg *config.Config, db searchdb.DB) (*Service, error) {
	pre, post := cfg.GetHighlightMarkers()
	highlighter, err := NewHighlighter(cfg.GetSnippetContext(), pre, post)
	if err != nil {
		return nil, fmt.Errorf("could not create snippet highlighter: %w", err)
	}
	return &Service{
		logger:       logger,
		db:           db,
		highlighter:  highlighter,
		defaultLimit: cfg.GetDefaultSearchLimit(),
		maxLimit:     cfg.GetMaxSearchLimit(),
	}, nil
}

// WithMaxLimit returns a copy of the service that caps limits at maxLimit.
func (s *Service) WithMaxLimit(maxLimit int) *Service {
	copied := *s
	copied.maxLimit = maxLimit
	return &copied
}

func (s *Service) DefaultLimit() int {
	return s.defaultLimit
}

// Search runs query against the named Index. An empty or "*" query matches
// every record. limit must be positive and is capped at the configured
// maximum.
func (s *Service) Search(ctx context.Context, name string, query string, limit int) (ResultSet, error) {
	if limit <= 0 {
		return ResultSet{}, &errs.InvalidArgumentError{Argument: "limit", Reason: fmt.Sprintf("must be a positive integer, got %d", limit)}
	}
	if limit > s.maxLimit {
		s.logger.Debug("capping search limit", "requested", limit, "max", s.maxLimit)
		limit = s.maxLimit
	}

	parsed, err := ParseQuery(query)
	if err != nil {
		s.logger.Warn("rejected search query", "index", name, "query", query, "err", err.Error())
		return ResultSet{}, err
	}

	page, err := s.db.Search(ctx, name, parsed.Expression, limit)
	if err != nil {
		return ResultSet{}, err
	}

	results := make([]Result, 0, len(page.Hits))
	for _, hit := range page.Hits {
		record := hit.Record
		results = append(results, Result{
			ID:                record.ID,
			SourcePath:        record.SourcePath,
			FileType:          record.FileType,
			Score:             hit.Score,
			Snippet:           s.highlighter.Snippet(record.ExtractedText, parsed.Terms),
			Latitude:          record.Latitude,
			Longitude:         record.Longitude,
			RawCoordinateText: record.RawCoordinateText,
		})
	}

	s.logger.Debug("searched index", "index", name, "query", query, "expression", parsed.Expression, "total", page.Total, "returned", len(results))
	return ResultSet{IndexName: name, Query: query, Total: page.Total, Results: results}, nil
}

func (s *Service) GetRecord(ctx context.Context, name string, id int64) (searchdb.Record, error) {
	return s.db.GetRecord(ctx, name, id)
}

func (s *Service) GetIndex(ctx context.Context, name string) (searchdb.IndexInfo, error) {
	return s.db.GetIndex(ctx, name)
}

func (s *Service) ListIndexes(ctx context.Context) ([]searchdb.IndexInfo, error) {
	return s.db.ListIndexes(ctx)
}
