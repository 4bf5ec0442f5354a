// Package export turns search results into KML overlays.
package export

import (
	"context"
	"fmt"
	"io"

	"github.com/meghashyamc/corescout/config"
	"github.com/meghashyamc/corescout/errs"
	"github.com/meghashyamc/corescout/logger"
	"github.com/meghashyamc/corescout/services/search"
)

type Searcher interface {
	Search(ctx context.Context, name string, query string, limit int) (search.ResultSet, error)
}

type Request struct {
	IndexName       string
	Query           string
	CoordinateField string
	// Limit of zero means the configured maximum.
	Limit int
}

// Metadata describes a finished export.
type Metadata struct {
	IndexName       string          `json:"index_name"`
	Query           string          `json:"query"`
	CoordinateField CoordinateField `json:"coordinate_field"`
	TotalMatches    int             `json:"total_matches"`
	Exported        int             `json:"exported"`
	Skipped         int             `json:"skipped"`
}

type Service struct {
	logger   logger.Logger
	searcher Searcher
	maxLimit int
}

func New(logger logger.Logger, cfg *config.Config, searcher Searcher) *Service {
	return &Service{
		logger:   logger,
		searcher: searcher,
		maxLimit: cfg.GetMaxExportLimit(),
	}
}

// Export searches the Index and writes the matches to w as KML. Nothing is
// written when the request is invalid or the search fails.
func (s *Service) Export(ctx context.Context, w io.Writer, req Request) (Metadata, error) {
	field, err := ParseCoordinateField(req.CoordinateField)
	if err != nil {
		return Metadata{}, err
	}

	limit := req.Limit
	switch {
	case limit < 0:
		return Metadata{}, &errs.InvalidArgumentError{Argument: "limit", Reason: fmt.Sprintf("must be a positive integer, got %d", limit)}
	case limit == 0 || limit > s.maxLimit:
		limit = s.maxLimit
	}

	results, err := s.searcher.Search(ctx, req.IndexName, req.Query, limit)
	if err != nil {
		return Metadata{}, err
	}

	stats, err := Encode(w, req.IndexName, results.Results, field)
	if err != nil {
		s.logger.Error("failed to encode kml export", "index", req.IndexName, "err", err.Error())
		return Metadata{}, err
	}

	s.logger.Info("exported kml", "index", req.IndexName, "query", req.Query, "placemarks", stats.Placemarks, "skipped", stats.Skipped)
	return Metadata{
		IndexName:       req.IndexName,
		Query:           req.Query,
		CoordinateField: field,
		TotalMatches:    results.Total,
		Exported:        stats.Placemarks,
		Skipped:         stats.Skipped,
	}, nil
}
