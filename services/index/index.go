// Package index turns sets of files into stored Indexes: it sanitises and
// stages each file, extracts text and coordinates in parallel and commits the
// result through the Builder.
package index

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/meghashyamc/corescout/config"
	"github.com/meghashyamc/corescout/errs"
	"github.com/meghashyamc/corescout/logger"
	"github.com/meghashyamc/corescout/services/extract"
	"github.com/meghashyamc/corescout/services/sanitize"
	"golang.org/x/sync/errgroup"
)

type Request struct {
	IndexName string
	Overwrite bool
	Options   Options
	Files     []SourceFile
}

type Service struct {
	logger      logger.Logger
	builder     *Builder
	registry    *extract.Registry
	stagingRoot string
	workers     int
}

func New(logger logger.Logger, cfg *config.Config, builder *Builder, registry *extract.Registry) *Service {
	workers := cfg.GetIngestWorkers()
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Service{
		logger:      logger,
		builder:     builder,
		registry:    registry,
		stagingRoot: cfg.GetStagingPath(),
		workers:     workers,
	}
}

func (s *Service) Builder() *Builder {
	return s.builder
}

// Ingest runs a complete ingestion. onBegin, when non-nil, is called once the
// run holds the Index name, before any file is processed; callers use it to
// follow progress. Nothing is written unless every step up to commit succeeds.
func (s *Service) Ingest(ctx context.Context, req Request, onBegin func(*Run)) (Summary, error) {
	paths := make([]string, len(req.Files))
	for i, file := range req.Files {
		paths[i] = file.Path
	}
	mappings, rejections := sanitize.Map(paths)
	mappings = filterByFileType(mappings, req.Options.FileTypes)

	run, err := s.builder.BeginRun(ctx, req.IndexName, RunOptions{Overwrite: req.Overwrite, Total: len(mappings)})
	if err != nil {
		return Summary{}, err
	}
	defer s.builder.AbortRun(run)

	if onBegin != nil {
		onBegin(run)
	}

	for _, rejection := range rejections {
		s.logger.Warn("skipping file outside ingestion root", "run_id", run.ID(), "path", rejection.Original)
		run.AddWarning(errs.PathEscapeWarning(rejection.Original, rejection.Err))
	}

	if err := s.processAll(ctx, run, req, mappings); err != nil {
		return Summary{}, err
	}

	return s.builder.CommitRun(ctx, run)
}

// processAll extracts files on a bounded worker pool and funnels results to a
// single collector, which is the only writer to the run.
func (s *Service) processAll(ctx context.Context, run *Run, req Request, mappings []sanitize.Mapping) error {
	if err := os.MkdirAll(s.stagingRoot, 0o755); err != nil {
		return &errs.StorageError{Op: "create staging root", Err: err}
	}
	stagingDir, err := os.MkdirTemp(s.stagingRoot, "run-*")
	if err != nil {
		return &errs.StorageError{Op: "create staging directory", Err: err}
	}
	defer func() {
		if err := os.RemoveAll(stagingDir); err != nil {
			s.logger.Error("could not remove staging directory", "path", stagingDir, "err", err.Error())
		}
	}()

	s.logger.Info("processing files", "run_id", run.ID(), "index", run.IndexName(), "files", len(mappings), "workers", s.workers)

	results := make(chan processed)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)

	collectorDone := make(chan error, 1)
	go func() {
		collectorDone <- s.collect(run, results)
	}()

	for _, mapping := range mappings {
		group.Go(func() error {
			result, err := s.processFile(groupCtx, stagingDir, mapping, req.Files[mapping.Position], req.Options)
			if err != nil {
				return err
			}
			select {
			case results <- result:
				return nil
			case <-groupCtx.Done():
				return groupCtx.Err()
			}
		})
	}

	groupErr := group.Wait()
	close(results)
	collectErr := <-collectorDone

	if groupErr != nil {
		return groupErr
	}
	if collectErr != nil {
		return collectErr
	}
	return ctx.Err()
}

func (s *Service) collect(run *Run, results <-chan processed) error {
	var firstErr error
	for result := range results {
		if result.warning != nil {
			run.AddWarning(*result.warning)
		}
		if result.skipped || firstErr != nil {
			continue
		}
		if err := s.builder.AddDocument(run, result.doc); err != nil {
			firstErr = fmt.Errorf("could not add %s: %w", result.doc.SourcePath, err)
		}
	}
	return firstErr
}

// filterByFileType keeps mappings whose extension is in fileTypes. An empty
// filter keeps everything.
func filterByFileType(mappings []sanitize.Mapping, fileTypes []string) []sanitize.Mapping {
	allowed := NormalizeFileTypes(fileTypes)
	if len(allowed) == 0 {
		return mappings
	}
	set := make(map[string]struct{}, len(allowed))
	for _, fileType := range allowed {
		set[fileType] = struct{}{}
	}

	kept := mappings[:0:0]
	for _, mapping := range mappings {
		if _, ok := set[string(extract.TagOf(mapping.Path))]; ok {
			kept = append(kept, mapping)
		}
	}
	return kept
}

// NormalizeFileTypes lowercases extensions and strips leading dots and blanks.
func NormalizeFileTypes(fileTypes []string) []string {
	var normalized []string
	for _, fileType := range fileTypes {
		fileType = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(fileType), "."))
		if fileType != "" {
			normalized = append(normalized, fileType)
		}
	}
	return normalized
}
