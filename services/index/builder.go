package index

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meghashyamc/corescout/db/searchdb"
	"github.com/meghashyamc/corescout/errs"
	"github.com/meghashyamc/corescout/logger"
	"github.com/meghashyamc/corescout/services/coords"
)

var ErrRunClosed = errors.New("ingestion run is already committed or aborted")

// Document is one processed file waiting to be committed.
type Document struct {
	SourcePath string
	FileType   string
	Text       string
	Coordinate *coords.Coordinate
	SizeBytes  int64
	ModifiedAt time.Time
	FileHash   string
	// Sequence orders documents sharing a source path; the highest wins.
	// Zero means arrival order.
	Sequence int
}

type RunOptions struct {
	Overwrite bool
	// Total is the number of documents the caller expects to add, used for
	// progress reporting only.
	Total int
}

type runState int

const (
	runOpen runState = iota
	runCommitting
	runCommitted
	runAborted
)

type bufferedDocument struct {
	doc      Document
	sequence int
}

// Run buffers the documents of one ingestion until it is committed or aborted.
// Nothing is visible to readers before commit.
type Run struct {
	id        string
	indexName string
	overwrite bool
	reporter  *Reporter

	mu       sync.Mutex
	stop     func() bool
	state    runState
	sequence int
	docs     map[string]bufferedDocument
	warnings []errs.Warning
}

func (r *Run) ID() string          { return r.id }
func (r *Run) IndexName() string   { return r.indexName }
func (r *Run) Progress() *Reporter { return r.reporter }

// AddWarning records a per-file problem that did not stop the run.
func (r *Run) AddWarning(warning errs.Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, warning)
}

func (r *Run) Warnings() []errs.Warning {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]errs.Warning(nil), r.warnings...)
}

type Summary struct {
	RunID        string         `json:"run_id"`
	IndexName    string         `json:"index_name"`
	RecordCount  int            `json:"record_count"`
	GeoCount     int            `json:"geo_count"`
	WarningCount int            `json:"warning_count"`
	Warnings     []errs.Warning `json:"warnings"`
}

// Builder owns the busy set of Index names and turns committed runs into
// stored Indexes.
type Builder struct {
	logger logger.Logger
	store  searchdb.DB
	now    func() time.Time

	mu   sync.Mutex
	busy map[string]string
}

func NewBuilder(logger logger.Logger, store searchdb.DB) *Builder {
	return &Builder{
		logger: logger,
		store:  store,
		now:    time.Now,
		busy:   make(map[string]string),
	}
}

// BeginRun claims name for a new run. It fails fast when another run holds
// the name, or when the Index exists and overwrite was not requested.
// Cancelling ctx before CommitRun aborts the run.
func (b *Builder) BeginRun(ctx context.Context, name string, opts RunOptions) (*Run, error) {
	if err := searchdb.ValidateIndexName(name); err != nil {
		return nil, err
	}

	run := &Run{
		id:        uuid.New().String(),
		indexName: name,
		overwrite: opts.Overwrite,
		reporter:  NewReporter(opts.Total),
		docs:      make(map[string]bufferedDocument),
	}

	b.mu.Lock()
	if holder, ok := b.busy[name]; ok {
		b.mu.Unlock()
		b.logger.Warn("index is busy", "index", name, "holding_run", holder)
		return nil, &errs.IndexBusyError{Name: name}
	}
	b.busy[name] = run.id
	b.mu.Unlock()

	if !opts.Overwrite {
		exists, err := b.store.IndexExists(ctx, name)
		if err != nil {
			b.release(run)
			return nil, err
		}
		if exists {
			b.release(run)
			return nil, &errs.IndexAlreadyExistsError{Name: name}
		}
	}

	if err := ctx.Err(); err != nil {
		b.release(run)
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		b.logger.Info("ingestion run cancelled", "run_id", run.id, "index", name)
		b.AbortRun(run)
	})
	run.mu.Lock()
	run.stop = stop
	run.mu.Unlock()

	b.logger.Info("began ingestion run", "run_id", run.id, "index", name, "overwrite", opts.Overwrite)
	return run, nil
}

// AddDocument buffers doc. Of two documents with the same source path, the
// one with the higher sequence is kept.
func (b *Builder) AddDocument(run *Run, doc Document) error {
	run.mu.Lock()
	if run.state != runOpen {
		run.mu.Unlock()
		return ErrRunClosed
	}
	run.sequence++
	sequence := doc.Sequence
	if sequence == 0 {
		sequence = run.sequence
	}
	existing, ok := run.docs[doc.SourcePath]
	switch {
	case !ok:
		run.docs[doc.SourcePath] = bufferedDocument{doc: doc, sequence: sequence}
	case sequence > existing.sequence:
		b.logger.Debug("replacing buffered document", "run_id", run.id, "path", doc.SourcePath, "previous_sequence", existing.sequence)
		run.docs[doc.SourcePath] = bufferedDocument{doc: doc, sequence: sequence}
	default:
		b.logger.Debug("keeping later buffered document", "run_id", run.id, "path", doc.SourcePath, "sequence", existing.sequence)
	}
	run.mu.Unlock()

	run.reporter.advance(doc.SourcePath)
	return nil
}

// CommitRun writes every buffered document in one transaction. On failure
// the Index keeps its previous content and the run is aborted.
func (b *Builder) CommitRun(ctx context.Context, run *Run) (Summary, error) {
	run.mu.Lock()
	if run.state != runOpen {
		run.mu.Unlock()
		return Summary{}, ErrRunClosed
	}
	run.state = runCommitting
	records := b.records(run)
	warnings := append([]errs.Warning(nil), run.warnings...)
	stop := run.stop
	run.mu.Unlock()

	if stop != nil {
		stop()
	}

	finish := func(state runState) {
		run.mu.Lock()
		run.state = state
		run.docs = nil
		run.mu.Unlock()
		b.release(run)
	}

	if err := ctx.Err(); err != nil {
		finish(runAborted)
		return Summary{}, err
	}

	info, err := b.store.ReplaceIndex(ctx, run.indexName, run.overwrite, records, len(warnings))
	if err != nil {
		b.logger.Error("could not commit ingestion run", "run_id", run.id, "index", run.indexName, "err", err.Error())
		finish(runAborted)
		return Summary{}, err
	}
	finish(runCommitted)

	if warnings == nil {
		warnings = []errs.Warning{}
	}
	summary := Summary{
		RunID:        run.id,
		IndexName:    run.indexName,
		RecordCount:  info.RecordCount,
		GeoCount:     info.GeoCount,
		WarningCount: len(warnings),
		Warnings:     warnings,
	}
	b.logger.Info("committed ingestion run", "run_id", run.id, "index", run.indexName, "records", summary.RecordCount, "warnings", summary.WarningCount)
	return summary, nil
}

// AbortRun discards the buffer. Aborting a finished run does nothing.
func (b *Builder) AbortRun(run *Run) {
	run.mu.Lock()
	if run.state != runOpen {
		run.mu.Unlock()
		return
	}
	run.state = runAborted
	run.docs = nil
	stop := run.stop
	run.mu.Unlock()

	if stop != nil {
		stop()
	}
	b.release(run)
	b.logger.Info("aborted ingestion run", "run_id", run.id, "index", run.indexName)
}

// IsBusy reports whether a run currently holds name.
func (b *Builder) IsBusy(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.busy[name]
	return ok
}

func (b *Builder) release(run *Run) {
	b.mu.Lock()
	if b.busy[run.indexName] == run.id {
		delete(b.busy, run.indexName)
	}
	b.mu.Unlock()
	run.reporter.close()
}

// records must be called with run.mu held.
func (b *Builder) records(run *Run) []searchdb.Record {
	processedAt := b.now().UTC()
	records := make([]searchdb.Record, 0, len(run.docs))
	for _, buffered := range run.docs {
		doc := buffered.doc
		record := searchdb.Record{
			SourcePath:    doc.SourcePath,
			FileType:      doc.FileType,
			ExtractedText: doc.Text,
			SizeBytes:     doc.SizeBytes,
			ModifiedAt:    doc.ModifiedAt,
			FileHash:      doc.FileHash,
			ProcessedAt:   processedAt,
		}
		if doc.Coordinate != nil {
			lat, lon, raw := doc.Coordinate.Latitude, doc.Coordinate.Longitude, doc.Coordinate.Raw
			record.Latitude, record.Longitude, record.RawCoordinateText = &lat, &lon, &raw
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].SourcePath < records[j].SourcePath
	})
	return records
}
