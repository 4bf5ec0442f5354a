package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/meghashyamc/corescout/db/kvdb"
	"github.com/meghashyamc/corescout/errs"
	"github.com/meghashyamc/corescout/logger"
)

var (
	ErrRunNotFound  = errors.New("ingestion run not found")
	ErrRunNotActive = errors.New("ingestion run is not in progress")
)

type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
	RunStateCancelled RunState = "cancelled"
)

// RunStatus is what callers poll while a run is in flight and read back once
// it has finished.
type RunStatus struct {
	RunID        string     `json:"run_id"`
	IndexName    string     `json:"index_name"`
	State        RunState   `json:"state"`
	Progress     Event      `json:"progress"`
	Summary      *Summary   `json:"summary,omitempty"`
	Error        string     `json:"error,omitempty"`
	InvalidInput bool       `json:"invalid_input,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

type activeRun struct {
	run    *Run
	cancel context.CancelFunc
	status RunStatus
}

// Tracker runs ingestions in the background and records their outcome.
type Tracker struct {
	logger  logger.Logger
	service *Service
	store   StatusStore
	baseCtx context.Context

	mu     sync.Mutex
	active map[string]*activeRun
	wg     sync.WaitGroup
}

// NewTracker ties background runs to ctx: cancelling it cancels every run
// that has not committed yet.
func NewTracker(ctx context.Context, logger logger.Logger, service *Service, store StatusStore) *Tracker {
	return &Tracker{
		logger:  logger,
		service: service,
		store:   store,
		baseCtx: ctx,
		active:  make(map[string]*activeRun),
	}
}

// Start begins an ingestion and returns once the run holds the Index name.
// Errors that prevent the run from starting (busy or existing Index, invalid
// name) are returned directly.
func (t *Tracker) Start(req Request) (RunStatus, error) {
	runCtx, cancel := context.WithCancel(t.baseCtx)

	begun := make(chan RunStatus, 1)
	failed := make(chan error, 1)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()

		var runID string
		summary, err := t.service.Ingest(runCtx, req, func(run *Run) {
			runID = run.ID()
			status := RunStatus{
				RunID:     run.ID(),
				IndexName: run.IndexName(),
				State:     RunStateRunning,
				Progress:  run.Progress().Snapshot(),
				StartedAt: time.Now().UTC(),
			}
			t.mu.Lock()
			t.active[run.ID()] = &activeRun{run: run, cancel: cancel, status: status}
			t.mu.Unlock()
			t.persist(status)
			begun <- status
		})

		if runID == "" {
			failed <- err
			return
		}
		t.finish(runID, summary, err)
	}()

	select {
	case status := <-begun:
		return status, nil
	case err := <-failed:
		return RunStatus{}, err
	}
}

func (t *Tracker) finish(runID string, summary Summary, err error) {
	t.mu.Lock()
	active := t.active[runID]
	delete(t.active, runID)
	t.mu.Unlock()

	status := active.status
	status.Progress = active.run.Progress().Snapshot()
	finishedAt := time.Now().UTC()
	status.FinishedAt = &finishedAt

	switch {
	case err == nil:
		status.State = RunStateCompleted
		status.Summary = &summary
	case errors.Is(err, context.Canceled):
		status.State = RunStateCancelled
		status.Error = err.Error()
	default:
		status.State = RunStateFailed
		status.Error = err.Error()
		status.InvalidInput = errs.IsInvalidInput(err)
	}

	t.logger.Info("ingestion run finished", "run_id", runID, "index", status.IndexName, "state", status.State)
	t.persist(status)
}

func (t *Tracker) persist(status RunStatus) {
	data, err := json.Marshal(status)
	if err != nil {
		t.logger.Error("failed to marshal run status", "run_id", status.RunID, "err", err.Error())
		return
	}
	if err := t.store.Set(kvdb.BucketRuns, status.RunID, data); err != nil {
		t.logger.Error("failed to update run status", "run_id", status.RunID, "err", err.Error())
	}
}

// Status returns live progress for runs in flight and the stored status for
// finished ones.
func (t *Tracker) Status(runID string) (RunStatus, error) {
	t.mu.Lock()
	if active, ok := t.active[runID]; ok {
		status := active.status
		status.Progress = active.run.Progress().Snapshot()
		t.mu.Unlock()
		return status, nil
	}
	t.mu.Unlock()

	data, err := t.store.Get(kvdb.BucketRuns, runID)
	if err != nil {
		if errors.Is(err, kvdb.ErrNotFound) || errors.Is(err, kvdb.ErrInvalidKey) {
			return RunStatus{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return RunStatus{}, &errs.StorageError{Op: "read run status", Err: err}
	}

	var status RunStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return RunStatus{}, &errs.StorageError{Op: "decode run status", Err: err}
	}
	return status, nil
}

// Cancel stops a run that has not committed yet.
func (t *Tracker) Cancel(runID string) error {
	t.mu.Lock()
	active, ok := t.active[runID]
	t.mu.Unlock()

	if !ok {
		if _, err := t.Status(runID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrRunNotActive, runID)
	}

	t.logger.Info("cancelling ingestion run", "run_id", runID)
	active.cancel()
	return nil
}

// List returns every known run, most recent first.
func (t *Tracker) List() ([]RunStatus, error) {
	keys, err := t.store.Keys(kvdb.BucketRuns)
	if err != nil {
		return nil, &errs.StorageError{Op: "list runs", Err: err}
	}

	statuses := make([]RunStatus, 0, len(keys))
	for _, key := range keys {
		status, err := t.Status(key)
		if err != nil {
			t.logger.Warn("skipping unreadable run status", "run_id", key, "err", err.Error())
			continue
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].StartedAt.After(statuses[j].StartedAt)
	})
	return statuses, nil
}

// Wait blocks until every background run has finished.
func (t *Tracker) Wait() {
	t.wg.Wait()
}
