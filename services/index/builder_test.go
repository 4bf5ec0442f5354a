package index

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/meghashyamc/corescout/db/searchdb"
	"github.com/meghashyamc/corescout/errs"
	"github.com/meghashyamc/corescout/logger"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *searchdb.SQLiteDB {
	t.Helper()
	store, err := searchdb.Open(logger.Discard(), filepath.Join(t.TempDir(), "corescout.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func textDocument(path string, text string) Document {
	return Document{
		SourcePath: path,
		FileType:   "txt",
		Text:       text,
		SizeBytes:  int64(len(text)),
		ModifiedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBeginRunRejectsConcurrentRunOnSameIndex(t *testing.T) {
	assert := require.New(t)
	builder := NewBuilder(logger.Discard(), newTestStore(t))
	ctx := context.Background()

	const attempts = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		runs     []*Run
		failures []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run, err := builder.BeginRun(ctx, "shared", RunOptions{})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			runs = append(runs, run)
		}()
	}
	wg.Wait()

	assert.Len(runs, 1)
	assert.Len(failures, attempts-1)
	for _, err := range failures {
		assert.ErrorIs(err, errs.ErrIndexBusy)
	}

	_, err := builder.BeginRun(ctx, "other", RunOptions{})
	assert.NoError(err, "a different index is not blocked")

	builder.AbortRun(runs[0])
	assert.False(builder.IsBusy("shared"))

	run, err := builder.BeginRun(ctx, "shared", RunOptions{})
	assert.NoError(err)
	builder.AbortRun(run)
}

func TestBeginRunValidation(t *testing.T) {
	assert := require.New(t)
	store := newTestStore(t)
	builder := NewBuilder(logger.Discard(), store)
	ctx := context.Background()

	_, err := builder.BeginRun(ctx, "Not Valid", RunOptions{})
	assert.ErrorIs(err, errs.ErrInvalidIndexName)

	run, err := builder.BeginRun(ctx, "existing", RunOptions{})
	assert.NoError(err)
	_, err = builder.CommitRun(ctx, run)
	assert.NoError(err)

	_, err = builder.BeginRun(ctx, "existing", RunOptions{})
	assert.ErrorIs(err, errs.ErrIndexAlreadyExists)
	assert.False(builder.IsBusy("existing"))

	run, err = builder.BeginRun(ctx, "existing", RunOptions{Overwrite: true})
	assert.NoError(err)
	builder.AbortRun(run)
}

func TestAbortAfterPartialAddsLeavesNoIndex(t *testing.T) {
	assert := require.New(t)
	store := newTestStore(t)
	builder := NewBuilder(logger.Discard(), store)
	ctx := context.Background()

	run, err := builder.BeginRun(ctx, "partial", RunOptions{Total: 10})
	assert.NoError(err)
	for i := 0; i < 3; i++ {
		assert.NoError(builder.AddDocument(run, textDocument(fmt.Sprintf("file%d.txt", i), "content")))
	}
	builder.AbortRun(run)

	exists, err := store.IndexExists(ctx, "partial")
	assert.NoError(err)
	assert.False(exists)

	assert.ErrorIs(builder.AddDocument(run, textDocument("late.txt", "x")), ErrRunClosed)
	_, err = builder.CommitRun(ctx, run)
	assert.ErrorIs(err, ErrRunClosed)
}

func TestAbortKeepsPreviousIndexContent(t *testing.T) {
	assert := require.New(t)
	store := newTestStore(t)
	builder := NewBuilder(logger.Discard(), store)
	ctx := context.Background()

	run, err := builder.BeginRun(ctx, "stable", RunOptions{})
	assert.NoError(err)
	assert.NoError(builder.AddDocument(run, textDocument("keep.txt", "original")))
	_, err = builder.CommitRun(ctx, run)
	assert.NoError(err)

	run, err = builder.BeginRun(ctx, "stable", RunOptions{Overwrite: true})
	assert.NoError(err)
	assert.NoError(builder.AddDocument(run, textDocument("replacement.txt", "new")))
	builder.AbortRun(run)

	page, err := store.Search(ctx, "stable", "", 10)
	assert.NoError(err)
	assert.Equal(1, page.Total)
	assert.Equal("keep.txt", page.Hits[0].Record.SourcePath)
}

func TestCancelledContextAbortsRun(t *testing.T) {
	assert := require.New(t)
	store := newTestStore(t)
	builder := NewBuilder(logger.Discard(), store)

	ctx, cancel := context.WithCancel(context.Background())
	run, err := builder.BeginRun(ctx, "cancelled", RunOptions{})
	assert.NoError(err)
	assert.NoError(builder.AddDocument(run, textDocument("a.txt", "a")))

	cancel()
	assert.Eventually(func() bool { return !builder.IsBusy("cancelled") }, time.Second, 5*time.Millisecond)

	_, err = builder.CommitRun(context.Background(), run)
	assert.ErrorIs(err, ErrRunClosed)

	exists, err := store.IndexExists(context.Background(), "cancelled")
	assert.NoError(err)
	assert.False(exists)
}

func TestLastWriteWins(t *testing.T) {
	assert := require.New(t)
	store := newTestStore(t)
	builder := NewBuilder(logger.Discard(), store)
	ctx := context.Background()

	run, err := builder.BeginRun(ctx, "lww", RunOptions{})
	assert.NoError(err)

	assert.NoError(builder.AddDocument(run, textDocument("same.txt", "first")))
	assert.NoError(builder.AddDocument(run, textDocument("same.txt", "second")))

	late := textDocument("ordered.txt", "higher sequence")
	late.Sequence = 10
	early := textDocument("ordered.txt", "lower sequence")
	early.Sequence = 5
	assert.NoError(builder.AddDocument(run, late))
	assert.NoError(builder.AddDocument(run, early))

	summary, err := builder.CommitRun(ctx, run)
	assert.NoError(err)
	assert.Equal(2, summary.RecordCount)

	first, err := store.GetRecord(ctx, "lww", 1)
	assert.NoError(err)
	assert.Equal("ordered.txt", first.SourcePath)
	assert.Equal("higher sequence", first.ExtractedText)

	second, err := store.GetRecord(ctx, "lww", 2)
	assert.NoError(err)
	assert.Equal("same.txt", second.SourcePath)
	assert.Equal("second", second.ExtractedText)
}

func TestProgressReporting(t *testing.T) {
	assert := require.New(t)
	builder := NewBuilder(logger.Discard(), newTestStore(t))
	ctx := context.Background()

	run, err := builder.BeginRun(ctx, "progress", RunOptions{Total: 3})
	assert.NoError(err)

	for _, path := range []string{"a.txt", "b.txt", "c.txt"} {
		assert.NoError(builder.AddDocument(run, textDocument(path, path)))
	}
	assert.Equal(Event{Processed: 3, Total: 3, CurrentFile: "c.txt"}, run.Progress().Snapshot())

	_, err = builder.CommitRun(ctx, run)
	assert.NoError(err)

	var events []Event
	for event := range run.Progress().Events() {
		events = append(events, event)
	}
	assert.Len(events, 3)
	for i, event := range events {
		assert.Equal(i+1, event.Processed)
		assert.Equal(3, event.Total)
	}
}
