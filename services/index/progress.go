package index

import "sync"

// Event is one progress notification of an ingestion run.
type Event struct {
	Processed   int    `json:"processed"`
	Total       int    `json:"total"`
	CurrentFile string `json:"current_file"`
}

// Reporter publishes progress events for a single run. Events can be consumed
// as a stream through Events, or polled through Snapshot.
type Reporter struct {
	mu       sync.Mutex
	snapshot Event
	events   chan Event
	closed   bool
}

func NewReporter(total int) *Reporter {
	return &Reporter{
		snapshot: Event{Total: total},
		events:   make(chan Event, total+1),
	}
}

// Events is closed when the run commits or aborts.
func (r *Reporter) Events() <-chan Event {
	return r.events
}

func (r *Reporter) Snapshot() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}

func (r *Reporter) advance(currentFile string) Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshot.Processed++
	if r.snapshot.Processed > r.snapshot.Total {
		r.snapshot.Total = r.snapshot.Processed
	}
	r.snapshot.CurrentFile = currentFile
	event := r.snapshot

	if !r.closed {
		// Never block the run on a slow consumer; Snapshot stays exact.
		select {
		case r.events <- event:
		default:
		}
	}
	return event
}

func (r *Reporter) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
}
