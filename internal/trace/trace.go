// Package trace implements the append-only trace and trace-set abstractions
// of §3.1: a Trace is an ordered, append-only sequence of Events that a
// producer writes and any number of monitors read concurrently; the only
// synchronization a reader needs is the monotone visibility of new events
// and of the finished flag (§5).
package trace

import (
	"sync"

	"github.com/hna-go/hnamon/internal/schema"
)

// Event is one record appended to a trace. Fields is validated against the
// trace's schema at append time.
type Event struct {
	Fields schema.Record
}

// GetStatus is the outcome of a positional read against a trace.
type GetStatus int

const (
	// StatusHave means the event at the requested index is available.
	StatusHave GetStatus = iota
	// StatusWaiting means the trace has not yet produced an event at that
	// index and is not finished — the only source of suspension in the
	// whole runtime (§5).
	StatusWaiting
	// StatusEnd means the trace is finished and the requested index is
	// past its last event.
	StatusEnd
)

// Trace is an append-only, ordered sequence of Events plus a monotone
// finished flag. Ids are stable for the lifetime of the owning TraceSet.
type Trace struct {
	mu       sync.RWMutex
	id       int
	schema   *schema.Schema
	events   []Event
	finished bool
}

// NewTrace creates an empty, unfinished trace with the given stable id.
func NewTrace(id int, sc *schema.Schema) *Trace {
	return &Trace{id: id, schema: sc}
}

// ID returns the trace's stable integer id.
func (t *Trace) ID() int {
	return t.id
}

// Len returns the number of events currently appended. It only grows.
func (t *Trace) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.events)
}

// Finished reports whether the producer has signalled no more events will
// ever be appended. Once true, it stays true.
func (t *Trace) Finished() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.finished
}

// Append adds an event to the end of the trace. It is a programming error
// (panic) to append after Finish — the finished flag is a promise to
// readers that the trace is done growing.
func (t *Trace) Append(fields schema.Record) error {
	if t.schema != nil {
		if err := t.schema.Validate(fields); err != nil {
			return err
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		panic("trace: append after Finish")
	}
	t.events = append(t.events, Event{Fields: fields})
	return nil
}

// Finish marks the trace as complete. Idempotent.
func (t *Trace) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finished = true
}

// Get performs a positional read. It never blocks: a not-yet-available
// index on an unfinished trace returns StatusWaiting immediately, so the
// caller (an atom monitor mid-step) can carry its cursor to the next step.
func (t *Trace) Get(i int) (Event, GetStatus) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i < len(t.events) {
		return t.events[i], StatusHave
	}
	if t.finished {
		return Event{}, StatusEnd
	}
	return Event{}, StatusWaiting
}
