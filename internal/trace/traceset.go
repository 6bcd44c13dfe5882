package trace

import (
	"sync"

	"github.com/hna-go/hnamon/internal/schema"
)

// Set is an owned, insertion-ordered mapping from trace id to Trace (§3.1,
// "TraceSet (owned)"). It is the handle a producer uses to add traces and a
// monitor uses to discover them incrementally.
type Set struct {
	mu     sync.Mutex
	schema *schema.Schema
	order  []int
	byID   map[int]*Trace
	nextID int
}

// NewSet creates an empty owned trace set for the given event schema.
func NewSet(sc *schema.Schema) *Set {
	return &Set{
		schema: sc,
		byID:   make(map[int]*Trace),
	}
}

// NewTrace allocates and registers a fresh trace, returning it.
func (s *Set) NewTrace() *Trace {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	t := NewTrace(id, s.schema)
	s.byID[id] = t
	s.order = append(s.order, id)
	return t
}

// Get returns the trace with the given id, if present.
func (s *Set) Get(id int) (*Trace, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	return t, ok
}

// All returns every trace currently in the set, in insertion order.
func (s *Set) All() []*Trace {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Trace, len(s.order))
	for i, id := range s.order {
		out[i] = s.byID[id]
	}
	return out
}

// Cursor is a private watermark into a Set's insertion order, returned by
// NewCursor. Each cursor advances independently, which is what lets several
// HNL monitors instantiate over the same Set without stepping on each
// other's "new traces since last call" bookkeeping.
type Cursor struct {
	set      *Set
	position int
}

// NewCursor creates a cursor starting at the beginning of the set's history.
func (s *Set) NewCursor() *Cursor {
	return &Cursor{set: s}
}

// GetNewTrace returns a trace present in the set since the last call on
// this cursor (§3.1), or (nil, false) if there is nothing new. Call
// repeatedly to drain all newly-visible traces.
func (c *Cursor) GetNewTrace() (*Trace, bool) {
	c.set.mu.Lock()
	defer c.set.mu.Unlock()
	if c.position >= len(c.set.order) {
		return nil, false
	}
	id := c.set.order[c.position]
	c.position++
	return c.set.byID[id], true
}
