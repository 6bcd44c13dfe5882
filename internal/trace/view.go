package trace

// View is a non-owning, filtered view of an owner Set (§3.1,
// "TraceSetView"). It is what an HNL monitor instantiated under a
// quantifier-alternation split (§4.8) sees: only the traces its upstream
// quantifiers have already bound should be visible to it, so a View wraps
// a predicate over the owner's traces and exposes the same GetNewTrace
// contract against its own private watermark.
type View struct {
	owner   *Set
	cursor  *Cursor
	include func(*Trace) bool
}

// NewView creates a view over owner that only surfaces traces for which
// include returns true. A nil predicate includes every trace (a pass-through
// view, useful for the top-level quantifier group of a split formula).
func NewView(owner *Set, include func(*Trace) bool) *View {
	if include == nil {
		include = func(*Trace) bool { return true }
	}
	return &View{owner: owner, cursor: owner.NewCursor(), include: include}
}

// GetNewTrace returns the next trace admitted by the view's predicate that
// has become visible in the owner since the last call, or (nil, false).
// Unlike Set.NewCursor's GetNewTrace, this drains the owner's new traces
// internally until it finds one the predicate admits, or runs out.
func (v *View) GetNewTrace() (*Trace, bool) {
	for {
		t, ok := v.cursor.GetNewTrace()
		if !ok {
			return nil, false
		}
		if v.include(t) {
			return t, true
		}
	}
}

// Get looks up a trace by id through the owner, regardless of whether the
// view's predicate would admit it — callers that already hold a bound id
// (e.g. a quantifier fixed by an enclosing monitor) need direct access.
func (v *View) Get(id int) (*Trace, bool) {
	return v.owner.Get(id)
}
