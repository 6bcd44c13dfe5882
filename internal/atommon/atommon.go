// Package atommon implements the atom monitor of §3.7/§4.6: the runtime
// object that walks either a shared priority automaton against two trace
// cursors (a "regular" atom) or delegates to a nested HNL monitor (a
// "function" atom), and reports one of TRUE/FALSE/UNKNOWN per cooperative
// step.
package atommon

import (
	"fmt"

	"github.com/hna-go/hnamon/internal/automaton"
	"github.com/hna-go/hnamon/internal/trace"
)

// Verdict is the outcome of one atom-monitor step.
type Verdict int

const (
	Unknown Verdict = iota
	True
	False
)

func (v Verdict) String() string {
	switch v {
	case True:
		return "TRUE"
	case False:
		return "FALSE"
	default:
		return "UNKNOWN"
	}
}

// Kind discriminates the two atom-monitor variants (Design Notes §9: a
// tagged variant replaces the class hierarchy of the source material).
type Kind int

const (
	KindRegular Kind = iota
	KindFunction
)

// EvalState is one element of an atom monitor's evaluation set: an
// automaton state paired with the two trace positions it has consumed up
// to.
type EvalState struct {
	Q      int
	P1, P2 int
}

// NestedMonitor is the contract a function atom's nested HNL monitor must
// satisfy. Defined here rather than imported from package hnl to invert
// the dependency the source material has in both directions at once
// (an HNL monitor's Advance step drives atom monitors, and a function atom
// drives a nested HNL monitor) -- package hnl depends on atommon and
// implements this interface; atommon never imports hnl.
type NestedMonitor interface {
	Step() Verdict
}

// AtomMonitor is the runtime instance §3.7 describes: two trace cursors
// and a double-buffered evaluation-state set for a regular atom, or a
// single nested monitor for a function atom.
type AtomMonitor struct {
	Kind Kind

	// regular fields
	pri            *automaton.Priority
	t1, t2         *trace.Trace
	field1, field2 string
	cur            []EvalState

	// function fields
	nested NestedMonitor

	finished bool
	verdict  Verdict
}

// NewRegular builds a regular atom monitor with a single initial
// evaluation state (init, 0, 0), sharing pri with any other instance that
// happens to carry the same bindings (§4.5's "automaton id" sharing, §4.6's
// "shared regular automaton"). field1/field2 name which event field of t1
// and t2 respectively a transition label is compared against.
func NewRegular(pri *automaton.Priority, t1, t2 *trace.Trace, field1, field2 string) *AtomMonitor {
	return &AtomMonitor{
		Kind:   KindRegular,
		pri:    pri,
		t1:     t1,
		t2:     t2,
		field1: field1,
		field2: field2,
		cur:    []EvalState{{Q: pri.Init, P1: 0, P2: 0}},
	}
}

// NewFunction builds a function atom monitor that delegates every step to
// nested and translates its verdict per §4.6 (TRUE/FALSE swapped, UNKNOWN
// passed through, since the nested formula is the atom's negation by
// construction -- this is the post-negation convention Design Notes §9's
// open question resolves in favour of).
func NewFunction(nested NestedMonitor) *AtomMonitor {
	return &AtomMonitor{Kind: KindFunction, nested: nested}
}

// Verdict returns the instance's retired verdict and whether it has in
// fact retired. Once Step returns True or False that outcome is
// permanent: the instance is observed and its parent HNL instance retires
// with it (§4.6).
func (m *AtomMonitor) Verdict() (Verdict, bool) {
	return m.verdict, m.finished
}

// Step performs one cooperative step and returns the resulting verdict.
// Calling Step again after a True/False result just replays the same
// stored verdict.
func (m *AtomMonitor) Step() Verdict {
	if m.finished {
		return m.verdict
	}
	switch m.Kind {
	case KindFunction:
		return m.stepFunction()
	default:
		return m.stepRegular()
	}
}

func (m *AtomMonitor) stepFunction() Verdict {
	v := m.nested.Step()
	switch v {
	case True:
		v = False
	case False:
		v = True
	}
	if v != Unknown {
		m.finished = true
		m.verdict = v
	}
	return v
}

func (m *AtomMonitor) retire(v Verdict) Verdict {
	m.finished = true
	m.verdict = v
	return v
}

// stepRegular implements §4.6's regular step: rotate the double buffer,
// process every evaluation state inherited from the previous step's
// output, and classify the result.
func (m *AtomMonitor) stepRegular() Verdict {
	cur := m.cur
	m.cur = nil
	out := make([]EvalState, 0, len(cur))

	for _, st := range cur {
		v, done := m.advance(st, &out)
		if done {
			return m.retire(v)
		}
	}

	m.cur = out
	if len(out) == 0 {
		return m.retire(False)
	}
	return Unknown
}

// advance processes one evaluation state, appending its successors to out.
// A non-zero second return means the whole step short-circuits with the
// returned verdict (an accepting end-of-trace witness, §4.6 step 3) --
// order-independent, since any processing order that reaches such a state
// yields the same overall True (§8's atom-monitor confluence property).
//
// A side that has reached StatusEnd still participates: §4.6 step 4
// classifies (eps,eps) as always enabled and (ell,eps)/(eps,ell) as
// needing only the other side's event, so an ended side merely takes
// itself out of contention for labels that require *its* event -- it
// does not disable the whole state. A state whose t1 side has ended at an
// accepting automaton state is TRUE at once; otherwise the transitions
// enabled by the events/end-status actually on hand are followed in
// §4.6 step 5's priority order, and a state with no enabled transition
// simply dies.
func (m *AtomMonitor) advance(st EvalState, out *[]EvalState) (Verdict, bool) {
	ev1, status1 := m.t1.Get(st.P1)
	ev2, status2 := m.t2.Get(st.P2)

	if status1 == trace.StatusWaiting || status2 == trace.StatusWaiting {
		*out = append(*out, st)
		return Unknown, false
	}

	live1 := status1 != trace.StatusEnd
	live2 := status2 != trace.StatusEnd

	if !live1 && m.pri.Accept[st.Q] {
		return True, true
	}

	edgesByLabel := m.pri.Transitions[st.Q]
	for priority := 2; priority >= 0; priority-- {
		matched := false
		for label, edges := range edgesByLabel {
			dp1, dp2, enabled := m.tryLabel(label, ev1, ev2, live1, live2)
			if !enabled {
				continue
			}
			for _, edge := range edges {
				if edge.Priority != priority {
					continue
				}
				*out = append(*out, EvalState{Q: edge.To, P1: st.P1 + dp1, P2: st.P2 + dp2})
				matched = true
			}
		}
		if matched {
			// a match at this priority shadows every lower-priority
			// transition out of the same source state (§4.6 step 5).
			break
		}
	}
	return Unknown, false
}

// tryLabel checks whether label fires against the two current events and
// reports the trace-position deltas to apply if so. live1/live2 say
// whether t1/t2 actually have an event on offer this round (false once
// that side has hit StatusEnd) -- a label needing an event from a
// not-live side can never fire, regardless of what ev1/ev2 happen to
// hold left over from the last successful read.
func (m *AtomMonitor) tryLabel(label automaton.PairLabel, ev1, ev2 trace.Event, live1, live2 bool) (dp1, dp2 int, enabled bool) {
	switch {
	case label.LeftEps && label.RightEps:
		return 0, 0, true
	case label.LeftEps && !label.RightEps:
		if live2 && fieldEquals(ev2, m.field2, label.Right.Value) {
			return 0, 1, true
		}
	case !label.LeftEps && label.RightEps:
		if live1 && fieldEquals(ev1, m.field1, label.Left.Value) {
			return 1, 0, true
		}
	default:
		if live1 && live2 && fieldEquals(ev1, m.field1, label.Left.Value) && fieldEquals(ev2, m.field2, label.Right.Value) {
			return 1, 1, true
		}
	}
	return 0, 0, false
}

func fieldEquals(ev trace.Event, field, value string) bool {
	v, ok := ev.Fields[field]
	if !ok {
		return false
	}
	return fmt.Sprint(v) == value
}
