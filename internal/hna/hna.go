// Package hna implements the hypernode automaton and its slice-tree
// runtime (§3.8/§4.9): a deterministic automaton whose states carry HNL
// formulas and whose edges are labelled by actions that split an entity's
// trace into a fresh per-state sub-trace, plus the SlicesTree that routes
// an incoming event stream into the live slice each entity currently
// belongs to.
package hna

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hna-go/hnamon/internal/hnl"
)

// Action is one transition label of the hypernode automaton -- an event
// kind that, when observed on an entity's trace, moves that entity from
// one hypernode state to another and starts a fresh sub-trace for it.
type Action string

// HypernodeState is one node of the HNA: a stable name and the HNL formula
// every slice created for this state is monitored against (§3.8).
type HypernodeState struct {
	ID      string
	Formula *hnl.PrenexFormula
}

// Edge is one deterministic transition of the automaton: being in From and
// observing Action moves to To.
type Edge struct {
	From   string
	Action Action
	To     string
}

// Spec is a compiled, validated hypernode automaton: its states, initial
// state, and transition function δ(state, action) -> state' (§3.4/§3.8).
// A (state, action) pair absent from Transitions is the automaton's
// INVALID transition (§4.9) -- the entity's trace is not covered by the
// automaton and its slice is retired rather than continued.
type Spec struct {
	States      map[string]*HypernodeState
	Initial     string
	Transitions map[string]map[Action]string
}

// NewSpec validates and assembles a Spec from a state list, initial state
// name, and edge list. Validation accumulates every problem it finds
// (duplicate states, an edge naming an undeclared state, two edges giving
// the same (state, action) pair different targets -- the non-determinism
// §4.9 requires rejecting at compile time) rather than failing on
// the first one.
func NewSpec(states []*HypernodeState, initial string, edges []Edge) (*Spec, error) {
	var errs []string

	byID := make(map[string]*HypernodeState, len(states))
	for _, st := range states {
		if st.ID == "" {
			errs = append(errs, "a hypernode state has an empty id")
			continue
		}
		if _, exists := byID[st.ID]; exists {
			errs = append(errs, fmt.Sprintf("duplicate hypernode state %q", st.ID))
			continue
		}
		byID[st.ID] = st
	}

	if _, ok := byID[initial]; !ok {
		errs = append(errs, fmt.Sprintf("initial state %q is not a declared hypernode state", initial))
	}

	transitions := make(map[string]map[Action]string, len(states))
	for _, e := range edges {
		if _, ok := byID[e.From]; !ok {
			errs = append(errs, fmt.Sprintf("edge from undeclared state %q", e.From))
			continue
		}
		if _, ok := byID[e.To]; !ok {
			errs = append(errs, fmt.Sprintf("edge to undeclared state %q", e.To))
			continue
		}
		if transitions[e.From] == nil {
			transitions[e.From] = make(map[Action]string)
		}
		if existing, ok := transitions[e.From][e.Action]; ok && existing != e.To {
			errs = append(errs, fmt.Sprintf("non-deterministic transition: (%s, %s) goes to both %q and %q", e.From, e.Action, existing, e.To))
			continue
		}
		transitions[e.From][e.Action] = e.To
	}

	if len(errs) != 0 {
		return nil, fmt.Errorf("hna: invalid automaton: %s", strings.Join(errs, "; "))
	}

	return &Spec{States: byID, Initial: initial, Transitions: transitions}, nil
}

// Step evaluates δ(state, action). ok is false for an INVALID transition.
func (s *Spec) Step(state string, a Action) (next string, ok bool) {
	next, ok = s.Transitions[state][a]
	return next, ok
}

// Actions returns every action mentioned by the automaton's edges, sorted,
// for diagnostics and event-dispatch enumeration.
func (s *Spec) Actions() []Action {
	seen := make(map[Action]bool)
	for _, byAction := range s.Transitions {
		for a := range byAction {
			seen[a] = true
		}
	}
	out := make([]Action, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
