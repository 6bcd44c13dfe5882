// Package automaton builds and composes the automata that drive atom
// monitors: derivative-explored DFAs over trace expressions (§4.2), their
// prefix-product composition (§4.3), and the priority-automaton translation
// that realises longest-match stutter semantics (§4.4).
package automaton

import (
	"fmt"
	"sort"

	"github.com/hna-go/hnamon/internal/tea"
)

// Automaton is a finite-state machine over marked letters. States are
// integer ids assigned in discovery order; Exprs records the trace
// expression each state was discovered from (nil for states introduced by
// Compose or ToPriorityAutomaton that no longer correspond to a single TEA
// term). Transitions are kept as explicit (from, letter) -> []to edges
// rather than a dense table, since the alphabet after priority translation
// no longer follows a uniform shape.
type Automaton struct {
	Init        int
	Accept      map[int]bool
	Transitions map[int]map[tea.Letter][]int
	Exprs       map[int]*tea.Expr
	numStates   int
}

func newAutomaton() *Automaton {
	return &Automaton{
		Accept:      make(map[int]bool),
		Transitions: make(map[int]map[tea.Letter][]int),
		Exprs:       make(map[int]*tea.Expr),
	}
}

// NumStates returns the number of states discovered so far.
func (a *Automaton) NumStates() int { return a.numStates }

func (a *Automaton) addState(accept bool) int {
	id := a.numStates
	a.numStates++
	a.Accept[id] = accept
	a.Transitions[id] = make(map[tea.Letter][]int)
	return id
}

func (a *Automaton) addEdge(from int, letter tea.Letter, to int) {
	a.Transitions[from][letter] = append(a.Transitions[from][letter], to)
}

// Step returns every state reachable from from by letter.
func (a *Automaton) Step(from int, letter tea.Letter) []int {
	return a.Transitions[from][letter]
}

// Options configures derivative-explored automaton construction.
type Options struct {
	// Minimize runs a post-construction equivalence-class merge. Off by
	// default: the planner and priority translation both operate fine over
	// an unminimized automaton, and minimization is only worth the extra
	// pass for automata that will be serialized to a plan cache.
	Minimize bool
}

// FormulaToAutomaton builds a derivative-explored automaton for start over
// the given alphabet of base letter values (§4.2). States are trace
// expressions up to Simplify-equality; for every discovered state and every
// combination of a base letter with the four marks, a transition is added
// to every expression in its derivative set (plural, since StutterReduce
// and Plus can branch).
func FormulaToAutomaton(start *tea.Expr, alphabet []string, opts Options) *Automaton {
	a := newAutomaton()
	start = tea.Simplify(start)

	byKey := make(map[string]int)
	var frontier []int

	stateOf := func(e *tea.Expr) int {
		key := e.String()
		if id, ok := byKey[key]; ok {
			return id
		}
		id := a.addState(tea.Nullable(e))
		a.Exprs[id] = e
		byKey[key] = id
		frontier = append(frontier, id)
		return id
	}

	a.Init = stateOf(start)

	sortedAlphabet := append([]string(nil), alphabet...)
	sort.Strings(sortedAlphabet)

	for len(frontier) > 0 {
		s := frontier[0]
		frontier = frontier[1:]
		expr := a.Exprs[s]
		for _, value := range sortedAlphabet {
			for _, m := range tea.MarkCombinations() {
				letter := tea.Letter{Value: value, Mark: m}
				for _, d := range tea.Derivative(expr, letter) {
					to := stateOf(d)
					a.addEdge(s, letter, to)
				}
			}
		}
	}

	if opts.Minimize {
		a = minimize(a)
	}
	return a
}

// String renders a state for diagnostics, falling back to a synthetic
// label for states with no backing expression (post-compose/priority).
func (a *Automaton) String(state int) string {
	if e, ok := a.Exprs[state]; ok {
		return e.String()
	}
	return fmt.Sprintf("q%d", state)
}
