package automaton

import (
	"sort"

	"github.com/hna-go/hnamon/internal/tea"
)

// PairLabel is an edge label of a two-trace automaton: one marked letter
// (or ε) consumed from each side independently.
type PairLabel struct {
	Left, Right tea.Letter
	LeftEps     bool
	RightEps    bool
}

func (p PairLabel) String() string {
	l, r := "ε", "ε"
	if !p.LeftEps {
		l = p.Left.String()
	}
	if !p.RightEps {
		r = p.Right.String()
	}
	return "(" + l + "," + r + ")"
}

// Composed is the synchronous prefix-product of two single-trace automata
// (§4.3): states are pairs of component states, and a transition fires
// only when both components agree to fire (or the missing side is ε,
// which Compose never introduces -- both components always consume their
// own single-trace alphabet in lockstep labelled by the same base
// automata's edges, so PairLabel here never has both Eps flags set for a
// real edge; ε only appears once priority translation reinterprets labels,
// see ToPriorityAutomaton).
type Composed struct {
	Init        int
	Accept      map[int]bool
	Transitions map[int]map[PairLabel][]int
	LeftState   map[int]int
	RightState  map[int]int
	numStates   int
}

func newComposed() *Composed {
	return &Composed{
		Accept:      make(map[int]bool),
		Transitions: make(map[int]map[PairLabel][]int),
		LeftState:   make(map[int]int),
		RightState:  make(map[int]int),
	}
}

func (c *Composed) addState(l, r int, accept bool) int {
	id := c.numStates
	c.numStates++
	c.Accept[id] = accept
	c.Transitions[id] = make(map[PairLabel][]int)
	c.LeftState[id] = l
	c.RightState[id] = r
	return id
}

// Compose builds the synchronous prefix-product of two single-trace
// automata over the pairs of marked letters that carry the same value
// (§4.3). The pruning rule drops
// any product state whose right component is ε (fully matched, nothing
// left to witness) while the left component is not nullable (still has
// obligations) -- such a state can never go on to complete the prefix
// relation, so it is never added and no edge is ever built into it.
func Compose(left, right *Automaton) *Composed {
	out := newComposed()
	type pair struct{ l, r int }
	byKey := make(map[pair]int)

	prunable := func(l, r int) bool {
		rExpr, hasR := right.Exprs[r]
		lExpr, hasL := left.Exprs[l]
		return hasR && hasL && isEpsilonExpr(rExpr) && !tea.Nullable(lExpr)
	}

	var frontier []pair
	stateOf := func(p pair) (int, bool) {
		if id, ok := byKey[p]; ok {
			return id, true
		}
		if prunable(p.l, p.r) {
			return -1, false
		}
		id := out.addState(p.l, p.r, left.Accept[p.l] && right.Accept[p.r])
		byKey[p] = id
		frontier = append(frontier, p)
		return id, true
	}

	initID, ok := stateOf(pair{left.Init, right.Init})
	if !ok {
		// the initial pair is itself pruned: nothing can ever be witnessed.
		out.Init = out.addState(left.Init, right.Init, false)
		return out
	}
	out.Init = initID

	for len(frontier) > 0 {
		p := frontier[0]
		frontier = frontier[1:]
		from := byKey[p]

		// gen_letter_pairs in the source material pairs letters that share
		// the same underlying alphabet value, varying only the two sides'
		// marks independently -- it never pairs two different values
		// against each other. Group each side's outgoing letters by value
		// and only cross sides within a shared value.
		leftByValue := groupByValue(left.Transitions[p.l])
		rightByValue := groupByValue(right.Transitions[p.r])
		for value, leftMarks := range leftByValue {
			rightMarks, ok := rightByValue[value]
			if !ok {
				continue
			}
			for _, ll := range leftMarks {
				for _, lt := range left.Transitions[p.l][ll] {
					for _, rl := range rightMarks {
						for _, rt := range right.Transitions[p.r][rl] {
							to, added := stateOf(pair{lt, rt})
							if !added {
								continue
							}
							label := PairLabel{Left: ll, Right: rl}
							out.Transitions[from][label] = append(out.Transitions[from][label], to)
						}
					}
				}
			}
		}
	}
	return out
}

// groupByValue buckets a state's outgoing letters by their underlying
// alphabet value, in deterministic (sorted) order within each bucket.
func groupByValue(m map[tea.Letter][]int) map[string][]tea.Letter {
	out := make(map[string][]tea.Letter)
	for l := range m {
		out[l.Value] = append(out[l.Value], l)
	}
	for value := range out {
		sort.Slice(out[value], func(i, j int) bool { return out[value][i].String() < out[value][j].String() })
	}
	return out
}

func isEpsilonExpr(e *tea.Expr) bool { return e.Kind == tea.KindEpsilon }
