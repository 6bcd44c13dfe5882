package automaton

import "github.com/hna-go/hnamon/internal/tea"

// PriorityEdge is one outgoing edge of a Priority automaton: a target
// state plus the priority level at which it competes against sibling
// edges from the same source and label-independent group (§4.4). Level 2
// beats 1 beats 0 when more than one edge out of the same state fires in
// the same atom-monitor step.
type PriorityEdge struct {
	To       int
	Priority int
}

// Priority is the translation target that the atom monitor actually walks
// (§4.4, §4.6): a composed automaton with rep-marked transitions expanded
// into small gadgets that implement longest-match under stutter.
type Priority struct {
	Init        int
	Accept      map[int]bool
	Transitions map[int]map[PairLabel][]PriorityEdge
	numStates   int
}

func newPriority() *Priority {
	return &Priority{Accept: make(map[int]bool), Transitions: make(map[int]map[PairLabel][]PriorityEdge)}
}

func (p *Priority) addState(accept bool) int {
	id := p.numStates
	p.numStates++
	p.Accept[id] = accept
	p.Transitions[id] = make(map[PairLabel][]PriorityEdge)
	return id
}

func (p *Priority) addEdge(from int, label PairLabel, to int, priority int) {
	p.Transitions[from][label] = append(p.Transitions[from][label], PriorityEdge{To: to, Priority: priority})
}

// project turns a raw marked letter from the composed automaton into the
// label the priority automaton actually exposes to the atom monitor: a
// letter not marked x never corresponds to a real observed trace event and
// collapses to ε; one marked x keeps its value (and rep bit, which the
// gadget construction below still needs) with the x tag itself stripped.
func project(l tea.Letter) (proj tea.Letter, eps bool) {
	if !l.Mark.X {
		return tea.Letter{}, true
	}
	return tea.Letter{Value: l.Value, Mark: tea.Mark{Rep: l.Mark.Rep}}, false
}

// ToPriorityAutomaton translates a composed two-trace automaton into a
// Priority automaton (§4.4). Initial/accepting sets carry over unchanged;
// every rep-marked transition is replaced by a small gadget that lets the
// atom monitor greedily consume as many repeats as are available before
// committing to the exit, which is what makes stutter-matching longest
// rather than merely "some" match.
func ToPriorityAutomaton(c *Composed) *Priority {
	out := newPriority()
	for s := 0; s < c.numStates; s++ {
		out.addState(c.Accept[s])
	}
	out.Init = c.Init

	// l0/l1's rep-ness is decided AFTER projection, not from the original
	// label: a transition that collapses to ε (its component was never
	// x-marked, i.e. never a real observed letter) can never anchor a rep
	// gadget, even if the original, unprojected letter happened to carry a
	// rep mark -- only an x-marked, rep-marked letter does.
	type groupKey struct {
		from         int
		l0Rep, l1Rep bool
		l0V, l1V     string
		l0Eps, l1Eps bool
	}
	groups := make(map[groupKey][]int)
	groupLabel := make(map[groupKey]PairLabel)

	for from, edges := range c.Transitions {
		for label, targets := range edges {
			pl, lEps := project(label.Left)
			pr, rEps := project(label.Right)
			key := groupKey{from: from, l0Rep: pl.Mark.Rep, l1Rep: pr.Mark.Rep,
				l0V: pl.Value, l1V: pr.Value, l0Eps: lEps, l1Eps: rEps}
			groups[key] = append(groups[key], targets...)
			// every downstream edge (entry, self-loops) uses the rep-stripped
			// letter even when this group is a rep case -- the rep bit only
			// decided which gadget shape to build.
			groupLabel[key] = PairLabel{Left: pl.NoRep(), Right: pr.NoRep(), LeftEps: lEps, RightEps: rEps}
		}
	}

	for key, rawTargets := range groups {
		from := key.from
		label := groupLabel[key]
		targets := dedupeInts(rawTargets)
		bothRep := key.l0Rep && key.l1Rep
		leftOnlyRep := key.l0Rep && !key.l1Rep
		rightOnlyRep := !key.l0Rep && key.l1Rep

		switch {
		case bothRep:
			m := out.addState(false)
			out.addEdge(from, label, m, 0)
			out.addEdge(m, label, m, 2)
			out.addEdge(m, PairLabel{Left: label.Left, Right: tea.Letter{}, RightEps: true}, m, 1)
			out.addEdge(m, PairLabel{Left: tea.Letter{}, LeftEps: true, Right: label.Right}, m, 1)
			epsEps := PairLabel{LeftEps: true, RightEps: true}
			for _, t := range targets {
				out.addEdge(m, epsEps, t, 0)
			}
		case leftOnlyRep:
			m := out.addState(false)
			out.addEdge(from, label, m, 0)
			out.addEdge(m, PairLabel{Left: label.Left, Right: tea.Letter{}, RightEps: true}, m, 1)
			epsEps := PairLabel{LeftEps: true, RightEps: true}
			for _, t := range targets {
				out.addEdge(m, epsEps, t, 0)
			}
		case rightOnlyRep:
			m := out.addState(false)
			out.addEdge(from, label, m, 0)
			out.addEdge(m, PairLabel{Left: tea.Letter{}, LeftEps: true, Right: label.Right}, m, 1)
			epsEps := PairLabel{LeftEps: true, RightEps: true}
			for _, t := range targets {
				out.addEdge(m, epsEps, t, 0)
			}
		default:
			for _, t := range targets {
				out.addEdge(from, label, t, 0)
			}
		}
	}
	return out
}

func dedupeInts(xs []int) []int {
	seen := make(map[int]bool, len(xs))
	out := make([]int, 0, len(xs))
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}
