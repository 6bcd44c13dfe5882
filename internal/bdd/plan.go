package bdd

// actionFor turns a BDD node into the Action an evaluation step produces
// when it reaches that node: a terminal collapses to a final verdict, an
// internal node is named by its variable (its atom id), matching
// bdd_to_action's is_one/is_zero/top dispatch.
func actionFor(n *node) Action {
	if n.terminalVar {
		if n.terminalVal {
			return ResultTrue
		}
		return ResultFalse
	}
	return Action(n.var_)
}

// ExtractPlan flattens root into the atom-id-indexed table an HNL monitor
// walks at runtime, via the same seen/worklist BFS the codegen uses over
// the reduced BDD: each atom id appears in exactly one row because a
// compiled formula is read-once in its atoms, so the ordered BDD has one
// canonical decision node per variable.
func ExtractPlan(root *node) *Plan {
	plan := &Plan{Entries: make(map[VarID]Entry)}
	if root.terminalVar {
		return plan
	}
	plan.Initial = root.var_

	seen := make(map[*node]bool)
	worklist := []*node{root}
	seen[root] = true

	for len(worklist) > 0 {
		n := worklist[0]
		worklist = worklist[1:]
		if n.terminalVar {
			continue
		}
		plan.Entries[n.var_] = Entry{Hi: actionFor(n.hi), Lo: actionFor(n.lo)}
		for _, child := range []*node{n.hi, n.lo} {
			if !child.terminalVar && !seen[child] {
				seen[child] = true
				worklist = append(worklist, child)
			}
		}
	}
	return plan
}
