package tea

// exprSet is a deduplicated, simplified set of expressions, mirroring the
// python original's DerivativesSet: every element is stored in simplified
// form and membership is by structural (string) equality.
type exprSet struct {
	byKey map[string]*Expr
}

func newExprSet(exprs ...*Expr) exprSet {
	s := exprSet{byKey: make(map[string]*Expr, len(exprs))}
	for _, e := range exprs {
		s.add(e)
	}
	return s
}

func (s *exprSet) add(e *Expr) {
	e = Simplify(e)
	s.byKey[e.String()] = e
}

func (s *exprSet) union(o exprSet) {
	for _, e := range o.byKey {
		s.add(e)
	}
}

func (s exprSet) slice() []*Expr {
	out := make([]*Expr, 0, len(s.byKey))
	for _, e := range s.byKey {
		out = append(out, e)
	}
	return out
}

func (s exprSet) equalSet(o exprSet) bool {
	if len(s.byKey) != len(o.byKey) {
		return false
	}
	for k := range s.byKey {
		if _, ok := o.byKey[k]; !ok {
			return false
		}
	}
	return true
}

// FirstItem is one element of a first-set: either a letter that can begin
// the expression's language, or a program-variable occurrence standing for
// "any symbol the variable's trace can offer" (§4.1).
type FirstItem struct {
	IsVar  bool
	Letter Letter
}

// Nullable reports whether the empty word is in e's language.
func Nullable(e *Expr) bool {
	switch e.Kind {
	case KindEpsilon, KindProgramVar, KindIter:
		return true
	case KindConstant:
		return false
	case KindConcat:
		return Nullable(e.Left) && Nullable(e.Right)
	case KindPlus:
		return Nullable(e.Left) || Nullable(e.Right)
	case KindStutterReduce:
		return Nullable(e.Left)
	case KindLookahead:
		return lookaheadNonEmpty(e) && Nullable(e.Left)
	default:
		return false
	}
}

// First returns the set of symbols that can start a word of e's language.
func First(e *Expr) []FirstItem {
	switch e.Kind {
	case KindEpsilon:
		return nil
	case KindConstant:
		return []FirstItem{{Letter: e.Letter}}
	case KindProgramVar:
		return []FirstItem{{IsVar: true}}
	case KindConcat:
		out := First(e.Left)
		if Nullable(e.Left) {
			out = append(out, First(e.Right)...)
		}
		return out
	case KindPlus:
		return append(First(e.Left), First(e.Right)...)
	case KindIter, KindStutterReduce:
		return First(e.Left)
	case KindLookahead:
		var out []FirstItem
		for _, a := range First(e.Left) {
			if a.IsVar || e.Lookahead.matches(a.Letter) {
				out = append(out, a)
			}
		}
		return out
	default:
		return nil
	}
}

// lookaheadNonEmpty is FormulaWithLookahead.non_empty: does any letter
// admitted by e's sub-formula also survive the lookahead restriction.
func lookaheadNonEmpty(e *Expr) bool {
	for _, a := range First(e.Left) {
		if a.IsVar || e.Lookahead.matches(a.Letter) {
			return true
		}
	}
	return false
}

// Simplify applies the algebra's local rewrite rules (§4.1): ε is absorbed
// by Concat, nested StutterReduce collapses, and a lookahead wrapping ε
// collapses to ε. It is not a normal form — only enough to keep derivative
// exploration terminating and automaton states comparable.
func Simplify(e *Expr) *Expr {
	switch e.Kind {
	case KindConcat:
		l, r := Simplify(e.Left), Simplify(e.Right)
		if isEpsilon(l) {
			return r
		}
		if isEpsilon(r) {
			return l
		}
		return Concat(l, r)
	case KindIter:
		return IterExpr(Simplify(e.Left))
	case KindStutterReduce:
		c := e.Left
		for c.Kind == KindStutterReduce {
			c = c.Left
		}
		if c.Kind == KindConstant || isEpsilon(c) {
			return c
		}
		return Stutter(Simplify(c))
	case KindLookahead:
		x := Simplify(e.Left)
		if isEpsilon(x) {
			return x
		}
		return WithLookahead(x, e.Lookahead)
	default:
		return e
	}
}

// stripStutter removes StutterReduce wrappers appearing strictly inside e's
// children (not e itself), used by StutterReduce's own derivative rule to
// look "through" nested reductions in its body without re-deriving them
// (the python original's Formula.remove_stutter_reductions).
func stripStutter(e *Expr) *Expr {
	switch e.Kind {
	case KindEpsilon, KindConstant, KindProgramVar:
		return e
	case KindConcat, KindPlus:
		return &Expr{Kind: e.Kind, Left: stripChild(e.Left), Right: stripChild(e.Right)}
	case KindIter, KindStutterReduce:
		return &Expr{Kind: e.Kind, Left: stripChild(e.Left)}
	case KindLookahead:
		return &Expr{Kind: e.Kind, Left: stripChild(e.Left), Lookahead: e.Lookahead}
	default:
		return e
	}
}

func stripChild(c *Expr) *Expr {
	x := c
	for x.Kind == KindStutterReduce {
		x = x.Left
	}
	return stripStutter(x)
}

// Derivative computes e's Brzozowski derivative with respect to the marked
// letter wrt (§4.1). The result is a set because StutterReduce and Plus can
// branch into several distinct residual expressions for the same letter.
func Derivative(e *Expr, wrt Letter) []*Expr {
	return derivativeSet(e, wrt).slice()
}

func derivativeSet(e *Expr, wrt Letter) exprSet {
	switch e.Kind {
	case KindEpsilon:
		return newExprSet()

	case KindConstant:
		if wrt.Mark.Rep {
			return newExprSet()
		}
		if !wrt.Epsilon && !e.Letter.Epsilon && wrt.Value == e.Letter.Value && wrt.Mark == e.Letter.Mark {
			return newExprSet(Epsilon())
		}
		return newExprSet()

	case KindProgramVar:
		if wrt.Mark.Rep || !wrt.Mark.X {
			return newExprSet()
		}
		return newExprSet(e)

	case KindConcat:
		der := derivativeSet(e.Left, wrt)
		first := newExprSet()
		for _, x := range der.slice() {
			if x.Kind == KindLookahead {
				first.add(WithLookahead(Concat(x.Left, e.Right), x.Lookahead))
			} else {
				first.add(Concat(x, e.Right))
			}
		}
		if Nullable(e.Left) {
			first.union(derivativeSet(e.Right, wrt))
		}
		return first

	case KindPlus:
		out := derivativeSet(e.Left, wrt)
		out.union(derivativeSet(e.Right, wrt))
		return out

	case KindIter:
		out := newExprSet()
		for _, x := range derivativeSet(e.Left, wrt).slice() {
			out.add(Concat(x, e))
		}
		return out

	case KindStutterReduce:
		return stutterDerivative(e, wrt)

	case KindLookahead:
		if !e.Lookahead.matches(wrt) {
			return newExprSet()
		}
		return derivativeSet(e.Left, wrt)

	default:
		return newExprSet()
	}
}

// stutterDerivative implements StutterReduce(e).derivative(a) (§4.1): only
// rep-marked letters consume a stutter reduction, and the result is wrapped
// in a lookahead that forbids immediately repeating the same unmarked
// letter again — that's what makes the match maximal.
func stutterDerivative(e *Expr, wrt Letter) exprSet {
	if !wrt.Mark.Rep {
		return newExprSet()
	}
	noRep := wrt.NoRep()
	unmarked := wrt.NoMarks()
	stutterFree := stripStutter(e.Left)

	reachable := newExprSet()
	if wrt.Mark.X {
		for _, d := range DerivativesFixpoint(stutterFree, unmarked).slice() {
			reachable.union(DerivativesFixpoint(d, noRep))
		}
	}
	reachable.union(DerivativesFixpoint(stutterFree, noRep))

	out := newExprSet()
	for _, x := range reachable.slice() {
		fs := First(x)
		if len(fs) == 1 && !fs[0].IsVar && fs[0].Letter.Value == unmarked.Value &&
			fs[0].Letter.Mark == (Mark{}) && fs[0].Letter.Epsilon == unmarked.Epsilon {
			continue
		}
		out.add(WithLookahead(Stutter(x), Lookahead{Value: unmarked.Value, Forbid: true}))
	}
	return out
}

// DerivativesFixpoint is the closure of Derivative under repeated
// application w.r.t. the same letter (§4.1): some residuals (notably
// program-variable letters, whose derivative is themselves) need more than
// one step to reach every expression reachable purely by re-deriving
// against wrt, without consuming any further input.
func DerivativesFixpoint(e *Expr, wrt Letter) exprSet {
	result := derivativeSet(e, wrt)
	step := func(s exprSet) exprSet {
		next := newExprSet()
		next.union(s)
		for _, x := range s.slice() {
			next.union(derivativeSet(x, wrt))
		}
		return next
	}
	next := step(result)
	for !next.equalSet(result) {
		result = next
		next = step(result)
	}
	return result
}
