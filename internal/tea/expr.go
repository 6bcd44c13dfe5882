// Package tea implements the trace-expression algebra of §3.2/§4.1: a small
// regular-expression algebra over constants and program-variable letters,
// with Brzozowski derivatives used to drive automaton construction. Terms
// are represented as a single tagged-variant Expr rather than a class
// hierarchy, following Design Notes §9 — a switch over Kind replaces virtual
// dispatch, and terms compare by value so they can key maps without a
// separate interning step.
package tea

import "fmt"

// Kind discriminates the variant held by an Expr.
type Kind int

const (
	KindEpsilon Kind = iota
	KindConstant
	KindProgramVar
	KindConcat
	KindPlus
	KindIter
	KindStutterReduce
	KindLookahead
)

func (k Kind) String() string {
	switch k {
	case KindEpsilon:
		return "Epsilon"
	case KindConstant:
		return "Constant"
	case KindProgramVar:
		return "ProgramVar"
	case KindConcat:
		return "Concat"
	case KindPlus:
		return "Plus"
	case KindIter:
		return "Iter"
	case KindStutterReduce:
		return "StutterReduce"
	case KindLookahead:
		return "Lookahead"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Mark is the pair of independent marks a Constant letter can carry (§3.2).
// Rep marks the "maximal repetition" variant consumed by StutterReduce's
// derivative; X marks a letter as one actually read off a trace, as opposed
// to one appearing symbolically inside a formula being built.
type Mark struct {
	Rep bool
	X   bool
}

// NoRep returns the mark with Rep cleared.
func (m Mark) NoRep() Mark { return Mark{Rep: false, X: m.X} }

// NoMarks returns the mark with both bits cleared.
func (m Mark) NoMarks() Mark { return Mark{} }

func (m Mark) String() string {
	switch {
	case m.Rep && m.X:
		return "⊕ₓ"
	case m.Rep:
		return "⊕"
	case m.X:
		return "ₓ"
	default:
		return ""
	}
}

// Letter is an alphabet symbol: either a named Constant (a literal event
// value) with a Mark, or the distinguished epsilon-constant used only on
// automaton edges.
type Letter struct {
	Value   string
	Mark    Mark
	Epsilon bool
}

// NoRep returns the letter with its Rep mark cleared.
func (l Letter) NoRep() Letter { return Letter{Value: l.Value, Mark: l.Mark.NoRep(), Epsilon: l.Epsilon} }

// NoMarks returns the letter with all marks cleared.
func (l Letter) NoMarks() Letter { return Letter{Value: l.Value, Epsilon: l.Epsilon} }

// Equiv reports whether two letters denote the same underlying value,
// ignoring marks (the python original's Constant.equiv).
func (l Letter) Equiv(o Letter) bool {
	return l.Epsilon == o.Epsilon && l.Value == o.Value
}

func (l Letter) String() string {
	if l.Epsilon {
		return "ε"
	}
	return l.Value + l.Mark.String()
}

// MarkCombinations enumerates the four mark combinations a letter value can
// be read from the alphabet under: none, rep, x, rep+x.
func MarkCombinations() []Mark {
	return []Mark{
		{Rep: false, X: false},
		{Rep: false, X: true},
		{Rep: true, X: false},
		{Rep: true, X: true},
	}
}

// Expr is a term of the trace-expression algebra. Exactly the fields that
// matter for Kind are populated; callers switch on Kind rather than probe
// fields directly.
type Expr struct {
	Kind Kind

	// KindConstant
	Letter Letter

	// KindProgramVar
	VarName  string
	VarTrace string

	// KindConcat, KindPlus: Left/Right; KindIter, KindStutterReduce: Left only
	Left  *Expr
	Right *Expr

	// KindLookahead
	Lookahead Lookahead
}

// Lookahead is the restriction carried by a FormulaWithLookahead term. The
// original algebra allows an arbitrary Not(Constant) or Constant formula
// here, but every derivative rule that produces one only ever forbids or
// requires a single unmarked letter value, so Lookahead is represented
// directly as that restriction instead of as a recursive sub-formula.
type Lookahead struct {
	Value  string
	Forbid bool // true: reject a letter equiv to Value; false: require it
}

func (lh Lookahead) matches(a Letter) bool {
	eq := a.Value == lh.Value && !a.Epsilon
	if lh.Forbid {
		return !eq
	}
	return eq
}

func (lh Lookahead) String() string {
	if lh.Forbid {
		return fmt.Sprintf("¬(%s)", lh.Value)
	}
	return lh.Value
}

// Epsilon is the empty-word expression.
func Epsilon() *Expr { return &Expr{Kind: KindEpsilon} }

// Const builds a Constant expression for the given letter value and marks.
func Const(value string, m Mark) *Expr {
	return &Expr{Kind: KindConstant, Letter: Letter{Value: value, Mark: m}}
}

// ProgramVar builds a program-variable letter bound to a named trace.
func ProgramVar(name, trace string) *Expr {
	return &Expr{Kind: KindProgramVar, VarName: name, VarTrace: trace}
}

// Concat builds L·R.
func Concat(l, r *Expr) *Expr { return &Expr{Kind: KindConcat, Left: l, Right: r} }

// Plus builds L+R (alternation).
func Plus(l, r *Expr) *Expr { return &Expr{Kind: KindPlus, Left: l, Right: r} }

// IterExpr builds L* (Kleene star).
func IterExpr(l *Expr) *Expr { return &Expr{Kind: KindIter, Left: l} }

// Stutter builds ⌊L⌋, the stutter-reduction of L.
func Stutter(l *Expr) *Expr { return &Expr{Kind: KindStutterReduce, Left: l} }

// WithLookahead builds (L | lh), restricting L's derivative to letters lh
// admits.
func WithLookahead(l *Expr, lh Lookahead) *Expr {
	return &Expr{Kind: KindLookahead, Left: l, Lookahead: lh}
}

// isEpsilon reports whether e is exactly the epsilon expression.
func isEpsilon(e *Expr) bool { return e.Kind == KindEpsilon }

func (e *Expr) String() string {
	if e == nil {
		return "∅"
	}
	switch e.Kind {
	case KindEpsilon:
		return "ε"
	case KindConstant:
		return e.Letter.String()
	case KindProgramVar:
		return fmt.Sprintf("%s(%s)", e.VarName, e.VarTrace)
	case KindConcat:
		return fmt.Sprintf("(%s.%s)", e.Left, e.Right)
	case KindPlus:
		return fmt.Sprintf("(%s + %s)", e.Left, e.Right)
	case KindIter:
		return fmt.Sprintf("(%s)*", e.Left)
	case KindStutterReduce:
		return fmt.Sprintf("⌊%s⌋", e.Left)
	case KindLookahead:
		return fmt.Sprintf("(%s | %s)", e.Left, e.Lookahead)
	default:
		return "?"
	}
}

// equal is a structural equality by printed form, matching the python
// original's str()-keyed equality (two terms are the same state iff they
// print the same). exprSet applies the same rule by keying on String();
// nothing calls equal itself.
func equal(a, b *Expr) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.String() == b.String()
}
