// Package bdd builds a reduced ordered binary decision diagram over a
// quantifier-free HNL body and flattens it into the evaluation-plan table
// an HNL monitor walks at runtime (§4.5): `IsPrefix` atoms become BDD
// variables, `And`/`Or`/`Not` become the standard BDD operators, and the
// result is a table from atom id to the next atom (or final verdict) for
// each of the atom's two outcomes.
package bdd

import "fmt"

// VarID identifies a BDD variable, which is exactly an atom id (the
// integer id assigned to one IsPrefix/function atom occurrence in the
// compiled formula).
type VarID int

// BoolKind discriminates the variant held by a BoolExpr.
type BoolKind int

const (
	BoolVar BoolKind = iota
	BoolAnd
	BoolOr
	BoolNot
)

// BoolExpr is the quantifier-free propositional skeleton of an HNL body:
// IsPrefix/function atoms as leaves, And/Or/Not as internal nodes.
type BoolExpr struct {
	Kind        BoolKind
	Var         VarID
	Left, Right *BoolExpr // Right unused for BoolNot
}

func Var(v VarID) *BoolExpr           { return &BoolExpr{Kind: BoolVar, Var: v} }
func And(l, r *BoolExpr) *BoolExpr    { return &BoolExpr{Kind: BoolAnd, Left: l, Right: r} }
func Or(l, r *BoolExpr) *BoolExpr     { return &BoolExpr{Kind: BoolOr, Left: l, Right: r} }
func Not(e *BoolExpr) *BoolExpr       { return &BoolExpr{Kind: BoolNot, Left: e} }

// Action is one outcome of an atom's evaluation: either another atom to
// evaluate next, or a final monitor verdict.
type Action int

const (
	// ResultFalse and ResultTrue are sentinel actions outside the valid
	// VarID range, matching the codegen's RESULT_FALSE/RESULT_TRUE.
	ResultFalse Action = -2
	ResultTrue  Action = -1
)

// IsAtom reports whether a is a next-atom reference rather than a final
// verdict.
func (a Action) IsAtom() bool { return a >= 0 }

// Atom returns a's referenced VarID. Only meaningful when IsAtom is true.
func (a Action) Atom() VarID { return VarID(a) }

func (a Action) String() string {
	switch a {
	case ResultTrue:
		return "RESULT_TRUE"
	case ResultFalse:
		return "RESULT_FALSE"
	default:
		return fmt.Sprintf("ATOM_%d", int(a))
	}
}

// Entry is one row of the plan table: what to do when the atom at this
// variable evaluates to TRUE (Hi) or FALSE (Lo).
type Entry struct {
	Hi, Lo Action
}

// Plan is the flattened evaluation table an HNL monitor consults every
// time an atom retires with a definite verdict (§4.7 step 2).
type Plan struct {
	Entries map[VarID]Entry
	Initial VarID
}
