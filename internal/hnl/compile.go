package hnl

import (
	"fmt"

	"github.com/hna-go/hnamon/internal/automaton"
	"github.com/hna-go/hnamon/internal/bdd"
	"github.com/hna-go/hnamon/internal/tea"
)

// AtomSpec is everything a compiled prefix-relation atom needs at runtime:
// which field each side projects, which quantified variables it compares,
// and the priority automaton (possibly shared with other atoms over the
// same field, §4.5's "assign them the same automaton id" case) its
// regular atom monitor walks. A BodyFunction atom instead carries only
// Negate and is driven by a nested sub-monitor the owning Monitor builds
// per instance (compile.go has no automaton to share for it).
type AtomSpec struct {
	ID                bdd.VarID
	Function          bool
	Negate            bool
	Field             string
	LeftVar, RightVar string
	Automaton         *automaton.Priority
}

// CompiledFormula is a body reduced to a BDD evaluation plan plus the atom
// table the plan's variables reference.
type CompiledFormula struct {
	Plan  *bdd.Plan
	Atoms map[bdd.VarID]*AtomSpec
}

// Compile builds the evaluation plan for body (§4.5): each distinct
// IsPrefix occurrence becomes a BDD variable/atom id, And/Or/Not become
// the corresponding BDD operators, and the reduced diagram is flattened
// into plan[atom_id] = (hi, lo).
func Compile(body *Body, alphabet []string) (*CompiledFormula, error) {
	c := &compiler{
		atoms:      make(map[bdd.VarID]*AtomSpec),
		automata:   make(map[string]*automaton.Priority),
		alphabet:   alphabet,
		builder:    bdd.NewBuilder(),
	}
	boolExpr, err := c.walk(body)
	if err != nil {
		return nil, err
	}
	root := c.builder.Compile(boolExpr)
	return &CompiledFormula{Plan: bdd.ExtractPlan(root), Atoms: c.atoms}, nil
}

type compiler struct {
	atoms    map[bdd.VarID]*AtomSpec
	automata map[string]*automaton.Priority
	alphabet []string
	builder  *bdd.Builder
	nextID   bdd.VarID
}

func (c *compiler) walk(b *Body) (*bdd.BoolExpr, error) {
	switch b.Kind {
	case BodyAnd:
		l, err := c.walk(b.Left)
		if err != nil {
			return nil, err
		}
		r, err := c.walk(b.Right)
		if err != nil {
			return nil, err
		}
		return bdd.And(l, r), nil
	case BodyOr:
		l, err := c.walk(b.Left)
		if err != nil {
			return nil, err
		}
		r, err := c.walk(b.Right)
		if err != nil {
			return nil, err
		}
		return bdd.Or(l, r), nil
	case BodyNot:
		l, err := c.walk(b.Left)
		if err != nil {
			return nil, err
		}
		return bdd.Not(l), nil
	case BodyIsPrefix:
		return c.walkAtom(b)
	case BodyFunction:
		return c.walkFunction(b)
	default:
		return nil, fmt.Errorf("hnl: unknown body kind %d", b.Kind)
	}
}

func (c *compiler) walkAtom(b *Body) (*bdd.BoolExpr, error) {
	id := c.nextID
	c.nextID++

	pri, ok := c.automata[b.Field]
	if !ok {
		pri = c.buildPrefixAutomaton(b.Field)
		c.automata[b.Field] = pri
	}

	c.atoms[id] = &AtomSpec{ID: id, Field: b.Field, LeftVar: b.LeftVar, RightVar: b.RightVar, Automaton: pri}
	return bdd.Var(id), nil
}

func (c *compiler) walkFunction(b *Body) (*bdd.BoolExpr, error) {
	id := c.nextID
	c.nextID++
	c.atoms[id] = &AtomSpec{ID: id, Function: true, Negate: b.Negate}
	return bdd.Var(id), nil
}

// buildPrefixAutomaton compiles the "any sequence on this field is a
// prefix of any sequence on this field" automaton: both sides are
// ProgramVar projections over Field, so it is reusable by every atom that
// compares the same field regardless of which trace variables it
// binds (§4.5) -- isomorphism here is exact because the automaton never
// refers to a variable name at all.
func (c *compiler) buildPrefixAutomaton(field string) *automaton.Priority {
	left := automaton.FormulaToAutomaton(tea.ProgramVar(field, "left"), c.alphabet, automaton.Options{Minimize: true})
	right := automaton.FormulaToAutomaton(tea.ProgramVar(field, "right"), c.alphabet, automaton.Options{Minimize: true})
	return automaton.ToPriorityAutomaton(automaton.Compose(left, right))
}
