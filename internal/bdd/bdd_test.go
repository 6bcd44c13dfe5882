package bdd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileSingleVarPlan(t *testing.T) {
	b := NewBuilder()
	root := b.Compile(Var(0))
	plan := ExtractPlan(root)

	assert.Equal(t, VarID(0), plan.Initial)
	require.Contains(t, plan.Entries, VarID(0))
	assert.Equal(t, Entry{Hi: ResultTrue, Lo: ResultFalse}, plan.Entries[VarID(0)])
}

func TestCompileAndShortCircuitsOnFalse(t *testing.T) {
	b := NewBuilder()
	// And(0, 1): if atom 0 is false the whole conjunction is false without
	// ever consulting atom 1.
	root := b.Compile(And(Var(0), Var(1)))
	plan := ExtractPlan(root)

	require.Contains(t, plan.Entries, plan.Initial)
	entry0 := plan.Entries[plan.Initial]
	assert.Equal(t, ResultFalse, entry0.Lo)
	require.True(t, entry0.Hi.IsAtom())
	entry1 := plan.Entries[entry0.Hi.Atom()]
	assert.Equal(t, Entry{Hi: ResultTrue, Lo: ResultFalse}, entry1)
}

func TestCompileOrShortCircuitsOnTrue(t *testing.T) {
	b := NewBuilder()
	root := b.Compile(Or(Var(0), Var(1)))
	plan := ExtractPlan(root)

	entry0 := plan.Entries[plan.Initial]
	assert.Equal(t, ResultTrue, entry0.Hi)
	require.True(t, entry0.Lo.IsAtom())
}

func TestCompileNotFlipsTerminals(t *testing.T) {
	b := NewBuilder()
	root := b.Compile(Not(Var(0)))
	plan := ExtractPlan(root)

	entry := plan.Entries[plan.Initial]
	assert.Equal(t, ResultFalse, entry.Hi)
	assert.Equal(t, ResultTrue, entry.Lo)
}

func TestCompileIsomorphicSubtreesShareNodes(t *testing.T) {
	b := NewBuilder()
	// (0 AND 1) OR (0 AND 1): the two conjunctions are structurally
	// identical, so mkNode's hash-consing must return the same *node for
	// both, collapsing the whole expression down to the node of the one
	// conjunction 0 AND 1.
	left := And(Var(0), Var(1))
	right := And(Var(0), Var(1))
	root := b.Compile(Or(left, right))

	direct := b.Compile(And(Var(0), Var(1)))
	assert.Same(t, direct, root)
}

func TestCompileRedundantTestCollapses(t *testing.T) {
	b := NewBuilder()
	// Or(Var(0), Not(Var(0))) is a tautology: both branches of the would-be
	// decision on 0 lead to True, so mkNode's hi==lo rule must collapse it
	// straight to the true terminal with no row in the plan at all.
	root := b.Compile(Or(Var(0), Not(Var(0))))
	plan := ExtractPlan(root)

	assert.Empty(t, plan.Entries)
	assert.Equal(t, ResultTrue, actionFor(root))
}

func TestExtractPlanEveryAtomExactlyOneRow(t *testing.T) {
	b := NewBuilder()
	expr := Or(And(Var(0), Var(1)), And(Var(2), Not(Var(1))))
	root := b.Compile(expr)
	plan := ExtractPlan(root)

	seenVars := make(map[VarID]int)
	for v := range plan.Entries {
		seenVars[v]++
	}
	for v, count := range seenVars {
		assert.Equal(t, 1, count, "var %d appeared in more than one row", v)
	}
}
