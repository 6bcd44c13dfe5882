package hna

import (
	"testing"

	"github.com/hna-go/hnamon/internal/hnl"
	"github.com/stretchr/testify/require"
)

func trivialFormula() *hnl.PrenexFormula {
	return &hnl.PrenexFormula{
		Prefix: []hnl.Quantifier{{Kind: hnl.ForAll, Var: "t1"}},
		Body:   hnl.IsPrefix("in", "t1", "t1"),
	}
}

func TestNewSpecAcceptsWellFormedAutomaton(t *testing.T) {
	clear := &HypernodeState{ID: "Clear", Formula: trivialFormula()}
	shared := &HypernodeState{ID: "ShareLoc", Formula: trivialFormula()}
	erased := &HypernodeState{ID: "EraseLoc", Formula: trivialFormula()}

	spec, err := NewSpec(
		[]*HypernodeState{clear, shared, erased},
		"Clear",
		[]Edge{
			{From: "Clear", Action: "share", To: "ShareLoc"},
			{From: "ShareLoc", Action: "erase", To: "EraseLoc"},
			{From: "EraseLoc", Action: "share", To: "Clear"},
		},
	)
	require.NoError(t, err)

	next, ok := spec.Step("Clear", "share")
	require.True(t, ok)
	require.Equal(t, "ShareLoc", next)

	_, ok = spec.Step("Clear", "erase")
	require.False(t, ok)

	require.Equal(t, []Action{"erase", "share"}, spec.Actions())
}

func TestNewSpecRejectsUndeclaredInitialState(t *testing.T) {
	_, err := NewSpec([]*HypernodeState{{ID: "Clear", Formula: trivialFormula()}}, "Missing", nil)
	require.Error(t, err)
}

func TestNewSpecRejectsEdgeToUndeclaredState(t *testing.T) {
	_, err := NewSpec(
		[]*HypernodeState{{ID: "Clear", Formula: trivialFormula()}},
		"Clear",
		[]Edge{{From: "Clear", Action: "share", To: "Nowhere"}},
	)
	require.Error(t, err)
}

func TestNewSpecRejectsNonDeterministicTransition(t *testing.T) {
	clear := &HypernodeState{ID: "Clear", Formula: trivialFormula()}
	a := &HypernodeState{ID: "A", Formula: trivialFormula()}
	b := &HypernodeState{ID: "B", Formula: trivialFormula()}
	_, err := NewSpec(
		[]*HypernodeState{clear, a, b},
		"Clear",
		[]Edge{
			{From: "Clear", Action: "share", To: "A"},
			{From: "Clear", Action: "share", To: "B"},
		},
	)
	require.Error(t, err)
}

func TestNewSpecAccumulatesMultipleErrors(t *testing.T) {
	_, err := NewSpec(
		[]*HypernodeState{{ID: "A", Formula: trivialFormula()}, {ID: "A", Formula: trivialFormula()}},
		"Missing",
		[]Edge{{From: "Ghost", Action: "x", To: "A"}},
	)
	require.Error(t, err)
	msg := err.Error()
	require.Contains(t, msg, "duplicate hypernode state")
	require.Contains(t, msg, "not a declared hypernode state")
	require.Contains(t, msg, "edge from undeclared state")
}
