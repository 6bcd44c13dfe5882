package hnl

import (
	"testing"

	"github.com/hna-go/hnamon/internal/atommon"
	"github.com/hna-go/hnamon/internal/schema"
	"github.com/hna-go/hnamon/internal/trace"
	"github.com/stretchr/testify/require"
)

func mustTestSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sc, err := schema.New(schema.Field{Name: "in", Type: schema.FieldInt}, schema.Field{Name: "out", Type: schema.FieldInt})
	require.NoError(t, err)
	return sc
}

// perVariableSources builds one single-trace owned Set (and a pass-through
// View over it) per variable name, so distinct quantifiers never range over
// the same trace universe -- avoiding the spurious "flipped pair" instances
// a single shared source would generate for a formula like
// forall t1, t2 . in(t1) <= in(t2) over exactly two traces.
func perVariableSources(t *testing.T, sc *schema.Schema, values map[string][]int) (map[string]*trace.View, map[string]*trace.Trace) {
	t.Helper()
	sources := make(map[string]*trace.View, len(values))
	traces := make(map[string]*trace.Trace, len(values))
	for v, ins := range values {
		set := trace.NewSet(sc)
		tr := set.NewTrace()
		for _, in := range ins {
			require.NoError(t, tr.Append(schema.Record{"in": in}))
		}
		tr.Finish()
		sources[v] = trace.NewView(set, nil)
		traces[v] = tr
	}
	return sources, traces
}

func stepUntilRetired(m *Monitor, maxSteps int) atommon.Verdict {
	var v atommon.Verdict
	for i := 0; i < maxSteps; i++ {
		v = m.Step()
		if v != atommon.Unknown {
			return v
		}
	}
	return v
}

func TestBuildMonitorForallForallAcceptsTrivialPrefix(t *testing.T) {
	sc := mustTestSchema(t)
	sources, _ := perVariableSources(t, sc, map[string][]int{
		"t1": {0},
		"t2": {0, 1},
	})

	formula := &PrenexFormula{
		Prefix: []Quantifier{{Kind: ForAll, Var: "t1"}, {Kind: ForAll, Var: "t2"}},
		Body:   IsPrefix("in", "t1", "t2"),
	}
	m, err := BuildMonitor(formula, sources, []string{"0", "1", "2", "3"})
	require.NoError(t, err)
	m.Finish()

	got := stepUntilRetired(m, 20)
	require.Equal(t, atommon.True, got)
}

func TestBuildMonitorForallForallRejectsViolatedPrefix(t *testing.T) {
	sc := mustTestSchema(t)
	sources, _ := perVariableSources(t, sc, map[string][]int{
		"t1": {0, 1},
		"t2": {0, 2},
	})

	formula := &PrenexFormula{
		Prefix: []Quantifier{{Kind: ForAll, Var: "t1"}, {Kind: ForAll, Var: "t2"}},
		Body:   IsPrefix("in", "t1", "t2"),
	}
	m, err := BuildMonitor(formula, sources, []string{"0", "1", "2", "3"})
	require.NoError(t, err)
	m.Finish()

	got := stepUntilRetired(m, 20)
	require.Equal(t, atommon.False, got)
}

func TestBuildMonitorExistsAcceptsWhenOnePairSatisfies(t *testing.T) {
	sc := mustTestSchema(t)
	sources, _ := perVariableSources(t, sc, map[string][]int{
		"t1": {0, 1},
		"t2": {0, 1, 2},
	})

	formula := &PrenexFormula{
		Prefix: []Quantifier{{Kind: Exists, Var: "t1"}, {Kind: Exists, Var: "t2"}},
		Body:   IsPrefix("in", "t1", "t2"),
	}
	m, err := BuildMonitor(formula, sources, []string{"0", "1", "2", "3"})
	require.NoError(t, err)
	m.Finish()

	got := stepUntilRetired(m, 20)
	require.Equal(t, atommon.True, got)
}

func TestBuildMonitorRejectsUnknownQuantifiedVariable(t *testing.T) {
	sc := mustTestSchema(t)
	sources, _ := perVariableSources(t, sc, map[string][]int{
		"t1": {0},
	})
	// t2 has no entry in sources.
	formula := &PrenexFormula{
		Prefix: []Quantifier{{Kind: ForAll, Var: "t1"}, {Kind: ForAll, Var: "t2"}},
		Body:   IsPrefix("in", "t1", "t2"),
	}
	_, err := BuildMonitor(formula, sources, []string{"0", "1"})
	require.Error(t, err)
}

func TestBuildMonitorRejectsMoreThanTwoQuantifiers(t *testing.T) {
	sc := mustTestSchema(t)
	sources, _ := perVariableSources(t, sc, map[string][]int{
		"t1": {0}, "t2": {0}, "t3": {0},
	})
	formula := &PrenexFormula{
		Prefix: []Quantifier{{Kind: ForAll, Var: "t1"}, {Kind: ForAll, Var: "t2"}, {Kind: ForAll, Var: "t3"}},
		Body:   IsPrefix("in", "t1", "t2"),
	}
	_, err := BuildMonitor(formula, sources, []string{"0"})
	require.Error(t, err)
}

// TestBuildMonitorAlternatingQuantifiersSplits exercises the §4.8 splitter:
// forall t1 . exists t2 . in(t1) <= in(t2). t1 ranges over the single
// trace [0] and t2 over the single trace [0,1], which extends it, so the
// one t1 binding has a witness and the formula is TRUE.
func TestBuildMonitorAlternatingQuantifiersSplits(t *testing.T) {
	sc := mustTestSchema(t)
	set1 := trace.NewSet(sc)
	tA := set1.NewTrace()
	require.NoError(t, tA.Append(schema.Record{"in": 0}))
	tA.Finish()

	set2 := trace.NewSet(sc)
	tB := set2.NewTrace()
	require.NoError(t, tB.Append(schema.Record{"in": 0}))
	require.NoError(t, tB.Append(schema.Record{"in": 1}))
	tB.Finish()

	sources := map[string]*trace.View{
		"t1": trace.NewView(set1, nil),
		"t2": trace.NewView(set2, nil),
	}

	formula := &PrenexFormula{
		Prefix: []Quantifier{{Kind: ForAll, Var: "t1"}, {Kind: Exists, Var: "t2"}},
		Body:   IsPrefix("in", "t1", "t2"),
	}
	m, err := BuildMonitor(formula, sources, []string{"0", "1", "2", "3"})
	require.NoError(t, err)
	m.Finish()

	got := stepUntilRetired(m, 30)
	require.Equal(t, atommon.True, got)
}
