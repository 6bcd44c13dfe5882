package atommon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hna-go/hnamon/internal/automaton"
	"github.com/hna-go/hnamon/internal/schema"
	"github.com/hna-go/hnamon/internal/tea"
	"github.com/hna-go/hnamon/internal/trace"
)

func mustSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sc, err := schema.New(schema.Field{Name: "in", Type: schema.FieldString})
	require.NoError(t, err)
	return sc
}

func rec(v string) schema.Record { return schema.Record{"in": v} }

func TestRegularStepCarriesWaitingStateUnchanged(t *testing.T) {
	sc := mustSchema(t)
	t1 := trace.NewTrace(1, sc)
	t2 := trace.NewTrace(2, sc)
	require.NoError(t, t1.Append(rec("a")))
	// t2 has nothing yet and is not finished: Get(0) on it returns Waiting.

	pri := &automaton.Priority{
		Init:        0,
		Accept:      map[int]bool{0: false, 1: true},
		Transitions: map[int]map[automaton.PairLabel][]automaton.PriorityEdge{0: {}, 1: {}},
	}
	m := NewRegular(pri, t1, t2, "in", "in")

	assert.Equal(t, Unknown, m.Step())

	require.NoError(t, t2.Append(rec("a")))
	// once both sides have an event, a (eps,eps)-less automaton with no
	// transitions simply drops the state -> False, confirming it was
	// carried forward rather than lost while waiting.
	assert.Equal(t, False, m.Step())
}

func TestRegularStepAcceptsAtEndOfStream(t *testing.T) {
	sc := mustSchema(t)
	t1 := trace.NewTrace(1, sc)
	t2 := trace.NewTrace(2, sc)
	t1.Finish()
	t2.Finish()

	pri := &automaton.Priority{
		Init:        0,
		Accept:      map[int]bool{0: true},
		Transitions: map[int]map[automaton.PairLabel][]automaton.PriorityEdge{0: {}},
	}
	m := NewRegular(pri, t1, t2, "in", "in")

	assert.Equal(t, True, m.Step())
	// the verdict is permanent: replaying Step must not re-derive it.
	assert.Equal(t, True, m.Step())
}

func TestRegularStepReturnsFalseWhenNoTransitionMatches(t *testing.T) {
	sc := mustSchema(t)
	t1 := trace.NewTrace(1, sc)
	t2 := trace.NewTrace(2, sc)
	require.NoError(t, t1.Append(rec("a")))
	require.NoError(t, t2.Append(rec("b")))

	label := automaton.PairLabel{Left: tea.Letter{Value: "z"}}
	pri := &automaton.Priority{
		Init:   0,
		Accept: map[int]bool{0: false, 1: true},
		Transitions: map[int]map[automaton.PairLabel][]automaton.PriorityEdge{
			0: {label: {{To: 1, Priority: 0}}},
			1: {},
		},
	}
	m := NewRegular(pri, t1, t2, "in", "in")

	// neither event's "in" field is "z", so the one transition never fires
	// and the lone evaluation state is dropped silently -> next is empty.
	assert.Equal(t, False, m.Step())
}

func TestRegularStepHigherPriorityShadowsLower(t *testing.T) {
	sc := mustSchema(t)
	t1 := trace.NewTrace(1, sc)
	t2 := trace.NewTrace(2, sc)
	require.NoError(t, t1.Append(rec("a")))
	require.NoError(t, t2.Append(rec("x")))

	label := automaton.PairLabel{Left: tea.Letter{Value: "a"}, RightEps: true}
	pri := &automaton.Priority{
		Init:   0,
		Accept: map[int]bool{0: false, 1: true, 2: false},
		Transitions: map[int]map[automaton.PairLabel][]automaton.PriorityEdge{
			0: {label: {
				{To: 1, Priority: 1},
				{To: 2, Priority: 0},
			}},
			1: {},
			2: {},
		},
	}
	m := NewRegular(pri, t1, t2, "in", "in")

	assert.Equal(t, Unknown, m.Step())
	assert.Equal(t, []EvalState{{Q: 1, P1: 1, P2: 0}}, m.cur)
}

func TestRegularStepConfluenceIsOrderIndependent(t *testing.T) {
	sc := mustSchema(t)
	t1 := trace.NewTrace(1, sc)
	t2 := trace.NewTrace(2, sc)
	t1.Finish()
	t2.Finish()

	pri := &automaton.Priority{
		Init:        0,
		Accept:      map[int]bool{0: true, 1: false},
		Transitions: map[int]map[automaton.PairLabel][]automaton.PriorityEdge{0: {}, 1: {}},
	}

	buildWithOrder := func(order []EvalState) *AtomMonitor {
		m := NewRegular(pri, t1, t2, "in", "in")
		m.cur = append([]EvalState(nil), order...)
		return m
	}

	// one state is a non-accepting end-of-stream (dropped), the other an
	// accepting end-of-stream (short-circuits the whole step to True);
	// the result must not depend on which is processed first.
	accepting := EvalState{Q: 0, P1: 0, P2: 0}
	dropped := EvalState{Q: 1, P1: 0, P2: 0}

	m1 := buildWithOrder([]EvalState{dropped, accepting})
	m2 := buildWithOrder([]EvalState{accepting, dropped})

	assert.Equal(t, True, m1.Step())
	assert.Equal(t, True, m2.Step())
}

func TestRegularStepDrainsLiveSideAfterOtherSideEndsBeforeAccepting(t *testing.T) {
	sc := mustSchema(t)
	t1 := trace.NewTrace(1, sc)
	t2 := trace.NewTrace(2, sc)
	require.NoError(t, t1.Append(rec("a")))
	require.NoError(t, t1.Append(rec("a")))
	t1.Finish()
	t2.Finish() // t2 ends immediately, with nothing ever appended

	// q0 (non-accepting): a higher-priority asymmetric self-loop consumes
	// only t1's side one event at a time (modeling the "drain the live
	// side's repeated run" half of a stutter-reduction gadget), shadowing
	// a lower-priority always-enabled (eps,eps) exit to q1 (accepting).
	// t2 having already hit StatusEnd before t1 must not disable either
	// transition: the self-loop needs only t1's event, and the (eps,eps)
	// exit needs no event at all.
	selfLoop := automaton.PairLabel{Left: tea.Letter{Value: "a"}, RightEps: true}
	exit := automaton.PairLabel{LeftEps: true, RightEps: true}
	pri := &automaton.Priority{
		Init:   0,
		Accept: map[int]bool{0: false, 1: true},
		Transitions: map[int]map[automaton.PairLabel][]automaton.PriorityEdge{
			0: {
				selfLoop: {{To: 0, Priority: 1}},
				exit:     {{To: 1, Priority: 0}},
			},
			1: {},
		},
	}
	m := NewRegular(pri, t1, t2, "in", "in")

	// step 1+2 drain t1's two events via the self-loop even though t2
	// already reported StatusEnd at step 1; step 3 the self-loop is
	// finally disabled (t1 live1 now false too) so the (eps,eps) exit
	// fires, landing on q1; step 4 observes q1 accepting with both sides
	// ended and no transition left to try.
	assert.Equal(t, Unknown, m.Step())
	assert.Equal(t, Unknown, m.Step())
	assert.Equal(t, Unknown, m.Step())
	assert.Equal(t, True, m.Step())
}

type fakeNested struct{ verdicts []Verdict }

func (f *fakeNested) Step() Verdict {
	v := f.verdicts[0]
	f.verdicts = f.verdicts[1:]
	return v
}

func TestFunctionStepInvertsTrueFalseAndPassesUnknown(t *testing.T) {
	nested := &fakeNested{verdicts: []Verdict{Unknown, True}}
	m := NewFunction(nested)

	assert.Equal(t, Unknown, m.Step())
	assert.Equal(t, False, m.Step())

	nested2 := &fakeNested{verdicts: []Verdict{False}}
	m2 := NewFunction(nested2)
	assert.Equal(t, True, m2.Step())
}

func TestComposedProgramVarAutomatonIntegratesWithAtomMonitor(t *testing.T) {
	sc := mustSchema(t)
	t1 := trace.NewTrace(1, sc)
	t2 := trace.NewTrace(2, sc)

	left := automaton.FormulaToAutomaton(tea.ProgramVar("in", "t1"), []string{"a"}, automaton.Options{})
	right := automaton.FormulaToAutomaton(tea.ProgramVar("in", "t2"), []string{"a"}, automaton.Options{})
	pri := automaton.ToPriorityAutomaton(automaton.Compose(left, right))

	m := NewRegular(pri, t1, t2, "in", "in")

	require.NoError(t, t1.Append(rec("a")))
	require.NoError(t, t2.Append(rec("a")))
	t1.Finish()
	t2.Finish()

	// both sides consume their single matching event and land back on an
	// accepting (nullable) state with nothing left to read.
	var v Verdict
	for i := 0; i < 4 && v != True && v != False; i++ {
		v = m.Step()
	}
	assert.Equal(t, True, v)
}
