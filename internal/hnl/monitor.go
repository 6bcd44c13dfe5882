package hnl

import (
	"fmt"

	"github.com/hna-go/hnamon/internal/atommon"
	"github.com/hna-go/hnamon/internal/bdd"
	"github.com/hna-go/hnamon/internal/trace"
)

// Reduction constrains which new tuples Instantiate is allowed to
// generate for a two-variable monitor (Design Notes §9's open question:
// only n == 2 is supported; larger arities are a compile-time rejection
// handled by NewMonitor).
type Reduction int

const (
	// NoReduction generates every ordered pair of distinct-or-equal
	// traces.
	NoReduction Reduction = iota
	// Irreflexive skips tuples that bind every variable to the same
	// trace.
	Irreflexive
	// Symmetric additionally keeps only one of (a, b) and (b, a).
	Symmetric
)

// subMonitorFactory builds the nested monitor a BodyFunction atom
// delegates to for one instance, given the trace bindings that instance's
// enclosing quantifiers have already fixed (§4.8).
type subMonitorFactory func(fixed map[string]*trace.Trace) atommon.NestedMonitor

// Monitor is the HNL monitor of §4.7: one quantifier group (of uniform
// kind, arity 1 or 2), its instance store, and a reference to the
// compiled BDD plan the splitter (§4.8) or a direct single-group formula
// produced.
type Monitor struct {
	kind      QuantKind
	quantVars []string
	fixed     map[string]*trace.Trace
	compiled  *CompiledFormula
	reduction Reduction
	subFactory subMonitorFactory

	views map[string]*trace.View
	known map[string][]*trace.Trace

	instances map[string]*Instance
	order     []*Instance

	noMoreTraces bool
	retired      bool
	retiredVal   atommon.Verdict
}

// NewMonitor builds a base (non-alternating) monitor for a single
// quantifier group of 1 or 2 variables. sources supplies one View per
// quantified variable name -- callers are free to point different
// variables at different trace sets (e.g. a "request" set and a
// "response" set), or the same set under different predicates. fixed
// carries variable bindings inherited from an enclosing splitter level
// (empty for a top-level monitor). subFactory is nil unless compiled
// contains a BodyFunction atom.
func NewMonitor(kind QuantKind, quantVars []string, sources map[string]*trace.View, fixed map[string]*trace.Trace, compiled *CompiledFormula, reduction Reduction, subFactory subMonitorFactory) (*Monitor, error) {
	if len(quantVars) == 0 || len(quantVars) > 2 {
		return nil, fmt.Errorf("hnl: monitor supports 1 or 2 quantified variables, got %d", len(quantVars))
	}
	m := &Monitor{
		kind:       kind,
		quantVars:  quantVars,
		fixed:      fixed,
		compiled:   compiled,
		reduction:  reduction,
		subFactory: subFactory,
		views:      make(map[string]*trace.View, len(quantVars)),
		known:      make(map[string][]*trace.Trace, len(quantVars)),
		instances:  make(map[string]*Instance),
	}
	for _, v := range quantVars {
		view, ok := sources[v]
		if !ok {
			return nil, fmt.Errorf("hnl: no trace source provided for quantified variable %q", v)
		}
		m.views[v] = view
	}
	return m, nil
}

// Finish signals that no further traces will ever be instantiated by this
// monitor's quantifiers -- the end-of-stream condition §4.7 describes.
func (m *Monitor) Finish() {
	m.noMoreTraces = true
}

// Step runs one Instantiate/Advance/Aggregate cycle and returns the
// resulting monitor-level verdict.
func (m *Monitor) Step() atommon.Verdict {
	if m.retired {
		return m.retiredVal
	}
	m.instantiate()
	m.advance()
	return m.aggregate()
}

// instantiate generates every new tuple a newly observed trace completes,
// skipping tuples forbidden by the reduction mode and tuples already
// instantiated (§4.7 step 1, §8's instance de-duplication property).
func (m *Monitor) instantiate() {
	if len(m.quantVars) == 1 {
		v := m.quantVars[0]
		for {
			t, ok := m.views[v].GetNewTrace()
			if !ok {
				break
			}
			m.tryCreate(map[string]*trace.Trace{v: t})
		}
		return
	}

	v1, v2 := m.quantVars[0], m.quantVars[1]
	for {
		t, ok := m.views[v1].GetNewTrace()
		if !ok {
			break
		}
		m.known[v1] = append(m.known[v1], t)
		for _, other := range m.known[v2] {
			m.tryCreate(map[string]*trace.Trace{v1: t, v2: other})
		}
	}
	for {
		t, ok := m.views[v2].GetNewTrace()
		if !ok {
			break
		}
		m.known[v2] = append(m.known[v2], t)
		for _, other := range m.known[v1] {
			m.tryCreate(map[string]*trace.Trace{v1: other, v2: t})
		}
	}
}

func (m *Monitor) tryCreate(bindings map[string]*trace.Trace) {
	if len(m.quantVars) == 2 {
		a, b := bindings[m.quantVars[0]], bindings[m.quantVars[1]]
		switch m.reduction {
		case Irreflexive:
			if a.ID() == b.ID() {
				return
			}
		case Symmetric:
			if a.ID() >= b.ID() {
				return
			}
		}
	}
	full := make(map[string]*trace.Trace, len(bindings)+len(m.fixed))
	for k, v := range m.fixed {
		full[k] = v
	}
	for k, v := range bindings {
		full[k] = v
	}
	key := identityKey(full, append(append([]string{}, m.quantVars...), fixedOrder(m.fixed)...))
	if _, exists := m.instances[key]; exists {
		return
	}
	inst := &Instance{bindings: full, cursor: m.compiled.Plan.Initial}
	m.instances[key] = inst
	m.order = append(m.order, inst)
}

// fixedOrder returns the fixed bindings' variable names in a stable
// (sorted) order so identityKey is deterministic across calls.
func fixedOrder(fixed map[string]*trace.Trace) []string {
	if len(fixed) == 0 {
		return nil
	}
	out := make([]string, 0, len(fixed))
	for k := range fixed {
		out = append(out, k)
	}
	// fixed bindings never change after construction and are small (<=2
	// in this implementation's n<=2 restriction), so a simple insertion
	// sort keeps this allocation-free path dependency-free.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// advance steps every live instance's atom monitor once and follows the
// BDD plan to its next atom or to a retirement verdict (§4.7 step 2).
func (m *Monitor) advance() {
	for _, inst := range m.order {
		if inst.done {
			continue
		}
		if inst.atom == nil {
			inst.atom = m.buildAtom(inst)
		}
		v := inst.atom.Step()
		if v == atommon.Unknown {
			continue
		}
		entry := m.compiled.Plan.Entries[inst.cursor]
		action := entry.Lo
		if v == atommon.True {
			action = entry.Hi
		}
		if action.IsAtom() {
			inst.cursor = action.Atom()
			inst.atom = nil
			continue
		}
		inst.done = true
		if action == bdd.ResultTrue {
			inst.verdict = atommon.True
		} else {
			inst.verdict = atommon.False
		}
	}
}

func (m *Monitor) buildAtom(inst *Instance) *atommon.AtomMonitor {
	spec := m.compiled.Atoms[inst.cursor]
	if spec.Function {
		nested := m.subFactory(inst.bindings)
		if spec.Negate {
			nested = negated{nested}
		}
		return atommon.NewFunction(nested)
	}
	t1, t2 := inst.bindings[spec.LeftVar], inst.bindings[spec.RightVar]
	return atommon.NewRegular(spec.Automaton, t1, t2, spec.Field, spec.Field)
}

// negated flips a nested monitor's True/False outcome, implementing the
// splitter's existential-alternation polarity bit (§4.8) ahead of the
// function atom's own structural post-negation (Design Notes §9).
type negated struct{ inner atommon.NestedMonitor }

func (n negated) Step() atommon.Verdict {
	switch v := n.inner.Step(); v {
	case atommon.True:
		return atommon.False
	case atommon.False:
		return atommon.True
	default:
		return v
	}
}

// aggregate combines live instance verdicts per §4.7 step 3: a universal
// group retires FALSE the instant any instance is FALSE, or TRUE once the
// source is exhausted and every instance is TRUE; an existential group
// inverts both conditions.
func (m *Monitor) aggregate() atommon.Verdict {
	anyFalse, anyUnknown := false, false
	for _, inst := range m.order {
		if !inst.done {
			anyUnknown = true
			continue
		}
		if inst.verdict == atommon.False {
			anyFalse = true
		}
	}

	if m.kind == ForAll {
		if anyFalse {
			return m.retire(atommon.False)
		}
		if !anyUnknown && m.noMoreTraces {
			return m.retire(atommon.True)
		}
		return atommon.Unknown
	}

	// Exists inverts both the short-circuit and the exhaustion outcome.
	anyTrue := false
	for _, inst := range m.order {
		if inst.done && inst.verdict == atommon.True {
			anyTrue = true
		}
	}
	if anyTrue {
		return m.retire(atommon.True)
	}
	if !anyUnknown && m.noMoreTraces {
		return m.retire(atommon.False)
	}
	return atommon.Unknown
}

func (m *Monitor) retire(v atommon.Verdict) atommon.Verdict {
	m.retired = true
	m.retiredVal = v
	return v
}
