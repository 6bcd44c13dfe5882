package hnl

import (
	"fmt"

	"github.com/hna-go/hnamon/internal/atommon"
	"github.com/hna-go/hnamon/internal/trace"
)

// BuildMonitor compiles formula and assembles the chain of monitors
// described by the quantifier-alternation splitter (§4.8): a maximal
// same-kind quantifier prefix becomes one monitor, and any remaining
// alternation becomes a nested monitor driven through a synthesized
// BodyFunction placeholder atom. sources supplies one trace View per
// quantified variable name appearing in formula's prefix -- distinct
// variables may be bound to distinct trace sets (or the same set under
// distinct predicates); alphabet is the event-field value alphabet every
// prefix-relation atom's automaton is built over (§4.2).
func BuildMonitor(formula *PrenexFormula, sources map[string]*trace.View, alphabet []string) (*Monitor, error) {
	if err := formula.Validate(); err != nil {
		return nil, err
	}
	if len(formula.Prefix) > 2 {
		return nil, fmt.Errorf("hnl: formulas with more than 2 quantifiers are not supported (Design Notes §9)")
	}
	return buildMonitor(formula, sources, alphabet, nil)
}

func buildMonitor(formula *PrenexFormula, sources map[string]*trace.View, alphabet []string, fixed map[string]*trace.Trace) (*Monitor, error) {
	k := sameKindPrefixLen(formula.Prefix)
	top := formula.Prefix[:k]
	quantVars := make([]string, len(top))
	for i, q := range top {
		quantVars[i] = q.Var
	}

	reduction := NoReduction
	if len(quantVars) == 2 {
		reduction = formula.Reduction
	}

	if k == len(formula.Prefix) {
		compiled, err := Compile(formula.Body, alphabet)
		if err != nil {
			return nil, err
		}
		return NewMonitor(top[0].Kind, quantVars, sources, fixed, compiled, reduction, nil)
	}

	subPrefix := formula.Prefix[k:]
	negate := subPrefix[0].Kind == Exists
	topBody := &Body{Kind: BodyFunction, Negate: negate}
	topCompiled, err := Compile(topBody, alphabet)
	if err != nil {
		return nil, err
	}
	subFormula := &PrenexFormula{Prefix: subPrefix, Body: formula.Body, Reduction: formula.Reduction}

	subFactory := func(fixedBindings map[string]*trace.Trace) atommon.NestedMonitor {
		sub, err := buildMonitor(subFormula, sources, alphabet, fixedBindings)
		if err != nil {
			// unreachable: buildMonitor's own arity/validity is bounded by
			// the top-level BuildMonitor call that already validated the
			// whole formula, and sub-formulas are always strictly smaller.
			panic(fmt.Sprintf("hnl: unreachable sub-monitor build failure: %v", err))
		}
		return sub
	}

	return NewMonitor(top[0].Kind, quantVars, sources, fixed, topCompiled, reduction, subFactory)
}

// sameKindPrefixLen returns the length of the maximal prefix of prefix
// whose quantifiers share the first one's kind.
func sameKindPrefixLen(prefix []Quantifier) int {
	if len(prefix) == 0 {
		return 0
	}
	kind := prefix[0].Kind
	n := 1
	for n < len(prefix) && prefix[n].Kind == kind {
		n++
	}
	return n
}
