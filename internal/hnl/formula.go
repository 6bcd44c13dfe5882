// Package hnl implements the hypernode-logic compiler and runtime monitor
// of §3.3/§3.6/§3.7/§4.7/§4.8: a prenex formula over prefix-relation atoms,
// compiled into a BDD evaluation plan and driven against a trace set by an
// instance store that instantiates one atom-monitor chain per bound tuple
// of quantified trace variables.
package hnl

import (
	"fmt"
	"strings"
)

// QuantKind discriminates a quantifier occurrence in a prenex prefix.
type QuantKind int

const (
	ForAll QuantKind = iota
	Exists
)

func (k QuantKind) String() string {
	if k == Exists {
		return "exists"
	}
	return "forall"
}

// Quantifier binds one trace variable over a named trace-set/view source.
type Quantifier struct {
	Kind QuantKind
	Var  string
}

// BodyKind discriminates the variant held by a Body node -- a tagged
// struct in place of the source material's And/Or/Not/IsPrefix class
// hierarchy (Design Notes §9), dispatched by a switch everywhere it is
// walked.
type BodyKind int

const (
	BodyAnd BodyKind = iota
	BodyOr
	BodyNot
	BodyIsPrefix
	// BodyFunction is never written by hand -- the quantifier-alternation
	// splitter (§4.8) synthesizes it as the placeholder atom φ standing
	// for a nested sub-monitor's verdict.
	BodyFunction
)

// Body is one node of a quantifier-free HNL body.
type Body struct {
	Kind        BodyKind
	Left, Right *Body // And/Or (both); Not (Left only)

	// BodyIsPrefix fields: the atom compares the trace of Field projected
	// from LeftVar against the trace of Field projected from RightVar,
	// asking whether the former is a prefix of the latter.
	Field            string
	LeftVar, RightVar string

	// BodyFunction field: whether the splitter's polarity bit applies
	// (§4.8) -- the nested sub-monitor's verdict is negated before this
	// atom's own function-atom post-negation (Design Notes §9) is applied.
	Negate bool
}

func And(l, r *Body) *Body  { return &Body{Kind: BodyAnd, Left: l, Right: r} }
func Or(l, r *Body) *Body   { return &Body{Kind: BodyOr, Left: l, Right: r} }
func Not(b *Body) *Body     { return &Body{Kind: BodyNot, Left: b} }
func IsPrefix(field, leftVar, rightVar string) *Body {
	return &Body{Kind: BodyIsPrefix, Field: field, LeftVar: leftVar, RightVar: rightVar}
}

func (b *Body) String() string {
	switch b.Kind {
	case BodyAnd:
		return fmt.Sprintf("(%s && %s)", b.Left, b.Right)
	case BodyOr:
		return fmt.Sprintf("(%s || %s)", b.Left, b.Right)
	case BodyNot:
		return fmt.Sprintf("!%s", b.Left)
	case BodyIsPrefix:
		return fmt.Sprintf("%s(%s) <= %s(%s)", b.Field, b.LeftVar, b.Field, b.RightVar)
	case BodyFunction:
		return "phi"
	default:
		return "?"
	}
}

// vars collects every trace-variable name the body actually references.
func (b *Body) vars(into map[string]bool) {
	switch b.Kind {
	case BodyAnd, BodyOr:
		b.Left.vars(into)
		b.Right.vars(into)
	case BodyNot:
		b.Left.vars(into)
	case BodyIsPrefix:
		into[b.LeftVar] = true
		into[b.RightVar] = true
	}
}

// PrenexFormula is the top-level HNL object of §3.3: a quantifier prefix
// followed by a quantifier-free body.
type PrenexFormula struct {
	Prefix []Quantifier
	Body   *Body
	// Reduction constrains tuple generation when Prefix has exactly 2
	// variables of the same kind (Design Notes §9's reflexive/symmetric
	// reduction decision); ignored otherwise.
	Reduction Reduction
}

// Validate reports every structural error in f at once (accumulate, then
// join) rather than failing on the first problem: an unbound body
// variable, a duplicate quantifier variable, and an empty prefix are all
// reported together.
func (f *PrenexFormula) Validate() error {
	var errs []string

	if len(f.Prefix) == 0 {
		errs = append(errs, "formula has no quantifiers")
	}

	seen := make(map[string]bool, len(f.Prefix))
	for _, q := range f.Prefix {
		if q.Var == "" {
			errs = append(errs, "quantifier has an empty variable name")
			continue
		}
		if seen[q.Var] {
			errs = append(errs, fmt.Sprintf("variable %q is quantified more than once", q.Var))
		}
		seen[q.Var] = true
	}

	if f.Body == nil {
		errs = append(errs, "formula has no body")
	} else {
		used := make(map[string]bool)
		f.Body.vars(used)
		for v := range used {
			if !seen[v] {
				errs = append(errs, fmt.Sprintf("body references unbound variable %q", v))
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("hnl: invalid formula: %s", strings.Join(errs, "; "))
}
