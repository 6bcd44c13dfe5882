// Package specfile decodes a JSON-encoded hypernode automaton -- the
// schema, the state/formula/edge declarations, and the prefix-relation
// alphabet -- into the Go values internal/hna and internal/hnl operate on.
// Concrete HNL/HNA syntax parsing is out of scope; a spec author (or a
// tool generating one) writes this JSON document, or builds the same
// internal/hna.Spec/internal/hnl.PrenexFormula values directly in Go.
package specfile

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/hna-go/hnamon/internal/hna"
	"github.com/hna-go/hnamon/internal/hnl"
	"github.com/hna-go/hnamon/internal/schema"
)

// Document is the on-disk JSON shape of a complete monitor specification.
type Document struct {
	Alphabet []string    `json:"alphabet"`
	Schema   []FieldDoc  `json:"schema"`
	States   []StateDoc  `json:"states"`
	Initial  string      `json:"initial"`
	Edges    []EdgeDoc   `json:"edges"`
}

// FieldDoc declares one event-schema column.
type FieldDoc struct {
	Name string `json:"name"`
	Type string `json:"type"` // "int", "string", "bool", or "float"
}

// StateDoc declares one hypernode state and the formula its slices are
// monitored against.
type StateDoc struct {
	ID      string      `json:"id"`
	Formula FormulaDoc  `json:"formula"`
}

// EdgeDoc declares one automaton transition.
type EdgeDoc struct {
	From   string `json:"from"`
	Action string `json:"action"`
	To     string `json:"to"`
}

// FormulaDoc is the JSON shape of an hnl.PrenexFormula.
type FormulaDoc struct {
	Prefix    []QuantifierDoc `json:"prefix"`
	Body      BodyDoc         `json:"body"`
	Reduction string          `json:"reduction,omitempty"` // "", "irreflexive", or "symmetric"
}

// QuantifierDoc is the JSON shape of an hnl.Quantifier.
type QuantifierDoc struct {
	Kind string `json:"kind"` // "forall" or "exists"
	Var  string `json:"var"`
}

// BodyDoc is the JSON shape of an hnl.Body node. Exactly the fields its
// Kind needs are populated: And/Or carry Left+Right, Not carries Left,
// IsPrefix carries Field+LeftVar+RightVar.
type BodyDoc struct {
	Kind      string   `json:"kind"` // "and", "or", "not", or "is_prefix"
	Left      *BodyDoc `json:"left,omitempty"`
	Right     *BodyDoc `json:"right,omitempty"`
	Field     string   `json:"field,omitempty"`
	LeftVar   string   `json:"left_var,omitempty"`
	RightVar  string   `json:"right_var,omitempty"`
}

// Load reads and decodes a Document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("specfile: reading %s: %w", path, err)
	}
	return Decode(data)
}

// Decode parses a Document from raw JSON.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("specfile: decoding: %w", err)
	}
	return &doc, nil
}

// Build converts doc into a validated hna.Spec, the event schema it is
// monitored over, and the prefix-relation alphabet its automata are built
// over.
func (doc *Document) Build() (*hna.Spec, *schema.Schema, []string, error) {
	fields := make([]schema.Field, len(doc.Schema))
	for i, f := range doc.Schema {
		typ, err := fieldType(f.Type)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("specfile: field %q: %w", f.Name, err)
		}
		fields[i] = schema.Field{Name: f.Name, Type: typ}
	}
	sc, err := schema.New(fields...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("specfile: building schema: %w", err)
	}

	states := make([]*hna.HypernodeState, len(doc.States))
	for i, s := range doc.States {
		formula, err := s.Formula.build()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("specfile: state %q: %w", s.ID, err)
		}
		states[i] = &hna.HypernodeState{ID: s.ID, Formula: formula}
	}

	edges := make([]hna.Edge, len(doc.Edges))
	for i, e := range doc.Edges {
		edges[i] = hna.Edge{From: e.From, Action: hna.Action(e.Action), To: e.To}
	}

	spec, err := hna.NewSpec(states, doc.Initial, edges)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("specfile: building automaton: %w", err)
	}
	return spec, sc, doc.Alphabet, nil
}

func fieldType(s string) (schema.FieldType, error) {
	switch s {
	case "int":
		return schema.FieldInt, nil
	case "string":
		return schema.FieldString, nil
	case "bool":
		return schema.FieldBool, nil
	case "float":
		return schema.FieldFloat, nil
	default:
		return 0, fmt.Errorf("unknown field type %q", s)
	}
}

func (f FormulaDoc) build() (*hnl.PrenexFormula, error) {
	prefix := make([]hnl.Quantifier, len(f.Prefix))
	for i, q := range f.Prefix {
		kind, err := quantKind(q.Kind)
		if err != nil {
			return nil, err
		}
		prefix[i] = hnl.Quantifier{Kind: kind, Var: q.Var}
	}

	body, err := f.Body.build()
	if err != nil {
		return nil, err
	}

	reduction, err := reductionKind(f.Reduction)
	if err != nil {
		return nil, err
	}

	formula := &hnl.PrenexFormula{Prefix: prefix, Body: body, Reduction: reduction}
	if err := formula.Validate(); err != nil {
		return nil, err
	}
	return formula, nil
}

func quantKind(s string) (hnl.QuantKind, error) {
	switch s {
	case "forall":
		return hnl.ForAll, nil
	case "exists":
		return hnl.Exists, nil
	default:
		return 0, fmt.Errorf("unknown quantifier kind %q", s)
	}
}

func reductionKind(s string) (hnl.Reduction, error) {
	switch s {
	case "":
		return hnl.NoReduction, nil
	case "irreflexive":
		return hnl.Irreflexive, nil
	case "symmetric":
		return hnl.Symmetric, nil
	default:
		return 0, fmt.Errorf("unknown reduction mode %q", s)
	}
}

func (b *BodyDoc) build() (*hnl.Body, error) {
	if b == nil {
		return nil, fmt.Errorf("missing body node")
	}
	switch strings.ToLower(b.Kind) {
	case "and":
		left, err := b.Left.build()
		if err != nil {
			return nil, err
		}
		right, err := b.Right.build()
		if err != nil {
			return nil, err
		}
		return hnl.And(left, right), nil
	case "or":
		left, err := b.Left.build()
		if err != nil {
			return nil, err
		}
		right, err := b.Right.build()
		if err != nil {
			return nil, err
		}
		return hnl.Or(left, right), nil
	case "not":
		left, err := b.Left.build()
		if err != nil {
			return nil, err
		}
		return hnl.Not(left), nil
	case "is_prefix":
		return hnl.IsPrefix(b.Field, b.LeftVar, b.RightVar), nil
	default:
		return nil, fmt.Errorf("unknown body node kind %q", b.Kind)
	}
}
