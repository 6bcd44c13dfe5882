package specfile

import (
	"testing"
)

const shareLocDoc = `{
  "alphabet": ["0", "1", "2", "3"],
  "schema": [{"name": "loc", "type": "int"}],
  "states": [
    {
      "id": "clear",
      "formula": {
        "prefix": [{"kind": "forall", "var": "t1"}],
        "body": {"kind": "is_prefix", "field": "loc", "left_var": "t1", "right_var": "t1"}
      }
    },
    {
      "id": "shared",
      "formula": {
        "prefix": [{"kind": "forall", "var": "t1"}, {"kind": "forall", "var": "t2"}],
        "reduction": "irreflexive",
        "body": {"kind": "is_prefix", "field": "loc", "left_var": "t1", "right_var": "t2"}
      }
    }
  ],
  "initial": "clear",
  "edges": [{"from": "clear", "action": "share", "to": "shared"}]
}`

func TestDecodeParsesDocument(t *testing.T) {
	doc, err := Decode([]byte(shareLocDoc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(doc.States) != 2 {
		t.Fatalf("len(States) = %d, want 2", len(doc.States))
	}
	if doc.Initial != "clear" {
		t.Errorf("Initial = %q, want clear", doc.Initial)
	}
}

func TestBuildProducesAutomatonAndSchema(t *testing.T) {
	doc, err := Decode([]byte(shareLocDoc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	spec, sc, alphabet, err := doc.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if spec.Initial != "clear" {
		t.Errorf("spec.Initial = %q, want clear", spec.Initial)
	}
	if len(spec.States) != 2 {
		t.Errorf("len(spec.States) = %d, want 2", len(spec.States))
	}
	if sc == nil {
		t.Fatal("expected non-nil schema")
	}
	if len(alphabet) != 4 {
		t.Errorf("len(alphabet) = %d, want 4", len(alphabet))
	}
}

func TestBuildRejectsUnknownFieldType(t *testing.T) {
	doc := &Document{
		Schema:  []FieldDoc{{Name: "x", Type: "complex128"}},
		States:  []StateDoc{},
		Initial: "s",
	}
	if _, _, _, err := doc.Build(); err == nil {
		t.Fatal("expected an error for an unknown field type")
	}
}

func TestBuildRejectsUnboundBodyVariable(t *testing.T) {
	doc := &Document{
		Schema: []FieldDoc{{Name: "loc", Type: "int"}},
		States: []StateDoc{{
			ID: "s",
			Formula: FormulaDoc{
				Prefix: []QuantifierDoc{{Kind: "forall", Var: "t1"}},
				Body:   BodyDoc{Kind: "is_prefix", Field: "loc", LeftVar: "t1", RightVar: "t2"},
			},
		}},
		Initial: "s",
	}
	if _, _, _, err := doc.Build(); err == nil {
		t.Fatal("expected an error for a body referencing an unbound variable")
	}
}

func TestBuildRejectsUnknownBodyKind(t *testing.T) {
	doc := &Document{
		Schema: []FieldDoc{{Name: "loc", Type: "int"}},
		States: []StateDoc{{
			ID: "s",
			Formula: FormulaDoc{
				Prefix: []QuantifierDoc{{Kind: "forall", Var: "t1"}},
				Body:   BodyDoc{Kind: "xor", Field: "loc", LeftVar: "t1", RightVar: "t1"},
			},
		}},
		Initial: "s",
	}
	if _, _, _, err := doc.Build(); err == nil {
		t.Fatal("expected an error for an unknown body node kind")
	}
}
