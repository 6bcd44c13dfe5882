// Package schema describes the shape of the events a monitor consumes.
//
// The event schema is configured once, at build time, as an ordered list of
// named, typed fields. It is the contract
// between whatever external producer is appending events to a trace and the
// program-variable projections a trace expression is built from.
package schema

import "fmt"

// FieldType is the type of a single named event field.
type FieldType int

const (
	FieldInt FieldType = iota
	FieldString
	FieldBool
	FieldFloat
)

func (t FieldType) String() string {
	switch t {
	case FieldInt:
		return "int"
	case FieldString:
		return "string"
	case FieldBool:
		return "bool"
	case FieldFloat:
		return "float"
	default:
		return "unknown"
	}
}

// Field is one named, typed column of an event record.
type Field struct {
	Name string
	Type FieldType
}

// Schema is the ordered list of fields every event on every trace must carry.
type Schema struct {
	fields []Field
	index  map[string]int
}

// New builds a Schema from an ordered field list. Field names must be unique.
func New(fields ...Field) (*Schema, error) {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("schema: field %d has an empty name", i)
		}
		if _, exists := idx[f.Name]; exists {
			return nil, fmt.Errorf("schema: duplicate field name %q", f.Name)
		}
		idx[f.Name] = i
	}
	cp := make([]Field, len(fields))
	copy(cp, fields)
	return &Schema{fields: cp, index: idx}, nil
}

// Fields returns the ordered field list.
func (s *Schema) Fields() []Field {
	return s.fields
}

// Index returns the position of a field by name, and whether it exists.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Has reports whether the schema declares a field with the given name.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Record is one event's field values, keyed by field name. A producer that
// supplies a record whose keys don't fit the schema has committed a runtime
// schema mismatch (§7) — Validate reports it so the producer can propagate
// it as a fatal error.
type Record map[string]any

// Validate checks that every key in the record is a declared schema field
// and that present values match the declared type where it can be checked
// cheaply (int/string/bool; float accepts int values too).
func (s *Schema) Validate(r Record) error {
	for name, v := range r {
		idx, ok := s.index[name]
		if !ok {
			return fmt.Errorf("schema: record has undeclared field %q", name)
		}
		if err := checkType(s.fields[idx].Type, v); err != nil {
			return fmt.Errorf("schema: field %q: %w", name, err)
		}
	}
	return nil
}

func checkType(t FieldType, v any) error {
	switch t {
	case FieldInt:
		switch v.(type) {
		case int, int32, int64, float64:
			return nil
		}
	case FieldString:
		if _, ok := v.(string); ok {
			return nil
		}
	case FieldBool:
		if _, ok := v.(bool); ok {
			return nil
		}
	case FieldFloat:
		switch v.(type) {
		case float32, float64, int:
			return nil
		}
	}
	return fmt.Errorf("value %v does not match declared type %s", v, t)
}
