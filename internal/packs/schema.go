// ABOUTME: Minimal JSON Schema subset used to validate tool arguments.
// ABOUTME: Supports object schemas with typed properties, required fields, enums, and numeric bounds.

package packs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrInvalidParams indicates tool arguments do not satisfy the tool's schema.
var ErrInvalidParams = errors.New("invalid params")

// ParamError names the argument that failed validation.
type ParamError struct {
	Field  string
	Reason string
}

func (e *ParamError) Error() string {
	if e.Field == "" {
		return "invalid params: " + e.Reason
	}
	return fmt.Sprintf("invalid params: %s %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidParams.
func (e *ParamError) Unwrap() error {
	return ErrInvalidParams
}

// InvalidParam builds a ParamError for a field.
func InvalidParam(field, reason string) error {
	return &ParamError{Field: field, Reason: reason}
}

var validPropertyTypes = map[string]bool{
	"string":  true,
	"integer": true,
	"number":  true,
	"boolean": true,
	"object":  true,
	"array":   true,
}

// Schema is the subset of JSON Schema accepted for tool inputs.
type Schema struct {
	Type       string               `json:"type"`
	Properties map[string]*Property `json:"properties"`
	Required   []string             `json:"required"`
}

// Property describes one tool argument.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []any    `json:"enum,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
	Format      string   `json:"format,omitempty"`
}

// CompileSchema parses and checks a tool input schema. It must be an object
// schema whose required fields are all declared as properties.
func CompileSchema(raw string) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("parsing input schema: %w", err)
	}
	if s.Type != "object" {
		return nil, fmt.Errorf("input schema type must be object, got %q", s.Type)
	}
	for name, p := range s.Properties {
		if p == nil || !validPropertyTypes[p.Type] {
			return nil, fmt.Errorf("property %q has unsupported type", name)
		}
	}
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; !ok {
			return nil, fmt.Errorf("required field %q is not a declared property", name)
		}
	}
	return &s, nil
}

// Validate checks arguments against the schema. Unknown fields are ignored and
// null optional fields are treated as absent.
func (s *Schema) Validate(input json.RawMessage) error {
	trimmed := bytes.TrimSpace(input)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var args any
	if err := dec.Decode(&args); err != nil {
		return InvalidParam("", "arguments must be valid JSON")
	}
	obj, ok := args.(map[string]any)
	if !ok {
		return InvalidParam("", "arguments must be an object")
	}

	for _, name := range s.Required {
		if v, present := obj[name]; !present || v == nil {
			return InvalidParam(name, "is required")
		}
	}

	// Check in sorted order so the reported field is stable.
	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop, declared := s.Properties[name]
		v := obj[name]
		if !declared || v == nil {
			continue
		}
		if err := prop.check(name, v); err != nil {
			return err
		}
	}
	return nil
}

func (p *Property) check(name string, v any) error {
	switch p.Type {
	case "string":
		if _, ok := v.(string); !ok {
			return InvalidParam(name, "must be a string")
		}
	case "integer":
		n, ok := v.(json.Number)
		if !ok {
			return InvalidParam(name, "must be an integer")
		}
		if _, err := n.Int64(); err != nil {
			return InvalidParam(name, "must be an integer")
		}
	case "number":
		if _, ok := v.(json.Number); !ok {
			return InvalidParam(name, "must be a number")
		}
	case "boolean":
		if _, ok := v.(bool); !ok {
			return InvalidParam(name, "must be a boolean")
		}
	case "object":
		if _, ok := v.(map[string]any); !ok {
			return InvalidParam(name, "must be an object")
		}
	case "array":
		if _, ok := v.([]any); !ok {
			return InvalidParam(name, "must be an array")
		}
	}

	if len(p.Enum) > 0 && !p.inEnum(v) {
		return InvalidParam(name, "must be one of: "+p.enumList())
	}

	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return InvalidParam(name, "must be a finite number")
		}
		if p.Minimum != nil && f < *p.Minimum {
			return InvalidParam(name, fmt.Sprintf("must be >= %v", *p.Minimum))
		}
		if p.Maximum != nil && f > *p.Maximum {
			return InvalidParam(name, fmt.Sprintf("must be <= %v", *p.Maximum))
		}
	}

	return nil
}

func (p *Property) inEnum(v any) bool {
	s, isString := v.(string)
	for _, allowed := range p.Enum {
		if as, ok := allowed.(string); ok && isString && as == s {
			return true
		}
	}
	return false
}

func (p *Property) enumList() string {
	parts := make([]string, len(p.Enum))
	for i, e := range p.Enum {
		parts[i] = fmt.Sprint(e)
	}
	return strings.Join(parts, ", ")
}
