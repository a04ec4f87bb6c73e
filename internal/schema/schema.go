// Package schema describes and validates capability parameter objects.
// A schema serves two purposes: validating parameter sets produced by the
// resolver tiers, and exporting the tool-input form the function-calling
// tier sends to the completion service.
package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldType enumerates the supported parameter field types.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

// Field describes a single parameter field.
type Field struct {
	// Type is the expected value type.
	Type FieldType
	// Description documents the field for the function-calling schema.
	Description string
	// Required marks the field as mandatory.
	Required bool
	// Enum restricts string values (or array-of-string items) to this set.
	Enum []string
	// Patterns restricts string values to match at least one expression.
	Patterns []string
	// Minimum and Maximum bound numeric values when set.
	Minimum *float64
	// Maximum bounds numeric values when set.
	Maximum *float64
	// MaxItems bounds array length when > 0.
	MaxItems int
	// Default is applied by Normalize when the field is absent.
	Default any

	compiled []*regexp.Regexp
}

// Object is an ordered collection of named fields. Order matters for
// deterministic tool-schema export and error messages.
type Object struct {
	names  []string
	fields map[string]*Field
}

// New creates an empty parameter schema.
func New() *Object {
	return &Object{fields: make(map[string]*Field)}
}

// Add registers a field and returns the schema for chaining.
// Pattern expressions are compiled here; a bad pattern panics, since
// schemas are declared statically at startup.
func (o *Object) Add(name string, f Field) *Object {
	for _, p := range f.Patterns {
		f.compiled = append(f.compiled, regexp.MustCompile(p))
	}
	if _, exists := o.fields[name]; !exists {
		o.names = append(o.names, name)
	}
	o.fields[name] = &f
	return o
}

// Fields returns the field names in declaration order.
func (o *Object) Fields() []string {
	return append([]string(nil), o.names...)
}

// Required returns the names of required fields in declaration order.
func (o *Object) Required() []string {
	var req []string
	for _, name := range o.names {
		if o.fields[name].Required {
			req = append(req, name)
		}
	}
	return req
}

// ValidationError reports why a parameter object failed validation.
type ValidationError struct {
	// Field is the offending field name, empty for object-level problems.
	Field string
	// Reason is a human-readable description.
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid params: " + e.Reason
	}
	return fmt.Sprintf("invalid param %q: %s", e.Field, e.Reason)
}

// Normalize validates params against the schema and returns a cleaned copy:
// defaults applied, unknown keys dropped, integer values coerced from JSON
// float64. The input map is never mutated.
func (o *Object) Normalize(params map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(o.names))

	for _, name := range o.names {
		f := o.fields[name]
		raw, present := params[name]
		if !present || raw == nil {
			if f.Default != nil {
				out[name] = f.Default
				continue
			}
			if f.Required {
				return nil, &ValidationError{Field: name, Reason: "required field missing"}
			}
			continue
		}

		val, err := f.check(name, raw)
		if err != nil {
			return nil, err
		}
		out[name] = val
	}

	return out, nil
}

// Validate checks params against the schema without producing a copy.
func (o *Object) Validate(params map[string]any) error {
	_, err := o.Normalize(params)
	return err
}

// check validates a single value against the field, coercing where JSON
// decoding loses type information.
func (f *Field) check(name string, raw any) (any, error) {
	switch f.Type {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, &ValidationError{Field: name, Reason: fmt.Sprintf("expected string, got %T", raw)}
		}
		if len(f.Enum) > 0 && !contains(f.Enum, s) {
			return nil, &ValidationError{Field: name, Reason: fmt.Sprintf("%q is not one of [%s]", s, strings.Join(f.Enum, ", "))}
		}
		if len(f.compiled) > 0 && !matchesAny(f.compiled, s) {
			return nil, &ValidationError{Field: name, Reason: fmt.Sprintf("%q does not match any accepted format", s)}
		}
		return s, nil

	case TypeInteger:
		n, ok := asNumber(raw)
		if !ok || n != float64(int64(n)) {
			return nil, &ValidationError{Field: name, Reason: fmt.Sprintf("expected integer, got %v", raw)}
		}
		if err := f.checkBounds(name, n); err != nil {
			return nil, err
		}
		return int(n), nil

	case TypeNumber:
		n, ok := asNumber(raw)
		if !ok {
			return nil, &ValidationError{Field: name, Reason: fmt.Sprintf("expected number, got %T", raw)}
		}
		if err := f.checkBounds(name, n); err != nil {
			return nil, err
		}
		return n, nil

	case TypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, &ValidationError{Field: name, Reason: fmt.Sprintf("expected boolean, got %T", raw)}
		}
		return b, nil

	case TypeArray:
		items, err := asStringSlice(raw)
		if err != nil {
			return nil, &ValidationError{Field: name, Reason: err.Error()}
		}
		if f.MaxItems > 0 && len(items) > f.MaxItems {
			return nil, &ValidationError{Field: name, Reason: fmt.Sprintf("at most %d items allowed, got %d", f.MaxItems, len(items))}
		}
		if len(f.Enum) > 0 {
			for _, item := range items {
				if !contains(f.Enum, item) {
					return nil, &ValidationError{Field: name, Reason: fmt.Sprintf("item %q is not one of [%s]", item, strings.Join(f.Enum, ", "))}
				}
			}
		}
		return items, nil

	case TypeObject:
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, &ValidationError{Field: name, Reason: fmt.Sprintf("expected object, got %T", raw)}
		}
		return m, nil

	default:
		return nil, &ValidationError{Field: name, Reason: fmt.Sprintf("unsupported field type %q", f.Type)}
	}
}

func (f *Field) checkBounds(name string, n float64) error {
	if f.Minimum != nil && n < *f.Minimum {
		return &ValidationError{Field: name, Reason: fmt.Sprintf("%v is below minimum %v", n, *f.Minimum)}
	}
	if f.Maximum != nil && n > *f.Maximum {
		return &ValidationError{Field: name, Reason: fmt.Sprintf("%v is above maximum %v", n, *f.Maximum)}
	}
	return nil
}

// ToolProperties exports the schema in the JSON-schema property form the
// function-calling API expects.
func (o *Object) ToolProperties() map[string]any {
	props := make(map[string]any, len(o.names))
	for _, name := range o.names {
		f := o.fields[name]
		p := map[string]any{"type": string(f.Type)}
		if f.Description != "" {
			p["description"] = f.Description
		}
		if len(f.Enum) > 0 {
			if f.Type == TypeArray {
				p["items"] = map[string]any{"type": "string", "enum": f.Enum}
			} else {
				p["enum"] = f.Enum
			}
		} else if f.Type == TypeArray {
			p["items"] = map[string]any{"type": "string"}
		}
		if f.Minimum != nil {
			p["minimum"] = *f.Minimum
		}
		if f.Maximum != nil {
			p["maximum"] = *f.Maximum
		}
		if f.Default != nil {
			p["default"] = f.Default
		}
		props[name] = p
	}
	return props
}

// Ptr returns a pointer to v, for bounds declarations.
func Ptr(v float64) *float64 {
	return &v
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func asNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func asStringSlice(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected array of strings, got %T element", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected array, got %T", raw)
	}
}
