package mfconfig

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Kind tells which representation a Value holds.
type Kind int

const (
	// KindNone is the zero Value: no config supplied.
	KindNone Kind = iota
	// KindStructured is an already structured mapping.
	KindStructured
	// KindText is a YAML document that still has to be parsed.
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindStructured:
		return "structured"
	case KindText:
		return "text"
	default:
		return "none"
	}
}

// Value is a MetricFlow configuration in one of its two accepted shapes.
// Construct it with Structured, Text or FromAny. The zero Value means no
// configuration was supplied.
type Value struct {
	kind    Kind
	mapping map[string]any
	text    string
}

// Structured wraps an already structured mapping. The mapping is used as is;
// it is not copied.
func Structured(m map[string]any) Value {
	return Value{kind: KindStructured, mapping: m}
}

// Text wraps a YAML document describing a mapping.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// FromAny converts a dynamically typed config to a Value. A nil input yields
// the zero Value. Anything other than a string-keyed mapping, a string or a
// byte slice is rejected with ErrUnsupportedValue.
func FromAny(v any) (Value, error) {
	switch c := v.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return c, nil
	case map[string]any:
		return Structured(c), nil
	case map[string]string:
		m := make(map[string]any, len(c))
		for k, s := range c {
			m[k] = s
		}
		return Structured(m), nil
	case string:
		return Text(c), nil
	case []byte:
		return Text(string(c)), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// Kind returns the representation held by v.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether v carries no configuration. Empty mappings and empty
// text count as not supplied.
func (v Value) IsZero() bool {
	switch v.kind {
	case KindStructured:
		return len(v.mapping) == 0
	case KindText:
		return v.text == ""
	default:
		return true
	}
}

// Normalize returns the mapping described by v. Text is parsed as a single
// YAML document; parse failures, including documents that are not a mapping,
// are returned as *ParseError. A document with no content yields an empty
// mapping.
func (v Value) Normalize() (map[string]any, error) {
	switch v.kind {
	case KindStructured:
		return v.mapping, nil
	case KindText:
		return parseText(v.text)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedValue, v.kind)
	}
}

func parseText(s string) (map[string]any, error) {
	var m map[string]any
	if err := yaml.Unmarshal([]byte(s), &m); err != nil {
		return nil, &ParseError{Err: err}
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}
