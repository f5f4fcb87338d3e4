package tagbot

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// Value is a node of a structured tag document. The set of node kinds is
// closed: StringValue, DocumentValue, ListValue and ScalarValue. Code that
// needs to branch on the kind implements ValueVisitor, which forces every
// kind to be handled.
type Value interface {
	// Accept dispatches to the visitor method for this kind and returns its result.
	Accept(v ValueVisitor) Value

	// Interface converts the value back to plain Go data
	// (string, map[string]any, []any, json.Number, bool or nil).
	Interface() any

	isValue()
}

// ValueVisitor transforms a Value. Implementations return a new value and
// must not modify their input.
type ValueVisitor interface {
	VisitString(s StringValue) Value
	VisitDocument(d DocumentValue) Value
	VisitList(l ListValue) Value
	VisitScalar(s ScalarValue) Value
}

// StringValue is a JSON string.
type StringValue string

// DocumentValue is a JSON object.
type DocumentValue map[string]Value

// ListValue is a JSON array.
type ListValue []Value

// ScalarValue is a JSON number, boolean or null. Numbers keep their exact
// textual form as json.Number.
type ScalarValue struct {
	raw any
}

// NewScalar wraps a number, boolean or nil.
func NewScalar(raw any) ScalarValue {
	return ScalarValue{raw: raw}
}

func (StringValue) isValue()   {}
func (DocumentValue) isValue() {}
func (ListValue) isValue()     {}
func (ScalarValue) isValue()   {}

// Accept implements Value.
func (s StringValue) Accept(v ValueVisitor) Value { return v.VisitString(s) }

// Accept implements Value.
func (d DocumentValue) Accept(v ValueVisitor) Value { return v.VisitDocument(d) }

// Accept implements Value.
func (l ListValue) Accept(v ValueVisitor) Value { return v.VisitList(l) }

// Accept implements Value.
func (s ScalarValue) Accept(v ValueVisitor) Value { return v.VisitScalar(s) }

// Interface implements Value.
func (s StringValue) Interface() any { return string(s) }

// Interface implements Value.
func (d DocumentValue) Interface() any {
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = v.Interface()
	}
	return out
}

// Interface implements Value.
func (l ListValue) Interface() any {
	out := make([]any, len(l))
	for i, v := range l {
		out[i] = v.Interface()
	}
	return out
}

// Interface implements Value.
func (s ScalarValue) Interface() any { return s.raw }

// Has reports whether the document holds key.
func (d DocumentValue) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// MarshalJSON encodes the document as a JSON object.
func (d DocumentValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Interface())
}

// FromInterface converts decoded JSON data into a Value. Types outside the
// JSON data model become null scalars.
func FromInterface(data any) Value {
	switch v := data.(type) {
	case string:
		return StringValue(v)
	case map[string]any:
		doc := make(DocumentValue, len(v))
		for k, item := range v {
			doc[k] = FromInterface(item)
		}
		return doc
	case []any:
		list := make(ListValue, len(v))
		for i, item := range v {
			list[i] = FromInterface(item)
		}
		return list
	case json.Number, bool, nil:
		return NewScalar(v)
	case float64, int, int64:
		return NewScalar(v)
	default:
		return NewScalar(nil)
	}
}

// ParseDocument decodes raw as a single JSON object. It reports false for
// anything else (invalid JSON, trailing data, or a non-object root such as a
// bare number or string), which callers treat as plain text.
func ParseDocument(raw string) (DocumentValue, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed[0] != '{' {
		return nil, false
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, false
	}
	if data == nil {
		return nil, false
	}

	return FromInterface(data).(DocumentValue), true
}
