package tagbot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{name: "object", raw: `{"content": "x"}`, ok: true},
		{name: "object with surrounding space", raw: "  \n{\"a\": 1}\t", ok: true},
		{name: "empty object", raw: `{}`, ok: true},
		{name: "empty", raw: "", ok: false},
		{name: "plain text", raw: "hello", ok: false},
		{name: "number", raw: "12", ok: false},
		{name: "string", raw: `"x"`, ok: false},
		{name: "array", raw: `[{"a": 1}]`, ok: false},
		{name: "null", raw: "null", ok: false},
		{name: "unterminated", raw: `{"a": 1`, ok: false},
		{name: "two objects", raw: `{"a": 1}{"b": 2}`, ok: false},
		{name: "brace text", raw: "{user} says hi", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, ok := ParseDocument(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.NotNil(t, doc)
			} else {
				assert.Nil(t, doc)
			}
		})
	}
}

func TestParseDocument_Kinds(t *testing.T) {
	doc, ok := ParseDocument(`{"s": "x", "n": 1.50, "b": true, "z": null, "l": ["a", 2], "d": {"k": "v"}}`)
	require.True(t, ok)

	assert.Equal(t, StringValue("x"), doc["s"])
	assert.Equal(t, NewScalar(json.Number("1.50")), doc["n"])
	assert.Equal(t, NewScalar(true), doc["b"])
	assert.Equal(t, NewScalar(nil), doc["z"])
	assert.Equal(t, ListValue{StringValue("a"), NewScalar(json.Number("2"))}, doc["l"])
	assert.Equal(t, DocumentValue{"k": StringValue("v")}, doc["d"])

	assert.True(t, doc.Has("z"))
	assert.False(t, doc.Has("missing"))
}

func TestDocumentValue_MarshalJSON(t *testing.T) {
	doc, ok := ParseDocument(`{"n": 1.50, "l": [true, null], "d": {"k": "v"}}`)
	require.True(t, ok)

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n": 1.50, "l": [true, null], "d": {"k": "v"}}`, string(data))
	assert.Contains(t, string(data), "1.50")
}

func TestFromInterface(t *testing.T) {
	t.Run("unsupported types become null", func(t *testing.T) {
		assert.Equal(t, NewScalar(nil), FromInterface(struct{}{}))
	})

	t.Run("round trip through Interface", func(t *testing.T) {
		data := map[string]any{
			"a": "x",
			"b": []any{"y", true},
			"c": map[string]any{"d": nil},
		}
		assert.Equal(t, data, FromInterface(data).Interface())
	})
}

type kindCounter struct {
	strings, documents, lists, scalars int
}

func (k *kindCounter) VisitString(s StringValue) Value {
	k.strings++
	return s
}

func (k *kindCounter) VisitDocument(d DocumentValue) Value {
	k.documents++
	for _, v := range d {
		v.Accept(k)
	}
	return d
}

func (k *kindCounter) VisitList(l ListValue) Value {
	k.lists++
	for _, v := range l {
		v.Accept(k)
	}
	return l
}

func (k *kindCounter) VisitScalar(s ScalarValue) Value {
	k.scalars++
	return s
}

func TestValue_Accept(t *testing.T) {
	doc, ok := ParseDocument(`{"a": "x", "b": [1, "y", {"c": false}], "d": null}`)
	require.True(t, ok)

	counter := &kindCounter{}
	doc.Accept(counter)

	assert.Equal(t, 2, counter.documents)
	assert.Equal(t, 1, counter.lists)
	assert.Equal(t, 2, counter.strings)
	assert.Equal(t, 3, counter.scalars)
}
