// Package formschema maps OpenAPI schemas into a closed set of form-field
// kinds, serialized as draft-7 shaped JSON Schema with widget hints.
package formschema

import (
	"bytes"
	"encoding/json"
)

// Kind is the form-field kind of a schema node
type Kind int

const (
	KindAny Kind = iota
	KindString
	KindNumber
	KindInteger
	KindBoolean
	KindObject
	KindArray
	KindComposed
	KindNull
)

var kindNames = [...]string{"any", "string", "number", "integer", "boolean", "object", "array", "composed", "null"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// jsonType is the JSON Schema "type" of the kind, empty when it has none
func (k Kind) jsonType() string {
	switch k {
	case KindString, KindNumber, KindInteger, KindBoolean, KindObject, KindArray, KindNull:
		return k.String()
	}
	return ""
}

// Widget is a rendering hint for a field
type Widget string

const (
	WidgetText        Widget = "text"
	WidgetSelect      Widget = "select"
	WidgetMultiSelect Widget = "multiselect"
	WidgetTags        Widget = "tags"
	WidgetCheckbox    Widget = "checkbox"
	WidgetNumber      Widget = "number"
	WidgetRawJSON     Widget = "rawjson"
)

// Composition names the combinator of a composed schema
type Composition string

const (
	OneOf Composition = "oneOf"
	AnyOf Composition = "anyOf"
	AllOf Composition = "allOf"
)

// Property is one named member of an object schema
type Property struct {
	Name   string
	Schema *Schema
}

// Schema is a form-oriented view of an OpenAPI schema
type Schema struct {
	Kind        Kind
	Title       string
	Description string
	Format      string
	Pattern     string
	Enum        []any
	Default     any
	HasDefault  bool
	Nullable    bool
	Widget      Widget

	Minimum          *float64
	Maximum          *float64
	ExclusiveMinimum *float64
	ExclusiveMaximum *float64
	MinLength        *int64
	MaxLength        *int64
	MinItems         *int64
	MaxItems         *int64

	Properties           []Property
	Required             []string
	AdditionalProperties *bool

	Items *Schema

	Composition Composition
	Variants    []*Schema
}

// Property returns the named property schema, or nil
func (s *Schema) Property(name string) *Schema {
	for _, p := range s.Properties {
		if p.Name == name {
			return p.Schema
		}
	}
	return nil
}

// IsRequired reports whether name is listed as required
func (s *Schema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// MarshalJSON writes the schema with keys in a fixed order and properties in
// declaration order.
func (s *Schema) MarshalJSON() ([]byte, error) {
	w := &objectWriter{}
	w.buf.WriteByte('{')

	if t := s.Kind.jsonType(); t != "" {
		if s.Nullable && s.Kind != KindNull {
			w.field("type", []string{t, "null"})
		} else {
			w.field("type", t)
		}
	}
	w.optString("title", s.Title)
	w.optString("description", s.Description)
	w.optString("format", s.Format)
	w.optString("pattern", s.Pattern)
	if len(s.Enum) > 0 {
		w.field("enum", s.Enum)
	}
	if s.HasDefault {
		w.field("default", s.Default)
	}
	w.optFloat("minimum", s.Minimum)
	w.optFloat("maximum", s.Maximum)
	w.optFloat("exclusiveMinimum", s.ExclusiveMinimum)
	w.optFloat("exclusiveMaximum", s.ExclusiveMaximum)
	w.optInt("minLength", s.MinLength)
	w.optInt("maxLength", s.MaxLength)
	w.optInt("minItems", s.MinItems)
	w.optInt("maxItems", s.MaxItems)

	if s.Kind == KindObject {
		w.key("properties")
		w.buf.WriteByte('{')
		for i, p := range s.Properties {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			w.raw(p.Name)
			w.buf.WriteByte(':')
			w.value(p.Schema)
		}
		w.buf.WriteByte('}')
		if len(s.Required) > 0 {
			w.field("required", s.Required)
		}
	}
	if s.AdditionalProperties != nil {
		w.field("additionalProperties", *s.AdditionalProperties)
	}
	if s.Items != nil {
		w.field("items", s.Items)
	}
	if s.Composition != "" && len(s.Variants) > 0 {
		w.field(string(s.Composition), s.Variants)
	}
	if s.Widget != "" {
		w.field("ui:widget", s.Widget)
	}

	w.buf.WriteByte('}')
	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

type objectWriter struct {
	buf    bytes.Buffer
	fields int
	err    error
}

func (w *objectWriter) key(name string) {
	if w.fields > 0 {
		w.buf.WriteByte(',')
	}
	w.fields++
	w.raw(name)
	w.buf.WriteByte(':')
}

func (w *objectWriter) raw(s string) {
	b, _ := json.Marshal(s)
	w.buf.Write(b)
}

func (w *objectWriter) value(v any) {
	if w.err != nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		w.err = err
		return
	}
	w.buf.Write(b)
}

func (w *objectWriter) field(name string, v any) {
	w.key(name)
	w.value(v)
}

func (w *objectWriter) optString(name, v string) {
	if v != "" {
		w.field(name, v)
	}
}

func (w *objectWriter) optFloat(name string, v *float64) {
	if v != nil {
		w.field(name, *v)
	}
}

func (w *objectWriter) optInt(name string, v *int64) {
	if v != nil {
		w.field(name, *v)
	}
}
