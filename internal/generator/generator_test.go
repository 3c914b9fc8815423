package generator

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/moamenhredeen/oasc/internal/formschema"
	"github.com/moamenhredeen/oasc/internal/parser"
)

func ptrF(v float64) *float64 { return &v }
func ptrI(v int64) *int64     { return &v }

func TestGenerateValueNilSchema(t *testing.T) {
	if _, err := NewGenerator(1).GenerateValue(nil); err == nil {
		t.Fatal("expected an error for a nil schema")
	}
}

func TestGenerateScalars(t *testing.T) {
	g := NewGenerator(1)
	g.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

	tests := []struct {
		name   string
		schema *formschema.Schema
		want   any
	}{
		{"default wins", &formschema.Schema{Kind: formschema.KindString, Default: "x", HasDefault: true, Enum: []any{"y"}}, "x"},
		{"enum", &formschema.Schema{Kind: formschema.KindString, Enum: []any{"available", "sold"}}, "available"},
		{"boolean", &formschema.Schema{Kind: formschema.KindBoolean}, true},
		{"date", &formschema.Schema{Kind: formschema.KindString, Format: "date"}, "2026-03-04"},
		{"date-time", &formschema.Schema{Kind: formschema.KindString, Format: "date-time"}, "2026-03-04T05:06:07Z"},
		{"email", &formschema.Schema{Kind: formschema.KindString, Format: "email"}, "user@example.com"},
		{"uuid", &formschema.Schema{Kind: formschema.KindString, Format: "uuid"}, "123e4567-e89b-12d3-a456-426614174000"},
		{"fixed length", &formschema.Schema{Kind: formschema.KindString, MinLength: ptrI(3), MaxLength: ptrI(3)}, "aaa"},
		{"pinned integer", &formschema.Schema{Kind: formschema.KindInteger, Minimum: ptrF(7), Maximum: ptrF(7)}, int64(7)},
		{"exclusive integer", &formschema.Schema{Kind: formschema.KindInteger, ExclusiveMinimum: ptrF(4), ExclusiveMaximum: ptrF(6)}, int64(5)},
		{"null", &formschema.Schema{Kind: formschema.KindNull}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.GenerateValue(tt.schema)
			if err != nil {
				t.Fatalf("GenerateValue() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("GenerateValue() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestGenerateNumbersRespectBounds(t *testing.T) {
	g := NewGenerator(42)
	schema := &formschema.Schema{Kind: formschema.KindInteger, Minimum: ptrF(1), Maximum: ptrF(100)}

	for i := 0; i < 200; i++ {
		v, _ := g.GenerateValue(schema)
		n, ok := v.(int64)
		if !ok {
			t.Fatalf("value %#v is not an int64", v)
		}
		if n < 1 || n > 100 {
			t.Fatalf("value %d outside [1, 100]", n)
		}
	}

	num := &formschema.Schema{Kind: formschema.KindNumber, ExclusiveMinimum: ptrF(0), Maximum: ptrF(1)}
	for i := 0; i < 200; i++ {
		v, _ := g.GenerateValue(num)
		f := v.(float64)
		if f <= 0 || f > 1 {
			t.Fatalf("value %v outside (0, 1]", f)
		}
	}
}

func TestGenerateSameSeedSameValues(t *testing.T) {
	schema := &formschema.Schema{
		Kind:  formschema.KindArray,
		Items: &formschema.Schema{Kind: formschema.KindNumber},
	}

	a, _ := NewGenerator(9).GenerateValue(schema)
	b, _ := NewGenerator(9).GenerateValue(schema)

	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if string(ja) != string(jb) {
		t.Errorf("same seed produced %s and %s", ja, jb)
	}
}

func TestGenerateArrayBounds(t *testing.T) {
	g := NewGenerator(3)
	schema := &formschema.Schema{
		Kind:     formschema.KindArray,
		MinItems: ptrI(2),
		MaxItems: ptrI(2),
		Items:    &formschema.Schema{Kind: formschema.KindString, Enum: []any{"a"}},
	}

	v, _ := g.GenerateValue(schema)
	items, ok := v.([]any)
	if !ok || len(items) != 2 || items[0] != "a" {
		t.Errorf("GenerateValue() = %#v", v)
	}
}

func TestGenerateComposed(t *testing.T) {
	g := NewGenerator(1)

	oneOf := &formschema.Schema{
		Kind:        formschema.KindComposed,
		Composition: formschema.OneOf,
		Variants: []*formschema.Schema{
			{Kind: formschema.KindBoolean},
			{Kind: formschema.KindString},
		},
	}
	if v, _ := g.GenerateValue(oneOf); v != true {
		t.Errorf("oneOf = %#v, want first variant", v)
	}

	allOf := &formschema.Schema{
		Kind:        formschema.KindComposed,
		Composition: formschema.AllOf,
		Variants: []*formschema.Schema{
			{Kind: formschema.KindObject, Required: []string{"a"}, Properties: []formschema.Property{{Name: "a", Schema: &formschema.Schema{Kind: formschema.KindBoolean}}}},
			{Kind: formschema.KindObject, Required: []string{"b"}, Properties: []formschema.Property{{Name: "b", Schema: &formschema.Schema{Kind: formschema.KindString, Enum: []any{"x"}}}}},
		},
	}
	v, _ := g.GenerateValue(allOf)
	obj, ok := v.(map[string]any)
	if !ok || obj["a"] != true || obj["b"] != "x" {
		t.Errorf("allOf = %#v", v)
	}
}

func TestGenerateBodyFromPetstore(t *testing.T) {
	p, err := parser.ParseFile("../../testdata/petstore.yaml")
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	details, err := p.GetOperationDetails("/pets", "post")
	if err != nil {
		t.Fatalf("GetOperationDetails: %v", err)
	}
	schema, _, ok := formschema.BodySchema(details)
	if !ok {
		t.Fatal("POST /pets has no JSON body")
	}

	body, err := NewGenerator(1).GenerateBody(schema)
	if err != nil {
		t.Fatalf("GenerateBody: %v", err)
	}

	var pet map[string]any
	if err := json.Unmarshal(body, &pet); err != nil {
		t.Fatalf("generated body is not JSON: %v\n%s", err, body)
	}
	if len(pet) != 2 {
		t.Errorf("only required properties expected, got %v", pet)
	}
	if _, ok := pet["id"].(float64); !ok {
		t.Errorf("id = %#v", pet["id"])
	}
	if name, ok := pet["name"].(string); !ok || name == "" {
		t.Errorf("name = %#v", pet["name"])
	}

	g := NewGenerator(1)
	g.Optional = true
	body, _ = g.GenerateBody(schema)
	pet = nil
	if err := json.Unmarshal(body, &pet); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"id", "name", "tag", "labels", "metadata"} {
		if _, ok := pet[key]; !ok {
			t.Errorf("optional property %s missing from %v", key, pet)
		}
	}
}

func TestGenerateParams(t *testing.T) {
	schema := &formschema.Schema{
		Kind:     formschema.KindObject,
		Required: []string{"petId", "status"},
		Properties: []formschema.Property{
			{Name: "petId", Schema: &formschema.Schema{Kind: formschema.KindInteger, Minimum: ptrF(42), Maximum: ptrF(42)}},
			{Name: "status", Schema: &formschema.Schema{Kind: formschema.KindArray, MinItems: ptrI(2), MaxItems: ptrI(2), Items: &formschema.Schema{Kind: formschema.KindString, Enum: []any{"sold"}}}},
			{Name: "verbose", Schema: &formschema.Schema{Kind: formschema.KindBoolean}},
		},
	}

	got := NewGenerator(1).GenerateParams(schema)
	if len(got) != 2 || got["petId"] != "42" || got["status"] != "sold,sold" {
		t.Errorf("GenerateParams() = %v", got)
	}

	g := NewGenerator(1)
	g.Optional = true
	if got := g.GenerateParams(schema); got["verbose"] != "true" {
		t.Errorf("optional params = %v", got)
	}
}

func TestFormatParam(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{int64(3), "3"},
		{2.5, "2.5"},
		{true, "true"},
		{[]any{"a", int64(1)}, "a,1"},
		{map[string]any{"k": "v"}, `{"k":"v"}`},
	}
	for _, tt := range tests {
		if got := FormatParam(tt.in); got != tt.want {
			t.Errorf("FormatParam(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
