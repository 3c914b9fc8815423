package formschema

import (
	"strings"

	"github.com/pb33f/libopenapi/datamodel/high/base"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"

	"github.com/moamenhredeen/oasc/internal/parser"
)

// JSONMediaType is reported for every JSON-like request body
const JSONMediaType = "application/json"

// maxDepth bounds nesting of schemas that do not reference themselves
const maxDepth = 32

type nodeDecoder interface {
	Decode(v any) error
}

func decodeNode(n nodeDecoder) (any, bool) {
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

// trail holds the schemas on the current conversion path. A schema met
// again below itself converts to a free-form value.
type trail struct {
	refs    map[string]bool
	schemas map[*base.Schema]bool
}

func newTrail() *trail {
	return &trail{refs: make(map[string]bool), schemas: make(map[*base.Schema]bool)}
}

// FromSchema converts an OpenAPI schema into its form view
func FromSchema(s *base.Schema) *Schema {
	return convert(s, 0, newTrail())
}

func fromProxy(p *base.SchemaProxy, depth int, tr *trail) *Schema {
	if p == nil {
		return anySchema()
	}
	if ref := p.GetReference(); ref != "" {
		if tr.refs[ref] {
			return anySchema()
		}
		tr.refs[ref] = true
		defer delete(tr.refs, ref)
	}
	return convert(p.Schema(), depth, tr)
}

func anySchema() *Schema {
	return &Schema{Kind: KindAny, Widget: WidgetRawJSON}
}

func convert(s *base.Schema, depth int, tr *trail) *Schema {
	if s == nil || depth > maxDepth || tr.schemas[s] {
		return anySchema()
	}
	tr.schemas[s] = true
	defer delete(tr.schemas, s)

	if flat := flattenNullable(s, depth, tr); flat != nil {
		return flat
	}

	out := &Schema{
		Kind:        kindOf(s),
		Title:       s.Title,
		Description: s.Description,
		Format:      s.Format,
		Pattern:     s.Pattern,
		Minimum:     s.Minimum,
		Maximum:     s.Maximum,
		MinLength:   s.MinLength,
		MaxLength:   s.MaxLength,
		MinItems:    s.MinItems,
		MaxItems:    s.MaxItems,
		Nullable:    isNullable(s),
	}

	for _, node := range s.Enum {
		if node == nil {
			continue
		}
		if v, ok := decodeNode(node); ok {
			out.Enum = append(out.Enum, v)
		}
	}
	if s.Default != nil {
		out.Default, out.HasDefault = decodeNode(s.Default)
	}

	// boolean exclusive bounds (OpenAPI 3.0) turn the inclusive bound exclusive
	if b := s.ExclusiveMinimum; b != nil {
		if b.IsA() && b.A && out.Minimum != nil {
			out.ExclusiveMinimum, out.Minimum = out.Minimum, nil
		} else if b.IsB() {
			v := b.B
			out.ExclusiveMinimum = &v
		}
	}
	if b := s.ExclusiveMaximum; b != nil {
		if b.IsA() && b.A && out.Maximum != nil {
			out.ExclusiveMaximum, out.Maximum = out.Maximum, nil
		} else if b.IsB() {
			v := b.B
			out.ExclusiveMaximum = &v
		}
	}

	switch out.Kind {
	case KindObject:
		if s.Properties != nil {
			for pair := s.Properties.First(); pair != nil; pair = pair.Next() {
				out.Properties = append(out.Properties, Property{
					Name:   pair.Key(),
					Schema: fromProxy(pair.Value(), depth+1, tr),
				})
			}
		}
		out.Required = append(out.Required, s.Required...)
		if ap := s.AdditionalProperties; ap != nil {
			allowed := true
			if ap.IsB() {
				allowed = ap.B
			}
			out.AdditionalProperties = &allowed
		}
	case KindArray:
		if s.Items != nil && s.Items.IsA() {
			out.Items = fromProxy(s.Items.A, depth+1, tr)
		} else {
			out.Items = anySchema()
		}
	case KindComposed:
		out.Composition, out.Variants = composition(s, depth, tr)
	}

	out.Widget = widgetFor(out)
	return out
}

// flattenNullable collapses anyOf [X, {type: null}] into X marked nullable.
// The parent's title, description and default win over the variant's.
func flattenNullable(s *base.Schema, depth int, tr *trail) *Schema {
	if len(s.AnyOf) < 2 {
		return nil
	}

	var nonNull *base.SchemaProxy
	count := 0
	for _, proxy := range s.AnyOf {
		if proxy == nil {
			continue
		}
		if isNullType(proxy.Schema()) {
			continue
		}
		count++
		nonNull = proxy
	}
	if count != 1 || nonNull == nil {
		return nil
	}

	out := fromProxy(nonNull, depth+1, tr)
	out.Nullable = true
	if s.Title != "" {
		out.Title = s.Title
	}
	if s.Description != "" {
		out.Description = s.Description
	}
	if s.Default != nil {
		out.Default, out.HasDefault = decodeNode(s.Default)
	}
	return out
}

func isNullType(s *base.Schema) bool {
	return s != nil && len(s.Type) == 1 && s.Type[0] == "null"
}

func isNullable(s *base.Schema) bool {
	if s.Nullable != nil && *s.Nullable {
		return true
	}
	for _, t := range s.Type {
		if t == "null" {
			return true
		}
	}
	return false
}

func kindOf(s *base.Schema) Kind {
	var types []string
	for _, t := range s.Type {
		if t != "null" {
			types = append(types, t)
		}
	}

	if len(types) == 0 {
		switch {
		case len(s.Type) > 0:
			return KindNull
		case s.Properties != nil && s.Properties.Len() > 0:
			return KindObject
		case s.Items != nil:
			return KindArray
		case len(s.OneOf) > 0 || len(s.AnyOf) > 0 || len(s.AllOf) > 0:
			return KindComposed
		}
		return KindAny
	}
	if len(types) > 1 {
		return KindAny
	}

	switch types[0] {
	case "string":
		return KindString
	case "number":
		return KindNumber
	case "integer":
		return KindInteger
	case "boolean":
		return KindBoolean
	case "object":
		return KindObject
	case "array":
		return KindArray
	}
	return KindAny
}

func composition(s *base.Schema, depth int, tr *trail) (Composition, []*Schema) {
	var kind Composition
	var proxies []*base.SchemaProxy
	switch {
	case len(s.OneOf) > 0:
		kind, proxies = OneOf, s.OneOf
	case len(s.AnyOf) > 0:
		kind, proxies = AnyOf, s.AnyOf
	default:
		kind, proxies = AllOf, s.AllOf
	}

	variants := make([]*Schema, 0, len(proxies))
	for _, p := range proxies {
		variants = append(variants, fromProxy(p, depth+1, tr))
	}
	return kind, variants
}

func widgetFor(s *Schema) Widget {
	if len(s.Enum) > 0 {
		return WidgetSelect
	}
	switch s.Kind {
	case KindBoolean:
		return WidgetCheckbox
	case KindNumber, KindInteger:
		return WidgetNumber
	case KindString:
		return WidgetText
	case KindArray:
		if s.Items != nil && len(s.Items.Enum) > 0 {
			return WidgetMultiSelect
		}
		if s.Items != nil && s.Items.Kind == KindString {
			return WidgetTags
		}
		return WidgetRawJSON
	case KindObject:
		if len(s.Properties) > 0 {
			return ""
		}
		return WidgetRawJSON
	}
	return WidgetRawJSON
}

// ParamsSchema builds an object schema with one property per parameter of
// the given location. Parameters without a schema become strings and a
// parameter example becomes the default when the schema has none.
func ParamsSchema(details *parser.OperationDetails, location string) *Schema {
	no := false
	out := &Schema{Kind: KindObject, AdditionalProperties: &no}
	if details == nil {
		return out
	}

	for _, param := range details.ParametersIn(location) {
		var prop *Schema
		if param.Schema != nil {
			prop = fromProxy(param.Schema, 1, newTrail())
		} else {
			prop = &Schema{Kind: KindString, Widget: WidgetText}
		}

		if param.Description != "" {
			prop.Description = param.Description
		}
		if param.Example != nil && !prop.HasDefault {
			prop.Default, prop.HasDefault = decodeNode(param.Example)
		}

		out.Properties = append(out.Properties, Property{Name: param.Name, Schema: prop})
		if param.Required != nil && *param.Required {
			out.Required = append(out.Required, param.Name)
		}
	}
	return out
}

// BodySchema returns the form schema of the JSON request body. The first
// application/json or application/*+json entry is used; a missing schema
// yields a free-form object. ok is false when there is no JSON body.
func BodySchema(details *parser.OperationDetails) (schema *Schema, mediaType string, ok bool) {
	media, ok := jsonBody(details)
	if !ok {
		return nil, "", false
	}
	if media == nil || media.Schema == nil {
		yes := true
		return &Schema{Kind: KindObject, AdditionalProperties: &yes, Widget: WidgetRawJSON}, JSONMediaType, true
	}
	return fromProxy(media.Schema, 0, newTrail()), JSONMediaType, true
}

// BodyMediaType reports JSONMediaType when the operation accepts a JSON
// body, without converting its schema.
func BodyMediaType(details *parser.OperationDetails) (string, bool) {
	if _, ok := jsonBody(details); !ok {
		return "", false
	}
	return JSONMediaType, true
}

func jsonBody(details *parser.OperationDetails) (*v3.MediaType, bool) {
	if details == nil || details.RequestBody == nil || details.RequestBody.Content == nil {
		return nil, false
	}
	for pair := details.RequestBody.Content.First(); pair != nil; pair = pair.Next() {
		if IsJSONMediaType(pair.Key()) {
			return pair.Value(), true
		}
	}
	return nil, false
}

// IsJSONMediaType matches application/json and application/*+json, ignoring parameters
func IsJSONMediaType(mediaType string) bool {
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(mediaType, ";", 2)[0]))
	if mt == "application/json" {
		return true
	}
	return strings.HasPrefix(mt, "application/") && strings.HasSuffix(mt, "+json")
}
