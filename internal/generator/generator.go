// Package generator produces sample values that satisfy form schemas. It
// pre-fills request bodies and required parameters.
package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/moamenhredeen/oasc/internal/formschema"
)

const maxDepth = 8

// Generator generates sample data from form schemas
type Generator struct {
	rng *rand.Rand
	now func() time.Time

	// Optional also fills properties that are not required
	Optional bool
}

// NewGenerator creates a generator. The same seed yields the same values.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

// GenerateValue generates a value for schema. Defaults and enum members win
// over generated values.
func (g *Generator) GenerateValue(schema *formschema.Schema) (any, error) {
	if schema == nil {
		return nil, errors.New("schema is nil")
	}
	return g.value(schema, 0), nil
}

// GenerateBody generates a JSON document for a body schema
func (g *Generator) GenerateBody(schema *formschema.Schema) ([]byte, error) {
	val, err := g.GenerateValue(schema)
	if err != nil {
		return nil, err
	}
	body, err := json.MarshalIndent(val, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode sample body: %w", err)
	}
	return body, nil
}

// GenerateParams fills the required members of a parameter schema (and the
// optional ones when Optional is set), rendered as strings.
func (g *Generator) GenerateParams(schema *formschema.Schema) map[string]string {
	out := map[string]string{}
	if schema == nil {
		return out
	}
	for _, p := range schema.Properties {
		if !schema.IsRequired(p.Name) && !g.Optional {
			continue
		}
		out[p.Name] = FormatParam(g.value(p.Schema, 1))
	}
	return out
}

// FormatParam renders a value the way it appears in a path, query or header
func FormatParam(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, FormatParam(item))
		}
		return strings.Join(parts, ",")
	case map[string]any:
		b, _ := json.Marshal(val)
		return string(b)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func (g *Generator) value(s *formschema.Schema, depth int) any {
	if s == nil {
		return nil
	}
	if s.HasDefault {
		return s.Default
	}
	if len(s.Enum) > 0 {
		return s.Enum[0]
	}
	if depth > maxDepth {
		return nil
	}

	switch s.Kind {
	case formschema.KindString:
		return g.generateString(s)
	case formschema.KindInteger:
		return int64(math.Round(g.generateNumber(s, true)))
	case formschema.KindNumber:
		return g.generateNumber(s, false)
	case formschema.KindBoolean:
		return true
	case formschema.KindArray:
		return g.generateArray(s, depth)
	case formschema.KindObject:
		return g.generateObject(s, depth)
	case formschema.KindComposed:
		return g.generateComposed(s, depth)
	case formschema.KindNull:
		return nil
	default:
		return ""
	}
}

func (g *Generator) generateString(s *formschema.Schema) string {
	if s.Format != "" {
		if v, ok := g.fromFormat(s.Format); ok {
			return v
		}
	}

	minLength := 0
	maxLength := minLength + 10
	if s.MinLength != nil {
		minLength = int(*s.MinLength)
		maxLength = minLength + 10
	}
	if s.MaxLength != nil && int(*s.MaxLength) < maxLength {
		maxLength = int(*s.MaxLength)
	}
	if maxLength < minLength {
		maxLength = minLength
	}

	length := minLength
	if maxLength > minLength {
		length = minLength + g.rng.Intn(maxLength-minLength+1)
	}
	if length == 0 && (s.MaxLength == nil || *s.MaxLength > 0) {
		length = 1
	}
	return strings.Repeat("a", length)
}

func (g *Generator) generateNumber(s *formschema.Schema, integer bool) float64 {
	lo, hi := 0.0, 100.0
	if s.Minimum != nil {
		lo = *s.Minimum
		if s.Maximum == nil {
			hi = lo + 100
		}
	}
	if s.Maximum != nil {
		hi = *s.Maximum
		if s.Minimum == nil && hi < lo {
			lo = hi - 100
		}
	}

	step := 0.001
	if integer {
		step = 1
		lo = math.Ceil(lo)
		hi = math.Floor(hi)
	}
	if s.ExclusiveMinimum != nil && lo <= *s.ExclusiveMinimum {
		lo = *s.ExclusiveMinimum + step
		if integer {
			lo = math.Floor(*s.ExclusiveMinimum) + 1
		}
	}
	if s.ExclusiveMaximum != nil && hi >= *s.ExclusiveMaximum {
		hi = *s.ExclusiveMaximum - step
		if integer {
			hi = math.Ceil(*s.ExclusiveMaximum) - 1
		}
	}
	if hi <= lo {
		return lo
	}

	if integer {
		return lo + float64(g.rng.Int63n(int64(hi-lo)+1))
	}
	return lo + g.rng.Float64()*(hi-lo)
}

func (g *Generator) generateArray(s *formschema.Schema, depth int) []any {
	minItems := 1
	maxItems := 3
	if s.MinItems != nil {
		minItems = int(*s.MinItems)
		if maxItems < minItems {
			maxItems = minItems
		}
	}
	if s.MaxItems != nil && int(*s.MaxItems) < maxItems {
		maxItems = int(*s.MaxItems)
	}
	if maxItems < minItems {
		maxItems = minItems
	}

	count := minItems
	if maxItems > minItems {
		count = minItems + g.rng.Intn(maxItems-minItems+1)
	}

	result := make([]any, count)
	for i := range result {
		if s.Items == nil {
			result[i] = "item"
			continue
		}
		result[i] = g.value(s.Items, depth+1)
	}
	return result
}

func (g *Generator) generateObject(s *formschema.Schema, depth int) map[string]any {
	result := make(map[string]any)
	for _, p := range s.Properties {
		if !s.IsRequired(p.Name) && !g.Optional {
			continue
		}
		result[p.Name] = g.value(p.Schema, depth+1)
	}
	return result
}

func (g *Generator) generateComposed(s *formschema.Schema, depth int) any {
	if len(s.Variants) == 0 {
		return nil
	}
	if s.Composition != formschema.AllOf {
		return g.value(s.Variants[0], depth+1)
	}

	merged := make(map[string]any)
	for _, v := range s.Variants {
		part, ok := g.value(v, depth+1).(map[string]any)
		if !ok {
			continue
		}
		for k, val := range part {
			merged[k] = val
		}
	}
	return merged
}

func (g *Generator) fromFormat(format string) (string, bool) {
	switch format {
	case "date":
		return g.now().UTC().Format("2006-01-02"), true
	case "date-time":
		return g.now().UTC().Format(time.RFC3339), true
	case "time":
		return g.now().UTC().Format("15:04:05"), true
	case "email":
		return "user@example.com", true
	case "uri", "url":
		return "https://example.com", true
	case "hostname":
		return "example.com", true
	case "ipv4":
		return "192.0.2.1", true
	case "ipv6":
		return "2001:db8::1", true
	case "uuid":
		return "123e4567-e89b-12d3-a456-426614174000", true
	case "byte":
		return "c2FtcGxl", true
	default:
		return "", false
	}
}
