package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

type versionHeader struct {
	Swagger string `yaml:"swagger"`
	OpenAPI string `yaml:"openapi"`
}

func isSwagger2(content []byte) bool {
	var header versionHeader
	if err := yaml.Unmarshal(content, &header); err != nil {
		return false
	}
	return strings.HasPrefix(header.Swagger, "2")
}

// convertSwagger2 upgrades a Swagger 2.0 document (JSON or YAML) to OpenAPI 3 JSON
func convertSwagger2(content []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("failed to read swagger document: %w", err)
	}

	asJSON, err := json.Marshal(normalizeYAML(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to encode swagger document: %w", err)
	}

	var doc2 openapi2.T
	if err := json.Unmarshal(asJSON, &doc2); err != nil {
		return nil, fmt.Errorf("failed to decode swagger document: %w", err)
	}

	doc3, err := openapi2conv.ToV3(&doc2)
	if err != nil {
		return nil, fmt.Errorf("failed to convert swagger document: %w", err)
	}

	out, err := json.Marshal(doc3)
	if err != nil {
		return nil, fmt.Errorf("failed to encode converted document: %w", err)
	}
	return out, nil
}

// normalizeYAML turns non-string mapping keys (status codes such as 200) into
// strings so the tree can be encoded as JSON.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}

// Validate runs a strict structural validation of the (converted) document
func (p *Parser) Validate(ctx context.Context) error {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(p.content)
	if err != nil {
		return fmt.Errorf("load OpenAPI spec: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return fmt.Errorf("validate OpenAPI spec: %w", err)
	}
	return nil
}
