package validator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pb33f/libopenapi/datamodel/high/base"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"

	"github.com/moamenhredeen/oasc/internal/formschema"
	"github.com/moamenhredeen/oasc/internal/models"
	"github.com/moamenhredeen/oasc/internal/parser"
)

// Validator checks responses against the operation they were sent for
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateResponse compares a response with the declared responses of an operation
func (v *Validator) ValidateResponse(resp models.HttpResponse, details *parser.OperationDetails) models.ValidationReport {
	report := models.ValidationReport{Status: resp.Status}
	if details == nil {
		return report
	}
	report.OperationKey = details.Key()

	if details.Responses == nil {
		return report
	}

	responseDef, found := matchResponse(details.Responses, resp.Status)
	if !found {
		report.Add("status_code", fmt.Sprintf("unexpected status code %d, not declared for %s", resp.Status, details.Key()))
		return report
	}
	if responseDef == nil {
		return report
	}

	if responseDef.Headers != nil {
		for pair := responseDef.Headers.First(); pair != nil; pair = pair.Next() {
			name := pair.Key()
			if _, ok := resp.Headers[strings.ToLower(name)]; !ok {
				report.Add("header."+name, fmt.Sprintf("missing declared header: %s", name))
			}
		}
	}

	if responseDef.Content == nil || responseDef.Content.Len() == 0 {
		return report
	}

	contentType := resp.Headers["content-type"]
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	matched := false
	for pair := responseDef.Content.First(); pair != nil; pair = pair.Next() {
		declared := strings.ToLower(strings.TrimSpace(strings.SplitN(pair.Key(), ";", 2)[0]))
		if declared == mediaType || declared == "*/*" || (strings.HasSuffix(declared, "/*") && strings.HasPrefix(mediaType, strings.TrimSuffix(declared, "*"))) {
			matched = true
			break
		}
	}
	if !matched && contentType != "" {
		report.Add("content_type", fmt.Sprintf("unexpected content type: %s", contentType))
	}

	if resp.IsStream() || !formschema.IsJSONMediaType(mediaType) {
		return report
	}

	var schema *base.Schema
	for pair := responseDef.Content.First(); pair != nil; pair = pair.Next() {
		if formschema.IsJSONMediaType(pair.Key()) {
			if media := pair.Value(); media != nil && media.Schema != nil {
				schema = media.Schema.Schema()
			}
			break
		}
	}
	if schema == nil {
		return report
	}

	if resp.BodyJSON == nil {
		report.Add("body", "response body is not valid JSON")
		return report
	}
	validateBody(&report, "body", resp.BodyJSON, schema)
	return report
}

// matchResponse finds the declaration for a status: exact code, then range
// (2XX), then default. found is true when a declaration exists.
func matchResponse(responses *v3.Responses, status int) (*v3.Response, bool) {
	if responses.Codes != nil {
		if def, ok := responses.Codes.Get(strconv.Itoa(status)); ok {
			return def, true
		}
		statusRange := fmt.Sprintf("%dxx", status/100)
		for pair := responses.Codes.First(); pair != nil; pair = pair.Next() {
			if strings.EqualFold(pair.Key(), statusRange) {
				return pair.Value(), true
			}
		}
	}
	if responses.Default != nil {
		return responses.Default, true
	}
	return nil, false
}

func validateBody(report *models.ValidationReport, field string, data any, schema *base.Schema) {
	if len(schema.Type) == 0 {
		return
	}

	if data == nil {
		for _, t := range schema.Type {
			if t == "null" {
				return
			}
		}
		if schema.Nullable != nil && *schema.Nullable {
			return
		}
		report.Add(field, fmt.Sprintf("expected %s, got null", schema.Type[0]))
		return
	}

	if !matchesType(data, schema.Type) {
		report.Add(field, fmt.Sprintf("expected %s, got %s", strings.Join(schema.Type, "|"), jsonType(data)))
		return
	}

	switch value := data.(type) {
	case map[string]any:
		for _, name := range schema.Required {
			if _, ok := value[name]; !ok {
				report.Add(field+"."+name, fmt.Sprintf("missing required field: %s", name))
			}
		}
	case []any:
		if schema.Items == nil || !schema.Items.IsA() || schema.Items.A == nil {
			return
		}
		itemSchema := schema.Items.A.Schema()
		if itemSchema == nil {
			return
		}
		for i, item := range value {
			validateBody(report, fmt.Sprintf("%s[%d]", field, i), item, itemSchema)
		}
	}
}

func matchesType(data any, types []string) bool {
	actual := jsonType(data)
	for _, t := range types {
		if t == actual {
			return true
		}
		if t == "number" && actual == "integer" {
			return true
		}
	}
	return false
}

func jsonType(data any) string {
	switch v := data.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		if v == float64(int64(v)) {
			return "integer"
		}
		return "number"
	case nil:
		return "null"
	}
	return "unknown"
}
