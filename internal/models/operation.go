package models

import "strings"

// DefaultTag groups operations that declare no tags
const DefaultTag = "default"

// Operation represents one (method, path) pair of a loaded OpenAPI document
type Operation struct {
	Path        string                `json:"path"`
	Method      string                `json:"method"`
	OperationID string                `json:"operation_id,omitempty"`
	Summary     string                `json:"summary,omitempty"`
	Tag         string                `json:"tag"`
	Tags        []string              `json:"tags,omitempty"`
	Security    []SecurityRequirement `json:"security,omitempty"`
}

// Key returns the case-normalized composite key of the operation
func (o Operation) Key() string {
	return OperationKey(o.Method, o.Path)
}

// OperationKey builds the composite key used to address an operation
func OperationKey(method, path string) string {
	return strings.ToUpper(method) + ":" + path
}
