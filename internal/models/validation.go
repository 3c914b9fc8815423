package models

// ValidationError represents a specific mismatch between a response and its operation
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationReport is the outcome of checking one response against its operation
type ValidationReport struct {
	OperationKey string            `json:"operation_key"`
	Status       int               `json:"status"`
	Errors       []ValidationError `json:"errors,omitempty"`
}

// Passed reports whether the response matched its declaration
func (r ValidationReport) Passed() bool {
	return len(r.Errors) == 0
}

// Add appends a validation error to the report
func (r *ValidationReport) Add(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}
