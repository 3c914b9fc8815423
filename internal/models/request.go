package models

import "github.com/pb33f/libopenapi/orderedmap"

// Params holds query parameters in insertion order
type Params = orderedmap.Map[string, any]

// NewParams returns an empty ordered parameter map
func NewParams() *Params {
	return orderedmap.New[string, any]()
}

// RequestParts carries everything needed to build one request
type RequestParts struct {
	BaseURL      string
	Path         string
	Method       string
	PathParams   map[string]any
	QueryParams  *Params
	HeaderParams map[string]string
	Body         any
	MediaType    string
}

// AppliedAuth is the header and query contribution of the resolved credentials
type AppliedAuth struct {
	Headers     map[string]string `json:"headers"`
	QueryParams map[string]string `json:"query_params"`
}

// Empty reports whether no credentials were applied
func (a AppliedAuth) Empty() bool {
	return len(a.Headers) == 0 && len(a.QueryParams) == 0
}
