// Package auth turns a security requirement and stored credentials into
// request headers and query parameters.
package auth

import (
	"encoding/base64"
	"strings"

	"github.com/moamenhredeen/oasc/internal/models"
)

// Credential field names as entered by the user
const (
	FieldAPIKey   = "apiKey"
	FieldToken    = "token"
	FieldUsername = "username"
	FieldPassword = "password"
)

// Document is the part of a loaded document the resolver needs
type Document interface {
	SecuritySchemes() map[string]models.SecurityScheme
	GlobalSecurity() []models.SecurityRequirement
}

// EffectiveRequirement returns the first operation-level requirement, falling
// back to the first document-level one. Later alternatives are never evaluated.
func EffectiveRequirement(opSecurity []models.SecurityRequirement, doc Document) (models.SecurityRequirement, bool) {
	if len(opSecurity) > 0 {
		return opSecurity[0], true
	}
	if doc == nil {
		return nil, false
	}
	if global := doc.GlobalSecurity(); len(global) > 0 {
		return global[0], true
	}
	return nil, false
}

// Resolve computes the headers and query parameters contributed by the
// effective security requirement of an operation. Unknown schemes, missing
// values and unsupported scheme types produce nothing.
func Resolve(opSecurity []models.SecurityRequirement, values models.AuthValues, doc Document) models.AppliedAuth {
	applied := models.AppliedAuth{
		Headers:     map[string]string{},
		QueryParams: map[string]string{},
	}

	requirement, ok := EffectiveRequirement(opSecurity, doc)
	if !ok || doc == nil {
		return applied
	}

	schemes := doc.SecuritySchemes()
	for _, name := range requirement {
		scheme, ok := schemes[name]
		if !ok {
			continue
		}
		fields, ok := values[name]
		if !ok {
			continue
		}
		apply(&applied, scheme, fields)
	}

	return applied
}

func apply(applied *models.AppliedAuth, scheme models.SecurityScheme, fields map[string]string) {
	switch strings.ToLower(scheme.Type) {
	case "apikey":
		key := fields[FieldAPIKey]
		if key == "" || scheme.Name == "" {
			return
		}
		switch strings.ToLower(scheme.In) {
		case "header":
			applied.Headers[scheme.Name] = key
		case "query":
			applied.QueryParams[scheme.Name] = key
		}
	case "http":
		switch strings.ToLower(scheme.Scheme) {
		case "bearer":
			if token := fields[FieldToken]; token != "" {
				applied.Headers["Authorization"] = "Bearer " + token
			}
		case "basic":
			user, pass := fields[FieldUsername], fields[FieldPassword]
			if user != "" && pass != "" {
				applied.Headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
			}
		}
	}
}
