package request

import (
	"maps"
	"slices"
	"strings"

	"github.com/moamenhredeen/oasc/internal/models"
)

// MergeHeaders combines header sources into one map with lower-cased names.
// Later sources win on collision, so callers pass explicit, custom and auth
// headers in that order.
func MergeHeaders(sources ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, src := range sources {
		for k, v := range src {
			merged[strings.ToLower(k)] = v
		}
	}
	return merged
}

// MergeQuery copies the explicit query parameters and lets auth-derived
// parameters replace them in place or append new keys.
func MergeQuery(explicit *models.Params, auth map[string]string) *models.Params {
	merged := models.NewParams()
	if explicit != nil {
		for pair := explicit.First(); pair != nil; pair = pair.Next() {
			merged.Set(pair.Key(), pair.Value())
		}
	}

	for _, k := range slices.Sorted(maps.Keys(auth)) {
		merged.Set(k, auth[k])
	}
	return merged
}

// HeaderValue looks up a header case-insensitively
func HeaderValue(headers map[string]string, name string) (string, bool) {
	if v, ok := headers[name]; ok {
		return v, true
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
