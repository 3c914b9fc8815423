package models

// SecurityScheme is a security scheme definition taken from the document
type SecurityScheme struct {
	Type         string `json:"type"`
	Name         string `json:"name,omitempty"`
	In           string `json:"in,omitempty"`
	Scheme       string `json:"scheme,omitempty"`
	BearerFormat string `json:"bearer_format,omitempty"`
	Description  string `json:"description,omitempty"`
}

// SecurityRequirement lists the scheme names of one requirement object, in document order
type SecurityRequirement []string

// AuthValues maps a scheme name to its user-entered fields (apiKey, token, username, password)
type AuthValues map[string]map[string]string

// AuthState holds the global credential values and per-environment overrides
type AuthState struct {
	Values            AuthValues            `json:"values"`
	EnvironmentValues map[string]AuthValues `json:"environment_values"`
}

// ValuesFor overlays the values of env on top of the global values.
// Empty override fields do not shadow global ones.
func (s AuthState) ValuesFor(env string) AuthValues {
	merged := make(AuthValues, len(s.Values))
	for scheme, fields := range s.Values {
		merged[scheme] = copyFields(fields)
	}

	for scheme, fields := range s.EnvironmentValues[env] {
		target, ok := merged[scheme]
		if !ok {
			target = make(map[string]string, len(fields))
			merged[scheme] = target
		}
		for k, v := range fields {
			if v != "" {
				target[k] = v
			}
		}
	}

	return merged
}

func copyFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
