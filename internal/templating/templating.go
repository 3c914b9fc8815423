// Package templating substitutes {{ name }} placeholders with environment variables.
package templating

import (
	"regexp"
	"sort"
	"strings"

	"github.com/moamenhredeen/oasc/internal/models"
)

var placeholder = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

// Vars maps variable names to values
type Vars map[string]string

// ResolveString replaces every known placeholder in s. Unknown ones are kept verbatim.
func ResolveString(s string, vars Vars) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSpace(placeholder.FindStringSubmatch(match)[1])
		if v, ok := vars.Lookup(name); ok {
			return v
		}
		return match
	})
}

// Lookup finds a variable by exact name, then case-insensitively
func (v Vars) Lookup(name string) (string, bool) {
	if value, ok := v[name]; ok {
		return value, true
	}
	for k, value := range v {
		if strings.EqualFold(k, name) {
			return value, true
		}
	}
	return "", false
}

// Resolve walks strings, slices and maps (keys and values) and resolves
// placeholders in every string found. Other values are returned unchanged.
func Resolve(value any, vars Vars) any {
	switch v := value.(type) {
	case string:
		return ResolveString(v, vars)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Resolve(item, vars)
		}
		return out
	case []string:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = ResolveString(item, vars)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[ResolveString(k, vars)] = Resolve(item, vars)
		}
		return out
	case map[string]string:
		return ResolveMap(v, vars)
	}
	return value
}

// ResolveMap resolves keys and values of a string map
func ResolveMap(m map[string]string, vars Vars) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[ResolveString(k, vars)] = ResolveString(v, vars)
	}
	return out
}

// ResolveParams resolves an ordered parameter set, keeping insertion order
func ResolveParams(p *models.Params, vars Vars) *models.Params {
	if p == nil {
		return nil
	}
	out := models.NewParams()
	for pair := p.First(); pair != nil; pair = pair.Next() {
		out.Set(ResolveString(pair.Key(), vars), Resolve(pair.Value(), vars))
	}
	return out
}

// Extract returns the distinct variable names used in s, in order of first use
func Extract(s string) []string {
	var names []string
	seen := map[string]bool{}
	for _, m := range placeholder.FindAllStringSubmatch(s, -1) {
		name := strings.TrimSpace(m[1])
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// ExtractAll returns the sorted distinct variable names used anywhere in value
func ExtractAll(value any) []string {
	seen := map[string]bool{}
	collect(value, seen)

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func collect(value any, seen map[string]bool) {
	add := func(s string) {
		for _, name := range Extract(s) {
			seen[name] = true
		}
	}

	switch v := value.(type) {
	case string:
		add(v)
	case []any:
		for _, item := range v {
			collect(item, seen)
		}
	case []string:
		for _, item := range v {
			add(item)
		}
	case map[string]any:
		for k, item := range v {
			add(k)
			collect(item, seen)
		}
	case map[string]string:
		for k, item := range v {
			add(k)
			add(item)
		}
	}
}

// Validate returns the variables used in value that vars does not define
func Validate(value any, vars Vars) []string {
	var missing []string
	for _, name := range ExtractAll(value) {
		if _, ok := vars.Lookup(name); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
