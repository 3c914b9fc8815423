// Package curl renders resolved request parts as a copy-pasteable curl command.
package curl

import (
	"maps"
	"slices"
	"strings"

	"github.com/moamenhredeen/oasc/internal/request"
)

// Command describes the request to render
type Command struct {
	Method    string
	URL       string
	Headers   map[string]string
	Body      *string
	MediaType string
}

// Render returns a single-line POSIX shell command equivalent to the request.
// Headers are sorted by name; a Content-Type header is synthesized from the
// media type when the caller did not set one.
func Render(c Command) string {
	method := strings.ToUpper(c.Method)
	if method == "" {
		method = "GET"
	}

	headers := maps.Clone(c.Headers)
	if headers == nil {
		headers = map[string]string{}
	}
	if c.MediaType != "" {
		if _, ok := request.HeaderValue(headers, "Content-Type"); !ok {
			headers["Content-Type"] = c.MediaType
		}
	}

	parts := []string{"curl", "-X", method, Quote(c.URL)}
	for _, name := range slices.Sorted(maps.Keys(headers)) {
		parts = append(parts, "-H", Quote(name+": "+headers[name]))
	}

	if c.Body != nil && request.HasBody(method) {
		parts = append(parts, "--data-raw", Quote(*c.Body))
	}

	return strings.Join(parts, " ")
}

// Quote wraps s in single quotes, escaping embedded single quotes
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
