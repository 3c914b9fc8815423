// Package request assembles the URL, headers, query and body of an outgoing call.
package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/moamenhredeen/oasc/internal/models"
)

// placeholderPattern matches {name} segments of a path template
var placeholderPattern = regexp.MustCompile(`\{([^}]+)\}`)

// BuildURL substitutes path parameters into the template, joins it to the base
// URL and appends the serialized query.
func BuildURL(baseURL, path string, pathParams map[string]any, query *models.Params) string {
	urlPath := placeholderPattern.ReplaceAllStringFunc(path, func(match string) string {
		key := match[1 : len(match)-1]
		v, ok := pathParams[key]
		if !ok || v == nil {
			return ""
		}
		return EscapeComponent(Stringify(v))
	})

	base := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}
	fullURL := base + urlPath

	if qs := EncodeQuery(query); qs != "" {
		fullURL += "?" + qs
	}
	return fullURL
}

// EncodeQuery serializes query parameters in insertion order. Nil and empty
// string values are skipped, slices become repeated pairs and maps or structs
// are sent as a single JSON string.
func EncodeQuery(query *models.Params) string {
	if query == nil || query.Len() == 0 {
		return ""
	}

	var sb strings.Builder
	appendPair := func(k, v string) {
		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(v))
	}

	for pair := query.First(); pair != nil; pair = pair.Next() {
		key, value := pair.Key(), pair.Value()
		if isBlank(value) {
			continue
		}

		rv := reflect.ValueOf(value)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			if _, isBytes := value.([]byte); isBytes {
				appendPair(key, string(value.([]byte)))
				continue
			}
			for i := 0; i < rv.Len(); i++ {
				item := rv.Index(i).Interface()
				if item == nil || isNilPointer(item) {
					continue
				}
				appendPair(key, Stringify(item))
			}
		case reflect.Map, reflect.Struct:
			encoded, err := JSONString(value)
			if err != nil {
				encoded = fmt.Sprint(value)
			}
			appendPair(key, encoded)
		default:
			appendPair(key, Stringify(value))
		}
	}

	return sb.String()
}

// EscapeComponent percent-encodes s the way a URI component is encoded:
// everything except letters, digits and -_.!~*'() is escaped.
func EscapeComponent(s string) string {
	escaped := url.QueryEscape(s)
	return componentReplacer.Replace(escaped)
}

var componentReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// Stringify renders a scalar value the way it appears in a URL.
// Whole floats are printed without a fractional part.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array:
		if encoded, err := JSONString(v); err == nil {
			return encoded
		}
	case reflect.Pointer:
		if rv.IsNil() {
			return ""
		}
		return Stringify(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}

// JSONString encodes v as compact JSON without HTML escaping
func JSONString(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to encode JSON: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return isNilPointer(v)
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
