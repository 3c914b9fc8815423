package request

import (
	"net/http"
	"strings"
)

// HasBody reports whether a request with this method may carry a body
func HasBody(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead:
		return false
	}
	return true
}

// SerializeBody renders the request body. Strings pass through untouched and
// anything else is encoded as JSON. It returns nil when the method forbids a
// body or no body was given.
func SerializeBody(method string, body any) (*string, error) {
	if body == nil || !HasBody(method) {
		return nil, nil
	}

	switch b := body.(type) {
	case string:
		return &b, nil
	case []byte:
		s := string(b)
		return &s, nil
	}

	encoded, err := JSONString(body)
	if err != nil {
		return nil, err
	}
	return &encoded, nil
}
