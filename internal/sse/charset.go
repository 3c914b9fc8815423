package sse

import (
	"mime"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// IsEventStream reports whether a content type announces a server-sent event stream
func IsEventStream(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "text/event-stream")
}

// Charset extracts the charset parameter of a content type, or "" when absent
func Charset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

// Encoding resolves a charset label, falling back to UTF-8 for unknown or empty labels
func Encoding(charset string) encoding.Encoding {
	if charset == "" {
		return unicode.UTF8
	}
	enc, err := htmlindex.Get(charset)
	if err != nil || enc == nil {
		return unicode.UTF8
	}
	return enc
}

// DecodeText converts a complete body to a string using the charset of its content type
func DecodeText(contentType string, raw []byte) string {
	enc := Encoding(Charset(contentType))
	if enc == unicode.UTF8 {
		return string(raw)
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
