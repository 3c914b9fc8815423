package request

import (
	"fmt"
	"maps"
	"strings"
	"testing"

	"github.com/moamenhredeen/oasc/internal/models"
)

func params(kv ...any) *models.Params {
	p := models.NewParams()
	for i := 0; i+1 < len(kv); i += 2 {
		p.Set(kv[i].(string), kv[i+1])
	}
	return p
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name       string
		base       string
		path       string
		pathParams map[string]any
		query      *models.Params
		want       string
	}{
		{
			name:       "trailing slash on base",
			base:       "https://api.example.com/",
			path:       "/pets/{id}",
			pathParams: map[string]any{"id": 42},
			want:       "https://api.example.com/pets/42",
		},
		{
			name: "path without leading slash",
			base: "https://api.example.com///",
			path: "pets",
			want: "https://api.example.com/pets",
		},
		{
			name:       "missing and nil params become empty",
			base:       "http://h",
			path:       "/a/{x}/b/{y}",
			pathParams: map[string]any{"y": nil},
			want:       "http://h/a//b/",
		},
		{
			name:       "path params are component encoded",
			base:       "http://h",
			path:       "/files/{name}",
			pathParams: map[string]any{"name": "a b/c?d&e"},
			want:       "http://h/files/a%20b%2Fc%3Fd%26e",
		},
		{
			name:       "float path param",
			base:       "http://h",
			path:       "/items/{n}",
			pathParams: map[string]any{"n": 3.0},
			want:       "http://h/items/3",
		},
		{
			name:  "query skips blanks and repeats arrays",
			base:  "http://h",
			path:  "/pets",
			query: params("tags", []any{"a", "b"}, "empty", "", "missing", nil),
			want:  "http://h/pets?tags=a&tags=b",
		},
		{
			name:  "query keeps insertion order",
			base:  "http://h",
			path:  "/s",
			query: params("z", 1, "a", true, "m", "x y"),
			want:  "http://h/s?z=1&a=true&m=x+y",
		},
		{
			name:  "object query values become JSON",
			base:  "http://h",
			path:  "/s",
			query: params("filter", map[string]any{"k": "v"}),
			want:  "http://h/s?filter=" + "%7B%22k%22%3A%22v%22%7D",
		},
		{
			name:  "array items that are nil are skipped",
			base:  "http://h",
			path:  "/s",
			query: params("ids", []any{1, nil, 2}),
			want:  "http://h/s?ids=1&ids=2",
		},
		{
			name:  "empty query adds no question mark",
			base:  "http://h",
			path:  "/s",
			query: params("a", ""),
			want:  "http://h/s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildURL(tt.base, tt.path, tt.pathParams, tt.query)
			if got != tt.want {
				t.Errorf("BuildURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildURLResolvesEveryPlaceholder(t *testing.T) {
	for n := 1; n <= 6; n++ {
		var segments []string
		values := map[string]any{}
		for i := 0; i < n; i++ {
			name := fmt.Sprintf("p%d", i)
			segments = append(segments, "{"+name+"}")
			values[name] = fmt.Sprintf("v{%d}", i)
		}
		got := BuildURL("http://h", "/"+strings.Join(segments, "/"), values, nil)
		if strings.ContainsAny(got, "{}") {
			t.Errorf("n=%d: URL %q still contains braces", n, got)
		}
	}
}

func TestEscapeComponent(t *testing.T) {
	tests := map[string]string{
		"abc":        "abc",
		"a b":        "a%20b",
		"!'()*~-_.":  "!'()*~-_.",
		"ä":          "%C3%A4",
		"a+b=c&d/e:": "a%2Bb%3Dc%26d%2Fe%3A",
	}
	for in, want := range tests {
		if got := EscapeComponent(in); got != want {
			t.Errorf("EscapeComponent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMergeHeaders(t *testing.T) {
	explicit := map[string]string{"Authorization": "Bearer x", "Accept": "text/plain"}
	auth := map[string]string{"Authorization": "Bearer y"}

	got := MergeHeaders(explicit, nil, auth)
	if got["authorization"] != "Bearer y" {
		t.Errorf("authorization = %q, want Bearer y", got["authorization"])
	}
	if got["accept"] != "text/plain" {
		t.Errorf("accept = %q, want text/plain", got["accept"])
	}
	if _, ok := got["Authorization"]; ok {
		t.Error("merged headers kept a mixed-case key")
	}
}

func TestMergeHeadersPrecedenceIsAssociative(t *testing.T) {
	explicit := map[string]string{"X-Key": "explicit", "accept": "a", "X-ONLY": "e"}
	custom := map[string]string{"x-key": "custom", "ACCEPT": "b"}
	auth := map[string]string{"X-KEY": "auth"}

	oneShot := MergeHeaders(explicit, custom, auth)
	nested := MergeHeaders(MergeHeaders(explicit, custom), auth)

	if !maps.Equal(oneShot, nested) {
		t.Errorf("one-shot %v != nested %v", oneShot, nested)
	}
	if oneShot["x-key"] != "auth" || oneShot["accept"] != "b" || oneShot["x-only"] != "e" {
		t.Errorf("unexpected precedence: %v", oneShot)
	}
}

func TestMergeQuery(t *testing.T) {
	explicit := params("api_key", "typed", "limit", 10)
	merged := MergeQuery(explicit, map[string]string{"api_key": "secret", "sig": "s"})

	if got := EncodeQuery(merged); got != "api_key=secret&limit=10&sig=s" {
		t.Errorf("EncodeQuery(merged) = %q", got)
	}

	if v, _ := explicit.Get("api_key"); v != "typed" {
		t.Error("MergeQuery mutated explicit params")
	}
}

func TestSerializeBody(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   any
		want   string
		isNil  bool
	}{
		{name: "string passes through", method: "POST", body: `{"raw":true}`, want: `{"raw":true}`},
		{name: "map encodes as JSON", method: "put", body: map[string]any{"a": "<b>"}, want: `{"a":"<b>"}`},
		{name: "GET drops body", method: "GET", body: "x", isNil: true},
		{name: "HEAD drops body", method: "head", body: map[string]any{}, isNil: true},
		{name: "nil body", method: "POST", body: nil, isNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SerializeBody(tt.method, tt.body)
			if err != nil {
				t.Fatalf("SerializeBody: %v", err)
			}
			if tt.isNil {
				if got != nil {
					t.Errorf("expected no body, got %q", *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("SerializeBody() = %v, want %q", got, tt.want)
			}
		})
	}
}

func TestHeaderValue(t *testing.T) {
	h := map[string]string{"Content-Type": "application/json"}
	if v, ok := HeaderValue(h, "content-type"); !ok || v != "application/json" {
		t.Errorf("HeaderValue = %q, %v", v, ok)
	}
	if _, ok := HeaderValue(h, "accept"); ok {
		t.Error("HeaderValue found a missing header")
	}
}
