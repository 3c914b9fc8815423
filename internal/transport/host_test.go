package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/moamenhredeen/oasc/internal/models"
)

func writeLines(t *testing.T, w http.ResponseWriter, msgs ...HostMessage) {
	t.Helper()
	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	for _, m := range msgs {
		if err := enc.Encode(m); err != nil {
			t.Errorf("encode: %v", err)
			return
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

func TestHostSendRelaysEventsAndResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != MakeRequestPath {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req HostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if req.Method != "POST" || req.URL != "https://api.example.com/chat" || req.Body == nil || *req.Body != "{}" {
			t.Errorf("host request = %+v", req)
		}
		if req.TimeoutMs != DefaultTimeout.Milliseconds() {
			t.Errorf("TimeoutMs = %d", req.TimeoutMs)
		}
		if req.SessionID == "" {
			t.Error("missing session id")
		}

		writeLines(t, w,
			HostMessage{Kind: MessageEvent, Event: &models.StreamEvent{EventID: 1, EventType: "message", Data: "a"}},
			HostMessage{Kind: MessageEvent, Event: &models.StreamEvent{EventID: 2, EventType: "message", Data: "b"}},
			HostMessage{Kind: MessageResponse, Response: &models.HttpResponse{
				Status: 200, StatusText: "OK", BodyText: "a\nb\n",
				Headers: map[string]string{"content-type": "text/event-stream"},
			}},
		)
	}))
	defer server.Close()

	var live []models.StreamEvent
	h := NewHost(Options{HostURL: server.URL + "/"})
	resp, err := h.Send(context.Background(), Request{
		Method: "post",
		URL:    "https://api.example.com/chat",
		Body:   strPtr("{}"),
	}, func(ev models.StreamEvent) { live = append(live, ev) })
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(live) != 2 || len(resp.StreamEvents) != 2 {
		t.Fatalf("live=%d final=%d", len(live), len(resp.StreamEvents))
	}
	if resp.Status != 200 || resp.BodyJSON != nil {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHostSendParsesJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeLines(t, w, HostMessage{Kind: MessageResponse, Response: &models.HttpResponse{
			Status: 200, StatusText: "OK", BodyText: `{"ok":true}`,
		}})
	}))
	defer server.Close()

	resp, _ := NewHost(Options{HostURL: server.URL}).Send(context.Background(), Request{Method: "GET", URL: "http://x"}, nil)
	body, ok := resp.BodyJSON.(map[string]any)
	if !ok || body["ok"] != true {
		t.Errorf("BodyJSON = %#v", resp.BodyJSON)
	}
	if resp.Headers == nil {
		t.Error("Headers should never be nil")
	}
}

func TestHostSendFailuresBecomeSyntheticResponses(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "error line",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeLines(t, w, HostMessage{Kind: MessageError, Message: "network down"})
			},
			want: "network down",
		},
		{
			name: "structured non-200 reply",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"invalid url"}`))
			},
			want: "invalid url",
		},
		{
			name: "reply without response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeLines(t, w, HostMessage{Kind: MessageEvent, Event: &models.StreamEvent{EventID: 1, Data: "x"}})
			},
			want: "host closed the reply without a response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			resp, err := NewHost(Options{HostURL: server.URL}).Send(context.Background(), Request{Method: "GET", URL: "http://x"}, nil)
			if err != nil {
				t.Fatalf("Send returned an error: %v", err)
			}
			assertHostFailure(t, resp, tt.want)
		})
	}
}

func TestHostSendUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	resp, err := NewHost(Options{HostURL: url}).Send(context.Background(), Request{Method: "GET", URL: "http://x"}, nil)
	if err != nil {
		t.Fatalf("Send returned an error: %v", err)
	}
	if resp.Status != 500 || resp.StatusText != HostErrorStatusText {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHostFailureShape(t *testing.T) {
	assertHostFailure(t, HostFailure("network down"), "network down")
}

func TestHostFetchSpec(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != LoadSpecPath {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req LoadSpecRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(LoadSpecResponse{Content: "openapi: 3.0.0 # " + req.URL})
	}))
	defer server.Close()

	got, err := NewHost(Options{HostURL: server.URL}).FetchSpec(context.Background(), "https://x/spec.yaml")
	if err != nil {
		t.Fatalf("FetchSpec: %v", err)
	}
	if string(got) != "openapi: 3.0.0 # https://x/spec.yaml" {
		t.Errorf("content = %q", got)
	}
}

func assertHostFailure(t *testing.T, resp models.HttpResponse, message string) {
	t.Helper()
	if resp.Status != 500 || resp.StatusText != HostErrorStatusText {
		t.Errorf("status = %d %q", resp.Status, resp.StatusText)
	}
	if resp.BodyText != message {
		t.Errorf("BodyText = %q, want %q", resp.BodyText, message)
	}
	body, ok := resp.BodyJSON.(map[string]any)
	if !ok || body["error"] != message {
		t.Errorf("BodyJSON = %#v", resp.BodyJSON)
	}
	if resp.Headers == nil || len(resp.Headers) != 0 {
		t.Errorf("Headers = %v", resp.Headers)
	}
}
