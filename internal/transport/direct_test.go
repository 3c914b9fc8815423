package transport

import (
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/moamenhredeen/oasc/internal/models"
)

func strPtr(s string) *string { return &s }

func TestDirectSendJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("X-Trace"); got != "abc" {
			t.Errorf("X-Trace = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Add("Set-Cookie", "a=1")
		w.Header().Add("Set-Cookie", "b=2")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":7}`)
	}))
	defer server.Close()

	d := NewDirect(Options{})
	resp, err := d.Send(context.Background(), Request{
		Method:  "post",
		URL:     server.URL + "/pets",
		Headers: map[string]string{"x-trace": "abc"},
		Body:    strPtr(`{"name":"rex"}`),
	}, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if resp.Status != http.StatusCreated || resp.StatusText != "Created" {
		t.Errorf("status = %d %q", resp.Status, resp.StatusText)
	}
	body, ok := resp.BodyJSON.(map[string]any)
	if !ok || body["id"] != float64(7) {
		t.Errorf("BodyJSON = %#v", resp.BodyJSON)
	}
	if resp.Headers["set-cookie"] != "a=1, b=2" {
		t.Errorf("set-cookie = %q", resp.Headers["set-cookie"])
	}
	if resp.WireSizeBytes != resp.BodySizeBytes || resp.BodySizeBytes != int64(len(`{"id":7}`)) {
		t.Errorf("sizes wire=%d body=%d", resp.WireSizeBytes, resp.BodySizeBytes)
	}
	if resp.Timings == nil || resp.Timings.Total <= 0 {
		t.Errorf("Timings = %+v", resp.Timings)
	}
	if resp.StreamEvents != nil {
		t.Error("buffered response has stream events")
	}
}

func TestDirectSendMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"broken":`)
	}))
	defer server.Close()

	resp, err := NewDirect(Options{}).Send(context.Background(), Request{Method: "GET", URL: server.URL}, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.BodyJSON != nil {
		t.Errorf("BodyJSON = %#v, want nil", resp.BodyJSON)
	}
	if resp.BodyText != `{"broken":` {
		t.Errorf("BodyText = %q", resp.BodyText)
	}
}

func TestDirectSendGzip(t *testing.T) {
	payload := strings.Repeat(`{"k":"v"}`, 1) + strings.Repeat(" ", 2000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			t.Errorf("Accept-Encoding = %q", r.Header.Get("Accept-Encoding"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		zw.Write([]byte(payload))
		zw.Close()
	}))
	defer server.Close()

	resp, err := NewDirect(Options{}).Send(context.Background(), Request{Method: "GET", URL: server.URL}, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.BodyText != payload {
		t.Errorf("BodyText length = %d, want %d", len(resp.BodyText), len(payload))
	}
	if resp.BodySizeBytes != int64(len(payload)) {
		t.Errorf("BodySizeBytes = %d", resp.BodySizeBytes)
	}
	if resp.WireSizeBytes >= resp.BodySizeBytes {
		t.Errorf("WireSizeBytes = %d, expected compressed size below %d", resp.WireSizeBytes, resp.BodySizeBytes)
	}
}

func TestDirectSendDeflate(t *testing.T) {
	payload := `{"k":"v"}` + strings.Repeat(" ", 2000)

	tests := []struct {
		name  string
		wrap  func(w io.Writer) io.WriteCloser
		empty bool
	}{
		{"zlib", func(w io.Writer) io.WriteCloser { return zlib.NewWriter(w) }, false},
		{"raw", func(w io.Writer) io.WriteCloser {
			fw, _ := flate.NewWriter(w, flate.DefaultCompression)
			return fw
		}, false},
		{"empty", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Content-Encoding", "deflate")
				if tt.empty {
					return
				}
				zw := tt.wrap(w)
				zw.Write([]byte(payload))
				zw.Close()
			}))
			defer server.Close()

			resp, err := NewDirect(Options{}).Send(context.Background(), Request{Method: "GET", URL: server.URL}, nil)
			if err != nil {
				t.Fatalf("Send: %v", err)
			}
			want := payload
			if tt.empty {
				want = ""
			}
			if resp.BodyText != want {
				t.Errorf("BodyText length = %d, want %d", len(resp.BodyText), len(want))
			}
		})
	}
}

func TestDirectSendDeflateEventStream(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Content-Encoding", "deflate")
		zw := zlib.NewWriter(w)
		zw.Write([]byte("data: first\n\n"))
		zw.Flush()
		w.(http.Flusher).Flush()

		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan models.StreamEvent, 1)
	done := make(chan error, 1)
	go func() {
		_, err := NewDirect(Options{}).Send(ctx, Request{Method: "GET", URL: server.URL}, func(ev models.StreamEvent) {
			events <- ev
		})
		done <- err
	}()

	select {
	case ev := <-events:
		if ev.Data != "first" {
			t.Errorf("Data = %q", ev.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first event not delivered while the stream stayed open")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send did not return after cancel")
	}
}

func TestDirectSendEventStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "Text/Event-Stream; charset=utf-8")
		flusher := w.(http.Flusher)
		frames := []string{"event: ping\ndata: 1\n\n", "data: 2\n", "data: 3\n\n", "data: unterminated"}
		for _, f := range frames {
			fmt.Fprint(w, f)
			flusher.Flush()
		}
	}))
	defer server.Close()

	var live []models.StreamEvent
	resp, err := NewDirect(Options{}).Send(context.Background(), Request{Method: "GET", URL: server.URL}, func(ev models.StreamEvent) {
		live = append(live, ev)
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(resp.StreamEvents) != 2 || len(live) != 2 {
		t.Fatalf("events: final=%d live=%d", len(resp.StreamEvents), len(live))
	}
	if resp.StreamEvents[0].EventType != "ping" || resp.StreamEvents[1].Data != "2\n3" {
		t.Errorf("events = %+v", resp.StreamEvents)
	}
	if resp.BodyText != "1\n2\n3\n" || resp.BodyJSON != nil {
		t.Errorf("BodyText = %q BodyJSON = %v", resp.BodyText, resp.BodyJSON)
	}
	if resp.Timings == nil || resp.Timings.DNS != 0 || resp.Timings.TTFB != 0 {
		t.Errorf("Timings = %+v", resp.Timings)
	}
}

func TestDirectTimeoutDoesNotHang(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	const deadline = 150 * time.Millisecond
	start := time.Now()
	_, err := NewDirect(Options{}).Send(context.Background(), Request{Method: "GET", URL: server.URL, Timeout: deadline}, nil)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected an error from a request that never completes")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
	if elapsed > deadline+time.Second {
		t.Errorf("Send returned after %v, deadline was %v", elapsed, deadline)
	}
}

func TestDirectCallerCancel(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := NewDirect(Options{}).Send(ctx, Request{Method: "GET", URL: server.URL}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestDirectNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewDirect(Options{}).Send(context.Background(), Request{Method: "GET", URL: url}, nil)
	if err == nil {
		t.Fatal("expected an error for a closed server")
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"", KindDirect, false},
		{"direct", KindDirect, false},
		{" HOST ", KindHost, false},
		{"browser", "", true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseKind(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestNew(t *testing.T) {
	tr, err := New(KindDirect, Options{})
	if err != nil {
		t.Fatalf("New(direct): %v", err)
	}
	if _, ok := tr.(*Direct); !ok {
		t.Errorf("New(direct) = %T", tr)
	}

	if _, err := New(KindHost, Options{}); err == nil {
		t.Error("New(host) without URL should fail")
	}

	tr, err = New(KindHost, Options{HostURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("New(host): %v", err)
	}
	if _, ok := tr.(*Host); !ok {
		t.Errorf("New(host) = %T", tr)
	}
}
