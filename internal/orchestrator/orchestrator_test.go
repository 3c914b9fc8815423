package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/moamenhredeen/oasc/internal/models"
	"github.com/moamenhredeen/oasc/internal/transport"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTransport records requests and either answers immediately or blocks
// until its context ends, returning what a host-style transport would.
type fakeTransport struct {
	mu       sync.Mutex
	requests []transport.Request
	started  chan struct{}
	block    bool
	err      error
	resp     models.HttpResponse
}

func (f *fakeTransport) Send(ctx context.Context, req transport.Request, onEvent transport.EventFunc) (models.HttpResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	block := f.block
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if block {
		<-ctx.Done()
		return transport.HostFailure(ctx.Err().Error()), nil
	}
	if f.err != nil {
		return models.HttpResponse{}, f.err
	}
	return f.resp, nil
}

func (f *fakeTransport) last() transport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func TestPrepare(t *testing.T) {
	query := models.NewParams()
	query.Set("limit", 10)
	query.Set("api_key", "typed")

	parts := models.RequestParts{
		BaseURL:      "https://api.example.com/",
		Path:         "/pets/{id}",
		Method:       "post",
		PathParams:   map[string]any{"id": 42},
		QueryParams:  query,
		HeaderParams: map[string]string{"Authorization": "Bearer x", "X-Mode": "explicit"},
		Body:         map[string]any{"name": "rex"},
		MediaType:    "application/json",
	}
	opts := SendOptions{
		CustomHeaders: map[string]string{"x-mode": "custom"},
		Auth: models.AppliedAuth{
			Headers:     map[string]string{"Authorization": "Bearer y"},
			QueryParams: map[string]string{"api_key": "secret"},
		},
	}

	got, err := Prepare(parts, opts)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	if got.Method != "POST" {
		t.Errorf("Method = %s", got.Method)
	}
	if got.URL != "https://api.example.com/pets/42?limit=10&api_key=secret" {
		t.Errorf("URL = %s", got.URL)
	}
	want := map[string]string{
		"authorization": "Bearer y",
		"x-mode":        "custom",
		"content-type":  "application/json",
	}
	for k, v := range want {
		if got.Headers[k] != v {
			t.Errorf("header %s = %q, want %q", k, got.Headers[k], v)
		}
	}
	if got.Body == nil || *got.Body != `{"name":"rex"}` {
		t.Errorf("Body = %v", got.Body)
	}
}

func TestPrepareKeepsExplicitContentTypeAndDropsGetBody(t *testing.T) {
	got, err := Prepare(models.RequestParts{
		BaseURL:      "http://h",
		Path:         "/x",
		Method:       "GET",
		HeaderParams: map[string]string{"Content-Type": "text/plain"},
		Body:         "ignored",
		MediaType:    "application/json",
	}, SendOptions{})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if got.Body != nil {
		t.Errorf("GET body = %q", *got.Body)
	}
	if got.Headers["content-type"] != "text/plain" {
		t.Errorf("content-type = %q", got.Headers["content-type"])
	}
}

func TestSendSuccess(t *testing.T) {
	ft := &fakeTransport{resp: models.HttpResponse{Status: 200, StatusText: "OK"}}
	o := New(ft, 5*time.Second, quietLogger())

	resp, err := o.Send(context.Background(), "GET:/pets", models.RequestParts{BaseURL: "http://h", Path: "/pets", Method: "get"}, SendOptions{})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Status != 200 {
		t.Errorf("Status = %d", resp.Status)
	}
	if got := ft.last(); got.URL != "http://h/pets" || got.Timeout != 5*time.Second {
		t.Errorf("request = %+v", got)
	}
	if o.InFlight("GET:/pets") {
		t.Error("send still registered after completion")
	}
}

func TestSendTransportFailureBecomesResponse(t *testing.T) {
	ft := &fakeTransport{err: errors.New("dial tcp: connection refused")}
	o := New(ft, time.Second, quietLogger())

	resp, err := o.Send(context.Background(), "k", models.RequestParts{BaseURL: "http://h", Path: "/"}, SendOptions{})
	if err != nil {
		t.Fatalf("Send returned an error: %v", err)
	}
	if resp.Status != 500 || resp.StatusText != FailureStatusText {
		t.Errorf("status = %d %q", resp.Status, resp.StatusText)
	}
	if resp.BodyText != "dial tcp: connection refused" {
		t.Errorf("BodyText = %q", resp.BodyText)
	}
	if body, ok := resp.BodyJSON.(map[string]any); !ok || body["error"] != resp.BodyText {
		t.Errorf("BodyJSON = %#v", resp.BodyJSON)
	}
	if len(resp.Headers) != 0 {
		t.Errorf("Headers = %v", resp.Headers)
	}
}

func TestSendSupersedesPreviousForSameKey(t *testing.T) {
	ft := &fakeTransport{block: true, started: make(chan struct{}, 2)}
	o := New(ft, 10*time.Second, quietLogger())
	parts := models.RequestParts{BaseURL: "http://h", Path: "/slow"}

	firstErr := make(chan error, 1)
	go func() {
		_, err := o.Send(context.Background(), "GET:/slow", parts, SendOptions{})
		firstErr <- err
	}()
	<-ft.started

	ft.mu.Lock()
	ft.block = false
	ft.resp = models.HttpResponse{Status: 204}
	ft.mu.Unlock()

	resp, err := o.Send(context.Background(), "GET:/slow", parts, SendOptions{})
	<-ft.started
	if err != nil {
		t.Fatalf("second Send: %v", err)
	}
	if resp.Status != 204 {
		t.Errorf("second Status = %d", resp.Status)
	}

	select {
	case err := <-firstErr:
		if !errors.Is(err, ErrAborted) || !errors.Is(err, errSuperseded) {
			t.Errorf("first Send error = %v, want superseded abort", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("superseded send did not return")
	}
}

func TestSendDifferentKeysRunIndependently(t *testing.T) {
	ft := &fakeTransport{block: true, started: make(chan struct{}, 2)}
	o := New(ft, 10*time.Second, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 1)
	go func() {
		_, err := o.Send(ctx, "GET:/a", models.RequestParts{BaseURL: "http://h", Path: "/a"}, SendOptions{})
		errs <- err
	}()
	<-ft.started

	ft.mu.Lock()
	ft.block = false
	ft.mu.Unlock()

	if _, err := o.Send(context.Background(), "GET:/b", models.RequestParts{BaseURL: "http://h", Path: "/b"}, SendOptions{}); err != nil {
		t.Fatalf("Send /b: %v", err)
	}
	<-ft.started

	if !o.InFlight("GET:/a") {
		t.Error("send for another key aborted an unrelated request")
	}
	cancel()
	if err := <-errs; !errors.Is(err, ErrAborted) {
		t.Errorf("error = %v", err)
	}
}

func TestSendCallerCancelDropsSyntheticResult(t *testing.T) {
	ft := &fakeTransport{block: true, started: make(chan struct{}, 1)}
	o := New(ft, 10*time.Second, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-ft.started
		cancel()
	}()

	resp, err := o.Send(ctx, "k", models.RequestParts{BaseURL: "http://h", Path: "/"}, SendOptions{})
	if !errors.Is(err, ErrAborted) || !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want aborted", err)
	}
	if resp.Status != 0 {
		t.Errorf("aborted send surfaced a response: %+v", resp)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	ft := &fakeTransport{block: true, started: make(chan struct{}, 1)}
	o := New(ft, 10*time.Second, quietLogger())

	errs := make(chan error, 1)
	go func() {
		_, err := o.Send(context.Background(), "k", models.RequestParts{BaseURL: "http://h", Path: "/"}, SendOptions{})
		errs <- err
	}()
	<-ft.started

	o.Cancel("k")
	o.Cancel("k")
	if err := <-errs; !errors.Is(err, ErrAborted) || !errors.Is(err, errCancelled) {
		t.Errorf("error = %v", err)
	}
	o.Cancel("k")
	o.Cancel("unknown")
}

func TestSendTimeoutAgainstSilentServer(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	o := New(transport.NewDirect(transport.Options{}), 0, quietLogger())

	const deadline = 200 * time.Millisecond
	start := time.Now()
	_, err := o.Send(context.Background(), "GET:/", models.RequestParts{BaseURL: server.URL, Path: "/"}, SendOptions{Timeout: deadline})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrAborted) {
		t.Errorf("error = %v, want ErrAborted", err)
	}
	if elapsed > deadline+time.Second {
		t.Errorf("Send took %v with a %v deadline", elapsed, deadline)
	}
}
