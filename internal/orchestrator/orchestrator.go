// Package orchestrator composes URL building, header merging and the active
// transport into a single send operation per logical target.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/moamenhredeen/oasc/internal/models"
	"github.com/moamenhredeen/oasc/internal/request"
	"github.com/moamenhredeen/oasc/internal/transport"
)

// FailureStatusText marks synthetic responses for failed sends
const FailureStatusText = "Request Failed"

var (
	// ErrAborted is returned when the caller cancelled, the deadline passed or a
	// newer send for the same target superseded this one. No response is surfaced.
	ErrAborted = errors.New("request aborted")

	errSuperseded = errors.New("superseded by a newer request")
	errCancelled  = errors.New("cancelled by caller")
)

// SendOptions carries the per-send inputs that are not part of the request parts
type SendOptions struct {
	Auth          models.AppliedAuth
	CustomHeaders map[string]string
	Timeout       time.Duration
	OnEvent       transport.EventFunc
}

// Prepared is the fully merged request, shared by the live send and the cURL preview
type Prepared struct {
	Method    string
	URL       string
	Headers   map[string]string
	Body      *string
	MediaType string
}

// Orchestrator sends requests through one process-wide transport.
// Only the most recent send per key is observable.
type Orchestrator struct {
	transport transport.Transport
	logger    *slog.Logger
	timeout   time.Duration

	mu       sync.Mutex
	seq      uint64
	inflight map[string]flight
}

type flight struct {
	id     uint64
	cancel context.CancelCauseFunc
}

// New creates an orchestrator around the active transport
func New(t transport.Transport, timeout time.Duration, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{
		transport: t,
		logger:    logger.With("component", "orchestrator"),
		timeout:   timeout,
		inflight:  make(map[string]flight),
	}
}

// Prepare builds the URL, merges headers and query parameters and serializes
// the body. Auth headers win over custom headers, which win over explicit ones.
func Prepare(parts models.RequestParts, opts SendOptions) (Prepared, error) {
	method := strings.ToUpper(parts.Method)
	if method == "" {
		method = http.MethodGet
	}

	query := request.MergeQuery(parts.QueryParams, opts.Auth.QueryParams)
	url := request.BuildURL(parts.BaseURL, parts.Path, parts.PathParams, query)
	headers := request.MergeHeaders(parts.HeaderParams, opts.CustomHeaders, opts.Auth.Headers)

	body, err := request.SerializeBody(method, parts.Body)
	if err != nil {
		return Prepared{}, fmt.Errorf("failed to serialize body: %w", err)
	}

	if parts.MediaType != "" {
		if _, ok := headers["content-type"]; !ok {
			headers["content-type"] = parts.MediaType
		}
	}

	return Prepared{
		Method:    method,
		URL:       url,
		Headers:   headers,
		Body:      body,
		MediaType: parts.MediaType,
	}, nil
}

// Send prepares and dispatches a request for the target identified by key.
// A send already in flight for the same key is aborted first.
//
// The returned error is always ErrAborted (wrapping the cause); every other
// failure is folded into a synthetic 500 response.
func (o *Orchestrator) Send(ctx context.Context, key string, parts models.RequestParts, opts SendOptions) (models.HttpResponse, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = o.timeout
	}
	if timeout <= 0 {
		timeout = transport.DefaultTimeout
	}

	ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	id := o.begin(key, cancel)
	defer o.finish(key, id)

	prepared, err := Prepare(parts, opts)
	if err != nil {
		return Failure(err), nil
	}

	onEvent := opts.OnEvent
	if onEvent != nil {
		onEvent = func(ev models.StreamEvent) {
			if ctx.Err() == nil {
				opts.OnEvent(ev)
			}
		}
	}

	o.logger.Debug("sending request", "key", key, "method", prepared.Method, "url", prepared.URL)
	start := time.Now()

	resp, err := o.transport.Send(ctx, transport.Request{
		Method:  prepared.Method,
		URL:     prepared.URL,
		Headers: prepared.Headers,
		Body:    prepared.Body,
		Timeout: timeout,
	}, onEvent)

	if ctx.Err() != nil {
		cause := context.Cause(ctx)
		o.logger.Debug("request aborted", "key", key, "cause", cause)
		return models.HttpResponse{}, fmt.Errorf("%w: %w", ErrAborted, cause)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.HttpResponse{}, fmt.Errorf("%w: %w", ErrAborted, err)
		}
		o.logger.Warn("request failed", "key", key, "err", err)
		return Failure(err), nil
	}

	o.logger.Info("request completed",
		"key", key,
		"status", resp.Status,
		"duration_ms", time.Since(start).Milliseconds(),
		"events", len(resp.StreamEvents),
	)
	return resp, nil
}

// Cancel aborts the in-flight send for key, if any. Cancelling twice, or
// after completion, does nothing.
func (o *Orchestrator) Cancel(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if f, ok := o.inflight[key]; ok {
		f.cancel(errCancelled)
		delete(o.inflight, key)
	}
}

// InFlight reports whether a send for key is currently running
func (o *Orchestrator) InFlight(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inflight[key]
	return ok
}

func (o *Orchestrator) begin(key string, cancel context.CancelCauseFunc) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	if prev, ok := o.inflight[key]; ok {
		prev.cancel(errSuperseded)
	}
	o.seq++
	o.inflight[key] = flight{id: o.seq, cancel: cancel}
	return o.seq
}

func (o *Orchestrator) finish(key string, id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if f, ok := o.inflight[key]; ok && f.id == id {
		delete(o.inflight, key)
	}
}

// Failure builds the synthetic response for a send that failed independently of cancellation
func Failure(err error) models.HttpResponse {
	msg := "Unknown error"
	if err != nil {
		msg = err.Error()
	}
	return models.HttpResponse{
		Status:     http.StatusInternalServerError,
		StatusText: FailureStatusText,
		Headers:    map[string]string{},
		BodyText:   msg,
		BodyJSON:   map[string]any{"error": msg},
	}
}
