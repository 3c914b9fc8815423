package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/moamenhredeen/oasc/internal/models"
)

// HostErrorStatusText marks synthetic responses produced by a failed host command
const HostErrorStatusText = "Host Command Error"

// Host command paths served by the host process
const (
	MakeRequestPath = "/commands/make_request"
	LoadSpecPath    = "/commands/load_spec"
)

// Reply line kinds of the make_request command
const (
	MessageEvent    = "sse_event"
	MessageResponse = "response"
	MessageError    = "error"
)

// HostRequest is the payload of the make_request command
type HostRequest struct {
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers"`
	Body      *string           `json:"body,omitempty"`
	TimeoutMs int64             `json:"timeout_ms,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
}

// HostMessage is one newline-delimited JSON line of a make_request reply
type HostMessage struct {
	Kind     string               `json:"kind"`
	Event    *models.StreamEvent  `json:"event,omitempty"`
	Response *models.HttpResponse `json:"response,omitempty"`
	Message  string               `json:"message,omitempty"`
}

// LoadSpecRequest is the payload of the load_spec command
type LoadSpecRequest struct {
	URL string `json:"url"`
}

// LoadSpecResponse carries the fetched document text
type LoadSpecResponse struct {
	Content string `json:"content"`
}

// Host delegates requests to a host process over HTTP. Failures never
// surface as errors from Send; they become synthetic responses.
type Host struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// NewHost creates a host-proxied transport
func NewHost(opts Options) *Host {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Host{
		baseURL: strings.TrimRight(opts.HostURL, "/"),
		timeout: opts.Timeout,
		client:  &http.Client{Transport: &http.Transport{Proxy: nil, DisableKeepAlives: true}},
		logger:  logger.With("component", "host_transport"),
	}
}

// HostFailure builds the synthetic response for a failed host command
func HostFailure(message string) models.HttpResponse {
	return models.HttpResponse{
		Status:        http.StatusInternalServerError,
		StatusText:    HostErrorStatusText,
		Headers:       map[string]string{},
		BodyText:      message,
		BodyJSON:      map[string]any{"error": message},
		BodySizeBytes: int64(len(message)),
	}
}

// Send forwards the request to the host and relays stream events as they arrive
func (h *Host) Send(ctx context.Context, req Request, onEvent EventFunc) (models.HttpResponse, error) {
	timeout := effectiveTimeout(req.Timeout, h.timeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := h.call(ctx, req, timeout, onEvent)
	if err != nil {
		h.logger.Warn("host command failed", "url", req.URL, "err", err)
		return HostFailure(err.Error()), nil
	}
	return resp, nil
}

func (h *Host) call(ctx context.Context, req Request, timeout time.Duration, onEvent EventFunc) (models.HttpResponse, error) {
	payload, err := json.Marshal(HostRequest{
		Method:    strings.ToUpper(req.Method),
		URL:       req.URL,
		Headers:   req.Headers,
		Body:      req.Body,
		TimeoutMs: timeout.Milliseconds(),
		SessionID: uuid.NewString(),
	})
	if err != nil {
		return models.HttpResponse{}, fmt.Errorf("encode host request: %w", err)
	}

	reply, err := h.post(ctx, MakeRequestPath, payload)
	if err != nil {
		return models.HttpResponse{}, err
	}
	defer reply.Body.Close()

	var events []models.StreamEvent
	dec := json.NewDecoder(reply.Body)
	for {
		var msg HostMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return models.HttpResponse{}, errors.New("host closed the reply without a response")
			}
			return models.HttpResponse{}, fmt.Errorf("decode host reply: %w", err)
		}

		switch msg.Kind {
		case MessageEvent:
			if msg.Event == nil {
				continue
			}
			events = append(events, *msg.Event)
			if onEvent != nil {
				onEvent(*msg.Event)
			}
		case MessageResponse:
			if msg.Response == nil {
				return models.HttpResponse{}, errors.New("host sent an empty response")
			}
			return finishHostResponse(*msg.Response, events), nil
		case MessageError:
			return models.HttpResponse{}, errors.New(msg.Message)
		default:
			h.logger.Debug("ignoring unknown host message", "kind", msg.Kind)
		}
	}
}

func finishHostResponse(resp models.HttpResponse, events []models.StreamEvent) models.HttpResponse {
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	if len(resp.StreamEvents) == 0 && len(events) > 0 {
		resp.StreamEvents = events
	}
	if resp.BodyJSON == nil && !resp.IsStream() && resp.BodyText != "" {
		var parsed any
		if err := json.Unmarshal([]byte(resp.BodyText), &parsed); err == nil {
			resp.BodyJSON = parsed
		}
	}
	return resp
}

// FetchSpec asks the host to download a document, for callers that cannot
// reach the network themselves.
func (h *Host) FetchSpec(ctx context.Context, url string) ([]byte, error) {
	payload, err := json.Marshal(LoadSpecRequest{URL: url})
	if err != nil {
		return nil, fmt.Errorf("encode load_spec request: %w", err)
	}

	reply, err := h.post(ctx, LoadSpecPath, payload)
	if err != nil {
		return nil, err
	}
	defer reply.Body.Close()

	var out LoadSpecResponse
	if err := json.NewDecoder(reply.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode load_spec reply: %w", err)
	}
	return []byte(out.Content), nil
}

func (h *Host) post(ctx context.Context, path string, payload []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create host request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("host unreachable: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, hostStatusError(resp)
	}
	return resp, nil
}

func hostStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return errors.New(payload.Error)
		}
		if payload.Message != "" {
			return errors.New(payload.Message)
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return fmt.Errorf("host returned %d: %s", resp.StatusCode, text)
	}
	return fmt.Errorf("host returned %d", resp.StatusCode)
}
