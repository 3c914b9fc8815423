package hostproxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/moamenhredeen/oasc/internal/metrics"
	"github.com/moamenhredeen/oasc/internal/models"
	"github.com/moamenhredeen/oasc/internal/parser"
	"github.com/moamenhredeen/oasc/internal/transport"
)

const ndjsonContentType = "application/x-ndjson"

// secretPattern matches credential query values in URLs embedded in error messages.
var secretPattern = regexp.MustCompile(`(?i)((?:api[_-]?key|access_token|token)=)[^&\s"]+`)

// CommandHandler serves the make_request and load_spec commands
type CommandHandler struct {
	transport transport.Transport
	fetcher   parser.Fetcher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewCommandHandler creates a CommandHandler
func NewCommandHandler(t transport.Transport, f parser.Fetcher, m *metrics.Metrics, logger *slog.Logger) *CommandHandler {
	return &CommandHandler{
		transport: t,
		fetcher:   f,
		metrics:   m,
		logger:    logger.With("component", "command_handler"),
	}
}

// MakeRequest performs the described request and replies with newline
// delimited JSON: one sse_event line per stream event, then a single
// response or error line.
func (h *CommandHandler) MakeRequest(c echo.Context) error {
	var req transport.HostRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid make_request payload",
		})
	}
	if err := validateTarget(req.Method, req.URL); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, ndjsonContentType)
	res.WriteHeader(http.StatusOK)
	res.Flush()

	enc := json.NewEncoder(res)
	write := func(msg transport.HostMessage) {
		if err := enc.Encode(msg); err != nil {
			h.logger.Debug("client went away", "session_id", req.SessionID, "err", err)
			return
		}
		res.Flush()
	}

	method := metrics.NormalizeMethod(req.Method)
	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	start := time.Now()

	resp, err := h.transport.Send(c.Request().Context(), transport.Request{
		Method:  req.Method,
		URL:     req.URL,
		Headers: req.Headers,
		Body:    req.Body,
		Timeout: timeout,
	}, func(ev models.StreamEvent) {
		h.metrics.StreamEvents.Inc()
		write(transport.HostMessage{Kind: transport.MessageEvent, Event: &ev})
	})
	h.metrics.UpstreamDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	if err != nil {
		h.metrics.UpstreamFailures.WithLabelValues(method).Inc()
		h.logger.Warn("make_request failed",
			"session_id", req.SessionID,
			"err", sanitizeError(err),
		)
		write(transport.HostMessage{Kind: transport.MessageError, Message: describeError(err, timeout)})
		return nil
	}

	h.metrics.UpstreamResponses.WithLabelValues(method, strconv.Itoa(resp.Status)).Inc()
	resp.SessionID = req.SessionID
	// Events already went out line by line; the client reassembles them.
	resp.StreamEvents = nil
	write(transport.HostMessage{Kind: transport.MessageResponse, Response: &resp})
	return nil
}

// LoadSpec downloads a document and returns its text
func (h *CommandHandler) LoadSpec(c echo.Context) error {
	var req transport.LoadSpecRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid load_spec payload",
		})
	}
	if !parser.IsRemote(req.URL) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "load_spec requires an http or https URL",
		})
	}

	body, err := h.fetcher.Fetch(c.Request().Context(), req.URL)
	if err != nil {
		h.logger.Warn("load_spec failed", "url", req.URL, "err", sanitizeError(err))
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": describeError(err, 0),
		})
	}

	return c.JSON(http.StatusOK, transport.LoadSpecResponse{Content: string(body)})
}

func validateTarget(method, target string) error {
	if strings.TrimSpace(method) == "" {
		return errors.New("method is required")
	}
	if strings.ContainsAny(method, " \t\r\n") {
		return fmt.Errorf("invalid method %q", method)
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url has no host")
	}
	return nil
}

func describeError(err error, timeout time.Duration) string {
	if errors.Is(err, context.DeadlineExceeded) {
		if timeout > 0 {
			return fmt.Sprintf("request timed out after %dms", timeout.Milliseconds())
		}
		return "request timed out"
	}

	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Sprintf("host unreachable: %s", dnsErr.Name)
	}

	return sanitizeError(err)
}

// sanitizeError redacts credential query values from error messages
func sanitizeError(err error) string {
	return secretPattern.ReplaceAllString(err.Error(), "${1}[REDACTED]")
}
