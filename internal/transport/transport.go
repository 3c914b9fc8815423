// Package transport dispatches HTTP requests and normalizes their responses.
package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/moamenhredeen/oasc/internal/models"
)

// DefaultTimeout applies when neither the caller nor the configuration sets one
const DefaultTimeout = 600000 * time.Millisecond

// Request is a fully resolved outgoing request
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    *string
	Timeout time.Duration
}

// EventFunc receives stream events in arrival order
type EventFunc func(models.StreamEvent)

// Transport sends a request and returns the uniform response shape.
// Implementations are stateless across calls and safe for concurrent use.
type Transport interface {
	Send(ctx context.Context, req Request, onEvent EventFunc) (models.HttpResponse, error)
}

// Kind selects a Transport implementation
type Kind string

const (
	// KindDirect issues requests from the calling process
	KindDirect Kind = "direct"
	// KindHost delegates requests to a host process
	KindHost Kind = "host"
)

// ParseKind parses a transport kind, defaulting to direct
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindDirect:
		return KindDirect, nil
	case KindHost:
		return KindHost, nil
	default:
		return "", fmt.Errorf("invalid transport kind '%s': must be 'direct' or 'host'", s)
	}
}

// Options configures the transport built by New
type Options struct {
	Timeout time.Duration
	HostURL string
	Logger  *slog.Logger
}

// New builds the transport for kind. It is called once at startup.
func New(kind Kind, opts Options) (Transport, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	switch kind {
	case KindDirect, "":
		return NewDirect(opts), nil
	case KindHost:
		if opts.HostURL == "" {
			return nil, fmt.Errorf("host transport requires a host URL")
		}
		return NewHost(opts), nil
	default:
		return nil, fmt.Errorf("unsupported transport kind: %s", kind)
	}
}

func effectiveTimeout(requested, fallback time.Duration) time.Duration {
	if requested > 0 {
		return requested
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultTimeout
}
