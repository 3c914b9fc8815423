package transport

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/moamenhredeen/oasc/internal/models"
	"github.com/moamenhredeen/oasc/internal/sse"
)

// Direct sends requests from the current process with net/http.
// Every call gets its own client; connections are never pooled.
type Direct struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewDirect creates a direct transport
func NewDirect(opts Options) *Direct {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Direct{
		timeout: opts.Timeout,
		logger:  logger.With("component", "direct_transport"),
	}
}

// Send performs the request. The effective deadline is the request timeout
// (or the transport default) combined with ctx; whichever fires first aborts
// the in-flight call.
func (d *Direct) Send(ctx context.Context, req Request, onEvent EventFunc) (models.HttpResponse, error) {
	timer := newPhaseTimer()

	ctx, cancel := context.WithTimeout(ctx, effectiveTimeout(req.Timeout, d.timeout))
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = strings.NewReader(*req.Body)
	}

	httpReq, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, timer.trace()), strings.ToUpper(req.Method), req.URL, body)
	if err != nil {
		return models.HttpResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get("Accept-Encoding") == "" {
		httpReq.Header.Set("Accept-Encoding", "gzip, deflate")
	}
	timer.mark(&timer.prepared)

	resp, err := newClient().Do(httpReq)
	if err != nil {
		return models.HttpResponse{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	headers := flattenHeaders(resp.Header)
	statusText := StatusText(resp)
	contentType := resp.Header.Get("Content-Type")

	wire := &countingReader{r: resp.Body}
	decoded, err := decodeContent(resp.Header.Get("Content-Encoding"), wire)
	if err != nil {
		return models.HttpResponse{}, fmt.Errorf("failed to decode body: %w", err)
	}

	if sse.IsEventStream(contentType) {
		d.logger.Debug("decoding event stream", "url", req.URL)
		result, err := sse.Decode(ctx, decoded, sse.Options{
			Start:   timer.start,
			Charset: sse.Charset(contentType),
			OnEvent: onEvent,
		})
		if err != nil {
			return models.HttpResponse{}, fmt.Errorf("event stream: %w", err)
		}
		out := result.Response(resp.StatusCode, statusText, headers)
		out.WireSizeBytes = wire.n
		return out, nil
	}

	raw, err := io.ReadAll(decoded)
	if err != nil {
		return models.HttpResponse{}, fmt.Errorf("failed to read response body: %w", err)
	}
	timer.mark(&timer.downloaded)

	text := sse.DecodeText(contentType, raw)
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		parsed = nil
	}
	timer.mark(&timer.processed)

	return models.HttpResponse{
		Status:        resp.StatusCode,
		StatusText:    statusText,
		Headers:       headers,
		BodyText:      text,
		BodyJSON:      parsed,
		Timings:       timer.timings(),
		WireSizeBytes: wire.n,
		BodySizeBytes: int64(len(raw)),
	}, nil
}

func newClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DisableKeepAlives:   true,
			DisableCompression:  true,
			ForceAttemptHTTP2:   true,
			TLSHandshakeTimeout: 30 * time.Second,
		},
	}
}

// StatusText returns the reason phrase of a response
func StatusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vals := range h {
		out[strings.ToLower(k)] = strings.Join(vals, ", ")
	}
	return out
}

func decodeContent(encoding string, r io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(r)
		if errors.Is(err, io.EOF) {
			return strings.NewReader(""), nil
		}
		if err != nil {
			return nil, err
		}
		return zr, nil
	case "deflate":
		return newDeflateReader(r)
	default:
		return r, nil
	}
}

// newDeflateReader accepts both zlib-wrapped and raw deflate payloads.
// Only the two header bytes are read up front so streams decode as they arrive.
func newDeflateReader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(2)
	if len(header) == 0 && errors.Is(err, io.EOF) {
		return strings.NewReader(""), nil
	}
	if len(header) == 2 && header[0]&0x0f == 8 && (uint16(header[0])<<8|uint16(header[1]))%31 == 0 {
		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, err
		}
		return zr, nil
	}
	return flate.NewReader(br), nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// phaseTimer records httptrace callbacks. Dial callbacks may fire on other
// goroutines, hence the mutex.
type phaseTimer struct {
	mu         sync.Mutex
	start      time.Time
	prepared   time.Time
	dnsStart   time.Time
	dnsDone    time.Time
	connStart  time.Time
	connDone   time.Time
	tlsStart   time.Time
	tlsDone    time.Time
	wrote      time.Time
	firstByte  time.Time
	downloaded time.Time
	processed  time.Time
}

func newPhaseTimer() *phaseTimer {
	return &phaseTimer{start: time.Now()}
}

func (p *phaseTimer) mark(field *time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if field.IsZero() {
		*field = time.Now()
	}
}

func (p *phaseTimer) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart:             func(httptrace.DNSStartInfo) { p.mark(&p.dnsStart) },
		DNSDone:              func(httptrace.DNSDoneInfo) { p.mark(&p.dnsDone) },
		ConnectStart:         func(string, string) { p.mark(&p.connStart) },
		ConnectDone:          func(string, string, error) { p.mark(&p.connDone) },
		TLSHandshakeStart:    func() { p.mark(&p.tlsStart) },
		TLSHandshakeDone:     func(tls.ConnectionState, error) { p.mark(&p.tlsDone) },
		WroteRequest:         func(httptrace.WroteRequestInfo) { p.mark(&p.wrote) },
		GotFirstResponseByte: func() { p.mark(&p.firstByte) },
	}
}

func (p *phaseTimer) timings() *models.Timings {
	p.mu.Lock()
	defer p.mu.Unlock()

	span := func(from, to time.Time) float64 {
		if from.IsZero() || to.IsZero() || to.Before(from) {
			return 0
		}
		return models.Milliseconds(to.Sub(from))
	}

	sent := p.wrote
	if sent.IsZero() {
		sent = p.prepared
	}
	end := p.processed
	if end.IsZero() {
		end = time.Now()
	}

	return &models.Timings{
		Prepare:  span(p.start, p.prepared),
		DNS:      span(p.dnsStart, p.dnsDone),
		TCP:      span(p.connStart, p.connDone),
		TLS:      span(p.tlsStart, p.tlsDone),
		TTFB:     span(sent, p.firstByte),
		Download: span(p.firstByte, p.downloaded),
		Process:  span(p.downloaded, p.processed),
		Total:    span(p.start, end),
	}
}
