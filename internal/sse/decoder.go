// Package sse decodes server-sent event streams incrementally.
package sse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/transform"

	"github.com/moamenhredeen/oasc/internal/models"
)

// DefaultEventType is used for frames without an event line
const DefaultEventType = "message"

var frameDelimiter = []byte("\n\n")

// Options configures a Decoder
type Options struct {
	// Start is the instant the request was issued; elapsed times are measured from it.
	Start time.Time
	// Charset of the stream, UTF-8 when empty.
	Charset string
	// OnEvent is called synchronously for every event as soon as it is framed.
	OnEvent func(models.StreamEvent)
	// Now overrides the wall clock.
	Now func() time.Time
}

// Decoder turns arbitrarily chunked stream bytes into ordered events.
// Bytes are decoded through a stateful charset transformer so multi-byte
// characters split across chunks survive intact.
type Decoder struct {
	opts       Options
	text       *transform.Writer
	pending    []byte
	nextID     int
	wire       int64
	decoded    int64
	events     []models.StreamEvent
	transcript strings.Builder
	closed     bool
}

// NewDecoder creates a decoder with empty buffers and the event counter at 1
func NewDecoder(opts Options) *Decoder {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Start.IsZero() {
		opts.Start = opts.Now()
	}

	d := &Decoder{opts: opts, nextID: 1}
	d.text = transform.NewWriter(frameSink{d}, Encoding(opts.Charset).NewDecoder())
	return d
}

// Write feeds raw stream bytes into the decoder
func (d *Decoder) Write(p []byte) (int, error) {
	if d.closed {
		return 0, errors.New("sse: write after close")
	}
	d.wire += int64(len(p))
	return d.text.Write(p)
}

// Close flushes the charset decoder. A trailing frame without a blank line is discarded.
func (d *Decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.text.Close()
}

// Events returns the events emitted so far
func (d *Decoder) Events() []models.StreamEvent {
	return d.events
}

// Result summarises what the decoder has seen
func (d *Decoder) Result() Result {
	return Result{
		Events:    d.events,
		BodyText:  d.transcript.String(),
		WireBytes: d.wire,
		BodyBytes: d.decoded,
		ElapsedMs: models.Milliseconds(d.opts.Now().Sub(d.opts.Start)),
	}
}

type frameSink struct{ d *Decoder }

func (s frameSink) Write(p []byte) (int, error) {
	d := s.d
	d.decoded += int64(len(p))
	d.pending = append(d.pending, p...)

	for {
		idx := bytes.Index(d.pending, frameDelimiter)
		if idx < 0 {
			break
		}
		frame := string(d.pending[:idx])
		d.pending = d.pending[idx+len(frameDelimiter):]
		d.emit(frame)
	}

	return len(p), nil
}

func (d *Decoder) emit(frame string) {
	if strings.TrimSpace(frame) == "" {
		return
	}

	eventType := DefaultEventType
	var dataLines []string
	for _, line := range strings.Split(frame, "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case strings.HasPrefix(line, "event:"):
			if t := strings.TrimSpace(line[len("event:"):]); t != "" {
				eventType = t
			}
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(line[len("data:"):], " "))
		}
	}

	data := strings.Join(dataLines, "\n")
	if data == "" {
		return
	}

	now := d.opts.Now()
	event := models.StreamEvent{
		EventID:   d.nextID,
		EventType: eventType,
		Data:      data,
		Timestamp: now,
		ElapsedMs: models.Milliseconds(now.Sub(d.opts.Start)),
	}
	d.nextID++
	d.events = append(d.events, event)
	d.transcript.WriteString(data)
	d.transcript.WriteByte('\n')

	if d.opts.OnEvent != nil {
		d.opts.OnEvent(event)
	}
}

// Result is the aggregate of one decoded stream
type Result struct {
	Events    []models.StreamEvent
	BodyText  string
	WireBytes int64
	BodyBytes int64
	ElapsedMs float64
}

// Response converts the aggregate into the uniform response shape. Only the
// total timing is filled in; the stream carries no JSON body.
func (r Result) Response(status int, statusText string, headers map[string]string) models.HttpResponse {
	resp := models.HttpResponse{
		Status:        status,
		StatusText:    statusText,
		Headers:       headers,
		BodyText:      r.BodyText,
		BodyJSON:      nil,
		Timings:       &models.Timings{Total: r.ElapsedMs},
		WireSizeBytes: r.WireBytes,
		BodySizeBytes: r.BodyBytes,
	}
	if len(r.Events) > 0 {
		resp.StreamEvents = r.Events
	}
	return resp
}

// Decode reads r until EOF, emitting events as they are framed. The context
// is checked before every read; on cancellation the partial result is
// returned together with the context error.
func Decode(ctx context.Context, r io.Reader, opts Options) (Result, error) {
	dec := NewDecoder(opts)
	buf := make([]byte, 32*1024)

	for {
		if err := ctx.Err(); err != nil {
			return dec.Result(), err
		}

		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := dec.Write(buf[:n]); werr != nil {
				return dec.Result(), fmt.Errorf("decode event stream: %w", werr)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return dec.Result(), ctxErr
			}
			return dec.Result(), fmt.Errorf("read event stream: %w", err)
		}
	}

	if err := dec.Close(); err != nil {
		return dec.Result(), fmt.Errorf("decode event stream: %w", err)
	}
	return dec.Result(), nil
}
