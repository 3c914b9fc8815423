package models

import "time"

// HttpResponse is the uniform response shape produced by every transport
type HttpResponse struct {
	Status        int               `json:"status"`
	StatusText    string            `json:"status_text"`
	Headers       map[string]string `json:"headers"`
	BodyText      string            `json:"body_text"`
	BodyJSON      any               `json:"body_json"`
	Timings       *Timings          `json:"timings,omitempty"`
	WireSizeBytes int64             `json:"wire_size_bytes"`
	BodySizeBytes int64             `json:"body_size_bytes"`
	StreamEvents  []StreamEvent     `json:"stream_events,omitempty"`
	SessionID     string            `json:"session_id,omitempty"`
}

// IsStream reports whether the response was decoded from an event stream
func (r HttpResponse) IsStream() bool {
	return len(r.StreamEvents) > 0
}

// Timings holds the phase breakdown of a request in milliseconds
type Timings struct {
	Prepare  float64 `json:"prepare"`
	DNS      float64 `json:"dns"`
	TCP      float64 `json:"tcp"`
	TLS      float64 `json:"tls"`
	TTFB     float64 `json:"ttfb"`
	Download float64 `json:"download"`
	Process  float64 `json:"process"`
	Total    float64 `json:"total"`
}

// StreamEvent is one decoded server-sent event
type StreamEvent struct {
	EventID   int       `json:"event_id"`
	EventType string    `json:"event_type"`
	Data      string    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	ElapsedMs float64   `json:"elapsed_ms"`
}

// Milliseconds converts a duration to fractional milliseconds
func Milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
