package sse

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/moamenhredeen/oasc/internal/models"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		t = t.Add(10 * time.Millisecond)
		return t
	}
}

func decodeChunks(t *testing.T, chunks [][]byte) Result {
	t.Helper()
	dec := NewDecoder(Options{Now: fixedClock()})
	for _, c := range chunks {
		if _, err := dec.Write(c); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := dec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return dec.Result()
}

func splitEvery(b []byte, n int) [][]byte {
	var out [][]byte
	for len(b) > n {
		out = append(out, b[:n])
		b = b[n:]
	}
	return append(out, b)
}

func TestDecoderPingAndMultilineData(t *testing.T) {
	stream := []byte("event: ping\ndata: 1\n\ndata: 2\ndata: 3\n\n")
	res := decodeChunks(t, [][]byte{stream})

	if len(res.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(res.Events))
	}
	first, second := res.Events[0], res.Events[1]
	if first.EventType != "ping" || first.Data != "1" || first.EventID != 1 {
		t.Errorf("first event = %+v", first)
	}
	if second.EventType != DefaultEventType || second.Data != "2\n3" || second.EventID != 2 {
		t.Errorf("second event = %+v", second)
	}
	if res.BodyText != "1\n2\n3\n" {
		t.Errorf("BodyText = %q", res.BodyText)
	}
	if res.WireBytes != int64(len(stream)) {
		t.Errorf("WireBytes = %d, want %d", res.WireBytes, len(stream))
	}
}

func TestDecoderChunkingInvariance(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		sb.WriteString("event: tick\n")
		sb.WriteString("data: héllo wörld ✓ ")
		sb.WriteString(strings.Repeat("x", i))
		sb.WriteString("\ndata:second line\n\n")
		if i%5 == 0 {
			sb.WriteString("\n\n: comment only\n\nevent: empty\n\n")
		}
	}
	stream := []byte(sb.String())

	whole := decodeChunks(t, [][]byte{stream})
	if len(whole.Events) != 20 {
		t.Fatalf("got %d events, want 20", len(whole.Events))
	}

	for _, size := range []int{1, 2, 3, 7, 64} {
		chunked := decodeChunks(t, splitEvery(stream, size))
		if chunked.BodyText != whole.BodyText {
			t.Errorf("chunk size %d: BodyText differs", size)
		}
		if len(chunked.Events) != len(whole.Events) {
			t.Fatalf("chunk size %d: %d events, want %d", size, len(chunked.Events), len(whole.Events))
		}
		for i, ev := range chunked.Events {
			want := whole.Events[i]
			if ev.EventID != i+1 || ev.EventID != want.EventID || ev.EventType != want.EventType || ev.Data != want.Data {
				t.Errorf("chunk size %d: event %d = %+v, want %+v", size, i, ev, want)
			}
		}
	}
}

func TestDecoderSplitMultibyteCharacter(t *testing.T) {
	stream := []byte("data: ✓\n\n")
	idx := bytes.IndexByte(stream, 0xe2)
	res := decodeChunks(t, [][]byte{stream[:idx+1], stream[idx+1 : idx+2], stream[idx+2:]})

	if len(res.Events) != 1 || res.Events[0].Data != "✓" {
		t.Fatalf("events = %+v", res.Events)
	}
}

func TestDecoderDropsEmptyAndUnterminatedFrames(t *testing.T) {
	stream := []byte("\n\nevent: noop\n\ndata:\n\ndata: a\n\ndata: trailing")
	res := decodeChunks(t, [][]byte{stream})

	if len(res.Events) != 1 {
		t.Fatalf("got %d events, want 1: %+v", len(res.Events), res.Events)
	}
	if res.Events[0].EventID != 1 || res.Events[0].Data != "a" {
		t.Errorf("event = %+v", res.Events[0])
	}
	if strings.Contains(res.BodyText, "trailing") {
		t.Error("unterminated frame leaked into the transcript")
	}
}

func TestDecoderStripsSingleLeadingSpace(t *testing.T) {
	res := decodeChunks(t, [][]byte{[]byte("data:  two spaces\ndata:none\n\n")})
	if len(res.Events) != 1 {
		t.Fatalf("got %d events", len(res.Events))
	}
	if res.Events[0].Data != " two spaces\nnone" {
		t.Errorf("Data = %q", res.Events[0].Data)
	}
}

func TestDecoderCallbackAndTiming(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := start
	var seen []models.StreamEvent

	dec := NewDecoder(Options{
		Start:   start,
		Now:     func() time.Time { clock = clock.Add(250 * time.Millisecond); return clock },
		OnEvent: func(ev models.StreamEvent) { seen = append(seen, ev) },
	})

	dec.Write([]byte("data: a\n\n"))
	if len(seen) != 1 {
		t.Fatalf("callback not invoked as soon as the frame completed")
	}
	dec.Write([]byte("data: b\n\n"))
	dec.Close()

	if seen[0].ElapsedMs != 250 || seen[1].ElapsedMs != 500 {
		t.Errorf("elapsed = %v, %v", seen[0].ElapsedMs, seen[1].ElapsedMs)
	}
	if !seen[1].Timestamp.Equal(start.Add(500 * time.Millisecond)) {
		t.Errorf("timestamp = %v", seen[1].Timestamp)
	}
}

func TestDecoderLatin1Charset(t *testing.T) {
	res := func() Result {
		dec := NewDecoder(Options{Charset: "iso-8859-1"})
		dec.Write([]byte("data: caf\xe9\n\n"))
		dec.Close()
		return dec.Result()
	}()

	if len(res.Events) != 1 || res.Events[0].Data != "café" {
		t.Fatalf("events = %+v", res.Events)
	}
}

func TestDecodeReader(t *testing.T) {
	stream := "event: a\ndata: 1\n\ndata: 2\n\n"
	res, err := Decode(context.Background(), iotest.OneByteReader(strings.NewReader(stream)), Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(res.Events) != 2 || res.BodyText != "1\n2\n" {
		t.Errorf("result = %+v", res)
	}

	resp := res.Response(200, "OK", map[string]string{"content-type": "text/event-stream"})
	if resp.BodyJSON != nil {
		t.Error("stream response must not carry a JSON body")
	}
	if len(resp.StreamEvents) != 2 {
		t.Errorf("StreamEvents = %d", len(resp.StreamEvents))
	}
	if resp.Timings == nil || resp.Timings.TTFB != 0 || resp.Timings.DNS != 0 {
		t.Errorf("Timings = %+v", resp.Timings)
	}
}

func TestDecodeNoEventsOmitsList(t *testing.T) {
	res, err := Decode(context.Background(), strings.NewReader(": keepalive\n\n"), Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if resp := res.Response(200, "OK", nil); resp.StreamEvents != nil {
		t.Errorf("StreamEvents = %v, want nil", resp.StreamEvents)
	}
}

func TestDecodeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	defer pw.Close()

	go func() {
		pw.Write([]byte("data: first\n\n"))
	}()

	var got int
	done := make(chan error, 1)
	go func() {
		_, err := Decode(ctx, pr, Options{OnEvent: func(models.StreamEvent) {
			got++
			cancel()
			pr.CloseWithError(context.Canceled)
		}})
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Decode error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Decode did not return after cancellation")
	}
	if got != 1 {
		t.Errorf("got %d events, want 1", got)
	}
}

func TestIsEventStream(t *testing.T) {
	tests := map[string]bool{
		"text/event-stream":                true,
		"Text/Event-Stream; charset=utf-8": true,
		" text/event-stream":               true,
		"application/json":                 false,
		"":                                 false,
	}
	for ct, want := range tests {
		if got := IsEventStream(ct); got != want {
			t.Errorf("IsEventStream(%q) = %v, want %v", ct, got, want)
		}
	}
}
