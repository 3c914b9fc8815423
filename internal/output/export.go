package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/moamenhredeen/oasc/internal/models"
	"github.com/moamenhredeen/oasc/internal/store"
)

// Format represents the output format type
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ExportResponse writes a response to filePath, or stdout when it is empty
func ExportResponse(resp models.HttpResponse, format Format, filePath string) error {
	w, closer, err := getWriter(filePath)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	return WriteResponse(w, resp, format)
}

// WriteResponse encodes a response. CSV output lists the stream events of a
// streamed response, and a single summary row otherwise.
func WriteResponse(w io.Writer, resp models.HttpResponse, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, resp)
	case FormatCSV:
		if resp.IsStream() {
			return writeEventsCSV(w, resp.StreamEvents)
		}
		return writeResponseCSV(w, resp)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// ExportHistory writes stored responses to filePath, or stdout when it is empty
func ExportHistory(entries []store.HistoryEntry, format Format, filePath string) error {
	w, closer, err := getWriter(filePath)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	return WriteHistory(w, entries, format)
}

// WriteHistory encodes stored responses
func WriteHistory(w io.Writer, entries []store.HistoryEntry, format Format) error {
	switch format {
	case FormatJSON:
		if entries == nil {
			entries = []store.HistoryEntry{}
		}
		return writeJSON(w, entries)
	case FormatCSV:
		return writeHistoryCSV(w, entries)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// ExportBenchmark writes a benchmark result to filePath, or stdout when it is empty
func ExportBenchmark(result models.BenchmarkResult, format Format, filePath string) error {
	w, closer, err := getWriter(filePath)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	return WriteBenchmark(w, result, format)
}

// WriteBenchmark encodes a benchmark result. CSV output is a single row with
// latencies in milliseconds.
func WriteBenchmark(w io.Writer, result models.BenchmarkResult, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatCSV:
		return writeBenchmarkCSV(w, result)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// getWriter returns an io.Writer for output (stdout or file)
func getWriter(filePath string) (io.Writer, io.Closer, error) {
	if filePath == "" {
		return os.Stdout, nil, nil
	}

	f, err := os.Create(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeResponseCSV(w io.Writer, resp models.HttpResponse) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"status", "status_text", "content_type", "body_size_bytes",
		"wire_size_bytes", "total_ms", "body",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	total := ""
	if resp.Timings != nil {
		total = fmt.Sprintf("%.2f", resp.Timings.Total)
	}
	row := []string{
		strconv.Itoa(resp.Status),
		resp.StatusText,
		resp.Headers["content-type"],
		strconv.FormatInt(resp.BodySizeBytes, 10),
		strconv.FormatInt(resp.WireSizeBytes, 10),
		total,
		resp.BodyText,
	}
	if err := cw.Write(row); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

func writeEventsCSV(w io.Writer, events []models.StreamEvent) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"event_id", "event_type", "timestamp", "elapsed_ms", "data"}); err != nil {
		return err
	}

	for _, ev := range events {
		row := []string{
			strconv.Itoa(ev.EventID),
			ev.EventType,
			ev.Timestamp.UTC().Format(time.RFC3339Nano),
			fmt.Sprintf("%.2f", ev.ElapsedMs),
			ev.Data,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeHistoryCSV(w io.Writer, entries []store.HistoryEntry) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"id", "created_at", "operation", "method", "url",
		"status", "body_size_bytes", "events",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, e := range entries {
		row := []string{
			strconv.FormatInt(e.ID, 10),
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.OperationKey,
			e.Method,
			e.URL,
			strconv.Itoa(e.Response.Status),
			strconv.FormatInt(e.Response.BodySizeBytes, 10),
			strconv.Itoa(len(e.Response.StreamEvents)),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeBenchmarkCSV(w io.Writer, r models.BenchmarkResult) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"operation", "method", "url", "transport",
		"iterations", "completed", "concurrency",
		"min_ms", "avg_ms", "p50_ms", "p90_ms", "p99_ms", "max_ms",
		"requests_per_sec", "success_count", "error_count", "error_rate",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := []string{
		r.OperationKey,
		r.Method,
		r.URL,
		r.Transport,
		strconv.Itoa(r.Iterations),
		strconv.Itoa(r.Completed),
		strconv.Itoa(r.Concurrency),
		formatMs(r.MinTime),
		formatMs(r.AvgTime),
		formatMs(r.P50Time),
		formatMs(r.P90Time),
		formatMs(r.P99Time),
		formatMs(r.MaxTime),
		fmt.Sprintf("%.2f", r.RequestsPerSec),
		strconv.Itoa(r.SuccessCount),
		strconv.Itoa(r.ErrorCount),
		fmt.Sprintf("%.2f", r.ErrorRate),
	}
	if err := cw.Write(row); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

func formatMs(d time.Duration) string {
	return fmt.Sprintf("%.2f", float64(d.Microseconds())/1000)
}

// ParseFormat parses a string into a Format, returning error if invalid
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("invalid format '%s': must be 'json' or 'csv'", s)
	}
}
