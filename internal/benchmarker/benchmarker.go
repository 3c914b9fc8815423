// Package benchmarker sends one prepared request repeatedly through a
// transport and summarizes latency, throughput and errors.
package benchmarker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/moamenhredeen/oasc/internal/models"
	"github.com/moamenhredeen/oasc/internal/transport"
)

// EventType represents the type of benchmark event
type EventType int

const (
	// EventWarmupStarting indicates the warmup phase is starting
	EventWarmupStarting EventType = iota
	// EventWarmupCompleted indicates the warmup phase completed
	EventWarmupCompleted
	// EventBenchmarkStarting indicates the measured phase is starting
	EventBenchmarkStarting
	// EventBenchmarkProgress is a periodic update of the measured phase
	EventBenchmarkProgress
	// EventBenchmarkCompleted indicates the measured phase completed
	EventBenchmarkCompleted
)

// Event reports benchmark progress
type Event struct {
	Type     EventType
	Result   *models.BenchmarkResult // set on EventBenchmarkCompleted
	Progress int
	MaxIter  int

	// Running stats (for progress events)
	RunningAvg    time.Duration
	RunningReqSec float64
	ErrorCount    int
}

// OnEvent is a callback for benchmark events. It may be called from worker
// goroutines, one call at a time.
type OnEvent func(event Event)

// Config holds benchmark configuration
type Config struct {
	Iterations  int           // Number of measured requests
	Concurrency int           // Number of concurrent workers
	WarmupRuns  int           // Number of warmup requests (discarded)
	RateLimit   float64       // Max requests per second (0 = unlimited)
	Timeout     time.Duration // Per-request timeout
}

// DefaultConfig returns default benchmark configuration
func DefaultConfig() Config {
	return Config{
		Iterations:  100,
		Concurrency: 1,
		WarmupRuns:  5,
		RateLimit:   0,
		Timeout:     30 * time.Second,
	}
}

// Benchmarker runs a request many times through one transport
type Benchmarker struct {
	config    Config
	transport transport.Transport
	limiter   *rate.Limiter

	mu sync.Mutex // serializes onEvent calls
}

// NewBenchmarker creates a benchmarker. Non-positive iteration and
// concurrency counts fall back to one.
func NewBenchmarker(t transport.Transport, config Config) *Benchmarker {
	config.Iterations = max(1, config.Iterations)
	config.Concurrency = max(1, config.Concurrency)
	config.WarmupRuns = max(0, config.WarmupRuns)

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), max(1, int(config.RateLimit)))
	}

	return &Benchmarker{
		config:    config,
		transport: t,
		limiter:   limiter,
	}
}

// requestResult holds the result of a single request
type requestResult struct {
	Duration   time.Duration
	StatusCode int
	Error      string
	done       bool
}

// Run warms up, then sends req Iterations times. Cancelling ctx stops the
// run early; the result then covers the requests that completed.
func (b *Benchmarker) Run(ctx context.Context, key string, req transport.Request, onEvent OnEvent) models.BenchmarkResult {
	result := models.BenchmarkResult{
		OperationKey: key,
		Method:       req.Method,
		URL:          req.URL,
		Iterations:   b.config.Iterations,
		Concurrency:  b.config.Concurrency,
		WarmupRuns:   b.config.WarmupRuns,
		StatusCodes:  make(map[int]int),
	}
	if req.Timeout <= 0 {
		req.Timeout = b.config.Timeout
	}

	if b.config.WarmupRuns > 0 {
		b.emit(onEvent, Event{Type: EventWarmupStarting, MaxIter: b.config.WarmupRuns})
		for i := 0; i < b.config.WarmupRuns && ctx.Err() == nil; i++ {
			b.executeRequest(ctx, req)
		}
		b.emit(onEvent, Event{Type: EventWarmupCompleted})
	}

	b.emit(onEvent, Event{Type: EventBenchmarkStarting, MaxIter: b.config.Iterations})

	startTime := time.Now()
	results := b.runConcurrent(ctx, req, onEvent, startTime)
	result.TotalDuration = time.Since(startTime)

	result = processResults(result, results)
	b.emit(onEvent, Event{Type: EventBenchmarkCompleted, Result: &result})
	return result
}

func (b *Benchmarker) emit(onEvent OnEvent, event Event) {
	if onEvent == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	onEvent(event)
}

// runConcurrent executes the measured phase with a worker pool
func (b *Benchmarker) runConcurrent(ctx context.Context, req transport.Request, onEvent OnEvent, startTime time.Time) []requestResult {
	results := make([]requestResult, b.config.Iterations)
	jobs := make(chan int, b.config.Iterations)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var completed int
	var totalDuration time.Duration
	var errorCount int

	// Progress reporting interval
	progressInterval := max(1, b.config.Iterations/20)

	for w := 0; w < b.config.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					return
				}
				if b.limiter != nil {
					if err := b.limiter.Wait(ctx); err != nil {
						return
					}
				}

				res := b.executeRequest(ctx, req)
				if ctx.Err() != nil {
					// Requests cut short by cancellation are not measurements.
					return
				}
				results[i] = res

				mu.Lock()
				completed++
				totalDuration += res.Duration
				if res.Error != "" {
					errorCount++
				}
				current := Event{
					Type:       EventBenchmarkProgress,
					Progress:   completed,
					MaxIter:    b.config.Iterations,
					RunningAvg: totalDuration / time.Duration(completed),
					ErrorCount: errorCount,
				}
				mu.Unlock()

				if current.Progress%progressInterval == 0 {
					if elapsed := time.Since(startTime).Seconds(); elapsed > 0 {
						current.RunningReqSec = float64(current.Progress) / elapsed
					}
					b.emit(onEvent, current)
				}
			}
		}()
	}

	for i := 0; i < b.config.Iterations; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return results
}

// executeRequest sends one request and returns its timing
func (b *Benchmarker) executeRequest(ctx context.Context, req transport.Request) requestResult {
	result := requestResult{done: true}

	startTime := time.Now()
	resp, err := b.transport.Send(ctx, req, nil)
	result.Duration = time.Since(startTime)

	switch {
	case err != nil:
		result.Error = fmt.Sprintf("request failed: %v", describe(err))
	case resp.StatusText == transport.HostErrorStatusText:
		result.Error = fmt.Sprintf("host failed: %s", resp.BodyText)
	default:
		result.StatusCode = resp.Status
	}
	return result
}

func describe(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.New("timeout")
	}
	return err
}

// processResults calculates statistics from raw results
func processResults(result models.BenchmarkResult, rawResults []requestResult) models.BenchmarkResult {
	var durations []time.Duration
	var totalDuration time.Duration
	errorSet := make(map[string]bool)

	for _, r := range rawResults {
		if !r.done {
			continue
		}
		result.Completed++

		if r.Error != "" {
			result.ErrorCount++
			if len(result.SampleErrors) < 5 && !errorSet[r.Error] {
				result.SampleErrors = append(result.SampleErrors, r.Error)
				errorSet[r.Error] = true
			}
		} else {
			result.SuccessCount++
			durations = append(durations, r.Duration)
			totalDuration += r.Duration
		}

		if r.StatusCode > 0 {
			result.StatusCodes[r.StatusCode]++
		}
	}

	// Timing stats only cover successful requests
	if len(durations) > 0 {
		sort.Slice(durations, func(i, j int) bool {
			return durations[i] < durations[j]
		})

		result.MinTime = durations[0]
		result.MaxTime = durations[len(durations)-1]
		result.AvgTime = totalDuration / time.Duration(len(durations))
		result.P50Time = percentile(durations, 50)
		result.P90Time = percentile(durations, 90)
		result.P99Time = percentile(durations, 99)
	}

	if result.TotalDuration > 0 {
		result.RequestsPerSec = float64(result.Completed) / result.TotalDuration.Seconds()
	}
	if result.Completed > 0 {
		result.ErrorRate = float64(result.ErrorCount) / float64(result.Completed) * 100
	}

	return result
}

// percentile calculates the p-th percentile from sorted durations
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	index := float64(len(sorted)-1) * float64(p) / 100.0
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[lower]
	}

	// Linear interpolation
	weight := index - float64(lower)
	return time.Duration(float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight)
}
