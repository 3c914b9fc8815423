/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/moamenhredeen/oasc/internal/benchmarker"
	"github.com/moamenhredeen/oasc/internal/models"
	"github.com/moamenhredeen/oasc/internal/orchestrator"
	"github.com/moamenhredeen/oasc/internal/output"
	"github.com/moamenhredeen/oasc/internal/transport"
)

var (
	benchFlags        requestFlags
	benchIterations   int
	benchConcurrency  int
	benchWarmup       int
	benchRateLimit    float64
	benchTimeout      time.Duration
	benchVerbose      bool
	benchOutputFormat string
	benchOutputFile   string
)

// benchCmd represents the bench command
var benchCmd = &cobra.Command{
	Use:   "bench [openapi-spec] <METHOD> <path>",
	Short: "Measure latency and throughput of one operation",
	Long: `Send the same request many times through the configured transport and
report latency percentiles (p50, p90, p99), requests per second and errors.

Request inputs are the same as for 'send'.

Examples:
  # 100 requests, one at a time
  oasc bench api.yaml GET /pets

  # 1000 requests over 10 workers, at most 50 per second
  oasc bench api.yaml GET /pets/{petId} -p petId=1 -n 1000 -c 10 --rate 50

  # Export the result
  oasc bench api.yaml GET /pets -o json --output-file bench.json`,
	Args: cobra.RangeArgs(2, 3),
	Run:  runBench,
}

func runBench(cmd *cobra.Command, args []string) {
	source, rest := specArgs(args, 2)
	method, path := rest[0], rest[1]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := loadDocument(ctx, source)
	if err != nil {
		exitWithError("loading OpenAPI document: %v", err)
	}

	in, err := benchFlags.input()
	if err != nil {
		exitWithError("%v", err)
	}
	resolved, err := resolveRequest(cfg, p, method, path, in)
	if err != nil {
		exitWithError("preparing request: %v", err)
	}
	prepared, err := orchestrator.Prepare(resolved.Parts, resolved.Options)
	if err != nil {
		exitWithError("preparing request: %v", err)
	}

	kind, err := transport.ParseKind(cfg.Transport.Kind)
	if err != nil {
		exitWithError("%v", err)
	}
	t, err := transport.New(kind, transport.Options{Timeout: cfg.Timeout(), HostURL: cfg.Host.URL, Logger: logger})
	if err != nil {
		exitWithError("creating transport: %v", err)
	}

	config := benchmarker.Config{
		Iterations:  benchIterations,
		Concurrency: benchConcurrency,
		WarmupRuns:  benchWarmup,
		RateLimit:   benchRateLimit,
		Timeout:     benchTimeout,
	}
	if config.Timeout <= 0 {
		config.Timeout = cfg.Timeout()
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", white("=== Benchmark Configuration ==="))
	fmt.Fprintf(os.Stderr, "Request:     %s %s\n", prepared.Method, prepared.URL)
	fmt.Fprintf(os.Stderr, "Transport:   %s\n", kind)
	fmt.Fprintf(os.Stderr, "Iterations:  %d\n", config.Iterations)
	fmt.Fprintf(os.Stderr, "Concurrency: %d\n", config.Concurrency)
	fmt.Fprintf(os.Stderr, "Warmup:      %d iterations\n", config.WarmupRuns)
	if config.RateLimit > 0 {
		fmt.Fprintf(os.Stderr, "Rate Limit:  %.0f req/sec\n", config.RateLimit)
	}
	fmt.Fprintf(os.Stderr, "Timeout:     %v\n\n", config.Timeout)

	var s *spinner.Spinner
	phaseStart := time.Now()
	onEvent := func(event benchmarker.Event) {
		switch event.Type {
		case benchmarker.EventWarmupStarting, benchmarker.EventBenchmarkStarting:
			phaseStart = time.Now()
			label := "Warming up"
			if event.Type == benchmarker.EventBenchmarkStarting {
				label = "Benchmarking"
			}
			if isTTY {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
				s.Suffix = fmt.Sprintf(" %s %s - %s 0/%d...", prepared.Method, path, label, event.MaxIter)
				s.Start()
			} else {
				fmt.Fprintf(os.Stderr, "%s %s - %s (%d iterations)...\n", prepared.Method, path, label, event.MaxIter)
			}

		case benchmarker.EventWarmupCompleted:
			if s != nil {
				s.Stop()
			}
			fmt.Fprintf(os.Stderr, "%s Warmup completed in %v\n", yellow("●"), time.Since(phaseStart).Round(time.Millisecond))

		case benchmarker.EventBenchmarkProgress:
			if s != nil {
				avgMs := float64(event.RunningAvg.Microseconds()) / 1000
				s.Suffix = fmt.Sprintf(" %s %s - %d/%d (avg: %.1fms, %.1f req/s, %d errors)",
					prepared.Method, path, event.Progress, event.MaxIter, avgMs, event.RunningReqSec, event.ErrorCount)
			}

		case benchmarker.EventBenchmarkCompleted:
			if s != nil {
				s.Stop()
			}
		}
	}

	bench := benchmarker.NewBenchmarker(t, config)
	result := bench.Run(ctx, resolved.Details.Key(), transport.Request{
		Method:  prepared.Method,
		URL:     prepared.URL,
		Headers: prepared.Headers,
		Body:    prepared.Body,
	}, onEvent)
	result.Transport = string(kind)

	if result.Interrupted() {
		fmt.Fprintf(os.Stderr, "\n%s after %d of %d requests\n", yellow("Benchmark interrupted"), result.Completed, result.Iterations)
	}

	if benchOutputFormat != "" {
		format, err := output.ParseFormat(benchOutputFormat)
		if err != nil {
			exitWithError("%v", err)
		}
		if err := output.ExportBenchmark(result, format, benchOutputFile); err != nil {
			exitWithError("exporting results: %v", err)
		}
		if benchOutputFile == "" {
			return
		}
		fmt.Fprintf(os.Stderr, "\nResults exported to: %s\n", benchOutputFile)
	}

	displayBenchmark(result, benchVerbose)
}

func displayBenchmark(r models.BenchmarkResult, verbose bool) {
	var status string
	switch {
	case r.ErrorRate == 0:
		status = green("✓")
	case r.ErrorRate < 5:
		status = yellow("●")
	default:
		status = red("✗")
	}

	fmt.Println()
	fmt.Printf("%s\n", white("=== Benchmark Summary ==="))
	fmt.Printf("%s %s\n", status, r.OperationKey)
	fmt.Printf("    %s avg: %.2fms | p99: %.2fms | %.1f req/s | errors: %d (%.1f%%)\n",
		cyan("→"),
		ms(r.AvgTime), ms(r.P99Time), r.RequestsPerSec,
		r.ErrorCount, r.ErrorRate)

	if verbose {
		fmt.Printf("    Latency:  min=%.2fms | p50=%.2fms | p90=%.2fms | max=%.2fms\n",
			ms(r.MinTime), ms(r.P50Time), ms(r.P90Time), ms(r.MaxTime))
		fmt.Printf("    Duration: %v | Success: %d | Errors: %d\n",
			r.TotalDuration.Round(time.Millisecond), r.SuccessCount, r.ErrorCount)
	}

	if len(r.StatusCodes) > 0 {
		var codes []string
		for _, code := range slices.Sorted(maps.Keys(r.StatusCodes)) {
			codes = append(codes, fmt.Sprintf("%s:%d", statusColor(code), r.StatusCodes[code]))
		}
		fmt.Printf("    Status codes: %s\n", strings.Join(codes, ", "))
	}

	if len(r.SampleErrors) > 0 {
		fmt.Printf("    Sample errors:\n")
		for _, e := range r.SampleErrors {
			fmt.Printf("      - %s\n", red(e))
		}
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchFlags.register(benchCmd)
	benchCmd.Flags().IntVarP(&benchIterations, "iterations", "n", 100, "Number of measured requests")
	benchCmd.Flags().IntVarP(&benchConcurrency, "concurrency", "c", 1, "Number of concurrent requests")
	benchCmd.Flags().IntVarP(&benchWarmup, "warmup", "w", 5, "Number of warmup requests (discarded from stats)")
	benchCmd.Flags().Float64VarP(&benchRateLimit, "rate", "r", 0, "Max requests per second (0 = unlimited)")
	benchCmd.Flags().DurationVarP(&benchTimeout, "timeout", "t", 0, "Request timeout (default: transport.timeout_ms)")
	benchCmd.Flags().BoolVarP(&benchVerbose, "verbose", "v", false, "Show detailed latency statistics")

	// Output flags
	benchCmd.Flags().StringVarP(&benchOutputFormat, "output", "o", "", "Output format: json, csv")
	benchCmd.Flags().StringVar(&benchOutputFile, "output-file", "", "Write output to file (default: stdout)")
}
