/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/moamenhredeen/oasc/internal/models"
	"github.com/moamenhredeen/oasc/internal/orchestrator"
	"github.com/moamenhredeen/oasc/internal/output"
	"github.com/moamenhredeen/oasc/internal/parser"
	"github.com/moamenhredeen/oasc/internal/store"
	"github.com/moamenhredeen/oasc/internal/transport"
	"github.com/moamenhredeen/oasc/internal/validator"
)

var (
	sendFlags        requestFlags
	sendTimeout      time.Duration
	sendValidate     bool
	sendSave         bool
	sendOutputFormat string
	sendOutputFile   string
	sendVerbose      bool
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [openapi-spec] <METHOD> <path>",
	Short: "Send a request for one operation",
	Long: `Send a request for one operation of the document and print the response.

Server-sent events are printed as they arrive. The document may be omitted
when the config sets spec.

Examples:
  # Path and query parameters
  oasc send api.yaml GET /pets/{petId} -p petId=42 -q limit=10

  # JSON body, validated against the declared response
  oasc send api.yaml POST /pets -d '{"name":"rex"}' --validate

  # Generate required parameters and body, keep the inputs for later
  oasc send api.yaml POST /pets --sample --save

  # Export the response (or the event stream) as CSV
  oasc send api.yaml GET /events -o csv --output-file events.csv`,
	Args: cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		if code := runSend(args); code != 0 {
			os.Exit(code)
		}
	},
}

// runSend returns the process exit status so the store and the signal
// handler are released before exiting.
func runSend(args []string) int {
	source, rest := specArgs(args, 2)
	method, path := rest[0], rest[1]

	var format output.Format
	if sendOutputFormat != "" {
		f, err := output.ParseFormat(sendOutputFormat)
		if err != nil {
			return printError(os.Stderr, "%v", err)
		}
		format = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := loadDocument(ctx, source)
	if err != nil {
		return printError(os.Stderr, "loading OpenAPI document: %v", err)
	}

	in, err := sendFlags.input()
	if err != nil {
		return printError(os.Stderr, "%v", err)
	}

	key := models.OperationKey(method, path)
	var st store.Store
	if sendSave || sendFlags.last {
		db, err := store.OpenSQLite(cfg.Store.Path)
		if err != nil {
			return printError(os.Stderr, "opening store: %v", err)
		}
		defer db.Close()
		st = db

		if sendFlags.last {
			var saved store.OperationState
			err := store.GetJSON(ctx, st, p.ID(), store.OperationStateKey(key), &saved)
			switch {
			case errors.Is(err, store.ErrNotFound):
				logger.Warn("no saved inputs for operation", "operation", key)
			case err != nil:
				return printError(os.Stderr, "reading saved inputs: %v", err)
			default:
				applyState(&in, saved)
			}
		}
	}

	resolved, err := resolveRequest(cfg, p, method, path, in)
	if err != nil {
		return printError(os.Stderr, "preparing request: %v", err)
	}
	if len(resolved.Missing) > 0 {
		logger.Warn("undefined template variables", "env", resolved.Env, "variables", strings.Join(resolved.Missing, ", "))
	}

	kind, err := transport.ParseKind(cfg.Transport.Kind)
	if err != nil {
		return printError(os.Stderr, "%v", err)
	}
	t, err := transport.New(kind, transport.Options{Timeout: cfg.Timeout(), HostURL: cfg.Host.URL, Logger: logger})
	if err != nil {
		return printError(os.Stderr, "creating transport: %v", err)
	}
	orch := orchestrator.New(t, cfg.Timeout(), logger)

	// Live events go to stdout unless stdout carries an export.
	var live io.Writer = os.Stdout
	if format != "" && sendOutputFile == "" {
		live = os.Stderr
	}

	var s *spinner.Spinner
	if isTTY {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = fmt.Sprintf(" %s %s", resolved.Details.Method, resolved.Details.Path)
		s.Start()
	}
	stopSpinner := func() {
		if s != nil && s.Active() {
			s.Stop()
		}
	}

	opts := resolved.Options
	opts.Timeout = sendTimeout
	opts.OnEvent = func(ev models.StreamEvent) {
		stopSpinner()
		printEvent(live, ev)
	}

	start := time.Now()
	resp, err := orch.Send(ctx, key, resolved.Parts, opts)
	stopSpinner()
	if err != nil {
		return sendFailure(os.Stderr, err)
	}

	if st != nil {
		saveSend(ctx, st, p, key, in, resolved, resp)
	}

	if format != "" {
		if err := output.ExportResponse(resp, format, sendOutputFile); err != nil {
			return printError(os.Stderr, "exporting response: %v", err)
		}
		if sendOutputFile != "" {
			fmt.Fprintf(os.Stderr, "Response exported to: %s\n", sendOutputFile)
		}
	} else {
		displayResponse(os.Stdout, resp, time.Since(start), sendVerbose)
	}

	if sendValidate {
		report := validator.NewValidator().ValidateResponse(resp, resolved.Details)
		displayReport(os.Stderr, report)
		if !report.Passed() {
			return 1
		}
	}
	return 0
}

// sendFailure reports a failed send. An aborted request exits with 130.
func sendFailure(w io.Writer, err error) int {
	if errors.Is(err, orchestrator.ErrAborted) {
		fmt.Fprintf(w, "%s %v\n", yellow("Request aborted:"), err)
		return 130
	}
	return printError(w, "sending request: %v", err)
}

func saveSend(ctx context.Context, st store.Store, p *parser.Parser, key string, in requestInput, resolved resolvedRequest, resp models.HttpResponse) {
	prepared, err := orchestrator.Prepare(resolved.Parts, resolved.Options)
	if err != nil {
		logger.Warn("not saving response", "err", err)
		return
	}
	if _, err := st.AppendResponse(ctx, store.HistoryEntry{
		SpecID:       p.ID(),
		OperationKey: key,
		Method:       prepared.Method,
		URL:          prepared.URL,
		Response:     resp,
	}); err != nil {
		logger.Warn("failed to save response", "err", err)
	}
	if err := store.PutJSON(ctx, st, p.ID(), store.OperationStateKey(key), operationState(in)); err != nil {
		logger.Warn("failed to save inputs", "err", err)
	}
}

func printEvent(w io.Writer, ev models.StreamEvent) {
	fmt.Fprintf(w, "%s %s %s\n",
		faint(fmt.Sprintf("[%d +%.0fms]", ev.EventID, ev.ElapsedMs)),
		cyan(ev.EventType),
		ev.Data)
}

func displayResponse(w io.Writer, resp models.HttpResponse, elapsed time.Duration, verbose bool) {
	fmt.Fprintf(w, "%s %s %s\n", statusColor(resp.Status), resp.StatusText,
		faint(fmt.Sprintf("(%v, %d bytes)", elapsed.Round(time.Millisecond), resp.BodySizeBytes)))

	if verbose {
		for _, name := range slices.Sorted(maps.Keys(resp.Headers)) {
			fmt.Fprintf(w, "%s: %s\n", white(name), resp.Headers[name])
		}
		if t := resp.Timings; t != nil {
			fmt.Fprintf(w, "%s dns=%.1fms tcp=%.1fms tls=%.1fms ttfb=%.1fms download=%.1fms total=%.1fms\n",
				white("timings:"), t.DNS, t.TCP, t.TLS, t.TTFB, t.Download, t.Total)
		}
		fmt.Fprintln(w)
	}

	if resp.IsStream() {
		fmt.Fprintf(w, "%s %d events\n", cyan("→"), len(resp.StreamEvents))
		return
	}

	if resp.BodyJSON != nil {
		pretty, err := json.MarshalIndent(resp.BodyJSON, "", "  ")
		if err == nil {
			fmt.Fprintln(w, string(pretty))
			return
		}
	}
	if resp.BodyText != "" {
		fmt.Fprintln(w, resp.BodyText)
	}
}

func displayReport(w io.Writer, report models.ValidationReport) {
	if report.Passed() {
		fmt.Fprintf(w, "%s response matches %s\n", green("✓"), report.OperationKey)
		return
	}
	fmt.Fprintf(w, "%s response does not match %s\n", red("✗"), report.OperationKey)
	for _, ve := range report.Errors {
		fmt.Fprintf(w, "    - %s: %s\n", ve.Field, ve.Message)
	}
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendFlags.register(sendCmd)
	sendCmd.Flags().DurationVarP(&sendTimeout, "timeout", "t", 0, "Request timeout (default: transport.timeout_ms)")
	sendCmd.Flags().BoolVar(&sendValidate, "validate", false, "Validate the response against the operation")
	sendCmd.Flags().BoolVar(&sendSave, "save", false, "Store the response and the inputs")
	sendCmd.Flags().BoolVarP(&sendVerbose, "verbose", "v", false, "Show headers and timings")

	// Output flags
	sendCmd.Flags().StringVarP(&sendOutputFormat, "output", "o", "", "Output format: json, csv")
	sendCmd.Flags().StringVar(&sendOutputFile, "output-file", "", "Write output to file (default: stdout)")
}
