/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moamenhredeen/oasc/internal/output"
	"github.com/moamenhredeen/oasc/internal/store"
)

var (
	historyLimit        int
	historyFilter       string
	historyOutputFormat string
	historyOutputFile   string
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [openapi-spec]",
	Short: "List responses stored with 'send --save'",
	Long: `List the stored responses of a document, newest first.

Examples:
  oasc history api.yaml
  oasc history api.yaml --filter "GET /pets" -o csv --output-file history.csv`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		source, _ := specArgs(args, 0)
		if err := runHistory(context.Background(), source); err != nil {
			exitWithError("%v", err)
		}
	},
}

func runHistory(ctx context.Context, source string) error {
	p, err := loadDocument(ctx, source)
	if err != nil {
		return fmt.Errorf("loading OpenAPI document: %w", err)
	}

	db, err := store.OpenSQLite(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	entries, err := db.ListResponses(ctx, p.ID(), historyLimit)
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}
	entries = filterHistory(entries, historyFilter)

	if historyOutputFormat != "" {
		format, err := output.ParseFormat(historyOutputFormat)
		if err != nil {
			return err
		}
		if err := output.ExportHistory(entries, format, historyOutputFile); err != nil {
			return fmt.Errorf("exporting history: %w", err)
		}
		if historyOutputFile != "" {
			fmt.Fprintf(os.Stderr, "History exported to: %s\n", historyOutputFile)
		}
		return nil
	}

	if len(entries) == 0 {
		fmt.Println("No stored responses")
		return nil
	}
	for _, entry := range entries {
		line := fmt.Sprintf("%s %s %s %s",
			faint(entry.CreatedAt.Local().Format("2006-01-02 15:04:05")),
			statusColor(entry.Response.Status),
			methodColor(entry.Method),
			entry.URL)
		if n := len(entry.Response.StreamEvents); n > 0 {
			line += " " + cyan(fmt.Sprintf("(%d events)", n))
		}
		fmt.Println(line)
	}
	return nil
}

// filterHistory keeps entries whose operation key contains the filter, ignoring case
func filterHistory(entries []store.HistoryEntry, filterStr string) []store.HistoryEntry {
	if filterStr == "" {
		return entries
	}
	var filtered []store.HistoryEntry
	for _, entry := range entries {
		if strings.Contains(strings.ToLower(entry.OperationKey), strings.ToLower(filterStr)) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of responses")
	historyCmd.Flags().StringVar(&historyFilter, "filter", "", "Only show operations containing this text, e.g. 'GET /pets'")
	historyCmd.Flags().StringVarP(&historyOutputFormat, "output", "o", "", "Output format: json, csv")
	historyCmd.Flags().StringVar(&historyOutputFile, "output-file", "", "Write output to file (default: stdout)")
}
