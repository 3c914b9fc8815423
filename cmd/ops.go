/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	filter     string
	tags       []string
	verbose    bool
	opsCheck   bool
	opsServers bool
)

// opsCmd represents the ops command
var opsCmd = &cobra.Command{
	Use:   "ops [openapi-spec]",
	Short: "List the operations of a document",
	Long: `List the operations of an OpenAPI document grouped by tag.

Examples:
  oasc ops api.yaml
  oasc ops api.yaml --tags pets --filter /pets
  oasc ops https://example.com/openapi.json --check`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		source, _ := specArgs(args, 0)
		ctx := context.Background()

		p, err := loadDocument(ctx, source)
		if err != nil {
			exitWithError("loading OpenAPI document: %v", err)
		}

		if opsCheck {
			if err := p.Validate(ctx); err != nil {
				exitWithError("validating document: %v", err)
			}
		}

		operations := filterOperations(p.GetOperations(), filter, tags)

		title, docVersion := p.Title()
		fmt.Printf("%s %s\n", white(title), faint(docVersion))
		if opsServers || verbose {
			for _, server := range p.GetServerURLs() {
				fmt.Printf("  %s %s\n", cyan("server"), server)
			}
		}
		fmt.Println()

		if len(operations) == 0 {
			fmt.Println("No operations found matching the criteria")
			return
		}

		order, groups := groupByTag(operations)
		for _, tag := range order {
			fmt.Printf("%s\n", white(tag))
			for _, op := range groups[tag] {
				line := fmt.Sprintf("  %s %s", methodColor(op.Method), op.Path)
				if op.OperationID != "" {
					line += " " + faint(op.OperationID)
				}
				fmt.Println(line)

				if verbose {
					if op.Summary != "" {
						fmt.Printf("      %s\n", op.Summary)
					}
					if len(op.Security) > 0 {
						fmt.Printf("      %s %s\n", yellow("auth"), strings.Join(op.Security[0], " + "))
					}
				}
			}
			fmt.Println()
		}

		if opsCheck {
			fmt.Printf("%s document is valid\n", green("✓"))
		}
	},
}

func init() {
	rootCmd.AddCommand(opsCmd)

	opsCmd.Flags().StringVar(&filter, "filter", "", "Filter operations by path pattern or operation ID")
	opsCmd.Flags().StringSliceVar(&tags, "tags", []string{}, "Filter by OpenAPI tags (can be specified multiple times)")
	opsCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show summaries and security requirements")
	opsCmd.Flags().BoolVar(&opsServers, "servers", false, "Show the server URLs of the document")
	opsCmd.Flags().BoolVar(&opsCheck, "check", false, "Validate the document strictly before listing")
}
