/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moamenhredeen/oasc/internal/curl"
	"github.com/moamenhredeen/oasc/internal/orchestrator"
)

var curlFlags requestFlags

// curlCmd represents the curl command
var curlCmd = &cobra.Command{
	Use:   "curl [openapi-spec] <METHOD> <path>",
	Short: "Print the curl command for a request",
	Long: `Print a curl command equivalent to what 'send' would do with the same
inputs, including resolved variables and credentials.`,
	Args: cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		source, rest := specArgs(args, 2)

		p, err := loadDocument(context.Background(), source)
		if err != nil {
			exitWithError("loading OpenAPI document: %v", err)
		}

		in, err := curlFlags.input()
		if err != nil {
			exitWithError("%v", err)
		}

		resolved, err := resolveRequest(cfg, p, rest[0], rest[1], in)
		if err != nil {
			exitWithError("preparing request: %v", err)
		}
		if len(resolved.Missing) > 0 {
			logger.Warn("undefined template variables", "env", resolved.Env, "variables", resolved.Missing)
		}

		prepared, err := orchestrator.Prepare(resolved.Parts, resolved.Options)
		if err != nil {
			exitWithError("preparing request: %v", err)
		}

		fmt.Println(curl.Render(curl.Command{
			Method:    prepared.Method,
			URL:       prepared.URL,
			Headers:   prepared.Headers,
			Body:      prepared.Body,
			MediaType: prepared.MediaType,
		}))
	},
}

func init() {
	rootCmd.AddCommand(curlCmd)
	curlFlags.register(curlCmd)
}
