/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/moamenhredeen/oasc/internal/formschema"
	"github.com/moamenhredeen/oasc/internal/generator"
	"github.com/moamenhredeen/oasc/internal/parser"
)

var (
	formSample   bool
	formOptional bool
)

// operationForm is the form description of one operation
type operationForm struct {
	Operation     string             `json:"operation"`
	Path          *formschema.Schema `json:"path"`
	Query         *formschema.Schema `json:"query"`
	Header        *formschema.Schema `json:"header"`
	Body          *formschema.Schema `json:"body,omitempty"`
	BodyMediaType string             `json:"body_media_type,omitempty"`
}

// operationSample holds generated values for the fields of an operation form
type operationSample struct {
	Operation string            `json:"operation"`
	Path      map[string]string `json:"path"`
	Query     map[string]string `json:"query"`
	Header    map[string]string `json:"header"`
	Body      any               `json:"body,omitempty"`
}

// formCmd represents the form command
var formCmd = &cobra.Command{
	Use:   "form [openapi-spec] <METHOD> <path>",
	Short: "Print the form schemas of an operation",
	Long: `Print the path, query, header and body inputs of an operation as JSON
Schema documents with widget hints. With --sample, print generated values
for those inputs instead.`,
	Args: cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		source, rest := specArgs(args, 2)

		p, err := loadDocument(context.Background(), source)
		if err != nil {
			exitWithError("loading OpenAPI document: %v", err)
		}

		details, err := p.GetOperationDetails(rest[1], rest[0])
		if err != nil {
			exitWithError("%v", err)
		}

		var out any
		if formSample {
			gen := generator.NewGenerator(time.Now().UnixNano())
			gen.Optional = formOptional
			out = buildSample(details, gen)
		} else {
			out = buildForm(details)
		}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			exitWithError("encoding form: %v", err)
		}
		fmt.Println(string(data))
	},
}

func buildForm(details *parser.OperationDetails) operationForm {
	form := operationForm{
		Operation: details.Key(),
		Path:      formschema.ParamsSchema(details, "path"),
		Query:     formschema.ParamsSchema(details, "query"),
		Header:    formschema.ParamsSchema(details, "header"),
	}
	if body, mediaType, ok := formschema.BodySchema(details); ok {
		form.Body = body
		form.BodyMediaType = mediaType
	}
	return form
}

func buildSample(details *parser.OperationDetails, gen *generator.Generator) operationSample {
	sample := operationSample{
		Operation: details.Key(),
		Path:      gen.GenerateParams(formschema.ParamsSchema(details, "path")),
		Query:     gen.GenerateParams(formschema.ParamsSchema(details, "query")),
		Header:    gen.GenerateParams(formschema.ParamsSchema(details, "header")),
	}
	if body, _, ok := formschema.BodySchema(details); ok {
		if v, err := gen.GenerateValue(body); err == nil {
			sample.Body = v
		}
	}
	return sample
}

func init() {
	rootCmd.AddCommand(formCmd)

	formCmd.Flags().BoolVar(&formSample, "sample", false, "Print generated values instead of schemas")
	formCmd.Flags().BoolVar(&formOptional, "optional", false, "With --sample, also fill optional fields")
}
