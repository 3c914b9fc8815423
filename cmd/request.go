/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"maps"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/moamenhredeen/oasc/internal/auth"
	"github.com/moamenhredeen/oasc/internal/config"
	"github.com/moamenhredeen/oasc/internal/formschema"
	"github.com/moamenhredeen/oasc/internal/generator"
	"github.com/moamenhredeen/oasc/internal/models"
	"github.com/moamenhredeen/oasc/internal/orchestrator"
	"github.com/moamenhredeen/oasc/internal/parser"
	"github.com/moamenhredeen/oasc/internal/request"
	"github.com/moamenhredeen/oasc/internal/store"
	"github.com/moamenhredeen/oasc/internal/templating"
)

// requestFlags are the request inputs shared by send and curl
type requestFlags struct {
	baseURL       string
	pathParams    []string
	queryParams   []string
	headers       []string
	customHeaders []string
	body          string
	bodyFile      string
	env           string
	sample        bool
	last          bool
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "Base URL (default: config base_url, then the first server of the document)")
	cmd.Flags().StringArrayVarP(&f.pathParams, "path", "p", nil, "Path parameter name=value (repeatable)")
	cmd.Flags().StringArrayVarP(&f.queryParams, "query", "q", nil, "Query parameter name=value (repeatable, repeated names become arrays)")
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, "Header parameter 'Name: value' (repeatable)")
	cmd.Flags().StringArrayVar(&f.customHeaders, "custom-header", nil, "Custom header 'Name: value' added to every request (repeatable)")
	cmd.Flags().StringVarP(&f.body, "body", "d", "", "Request body")
	cmd.Flags().StringVar(&f.bodyFile, "body-file", "", "Read the request body from a file")
	cmd.Flags().StringVarP(&f.env, "env", "e", "", "Environment whose variables and credentials apply (default: config environment)")
	cmd.Flags().BoolVar(&f.sample, "sample", false, "Fill missing required parameters and the body with sample values")
	cmd.Flags().BoolVar(&f.last, "last", false, "Reuse the inputs saved by the last 'send --save' of this operation")
}

// requestInput holds the parsed flag values
type requestInput struct {
	BaseURL       string
	PathParams    map[string]string
	Query         *models.Params
	Headers       map[string]string
	CustomHeaders map[string]string
	Body          *string
	Env           string
	Sample        bool
}

func (f *requestFlags) input() (requestInput, error) {
	in := requestInput{BaseURL: f.baseURL, Env: f.env, Sample: f.sample}

	var err error
	if in.PathParams, err = parsePairs(f.pathParams); err != nil {
		return in, err
	}
	if in.Query, err = parseQuery(f.queryParams); err != nil {
		return in, err
	}
	if in.Headers, err = parseHeaders(f.headers); err != nil {
		return in, err
	}
	if in.CustomHeaders, err = parseHeaders(f.customHeaders); err != nil {
		return in, err
	}

	switch {
	case f.body != "" && f.bodyFile != "":
		return in, fmt.Errorf("--body and --body-file are mutually exclusive")
	case f.bodyFile != "":
		data, err := os.ReadFile(f.bodyFile)
		if err != nil {
			return in, fmt.Errorf("failed to read body file: %w", err)
		}
		body := string(data)
		in.Body = &body
	case f.body != "":
		body := f.body
		in.Body = &body
	}
	return in, nil
}

// applyState fills inputs the user did not give from a saved operation state
func applyState(in *requestInput, st store.OperationState) {
	if in.BaseURL == "" {
		in.BaseURL = st.BaseURL
	}
	fillMissing(in.PathParams, st.PathParams)
	fillMissing(in.Headers, st.HeaderParams)
	fillMissing(in.CustomHeaders, st.CustomHeaders)

	if in.Query.Len() == 0 {
		for _, name := range st.QueryOrder {
			if v, ok := st.QueryParams[name]; ok {
				in.Query.Set(name, v)
			}
		}
	}
	if in.Body == nil && st.Body != "" {
		body := st.Body
		in.Body = &body
	}
}

func fillMissing(dst, src map[string]string) {
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
}

// operationState captures the raw inputs so a later --last can replay them
func operationState(in requestInput) store.OperationState {
	st := store.OperationState{
		BaseURL:       in.BaseURL,
		PathParams:    in.PathParams,
		QueryParams:   map[string]any{},
		HeaderParams:  in.Headers,
		CustomHeaders: in.CustomHeaders,
	}
	for pair := in.Query.First(); pair != nil; pair = pair.Next() {
		st.QueryParams[pair.Key()] = pair.Value()
		st.QueryOrder = append(st.QueryOrder, pair.Key())
	}
	if in.Body != nil {
		st.Body = *in.Body
	}
	return st
}

// resolvedRequest is everything needed to preview or send one operation
type resolvedRequest struct {
	Details *parser.OperationDetails
	Env     string
	Parts   models.RequestParts
	Options orchestrator.SendOptions
	// Missing lists template variables the environment does not define
	Missing []string
}

func resolveRequest(cfg *config.Config, p *parser.Parser, method, path string, in requestInput) (resolvedRequest, error) {
	details, err := p.GetOperationDetails(path, method)
	if err != nil {
		return resolvedRequest{}, err
	}

	if in.Sample {
		fillSamples(&in, details, generator.NewGenerator(time.Now().UnixNano()))
	}

	baseURL := in.BaseURL
	if baseURL == "" {
		baseURL = cfg.BaseURL
	}
	if baseURL == "" {
		if servers := p.GetServerURLs(); len(servers) > 0 {
			baseURL = servers[0]
		}
	}
	if baseURL == "" {
		baseURL = parser.DefaultServerURL
	}

	env := cfg.ActiveEnvironment(in.Env)
	vars := templating.Vars(cfg.Variables(env))

	customHeaders := maps.Clone(cfg.Headers)
	if customHeaders == nil {
		customHeaders = map[string]string{}
	}
	maps.Copy(customHeaders, in.CustomHeaders)

	queryValues := map[string]any{}
	for pair := in.Query.First(); pair != nil; pair = pair.Next() {
		queryValues[pair.Key()] = pair.Value()
	}
	var bodyText string
	if in.Body != nil {
		bodyText = *in.Body
	}
	missing := templating.Validate([]any{
		baseURL,
		in.PathParams,
		queryValues,
		in.Headers,
		customHeaders,
		bodyText,
	}, vars)

	pathParams := make(map[string]any, len(in.PathParams))
	for k, v := range templating.ResolveMap(in.PathParams, vars) {
		pathParams[k] = v
	}

	parts := models.RequestParts{
		BaseURL:      templating.ResolveString(baseURL, vars),
		Path:         details.Path,
		Method:       details.Method,
		PathParams:   pathParams,
		QueryParams:  templating.ResolveParams(in.Query, vars),
		HeaderParams: templating.ResolveMap(in.Headers, vars),
	}
	if in.Body != nil && request.HasBody(details.Method) {
		parts.Body = templating.ResolveString(*in.Body, vars)
		parts.MediaType = bodyMediaType(details)
	}

	schemes := p.SecuritySchemes()
	names := make([]string, 0, len(schemes))
	for name := range schemes {
		names = append(names, name)
	}
	applied := auth.Resolve(details.Security, cfg.AuthValues(names, env), p)

	return resolvedRequest{
		Details: details,
		Env:     env,
		Parts:   parts,
		Options: orchestrator.SendOptions{
			Auth:          applied,
			CustomHeaders: templating.ResolveMap(customHeaders, vars),
		},
		Missing: missing,
	}, nil
}

// bodyMediaType is the JSON media type when the operation accepts JSON, else
// the first declared content type.
func bodyMediaType(details *parser.OperationDetails) string {
	if mediaType, ok := formschema.BodyMediaType(details); ok {
		return mediaType
	}
	if details.RequestBody != nil && details.RequestBody.Content != nil {
		if first := details.RequestBody.Content.First(); first != nil {
			return first.Key()
		}
	}
	return ""
}

func fillSamples(in *requestInput, details *parser.OperationDetails, gen *generator.Generator) {
	fillMissing(in.PathParams, gen.GenerateParams(formschema.ParamsSchema(details, "path")))
	fillMissing(in.Headers, gen.GenerateParams(formschema.ParamsSchema(details, "header")))
	query := formschema.ParamsSchema(details, "query")
	samples := gen.GenerateParams(query)
	for _, prop := range query.Properties {
		value, ok := samples[prop.Name]
		if !ok {
			continue
		}
		if _, exists := in.Query.Get(prop.Name); !exists {
			in.Query.Set(prop.Name, value)
		}
	}

	if in.Body != nil || !request.HasBody(details.Method) {
		return
	}
	if schema, _, ok := formschema.BodySchema(details); ok {
		if body, err := gen.GenerateBody(schema); err == nil {
			text := string(body)
			in.Body = &text
		}
	}
}
