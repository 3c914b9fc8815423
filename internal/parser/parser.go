package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pb33f/libopenapi"
	"github.com/pb33f/libopenapi/datamodel/high/base"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"

	"github.com/moamenhredeen/oasc/internal/models"
)

// DefaultServerURL is used when the document declares no servers
const DefaultServerURL = "http://localhost"

// ErrOperationNotFound is returned when a (method, path) pair is not declared
var ErrOperationNotFound = errors.New("operation not found")

// Methods lists the HTTP methods of a path item in listing order
var Methods = []string{"get", "post", "put", "patch", "delete", "head", "options", "trace"}

// Parser handles a loaded OpenAPI document
type Parser struct {
	id       string
	content  []byte
	document libopenapi.Document
	model    *libopenapi.DocumentModel[v3.Document]
}

// ParseFile parses an OpenAPI document from disk
func ParseFile(filePath string) (*Parser, error) {
	specBytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read OpenAPI file: %w", err)
	}
	return ParseBytes(specBytes)
}

// Load reads a document from a file path or an http(s) URL. Remote documents
// are downloaded through fetcher, or plain HTTP when fetcher is nil.
func Load(ctx context.Context, source string, fetcher Fetcher) (*Parser, error) {
	if !IsRemote(source) {
		return ParseFile(source)
	}
	if fetcher == nil {
		fetcher = NewHTTPFetcher(nil)
	}
	content, err := fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch OpenAPI document: %w", err)
	}
	return ParseBytes(content)
}

// ParseBytes parses an OpenAPI 3.x or Swagger 2.0 document. Swagger documents
// are converted to OpenAPI 3 first.
func ParseBytes(specBytes []byte) (*Parser, error) {
	content := specBytes
	if isSwagger2(specBytes) {
		converted, err := convertSwagger2(specBytes)
		if err != nil {
			return nil, err
		}
		content = converted
	}

	document, err := libopenapi.NewDocument(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}

	model, errs := document.BuildV3Model()
	if errs != nil {
		return nil, fmt.Errorf("failed to build v3 model: %v", errs)
	}

	return &Parser{
		id:       DocumentID(specBytes),
		content:  content,
		document: document,
		model:    model,
	}, nil
}

// DocumentID derives a stable identifier from the document text
func DocumentID(content []byte) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, content).String()
}

// ID returns the stable identifier of the loaded document
func (p *Parser) ID() string {
	return p.id
}

// Title returns the document title and version
func (p *Parser) Title() (string, string) {
	info := p.model.Model.Info
	if info == nil {
		return "", ""
	}
	return info.Title, info.Version
}

// GetServerURLs returns the server URLs with variables replaced by their defaults
func (p *Parser) GetServerURLs() []string {
	servers := p.model.Model.Servers
	if len(servers) == 0 {
		return []string{DefaultServerURL}
	}

	urls := make([]string, 0, len(servers))
	for _, server := range servers {
		if server != nil && server.URL != "" {
			urls = append(urls, resolveServerURL(server))
		}
	}
	if len(urls) == 0 {
		return []string{DefaultServerURL}
	}
	return urls
}

func resolveServerURL(server *v3.Server) string {
	resolved := server.URL
	if server.Variables == nil {
		return resolved
	}
	for pair := server.Variables.First(); pair != nil; pair = pair.Next() {
		variable := pair.Value()
		if variable == nil {
			continue
		}
		replacement := variable.Default
		if replacement == "" && len(variable.Enum) > 0 {
			replacement = variable.Enum[0]
		}
		resolved = strings.ReplaceAll(resolved, "{"+pair.Key()+"}", replacement)
	}
	return resolved
}

// GetOperations lists every operation in path order, methods in listing order
func (p *Parser) GetOperations() []models.Operation {
	var operations []models.Operation

	paths := p.model.Model.Paths
	if paths == nil || paths.PathItems == nil {
		return operations
	}

	for pair := paths.PathItems.First(); pair != nil; pair = pair.Next() {
		path := pair.Key()
		item := pair.Value()
		if item == nil {
			continue
		}

		for _, method := range Methods {
			op := operationFor(item, method)
			if op == nil {
				continue
			}

			tag := models.DefaultTag
			if len(op.Tags) > 0 {
				tag = op.Tags[0]
			}

			operations = append(operations, models.Operation{
				Path:        path,
				Method:      strings.ToUpper(method),
				OperationID: op.OperationId,
				Summary:     op.Summary,
				Tag:         tag,
				Tags:        append([]string{}, op.Tags...),
				Security:    convertRequirements(op.Security),
			})
		}
	}

	return operations
}

// OperationDetails holds the declaration of one operation
type OperationDetails struct {
	Operation   *v3.Operation
	Path        string
	Method      string
	Parameters  []*v3.Parameter
	RequestBody *v3.RequestBody
	Responses   *v3.Responses
	Security    []models.SecurityRequirement
}

// Key returns the composite key of the operation
func (d *OperationDetails) Key() string {
	return models.OperationKey(d.Method, d.Path)
}

// ParametersIn returns the parameters declared for one location (path, query, header, cookie)
func (d *OperationDetails) ParametersIn(location string) []*v3.Parameter {
	var out []*v3.Parameter
	for _, param := range d.Parameters {
		if param != nil && strings.EqualFold(param.In, location) {
			out = append(out, param)
		}
	}
	return out
}

// GetOperationDetails extracts the declaration for a method and path.
// Path-level parameters are merged in, operation-level ones win.
func (p *Parser) GetOperationDetails(path, method string) (*OperationDetails, error) {
	paths := p.model.Model.Paths
	if paths == nil || paths.PathItems == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrOperationNotFound, strings.ToUpper(method), path)
	}

	item, ok := paths.PathItems.Get(path)
	if !ok || item == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrOperationNotFound, strings.ToUpper(method), path)
	}

	operation := operationFor(item, strings.ToLower(method))
	if operation == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrOperationNotFound, strings.ToUpper(method), path)
	}

	return &OperationDetails{
		Operation:   operation,
		Path:        path,
		Method:      strings.ToUpper(method),
		Parameters:  mergeParameters(item.Parameters, operation.Parameters),
		RequestBody: operation.RequestBody,
		Responses:   operation.Responses,
		Security:    convertRequirements(operation.Security),
	}, nil
}

func operationFor(item *v3.PathItem, method string) *v3.Operation {
	switch method {
	case "get":
		return item.Get
	case "post":
		return item.Post
	case "put":
		return item.Put
	case "patch":
		return item.Patch
	case "delete":
		return item.Delete
	case "head":
		return item.Head
	case "options":
		return item.Options
	case "trace":
		return item.Trace
	}
	return nil
}

func mergeParameters(pathParams, opParams []*v3.Parameter) []*v3.Parameter {
	merged := make([]*v3.Parameter, 0, len(pathParams)+len(opParams))
	index := make(map[string]int)

	add := func(param *v3.Parameter) {
		if param == nil {
			return
		}
		key := strings.ToLower(param.In) + ":" + param.Name
		if i, ok := index[key]; ok {
			merged[i] = param
			return
		}
		index[key] = len(merged)
		merged = append(merged, param)
	}

	for _, param := range pathParams {
		add(param)
	}
	for _, param := range opParams {
		add(param)
	}
	return merged
}

// SecuritySchemes returns the schemes declared under components
func (p *Parser) SecuritySchemes() map[string]models.SecurityScheme {
	schemes := map[string]models.SecurityScheme{}

	components := p.model.Model.Components
	if components == nil || components.SecuritySchemes == nil {
		return schemes
	}

	for pair := components.SecuritySchemes.First(); pair != nil; pair = pair.Next() {
		scheme := pair.Value()
		if scheme == nil {
			continue
		}
		schemes[pair.Key()] = models.SecurityScheme{
			Type:         scheme.Type,
			Name:         scheme.Name,
			In:           scheme.In,
			Scheme:       scheme.Scheme,
			BearerFormat: scheme.BearerFormat,
			Description:  scheme.Description,
		}
	}
	return schemes
}

// GlobalSecurity returns the document-level security requirements
func (p *Parser) GlobalSecurity() []models.SecurityRequirement {
	return convertRequirements(p.model.Model.Security)
}

func convertRequirements(reqs []*base.SecurityRequirement) []models.SecurityRequirement {
	if reqs == nil {
		return nil
	}

	out := make([]models.SecurityRequirement, 0, len(reqs))
	for _, req := range reqs {
		names := models.SecurityRequirement{}
		if req != nil && req.Requirements != nil {
			for pair := req.Requirements.First(); pair != nil; pair = pair.Next() {
				names = append(names, pair.Key())
			}
		}
		out = append(out, names)
	}
	return out
}
