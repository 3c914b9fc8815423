/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/moamenhredeen/oasc/internal/models"
)

func filterOperations(operations []models.Operation, filterStr string, tagFilters []string) []models.Operation {
	var filtered []models.Operation

	for _, op := range operations {
		// Filter by path pattern or operation ID
		if filterStr != "" {
			if !strings.Contains(op.Path, filterStr) && !strings.Contains(op.OperationID, filterStr) {
				continue
			}
		}

		if len(tagFilters) > 0 && !hasAnyTag(op, tagFilters) {
			continue
		}

		filtered = append(filtered, op)
	}

	return filtered
}

func hasAnyTag(op models.Operation, tags []string) bool {
	for _, want := range tags {
		if strings.EqualFold(op.Tag, want) {
			return true
		}
		for _, tag := range op.Tags {
			if strings.EqualFold(tag, want) {
				return true
			}
		}
	}
	return false
}

// groupByTag groups operations by their primary tag, in order of first appearance
func groupByTag(operations []models.Operation) ([]string, map[string][]models.Operation) {
	var order []string
	groups := map[string][]models.Operation{}
	for _, op := range operations {
		if _, ok := groups[op.Tag]; !ok {
			order = append(order, op.Tag)
		}
		groups[op.Tag] = append(groups[op.Tag], op)
	}
	return order, groups
}

// specArgs splits the optional leading document argument from the n
// arguments that follow it.
func specArgs(args []string, n int) (string, []string) {
	if len(args) > n {
		return args[0], args[1:]
	}
	return "", args
}

// parsePairs parses name=value arguments
func parsePairs(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid parameter %q: expected name=value", v)
		}
		out[strings.TrimSpace(name)] = value
	}
	return out, nil
}

// parseQuery parses name=value arguments in order. A repeated name becomes an array.
func parseQuery(values []string) (*models.Params, error) {
	query := models.NewParams()
	for _, v := range values {
		name, value, ok := strings.Cut(v, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid query parameter %q: expected name=value", v)
		}
		name = strings.TrimSpace(name)

		existing, found := query.Get(name)
		switch {
		case !found:
			query.Set(name, value)
		case isSlice(existing):
			query.Set(name, append(existing.([]any), value))
		default:
			query.Set(name, []any{existing, value})
		}
	}
	return query, nil
}

func isSlice(v any) bool {
	_, ok := v.([]any)
	return ok
}

// parseHeaders parses "Name: value" arguments, also accepting name=value
func parseHeaders(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		if !ok {
			name, value, ok = strings.Cut(v, "=")
		}
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q: expected 'Name: value'", v)
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return out, nil
}

func methodColor(method string) string {
	padded := fmt.Sprintf("%-7s", strings.ToUpper(method))
	switch strings.ToUpper(method) {
	case http.MethodGet:
		return green(padded)
	case http.MethodPost:
		return yellow(padded)
	case http.MethodPut, http.MethodPatch:
		return cyan(padded)
	case http.MethodDelete:
		return red(padded)
	default:
		return white(padded)
	}
}

func statusColor(status int) string {
	text := fmt.Sprintf("%d", status)
	switch {
	case status >= 500:
		return red(text)
	case status >= 400:
		return yellow(text)
	case status >= 200 && status < 300:
		return green(text)
	default:
		return cyan(text)
	}
}
