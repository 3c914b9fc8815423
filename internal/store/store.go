// Package store persists per-document state and response history.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/moamenhredeen/oasc/internal/models"
)

// ErrNotFound is returned when a key has no stored value
var ErrNotFound = errors.New("not found")

// Store is the key-value contract scoped by document id
type Store interface {
	Get(ctx context.Context, specID, key string) (string, error)
	Put(ctx context.Context, specID, key, value string) error
	Delete(ctx context.Context, specID, key string) error
	AppendResponse(ctx context.Context, entry HistoryEntry) (int64, error)
	ListResponses(ctx context.Context, specID string, limit int) ([]HistoryEntry, error)
	Close() error
}

// HistoryEntry is one stored response
type HistoryEntry struct {
	ID           int64               `json:"id"`
	SpecID       string              `json:"spec_id"`
	OperationKey string              `json:"operation_key"`
	Method       string              `json:"method"`
	URL          string              `json:"url"`
	Response     models.HttpResponse `json:"response"`
	CreatedAt    time.Time           `json:"created_at"`
}

// OperationState is the last set of inputs used for an operation
type OperationState struct {
	BaseURL       string            `json:"base_url,omitempty"`
	PathParams    map[string]string `json:"path_params,omitempty"`
	QueryParams   map[string]any    `json:"query_params,omitempty"`
	QueryOrder    []string          `json:"query_order,omitempty"`
	HeaderParams  map[string]string `json:"header_params,omitempty"`
	CustomHeaders map[string]string `json:"custom_headers,omitempty"`
	Body          string            `json:"body,omitempty"`
}

// OperationStateKey is the store key of an operation's saved inputs
func OperationStateKey(operationKey string) string {
	return "operation:" + operationKey
}

// GetJSON decodes the value stored under key into v
func GetJSON(ctx context.Context, s Store, specID, key string, v any) error {
	raw, err := s.Get(ctx, specID, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// PutJSON stores v encoded as JSON under key
func PutJSON(ctx context.Context, s Store, specID, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Put(ctx, specID, key, string(raw))
}
