// Package store persists JSON documents in named tables with optimistic
// versioning. Field configuration, records and stage-change history are kept
// here.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// Tables.
const (
	TableFormFields   = "form_fields"
	TableRecords      = "records"
	TableStageChanges = "stage_changes"
)

// Document is a stored JSON object. Version starts at 1 and increases by one
// on every write.
type Document struct {
	ID        string         `json:"id"`
	Data      map[string]any `json:"data"`
	Version   int            `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Filter matches documents whose top-level Data[Field] equals Value.
type Filter struct {
	Field string
	Value any
}

// Eq returns a Filter on field.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Query selects documents. Results are ordered by creation time, then id.
type Query struct {
	Filters []Filter
	Limit   int
	Offset  int
}

// Where returns a Query with the given filters.
func Where(filters ...Filter) Query {
	return Query{Filters: filters}
}

// Client is the generic data-store client.
type Client interface {
	// Get returns the document, or NOT_FOUND.
	Get(ctx context.Context, table, id string) (Document, error)

	// Select returns the documents matching q.
	Select(ctx context.Context, table string, q Query) ([]Document, error)

	// Create stores a new document at version 1. An empty ID is replaced by
	// a generated one. Returns CONFLICT if the id is taken.
	Create(ctx context.Context, table string, doc Document) (Document, error)

	// Update replaces the document's data. doc.Version must match the stored
	// version, otherwise CONFLICT is returned.
	Update(ctx context.Context, table string, doc Document) (Document, error)

	// Upsert creates the document or replaces it regardless of version.
	Upsert(ctx context.Context, table string, doc Document) (Document, error)

	// Delete removes the document, or returns NOT_FOUND.
	Delete(ctx context.Context, table, id string) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

func newID() string {
	return uuid.NewString()
}

func notFound(table, id string) error {
	return model.NewNotFoundError(fmt.Sprintf("%s %q not found", table, id))
}

// unavailable tags connectivity failures with STORE_UNAVAILABLE so the API
// answers 503. Other errors, and errors that already carry a code, are
// returned unchanged.
func unavailable(err error) error {
	if err == nil || model.ErrorCode(err) != "" {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Join(model.NewStoreUnavailableError(), err)
	}
	return err
}

func versionConflict(table, id string, want int) error {
	return model.NewConflictError(fmt.Sprintf("%s %q version conflict (expected %d)", table, id, want))
}

// normalize round-trips v through JSON so that every backend hands back the
// same Go types (float64 numbers, []any arrays).
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeData(data map[string]any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	v, err := normalize(data)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return v.(map[string]any), nil
}

func matches(doc Document, filters []Filter) bool {
	for _, f := range filters {
		want, err := normalize(f.Value)
		if err != nil {
			return false
		}
		if !reflect.DeepEqual(doc.Data[f.Field], want) {
			return false
		}
	}
	return true
}

// selectFrom filters, orders and pages docs in memory.
func selectFrom(docs []Document, q Query) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if matches(d, q.Filters) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return []Document{}
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out
}
