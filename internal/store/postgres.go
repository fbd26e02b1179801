package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// Schema creates the documents table used by PgStore.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	tbl        TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	data       JSONB       NOT NULL,
	version    INTEGER     NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tbl, id)
);
CREATE INDEX IF NOT EXISTS documents_data_idx ON documents USING GIN (data);
`

// PgStore is a PostgreSQL-backed Client using pgx/v5. All tables share one
// JSONB documents table keyed by (tbl, id).
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Migrate creates the schema if it does not exist.
func (s *PgStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate documents: %w", unavailable(err))
	}
	return nil
}

// Get retrieves a document by id.
func (s *PgStore) Get(ctx context.Context, table, id string) (Document, error) {
	doc, err := scanDocument(s.pool.QueryRow(ctx, `
		SELECT id, data, version, created_at, updated_at
		FROM documents
		WHERE tbl = $1 AND id = $2`,
		table, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, notFound(table, id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("query %s: %w", table, unavailable(err))
	}
	return doc, nil
}

// Select returns the documents matching q. Filters use JSONB containment.
func (s *PgStore) Select(ctx context.Context, table string, q Query) ([]Document, error) {
	query, args, err := selectSQL(table, q)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, unavailable(err))
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func selectSQL(table string, q Query) (string, []any, error) {
	var b strings.Builder
	b.WriteString(`SELECT id, data, version, created_at, updated_at FROM documents WHERE tbl = $1`)
	args := []any{table}

	for _, f := range q.Filters {
		frag, err := json.Marshal(map[string]any{f.Field: f.Value})
		if err != nil {
			return "", nil, fmt.Errorf("encode filter %s: %w", f.Field, err)
		}
		args = append(args, string(frag))
		fmt.Fprintf(&b, " AND data @> $%d::jsonb", len(args))
	}

	b.WriteString(" ORDER BY created_at ASC, id ASC")

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args, nil
}

// Create inserts a new document.
func (s *PgStore) Create(ctx context.Context, table string, doc Document) (Document, error) {
	if doc.ID == "" {
		doc.ID = newID()
	}
	data, raw, err := encodeData(doc.Data)
	if err != nil {
		return Document{}, err
	}
	now := time.Now().UTC()

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO documents (tbl, id, data, version, created_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, $4)
		ON CONFLICT (tbl, id) DO NOTHING`,
		table, doc.ID, raw, now,
	)
	if err != nil {
		return Document{}, fmt.Errorf("insert %s: %w", table, unavailable(err))
	}
	if tag.RowsAffected() == 0 {
		return Document{}, model.NewConflictError(fmt.Sprintf("%s %q already exists", table, doc.ID))
	}
	return Document{ID: doc.ID, Data: data, Version: 1, CreatedAt: now, UpdatedAt: now}, nil
}

// Update persists a document with optimistic locking.
func (s *PgStore) Update(ctx context.Context, table string, doc Document) (Document, error) {
	data, raw, err := encodeData(doc.Data)
	if err != nil {
		return Document{}, err
	}

	out := Document{ID: doc.ID, Data: data}
	err = s.pool.QueryRow(ctx, `
		UPDATE documents SET
			data = $1,
			version = version + 1,
			updated_at = $2
		WHERE tbl = $3 AND id = $4 AND version = $5
		RETURNING version, created_at, updated_at`,
		raw, time.Now().UTC(), table, doc.ID, doc.Version,
	).Scan(&out.Version, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.Get(ctx, table, doc.ID); getErr != nil {
			return Document{}, getErr
		}
		return Document{}, versionConflict(table, doc.ID, doc.Version)
	}
	if err != nil {
		return Document{}, fmt.Errorf("update %s: %w", table, unavailable(err))
	}
	return out, nil
}

// Upsert inserts or replaces a document.
func (s *PgStore) Upsert(ctx context.Context, table string, doc Document) (Document, error) {
	if doc.ID == "" {
		doc.ID = newID()
	}
	data, raw, err := encodeData(doc.Data)
	if err != nil {
		return Document{}, err
	}

	out := Document{ID: doc.ID, Data: data}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO documents (tbl, id, data, version, created_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, $4)
		ON CONFLICT (tbl, id) DO UPDATE SET
			data = EXCLUDED.data,
			version = documents.version + 1,
			updated_at = EXCLUDED.updated_at
		RETURNING version, created_at, updated_at`,
		table, doc.ID, raw, time.Now().UTC(),
	).Scan(&out.Version, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return Document{}, fmt.Errorf("upsert %s: %w", table, unavailable(err))
	}
	return out, nil
}

// Delete removes a document.
func (s *PgStore) Delete(ctx context.Context, table, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE tbl = $1 AND id = $2`, table, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, unavailable(err))
	}
	if tag.RowsAffected() == 0 {
		return notFound(table, id)
	}
	return nil
}

// Ping checks the connection pool.
func (s *PgStore) Ping(ctx context.Context) error {
	return unavailable(s.pool.Ping(ctx))
}

// Close closes the pool.
func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}

func encodeData(data map[string]any) (map[string]any, string, error) {
	norm, err := normalizeData(data)
	if err != nil {
		return nil, "", err
	}
	raw, err := json.Marshal(norm)
	if err != nil {
		return nil, "", fmt.Errorf("encode document: %w", err)
	}
	return norm, string(raw), nil
}

func scanDocument(row pgx.Row) (Document, error) {
	var doc Document
	var raw []byte
	if err := row.Scan(&doc.ID, &raw, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return Document{}, err
	}
	doc.Data = map[string]any{}
	if raw != nil {
		if err := json.Unmarshal(raw, &doc.Data); err != nil {
			return Document{}, fmt.Errorf("decode document %s: %w", doc.ID, err)
		}
	}
	return doc, nil
}
