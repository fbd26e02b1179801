package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/config"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

func TestSelectSQL(t *testing.T) {
	query, args, err := selectSQL(TableRecords, Query{
		Filters: []Filter{Eq("form_id", "tickets"), Eq("n", 2)},
		Limit:   10,
		Offset:  20,
	})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, data, version, created_at, updated_at FROM documents WHERE tbl = $1"+
			" AND data @> $2::jsonb AND data @> $3::jsonb"+
			" ORDER BY created_at ASC, id ASC LIMIT $4 OFFSET $5",
		query)
	assert.Equal(t, []any{TableRecords, `{"form_id":"tickets"}`, `{"n":2}`, 10, 20}, args)
}

func TestSelectSQL_unencodableFilter(t *testing.T) {
	_, _, err := selectSQL(TableRecords, Where(Eq("x", func() {})))
	assert.Error(t, err)
}

func TestMatches(t *testing.T) {
	doc := Document{Data: map[string]any{"stage": "open", "n": float64(2), "tags": []any{"a"}}}
	assert.True(t, matches(doc, nil))
	assert.True(t, matches(doc, []Filter{Eq("stage", "open"), Eq("n", 2)}))
	assert.True(t, matches(doc, []Filter{Eq("tags", []string{"a"})}))
	assert.False(t, matches(doc, []Filter{Eq("stage", "closed")}))
	assert.False(t, matches(doc, []Filter{Eq("missing", "x")}))
}

func TestUnavailable(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	err := unavailable(dial)
	assert.Equal(t, model.ErrStoreUnavailable, model.ErrorCode(err))
	assert.ErrorIs(t, err, dial)

	assert.Same(t, err, unavailable(err), "already tagged")

	dropped := fmt.Errorf("read reply: %w", io.EOF)
	assert.Equal(t, model.ErrStoreUnavailable, model.ErrorCode(unavailable(dropped)))

	plain := errors.New("syntax error at or near")
	assert.Same(t, plain, unavailable(plain))

	missing := notFound(TableRecords, "r1")
	assert.Same(t, missing, unavailable(missing))
	assert.NoError(t, unavailable(nil))
}

func TestOpen_memory(t *testing.T) {
	c, err := Open(context.Background(), config.StoreConfig{Driver: config.DriverMemory}, zap.NewNop())
	require.NoError(t, err)
	_, ok := c.(*MemoryStore)
	assert.True(t, ok)
}

func TestOpen_errors(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "mongo"}, zap.NewNop())
	assert.Error(t, err)

	t.Setenv("TEST_FORMCONFIG_DSN", "")
	_, err = Open(context.Background(), config.StoreConfig{Driver: config.DriverPostgres, DSNEnv: "TEST_FORMCONFIG_DSN"}, zap.NewNop())
	assert.ErrorContains(t, err, "TEST_FORMCONFIG_DSN")
}
