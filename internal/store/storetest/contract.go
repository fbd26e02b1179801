// Package storetest holds the behaviour every store.Client must share.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/store"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// RunClientContract runs the store.Client contract against c. Each subtest
// uses its own table.
func RunClientContract(t *testing.T, c store.Client) {
	ctx := context.Background()

	t.Run("Create and Get", func(t *testing.T) {
		created, err := c.Create(ctx, "contract_create", store.Document{
			Data: map[string]any{"name": "alpha", "count": 3, "tags": []string{"x"}},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, 1, created.Version)
		assert.False(t, created.CreatedAt.IsZero())

		got, err := c.Get(ctx, "contract_create", created.ID)
		require.NoError(t, err)
		assert.Equal(t, "alpha", got.Data["name"])
		assert.Equal(t, float64(3), got.Data["count"], "numbers come back as JSON numbers")
		assert.Equal(t, []any{"x"}, got.Data["tags"])
		assert.Equal(t, 1, got.Version)
	})

	t.Run("Create duplicate", func(t *testing.T) {
		_, err := c.Create(ctx, "contract_dup", store.Document{ID: "same"})
		require.NoError(t, err)
		_, err = c.Create(ctx, "contract_dup", store.Document{ID: "same"})
		assert.Equal(t, model.ErrConflict, model.ErrorCode(err))
	})

	t.Run("Get missing", func(t *testing.T) {
		_, err := c.Get(ctx, "contract_missing", "nope")
		assert.True(t, model.IsNotFound(err), "got %v", err)
	})

	t.Run("Update", func(t *testing.T) {
		doc, err := c.Create(ctx, "contract_update", store.Document{ID: "r1", Data: map[string]any{"stage": "open"}})
		require.NoError(t, err)

		doc.Data = map[string]any{"stage": "closed"}
		updated, err := c.Update(ctx, "contract_update", doc)
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Version)
		assert.Equal(t, "closed", updated.Data["stage"])

		_, err = c.Update(ctx, "contract_update", doc)
		assert.Equal(t, model.ErrConflict, model.ErrorCode(err), "stale version")

		got, err := c.Get(ctx, "contract_update", "r1")
		require.NoError(t, err)
		assert.Equal(t, 2, got.Version)
		assert.Equal(t, "closed", got.Data["stage"])

		_, err = c.Update(ctx, "contract_update", store.Document{ID: "ghost", Version: 1})
		assert.True(t, model.IsNotFound(err), "got %v", err)
	})

	t.Run("Upsert", func(t *testing.T) {
		first, err := c.Upsert(ctx, "contract_upsert", store.Document{ID: "f1", Data: map[string]any{"v": "a"}})
		require.NoError(t, err)
		assert.Equal(t, 1, first.Version)

		second, err := c.Upsert(ctx, "contract_upsert", store.Document{ID: "f1", Data: map[string]any{"v": "b"}})
		require.NoError(t, err)
		assert.Equal(t, 2, second.Version)
		assert.True(t, first.CreatedAt.Equal(second.CreatedAt), "created_at is kept")

		got, err := c.Get(ctx, "contract_upsert", "f1")
		require.NoError(t, err)
		assert.Equal(t, "b", got.Data["v"])
	})

	t.Run("Select", func(t *testing.T) {
		for _, d := range []store.Document{
			{ID: "a", Data: map[string]any{"form_id": "f1", "n": 1}},
			{ID: "b", Data: map[string]any{"form_id": "f2", "n": 2}},
			{ID: "c", Data: map[string]any{"form_id": "f1", "n": 3}},
			{ID: "d", Data: map[string]any{"form_id": "f1", "n": 4}},
		} {
			_, err := c.Create(ctx, "contract_select", d)
			require.NoError(t, err)
		}

		all, err := c.Select(ctx, "contract_select", store.Query{})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c", "d"}, ids(all))

		f1, err := c.Select(ctx, "contract_select", store.Where(store.Eq("form_id", "f1")))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c", "d"}, ids(f1))

		num, err := c.Select(ctx, "contract_select", store.Where(store.Eq("n", 3)))
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, ids(num))

		paged, err := c.Select(ctx, "contract_select", store.Query{
			Filters: []store.Filter{store.Eq("form_id", "f1")},
			Offset:  1,
			Limit:   1,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, ids(paged))

		none, err := c.Select(ctx, "contract_empty", store.Query{})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("Delete", func(t *testing.T) {
		_, err := c.Create(ctx, "contract_delete", store.Document{ID: "x"})
		require.NoError(t, err)

		require.NoError(t, c.Delete(ctx, "contract_delete", "x"))
		_, err = c.Get(ctx, "contract_delete", "x")
		assert.True(t, model.IsNotFound(err))

		err = c.Delete(ctx, "contract_delete", "x")
		assert.True(t, model.IsNotFound(err))

		rest, err := c.Select(ctx, "contract_delete", store.Query{})
		require.NoError(t, err)
		assert.Empty(t, rest)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, c.Ping(ctx))
	})
}

func ids(docs []store.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
