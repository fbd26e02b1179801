package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/store"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/store/storetest"
)

func TestMemoryStore_Contract(t *testing.T) {
	storetest.RunClientContract(t, store.NewMemoryStore())
}

func TestMemoryStore_returnsCopies(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	created, err := s.Create(ctx, store.TableRecords, store.Document{ID: "r1", Data: map[string]any{"k": "v"}})
	require.NoError(t, err)
	created.Data["k"] = "mutated"

	got, err := s.Get(ctx, store.TableRecords, "r1")
	require.NoError(t, err)
	assert.Equal(t, "v", got.Data["k"])

	got.Data["k"] = "again"
	again, err := s.Get(ctx, store.TableRecords, "r1")
	require.NoError(t, err)
	assert.Equal(t, "v", again.Data["k"])
	assert.Equal(t, 1, s.Len(store.TableRecords))
}

func TestMemoryStore_unencodableData(t *testing.T) {
	s := store.NewMemoryStore()
	_, err := s.Create(context.Background(), store.TableRecords, store.Document{Data: map[string]any{"ch": make(chan int)}})
	assert.Error(t, err)
	assert.Equal(t, 0, s.Len(store.TableRecords))
}
