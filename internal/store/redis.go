package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// RedisStore implements Client on Redis. Each document is a JSON string key;
// a sorted set per table, scored by creation time, indexes the ids.
type RedisStore struct {
	client *backend.Client
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix sets the key prefix for all tables.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore connects to address.
func NewRedisStore(address string, db int, opts ...RedisOption) *RedisStore {
	return NewRedisStoreFromClient(backend.NewClient(&backend.Options{
		Addr: address,
		DB:   db,
	}), opts...)
}

// NewRedisStoreFromClient creates a RedisStore from an existing client.
func NewRedisStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: "formconfig:"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(table, id string) string {
	return s.prefix + table + ":doc:" + id
}

func (s *RedisStore) indexKey(table string) string {
	return s.prefix + table + ":index"
}

type getter interface {
	Get(ctx context.Context, key string) *backend.StringCmd
}

func (s *RedisStore) load(ctx context.Context, g getter, table, id string) (Document, error) {
	val, err := g.Get(ctx, s.key(table, id)).Result()
	if errors.Is(err, backend.Nil) {
		return Document{}, notFound(table, id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s: %w", table, unavailable(err))
	}
	var doc Document
	if err := json.Unmarshal([]byte(val), &doc); err != nil {
		return Document{}, fmt.Errorf("decode %s %q: %w", table, id, err)
	}
	if doc.Data == nil {
		doc.Data = map[string]any{}
	}
	return doc, nil
}

// Get retrieves a document by id.
func (s *RedisStore) Get(ctx context.Context, table, id string) (Document, error) {
	return s.load(ctx, s.client, table, id)
}

// Select loads every document of the table and filters in process.
func (s *RedisStore) Select(ctx context.Context, table string, q Query) ([]Document, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(table), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, unavailable(err))
	}
	if len(ids) == 0 {
		return []Document{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(table, id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, unavailable(err))
	}

	docs := make([]Document, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// Index entry without a document; skipped until the next delete.
			continue
		}
		var doc Document
		if err := json.Unmarshal([]byte(str), &doc); err != nil {
			return nil, fmt.Errorf("decode %s %q: %w", table, ids[i], err)
		}
		if doc.Data == nil {
			doc.Data = map[string]any{}
		}
		docs = append(docs, doc)
	}
	return selectFrom(docs, q), nil
}

// Create stores a new document. SETNX guards against existing ids.
func (s *RedisStore) Create(ctx context.Context, table string, doc Document) (Document, error) {
	data, err := normalizeData(doc.Data)
	if err != nil {
		return Document{}, err
	}
	if doc.ID == "" {
		doc.ID = newID()
	}
	now := time.Now().UTC()
	doc.Data, doc.Version, doc.CreatedAt, doc.UpdatedAt = data, 1, now, now

	raw, err := json.Marshal(doc)
	if err != nil {
		return Document{}, fmt.Errorf("encode %s: %w", table, err)
	}
	ok, err := s.client.SetNX(ctx, s.key(table, doc.ID), raw, 0).Result()
	if err != nil {
		return Document{}, fmt.Errorf("create %s: %w", table, unavailable(err))
	}
	if !ok {
		return Document{}, model.NewConflictError(fmt.Sprintf("%s %q already exists", table, doc.ID))
	}
	if err := s.index(ctx, table, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (s *RedisStore) index(ctx context.Context, table string, doc Document) error {
	err := s.client.ZAdd(ctx, s.indexKey(table), backend.Z{
		Score:  float64(doc.CreatedAt.UnixMicro()),
		Member: doc.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("index %s: %w", table, unavailable(err))
	}
	return nil
}

// Update writes the document inside a WATCH transaction; a concurrent write
// to the same key surfaces as a version conflict.
func (s *RedisStore) Update(ctx context.Context, table string, doc Document) (Document, error) {
	data, err := normalizeData(doc.Data)
	if err != nil {
		return Document{}, err
	}
	key := s.key(table, doc.ID)

	var out Document
	err = s.client.Watch(ctx, func(tx *backend.Tx) error {
		cur, err := s.load(ctx, tx, table, doc.ID)
		if err != nil {
			return err
		}
		if cur.Version != doc.Version {
			return versionConflict(table, doc.ID, doc.Version)
		}
		cur.Data = data
		cur.Version++
		cur.UpdatedAt = time.Now().UTC()
		raw, err := json.Marshal(cur)
		if err != nil {
			return fmt.Errorf("encode %s: %w", table, err)
		}
		_, err = tx.TxPipelined(ctx, func(p backend.Pipeliner) error {
			p.Set(ctx, key, raw, 0)
			return nil
		})
		out = cur
		return err
	}, key)
	if errors.Is(err, backend.TxFailedErr) {
		return Document{}, versionConflict(table, doc.ID, doc.Version)
	}
	if err != nil {
		return Document{}, fmt.Errorf("update %s: %w", table, unavailable(err))
	}
	return out, nil
}

// Upsert creates or replaces the document regardless of version.
func (s *RedisStore) Upsert(ctx context.Context, table string, doc Document) (Document, error) {
	data, err := normalizeData(doc.Data)
	if err != nil {
		return Document{}, err
	}
	if doc.ID == "" {
		doc.ID = newID()
	}
	key := s.key(table, doc.ID)

	var out Document
	err = s.client.Watch(ctx, func(tx *backend.Tx) error {
		now := time.Now().UTC()
		cur, err := s.load(ctx, tx, table, doc.ID)
		if model.IsNotFound(err) {
			cur, err = Document{ID: doc.ID, CreatedAt: now}, nil
		}
		if err != nil {
			return err
		}
		cur.Data = data
		cur.Version++
		cur.UpdatedAt = now
		raw, err := json.Marshal(cur)
		if err != nil {
			return fmt.Errorf("encode %s: %w", table, err)
		}
		_, err = tx.TxPipelined(ctx, func(p backend.Pipeliner) error {
			p.Set(ctx, key, raw, 0)
			p.ZAdd(ctx, s.indexKey(table), backend.Z{Score: float64(cur.CreatedAt.UnixMicro()), Member: cur.ID})
			return nil
		})
		out = cur
		return err
	}, key)
	if errors.Is(err, backend.TxFailedErr) {
		return Document{}, model.NewConflictError(fmt.Sprintf("%s %q was modified concurrently", table, doc.ID))
	}
	if err != nil {
		return Document{}, fmt.Errorf("upsert %s: %w", table, unavailable(err))
	}
	return out, nil
}

// Delete removes the document and its index entry.
func (s *RedisStore) Delete(ctx context.Context, table, id string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.key(table, id))
	pipe.ZRem(ctx, s.indexKey(table), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", table, unavailable(err))
	}
	if del.Val() == 0 {
		return notFound(table, id)
	}
	return nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return unavailable(s.client.Ping(ctx).Err())
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
