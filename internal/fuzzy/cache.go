package fuzzy

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

const (
	embeddingCacheKeyPrefix = "fuzzy/emb/v1/"
	embeddingCacheTTL       = 7 * 24 * time.Hour
)

// BadgerEmbeddingCache wraps an Embedder and memoizes vectors in BadgerDB,
// keyed by model and normalized term. Entries expire after the TTL.
type BadgerEmbeddingCache struct {
	inner  Embedder
	db     *badger.DB
	model  string
	ttl    time.Duration
	logger *slog.Logger
}

// OpenBadgerEmbeddingCache opens (or creates) the cache at dir. An empty dir keeps it in memory.
func OpenBadgerEmbeddingCache(inner Embedder, dir, model string, ttl time.Duration, logger *slog.Logger) (*BadgerEmbeddingCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}
	return NewBadgerEmbeddingCache(inner, db, model, ttl, logger), nil
}

// NewBadgerEmbeddingCache wraps an already opened DB. Close closes it.
func NewBadgerEmbeddingCache(inner Embedder, db *badger.DB, model string, ttl time.Duration, logger *slog.Logger) *BadgerEmbeddingCache {
	if ttl <= 0 {
		ttl = embeddingCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerEmbeddingCache{inner: inner, db: db, model: model, ttl: ttl, logger: logger}
}

// Embed returns the cached vector for text, computing and storing it on a miss.
// Cache read and write failures are logged and never fail the call.
func (c *BadgerEmbeddingCache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	vec, err := c.load(key)
	if err != nil {
		c.logger.Warn("embedding cache read failed", slog.String("error", err.Error()))
	}
	if vec != nil {
		c.logger.Debug("embedding cache hit", slog.String("term", text))
		return vec, nil
	}

	vec, err = c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.save(key, vec); err != nil {
		c.logger.Warn("embedding cache write failed", slog.String("error", err.Error()))
	}
	return vec, nil
}

// Close closes the underlying DB.
func (c *BadgerEmbeddingCache) Close() error {
	return c.db.Close()
}

func (c *BadgerEmbeddingCache) load(key []byte) ([]float32, error) {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var vec []float32
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&vec); err != nil {
		return nil, fmt.Errorf("failed to decode cached embedding: %w", err)
	}
	return vec, nil
}

func (c *BadgerEmbeddingCache) save(key []byte, vec []float32) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(vec); err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, buf.Bytes()).WithTTL(c.ttl))
	})
}

func (c *BadgerEmbeddingCache) key(text string) []byte {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text))))
	return []byte(embeddingCacheKeyPrefix + c.model + "/" + hex.EncodeToString(sum[:]))
}
