// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// metadata.go provides a Valkey-backed cache for the upstream's category
// and location metadata documents. Both trees are large, change rarely,
// and are refetched on every post-flow step otherwise. Attribute
// metadata is deliberately NOT cached here: dependent choices must be
// re-queried live so cascading fields always reflect the current schema.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// metaKeyPrefix namespaces metadata keys in Valkey.
	metaKeyPrefix = "meta:"

	// DefaultMetadataTTL is how long a cached metadata document lives.
	DefaultMetadataTTL = 24 * time.Hour
)

// Well-known metadata cache keys.
const (
	CategoriesKey = "categories"
	LocationsKey  = "locations"
)

// MetadataCache stores raw metadata documents in Valkey.
type MetadataCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMetadataCache creates a metadata cache backed by the given Valkey client.
func NewMetadataCache(client *redis.Client, ttl time.Duration) *MetadataCache {
	if ttl == 0 {
		ttl = DefaultMetadataTTL
	}
	return &MetadataCache{client: client, ttl: ttl}
}

// Get retrieves a cached document. Returns false on miss; cache errors
// are logged and treated as misses so the caller falls through to the
// upstream fetch.
func (mc *MetadataCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := mc.client.Get(ctx, metaKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("metadata cache get error", "key", key, "error", err)
		return nil, false
	}
	return val, true
}

// Set stores a document with the configured TTL. Failures are logged,
// never surfaced; the cache is best-effort.
func (mc *MetadataCache) Set(ctx context.Context, key string, doc []byte) {
	if err := mc.client.Set(ctx, metaKeyPrefix+key, doc, mc.ttl).Err(); err != nil {
		slog.Warn("metadata cache set error", "key", key, "error", err)
	}
}

// Invalidate drops a cached document.
func (mc *MetadataCache) Invalidate(ctx context.Context, key string) {
	if err := mc.client.Del(ctx, metaKeyPrefix+key).Err(); err != nil {
		slog.Warn("metadata cache invalidate error", "key", key, "error", err)
	}
}
