// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package catalog

import (
	"context"
	"log/slog"

	"admanager/internal/cache"
	"admanager/internal/wire"
)

// MetadataFetcher fetches metadata documents from the upstream API.
// Satisfied by *kijiji.Client.
type MetadataFetcher interface {
	GetCategories(ctx context.Context, userID, token string) (wire.Document, error)
	GetLocations(ctx context.Context, userID, token string) (wire.Document, error)
}

// DocumentCache stores raw metadata documents. Satisfied by
// *cache.MetadataCache; may be nil to disable caching.
type DocumentCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, doc []byte)
}

// Service fetches and parses the category and location trees, with a
// best-effort document cache in front of the upstream.
type Service struct {
	api   MetadataFetcher
	cache DocumentCache
}

// NewService creates a catalog service. docCache may be nil.
func NewService(api MetadataFetcher, docCache DocumentCache) *Service {
	return &Service{api: api, cache: docCache}
}

// Categories returns the full category tree for the given credentials.
func (s *Service) Categories(ctx context.Context, userID, token string) (Category, error) {
	doc, err := s.fetch(ctx, cache.CategoriesKey, userID, token, s.api.GetCategories)
	if err != nil {
		return Category{}, err
	}
	return ParseCategories(doc)
}

// Locations returns the full location tree for the given credentials.
func (s *Service) Locations(ctx context.Context, userID, token string) (Location, error) {
	doc, err := s.fetch(ctx, cache.LocationsKey, userID, token, s.api.GetLocations)
	if err != nil {
		return Location{}, err
	}
	return ParseLocations(doc)
}

// fetch consults the cache first; a hit that fails to parse is dropped
// and refetched rather than surfaced.
func (s *Service) fetch(ctx context.Context, key, userID, token string,
	get func(context.Context, string, string) (wire.Document, error)) (wire.Document, error) {

	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, key); ok {
			doc, err := wire.Parse(raw)
			if err == nil {
				return doc, nil
			}
			slog.Warn("cached metadata document unparseable, refetching", "key", key, "error", err)
		}
	}

	doc, err := get(ctx, userID, token)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := doc.Marshal(); err == nil {
			s.cache.Set(ctx, key, raw)
		}
	}
	return doc, nil
}
