// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default number of cached extraction results.
const DefaultCacheSize = 4096

// Caching wraps an Extractor with a content-addressed LRU cache.
//
// The cache key covers both path and content, so relative imports —
// whose resolution depends on the importing file's location — stay
// correct when identical content appears at two paths. Watch and serve
// modes re-extract entire trees on every pass; the cache turns the
// unchanged majority into lookups.
//
// # Thread Safety
//
// Safe for concurrent use. Cached Results are shared across callers
// and must be treated as immutable.
type Caching struct {
	inner Extractor
	cache *lru.Cache[string, *Result]
}

// NewCaching wraps inner with an LRU of the given size. Size <= 0
// falls back to DefaultCacheSize.
func NewCaching(inner Extractor, size int) (*Caching, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *Result](size)
	if err != nil {
		return nil, err
	}
	return &Caching{inner: inner, cache: cache}, nil
}

// Extract returns the cached result for (file, content) or delegates
// to the wrapped extractor and caches the outcome.
func (c *Caching) Extract(ctx context.Context, file string, content []byte) (*Result, error) {
	key := cacheKey(file, content)
	if result, ok := c.cache.Get(key); ok {
		recordCacheLookup(ctx, true)
		return result, nil
	}
	recordCacheLookup(ctx, false)

	result, err := c.inner.Extract(ctx, file, content)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, result)
	return result, nil
}

// Len reports the number of cached entries.
func (c *Caching) Len() int {
	return c.cache.Len()
}

// Purge drops all cached entries.
func (c *Caching) Purge() {
	c.cache.Purge()
}

func cacheKey(file string, content []byte) string {
	h := sha256.New()
	h.Write([]byte(file))
	h.Write([]byte{0})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// Compile-time interface compliance check.
var _ Extractor = (*Caching)(nil)
