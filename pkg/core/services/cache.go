package services

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/shortlink/pkg/metrics"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const (
	redirectTTL = 60 * time.Second
	statsTTL    = 30 * time.Second
	listTTL     = 60 * time.Second

	keyPrefix = "shorturl:"
)

func linkKey(code string) string  { return keyPrefix + code }
func statsKey(code string) string { return keyPrefix + code + ":stats" }

// List keys sit under "q:" so they cannot collide with a link whose code is "search" or "project".
func searchKey(owner uuid.UUID, term string) string {
	return keyPrefix + "q:search:" + owner.String() + ":" + term
}

func projectKey(owner uuid.UUID, project string) string {
	return keyPrefix + "q:project:" + owner.String() + ":" + project
}

// linkCache wraps a ports.Cache with JSON snapshots. Every failure is logged and
// treated as a miss so storage stays the source of truth.
type linkCache struct {
	store  ports.Cache
	logger zerolog.Logger
}

func newLinkCache(store ports.Cache, logger zerolog.Logger) *linkCache {
	return &linkCache{store: store, logger: logger}
}

func (c *linkCache) get(ctx context.Context, key string, dst any) bool {
	if c.store == nil {
		return false
	}

	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("get").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("cache get failed")
		return false
	}
	if !ok {
		metrics.CacheMissesTotal.WithLabelValues(cacheType(key)).Inc()
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("decode").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		return false
	}
	metrics.CacheHitsTotal.WithLabelValues(cacheType(key)).Inc()
	return true
}

func (c *linkCache) set(ctx context.Context, key string, v any, ttl time.Duration) {
	if c.store == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("encode").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("set").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

// invalidate drops the redirect and stats snapshots of every given code.
func (c *linkCache) invalidate(ctx context.Context, codes ...string) {
	if c.store == nil || len(codes) == 0 {
		return
	}

	keys := make([]string, 0, 2*len(codes))
	for _, code := range codes {
		keys = append(keys, linkKey(code), statsKey(code))
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("delete").Inc()
		c.logger.Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
	}
}

func cacheType(key string) string {
	switch {
	case strings.HasPrefix(key, keyPrefix+"q:"):
		return "list"
	case strings.HasSuffix(key, ":stats"):
		return "stats"
	default:
		return "redirect"
	}
}
