package properties

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/estatehub/marketplace/internal/app/domain/property"
	"github.com/estatehub/marketplace/internal/app/metrics"
	"github.com/estatehub/marketplace/internal/cache"
	"github.com/estatehub/marketplace/pkg/logger"
)

// Options tunes the property service.
type Options struct {
	// SearchTTL is how long a result page stays cached. Zero disables caching.
	SearchTTL time.Duration
}

const searchGenerationKey = "properties:search:generation"

// searchCache stores result pages keyed by the current generation and a hash
// of the normalized filter. Writes bump the generation so stale pages are
// never read again and simply expire.
type searchCache struct {
	cache cache.Cache
	ttl   time.Duration
	log   *logger.Logger
}

func newSearchCache(c cache.Cache, ttl time.Duration, log *logger.Logger) *searchCache {
	return &searchCache{cache: c, ttl: ttl, log: log}
}

func (c *searchCache) enabled() bool {
	return c != nil && c.cache != nil && c.ttl > 0
}

func (c *searchCache) generation(ctx context.Context) (string, error) {
	raw, err := c.cache.Get(ctx, searchGenerationKey)
	if errors.Is(err, cache.ErrMiss) {
		return "0", nil
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (c *searchCache) key(ctx context.Context, filter property.Filter) (string, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(filter)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return "properties:search:" + gen + ":" + hex.EncodeToString(sum[:]), nil
}

// lookup resolves the cache key for filter and returns any cached page. The
// key pins the generation read before the store query, so a write that lands
// during the query leaves the fresh page under an already stale generation.
func (c *searchCache) lookup(ctx context.Context, filter property.Filter) (string, property.Page, bool) {
	if !c.enabled() {
		return "", property.Page{}, false
	}
	key, err := c.key(ctx, filter)
	if err != nil {
		c.log.WithError(err).Warn("search cache key failed")
		return "", property.Page{}, false
	}
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			c.log.WithError(err).Warn("search cache read failed")
		}
		metrics.RecordSearchCache(false)
		return key, property.Page{}, false
	}
	var page property.Page
	if err := json.Unmarshal(raw, &page); err != nil {
		c.log.WithError(err).Warn("search cache entry corrupt")
		return key, property.Page{}, false
	}
	metrics.RecordSearchCache(true)
	return key, page, true
}

func (c *searchCache) put(ctx context.Context, key string, page property.Page) {
	if !c.enabled() || key == "" {
		return
	}
	raw, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
		c.log.WithError(err).Warn("search cache write failed")
	}
}

// invalidate moves every reader to a fresh generation.
func (c *searchCache) invalidate(ctx context.Context) {
	if !c.enabled() {
		return
	}
	gen, err := c.cache.Incr(ctx, searchGenerationKey)
	if err != nil {
		c.log.WithError(err).Warn("search cache invalidation failed")
		return
	}
	c.log.WithField("generation", strconv.FormatInt(gen, 10)).Debug("search cache invalidated")
}
