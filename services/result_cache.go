package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pdf-term-stats/internal/logger"
	"pdf-term-stats/internal/pdftext"
)

const pageCachePrefix = "pdfpages:"

// ContentHash returns the hex SHA-256 of a document.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

type cachedPages struct {
	Pages       []pdftext.PageRecord `json:"pages"`
	FailedPages []int                `json:"failed_pages,omitempty"`
}

// ResultCache stores extracted pages in Redis keyed by document hash. A nil
// client turns every call into a miss.
type ResultCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewResultCache(rdb redis.Cmdable, ttl time.Duration) *ResultCache {
	return &ResultCache{rdb: rdb, ttl: ttl}
}

func (c *ResultCache) enabled() bool {
	return c != nil && c.rdb != nil
}

// Get returns the cached extraction for hash, if any.
func (c *ResultCache) Get(ctx context.Context, hash string) (*pdftext.Result, bool) {
	if !c.enabled() {
		return nil, false
	}

	data, err := c.rdb.Get(ctx, pageCachePrefix+hash).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("Page cache read failed", "hash", hash, "error", err)
		}
		return nil, false
	}

	var cached cachedPages
	if err := json.Unmarshal(data, &cached); err != nil {
		logger.Warn("Discarding corrupt page cache entry", "hash", hash, "error", err)
		c.rdb.Del(ctx, pageCachePrefix+hash)
		return nil, false
	}
	if cached.Pages == nil {
		cached.Pages = []pdftext.PageRecord{}
	}
	return &pdftext.Result{Pages: cached.Pages, FailedPages: cached.FailedPages}, true
}

// Put stores res under hash.
func (c *ResultCache) Put(ctx context.Context, hash string, res *pdftext.Result) error {
	if !c.enabled() {
		return nil
	}

	data, err := json.Marshal(cachedPages{Pages: res.Pages, FailedPages: res.FailedPages})
	if err != nil {
		return fmt.Errorf("encode pages: %w", err)
	}
	if err := c.rdb.Set(ctx, pageCachePrefix+hash, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache pages: %w", err)
	}
	return nil
}
