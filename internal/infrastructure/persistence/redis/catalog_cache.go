package redis

import (
	"context"
	"fmt"

	"github.com/microcourses/microcourses/internal/domain/course"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG CACHE
// ══════════════════════════════════════════════════════════════════════════════

// CatalogCache implements course.CatalogCache on Redis. Pages of the shared
// published catalog live under PrefixCatalog, so a review decision drops all
// of them with one prefix scan (see OnCourseReviewedHandler).
type CatalogCache struct {
	cache *Cache
}

// NewCatalogCache creates a new CatalogCache.
func NewCatalogCache(cache *Cache) *CatalogCache {
	return &CatalogCache{cache: cache}
}

func catalogPageKey(limit, offset int) string {
	return fmt.Sprintf("%spage:%d:%d", PrefixCatalog, limit, offset)
}

// GetPage returns the cached catalog page.
// Returns ErrCacheMiss when the page is not cached.
func (c *CatalogCache) GetPage(ctx context.Context, limit, offset int) ([]*course.Course, error) {
	var page []*course.Course
	if err := c.cache.Get(ctx, catalogPageKey(limit, offset), &page); err != nil {
		return nil, err
	}
	return page, nil
}

// SetPage stores a catalog page with the catalog TTL.
func (c *CatalogCache) SetPage(ctx context.Context, limit, offset int, courses []*course.Course) error {
	return c.cache.Set(ctx, catalogPageKey(limit, offset), courses, TTLCatalogCache)
}
