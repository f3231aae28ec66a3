// internal/cache/pending.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"licence-service/internal/common/logger"
	"licence-service/internal/models"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds the staleness window of the awaiting-inspector listing.
const DefaultTTL = 30 * time.Second

// invalidation sweeps this bounded key range; listings beyond it age out via
// TTL instead.
const (
	sweepMaxPage = 10
)

var sweepPageSizes = []int{10, 20}

// PendingReviewCache is a short-TTL read-through cache over the paginated
// awaiting-inspector queue.
type PendingReviewCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func New(redisClient *redis.Client, ttl time.Duration, log logger.Logger) *PendingReviewCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PendingReviewCache{
		redis:  redisClient,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "pending-review-cache"}),
	}
}

func key(page, pageSize int) string {
	return fmt.Sprintf("pending-apps:%d:%d", page, pageSize)
}

// Get returns the cached page, or nil on a miss. A corrupt entry counts as a
// miss.
func (c *PendingReviewCache) Get(ctx context.Context, page, pageSize int) *models.PagedResult {
	val, err := c.redis.Get(ctx, key(page, pageSize)).Result()
	if err != nil {
		return nil
	}
	var result models.PagedResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		c.logger.Warn("discarding undecodable cache entry", map[string]interface{}{
			"key":   key(page, pageSize),
			"error": err.Error(),
		})
		return nil
	}
	return &result
}

// Set stores the page for the cache TTL. Failures are logged and swallowed;
// the cache is not a correctness-critical path.
func (c *PendingReviewCache) Set(ctx context.Context, page, pageSize int, result *models.PagedResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("cache marshal failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if err := c.redis.Set(ctx, key(page, pageSize), data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", map[string]interface{}{
			"key":   key(page, pageSize),
			"error": err.Error(),
		})
	}
}

// Invalidate sweeps the enumerated key range after a transition into or out of
// the awaiting-inspector set.
func (c *PendingReviewCache) Invalidate(ctx context.Context) {
	keys := make([]string, 0, sweepMaxPage*len(sweepPageSizes))
	for page := 1; page <= sweepMaxPage; page++ {
		for _, size := range sweepPageSizes {
			keys = append(keys, key(page, size))
		}
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
