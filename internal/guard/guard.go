// internal/guard/guard.go
package guard

import (
	"context"
	"fmt"
	"time"

	"licence-service/internal/common/logger"
	"licence-service/internal/models"

	"github.com/redis/go-redis/v9"
)

// DefaultLockTTL bounds how long a lock entry survives a crashed workflow.
// The store re-check is the correctness backstop; the TTL is a safety net.
const DefaultLockTTL = 5 * time.Minute

// ActiveChecker is the slice of the record store the guard needs for its
// second phase.
type ActiveChecker interface {
	ExistsActive(ctx context.Context, applicantID string, category models.Category) (bool, error)
}

// Guard enforces at most one active application per (applicant, category).
// Phase one is an advisory set-if-absent lock in Redis; phase two re-verifies
// against the record store, which defends against lock entries lost to TTL
// expiry or a crash before the business row existed.
type Guard struct {
	redis   *redis.Client
	checker ActiveChecker
	ttl     time.Duration
	logger  logger.Logger
}

func New(redisClient *redis.Client, checker ActiveChecker, ttl time.Duration, log logger.Logger) *Guard {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &Guard{
		redis:   redisClient,
		checker: checker,
		ttl:     ttl,
		logger:  log.WithFields(map[string]interface{}{"component": "active-application-guard"}),
	}
}

// LockKey is the mutex service key for an (applicant, category) pair. Only the
// guard writes keys of this form.
func LockKey(applicantID string, category models.Category) string {
	return fmt.Sprintf("app-lock:%s:%s", applicantID, category)
}

// TryAcquire runs the two-phase check. It returns false when another active
// application holds the pair, and releases any lock it took itself before
// reporting failure.
func (g *Guard) TryAcquire(ctx context.Context, applicantID string, category models.Category) (bool, error) {
	key := LockKey(applicantID, category)

	acquired, err := g.redis.SetNX(ctx, key, "locked", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !acquired {
		g.logger.Debug("lock contended", map[string]interface{}{
			"key": key,
		})
		return false, nil
	}

	hasActive, err := g.checker.ExistsActive(ctx, applicantID, category)
	if err != nil {
		g.release(ctx, key)
		return false, fmt.Errorf("active check for %s: %w", key, err)
	}
	if hasActive {
		// Lock was free but a live row exists: a previous lock expired
		// mid-workflow. The row wins.
		g.release(ctx, key)
		return false, nil
	}

	return true, nil
}

// Release deletes the lock. Called explicitly on every terminal transition
// rather than relying on TTL expiry.
func (g *Guard) Release(ctx context.Context, applicantID string, category models.Category) {
	g.release(ctx, LockKey(applicantID, category))
}

func (g *Guard) release(ctx context.Context, key string) {
	if err := g.redis.Del(ctx, key).Err(); err != nil {
		// Best effort: the TTL reclaims the key if this delete is lost.
		g.logger.Warn("lock release failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
