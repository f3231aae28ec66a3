// internal/cache/pending_test.go
package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"licence-service/internal/common/logger"
	"licence-service/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*PendingReviewCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, 30*time.Second, logger.NewTestLogger(t)), mr
}

func samplePage() *models.PagedResult {
	return &models.PagedResult{
		Items: []*models.Application{
			{
				ID:          "app-001",
				ApplicantID: "user-001",
				Iin:         "900101312345",
				FullName:    "Aidar Bekov",
				Category:    models.CategoryB,
				Status:      models.StatusExternalChecksPassed,
				CreatedAt:   time.Now().UTC().Truncate(time.Second),
			},
		},
		TotalCount: 1,
		Page:       1,
		PageSize:   10,
	}
}

func TestGet_Miss(t *testing.T) {
	c, _ := newTestCache(t)
	assert.Nil(t, c.Get(context.Background(), 1, 10))
}

func TestSetGet_RoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, 1, 10, samplePage())

	got := c.Get(ctx, 1, 10)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.TotalCount)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "app-001", got.Items[0].ID)
	assert.Equal(t, models.StatusExternalChecksPassed, got.Items[0].Status)

	// Different page key is still a miss.
	assert.Nil(t, c.Get(ctx, 2, 10))
}

func TestGet_CorruptEntryIsMiss(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("pending-apps:1:10", "{not json"))

	assert.Nil(t, c.Get(context.Background(), 1, 10))
}

func TestSet_AppliesTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, 1, 10, samplePage())
	require.NotNil(t, c.Get(ctx, 1, 10))

	mr.FastForward(31 * time.Second)
	assert.Nil(t, c.Get(ctx, 1, 10))
}

func TestInvalidate_SweepsEnumeratedRange(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, 1, 10, samplePage())
	c.Set(ctx, 10, 20, samplePage())
	// Outside the sweep range: survives invalidation, ages out via TTL.
	c.Set(ctx, 11, 10, samplePage())

	c.Invalidate(ctx)

	assert.Nil(t, c.Get(ctx, 1, 10))
	assert.Nil(t, c.Get(ctx, 10, 20))
	assert.NotNil(t, c.Get(ctx, 11, 10))
}

func TestSet_SwallowsRedisFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(client, 30*time.Second, logger.NewTestLogger(t))

	page := samplePage()
	mock.ExpectSet("pending-apps:1:10", mustMarshal(t, page), 30*time.Second).
		SetErr(assert.AnError)

	// The cache is not a correctness-critical path: Set must not panic or
	// surface the error.
	c.Set(context.Background(), 1, 10, page)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_SwallowsRedisFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(client, 30*time.Second, logger.NewTestLogger(t))

	mock.ExpectGet("pending-apps:1:10").SetErr(assert.AnError)

	assert.Nil(t, c.Get(context.Background(), 1, 10))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
