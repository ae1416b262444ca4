package counter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, mr, cleanup
}

func mustIncr(t *testing.T, store *Store, ctx context.Context, userID int64, feature string, now time.Time) {
	t.Helper()
	_, _, err := store.Incr(ctx, userID, feature, now)
	require.NoError(t, err)
}

func TestStore_GetEmpty(t *testing.T) {
	rdb, _, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewStore(rdb)
	ctx := context.Background()
	now := time.Now()

	day, month, err := store.Get(ctx, 1, "llm_analyze", now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), day)
	assert.Equal(t, int64(0), month)
}

func TestStore_IncrAndGet(t *testing.T) {
	rdb, _, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewStore(rdb)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		day, month, err := store.Incr(ctx, 1, "llm_analyze", now)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), day)
		assert.Equal(t, int64(i+1), month)
	}

	day, month, err := store.Get(ctx, 1, "llm_analyze", now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), day)
	assert.Equal(t, int64(3), month)
}

func TestStore_DayBoundaryRollover(t *testing.T) {
	rdb, _, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewStore(rdb)
	ctx := context.Background()

	day1 := time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 11, 0, 1, 0, 0, time.UTC)

	mustIncr(t, store, ctx, 1, "llm_analyze", day1)
	mustIncr(t, store, ctx, 1, "llm_analyze", day1)

	// UTC 日界后日计数归零，月计数保留
	day, month, err := store.Get(ctx, 1, "llm_analyze", day2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), day)
	assert.Equal(t, int64(2), month)
}

func TestStore_MonthBoundaryRollover(t *testing.T) {
	rdb, _, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewStore(rdb)
	ctx := context.Background()

	march := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	april := time.Date(2025, 4, 1, 0, 1, 0, 0, time.UTC)

	mustIncr(t, store, ctx, 1, "llm_analyze", march)

	_, month, err := store.Get(ctx, 1, "llm_analyze", april)
	require.NoError(t, err)
	assert.Equal(t, int64(0), month)
}

func TestStore_IsolatedPerUserAndFeature(t *testing.T) {
	rdb, _, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewStore(rdb)
	ctx := context.Background()
	now := time.Now()

	mustIncr(t, store, ctx, 1, "llm_analyze", now)

	day, _, err := store.Get(ctx, 2, "llm_analyze", now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), day)

	day, _, err = store.Get(ctx, 1, "coin_analysis", now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), day)
}

func TestStore_TTLExceedsPeriod(t *testing.T) {
	rdb, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewStore(rdb)
	ctx := context.Background()
	now := time.Now()

	mustIncr(t, store, ctx, 1, "llm_analyze", now)

	// 日键 TTL 必须长于 24h，月键 TTL 必须长于 31d
	dk := dayKey(1, "llm_analyze", now)
	mk := monthKey(1, "llm_analyze", now)
	assert.Greater(t, mr.TTL(dk), 24*time.Hour)
	assert.Greater(t, mr.TTL(mk), 31*24*time.Hour)
}

func TestStore_RedisDown(t *testing.T) {
	rdb, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewStore(rdb)
	ctx := context.Background()

	mr.Close()

	_, _, err := store.Incr(ctx, 1, "llm_analyze", time.Now())
	assert.Error(t, err)
}
