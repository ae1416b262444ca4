package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// SlidingWindow 基于 Redis List 的滑动窗口限流器。
// 每次尝试先 LPUSH 时间戳，再裁剪、刷新过期时间，最后回读长度：
// 越界的那次尝试本身会被计入并拒绝，而不是先放行再计数。
type SlidingWindow struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
}

func NewSlidingWindow(rdb *redis.Client, limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		rdb:    rdb,
		limit:  limit,
		window: window,
	}
}

// Allow 判断 (actor, action) 在当前窗口内是否还允许一次尝试。
// Redis 不可用时返回错误，由调用方决定 fail-open 还是 fail-closed。
func (s *SlidingWindow) Allow(ctx context.Context, actorID int64, action string) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s:%d", action, actorID)
	now := time.Now().Unix()

	pipe := s.rdb.Pipeline()
	pipe.LPush(ctx, key, now)
	// 保留 limit+1 条：长度超过 limit 即说明本次尝试越界
	pipe.LTrim(ctx, key, 0, int64(s.limit))
	pipe.Expire(ctx, key, s.window)
	lenCmd := pipe.LLen(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return lenCmd.Val() <= int64(s.limit), nil
}

// Remaining 返回窗口内剩余尝试次数（仅用于展示，不做判定）
func (s *SlidingWindow) Remaining(ctx context.Context, actorID int64, action string) (int, error) {
	key := fmt.Sprintf("ratelimit:%s:%d", action, actorID)
	n, err := s.rdb.LLen(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	remain := s.limit - int(n)
	if remain < 0 {
		remain = 0
	}
	return remain, nil
}
