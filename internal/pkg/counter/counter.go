package counter

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// 计数键的存活时间必须严格长于其覆盖的周期，
// 迟到的写入才不会悄悄重置当期计数
const (
	dayTTL   = 48 * time.Hour
	monthTTL = 35 * 24 * time.Hour
)

// Store 高频功能的 Redis 用量计数器，按 UTC 日/月固定边界滚动。
// 与数据库 usage_records 在契约上等价，仅为降低高频路径的延迟。
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func dayKey(userID int64, feature string, now time.Time) string {
	return fmt.Sprintf("usage:%d:%s:day:%s", userID, feature, now.UTC().Format("20060102"))
}

func monthKey(userID int64, feature string, now time.Time) string {
	return fmt.Sprintf("usage:%d:%s:month:%s", userID, feature, now.UTC().Format("200601"))
}

// Get 读取当前 UTC 日/月的用量
func (s *Store) Get(ctx context.Context, userID int64, feature string, now time.Time) (day int64, month int64, err error) {
	pipe := s.rdb.Pipeline()
	dayCmd := pipe.Get(ctx, dayKey(userID, feature, now))
	monthCmd := pipe.Get(ctx, monthKey(userID, feature, now))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, 0, err
	}

	day, _ = dayCmd.Int64()
	month, _ = monthCmd.Int64()
	return day, month, nil
}

// Incr 原子递增当前日/月计数并刷新 TTL，返回递增后的值。
// 返回值用于并发越界判定：拿到的新值超过限额即表示本次尝试输给了竞争者。
func (s *Store) Incr(ctx context.Context, userID int64, feature string, now time.Time) (day int64, month int64, err error) {
	dk := dayKey(userID, feature, now)
	mk := monthKey(userID, feature, now)

	pipe := s.rdb.Pipeline()
	dayCmd := pipe.Incr(ctx, dk)
	pipe.Expire(ctx, dk, dayTTL)
	monthCmd := pipe.Incr(ctx, mk)
	pipe.Expire(ctx, mk, monthTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	return dayCmd.Val(), monthCmd.Val(), nil
}
