package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/qs3c/ytd_go_server/config"
	"github.com/qs3c/ytd_go_server/internal/model"
	"github.com/qs3c/ytd_go_server/internal/model/dto"
	"github.com/qs3c/ytd_go_server/internal/pkg/counter"
	"github.com/qs3c/ytd_go_server/internal/repository"
)

var (
	ErrUnavailable = errors.New("配额服务暂时不可用，请稍后重试")
)

// QuotaDecision 一次配额判定的结果。
// Unconfigured 表示该功能没有配置限额（视为不限量放行），区别于额度内放行。
type QuotaDecision struct {
	Allowed      bool
	Unconfigured bool
	Limit        int
	Used         int
}

// QuotaService 配额执行引擎。
// 同一功能按配置走两种等价的计数通道之一：
// 高频功能用 Redis 日/月计数器，其余功能落 usage_records 表。
type QuotaService struct {
	userRepo  *repository.UserRepository
	usageRepo *repository.UsageRepository
	counters  *counter.Store
	cfg       *config.Config

	redisFeatures map[string]bool
}

func NewQuotaService(userRepo *repository.UserRepository, usageRepo *repository.UsageRepository, counters *counter.Store, cfg *config.Config) *QuotaService {
	features := make(map[string]bool, len(cfg.Quota.RedisFeatures))
	for _, f := range cfg.Quota.RedisFeatures {
		features[f] = true
	}
	return &QuotaService{
		userRepo:      userRepo,
		usageRepo:     usageRepo,
		counters:      counters,
		cfg:           cfg,
		redisFeatures: features,
	}
}

// CheckAndConsume 检查并消耗一次功能配额。
// 管理员无条件放行；未配置限额视为不限量；限额为 0 无条件拒绝。
// 计数存储超时或不可达一律 fail-closed，返回 ErrUnavailable。
func (s *QuotaService) CheckAndConsume(ctx context.Context, user *model.User, feature string) (*QuotaDecision, error) {
	if user.IsAdminRole() {
		return &QuotaDecision{Allowed: true, Unconfigured: true}, nil
	}

	now := time.Now()
	limits := ResolveLimits(user, now)
	dayLimit, hasDay := limits.LimitFor(feature)
	monthLimit, hasMonth := limits.LimitFor(MonthlyKey(feature))

	if !hasDay && !hasMonth {
		return &QuotaDecision{Allowed: true, Unconfigured: true}, nil
	}

	if hasDay && dayLimit == 0 {
		return &QuotaDecision{Allowed: false, Limit: 0}, nil
	}
	if hasMonth && monthLimit == 0 {
		return &QuotaDecision{Allowed: false, Limit: 0}, nil
	}

	if s.useRedis(feature) {
		return s.consumeRedis(ctx, user.ID, feature, now, dayLimit, hasDay, monthLimit, hasMonth)
	}
	return s.consumeDB(user.ID, feature, now, dayLimit, hasDay)
}

func (s *QuotaService) useRedis(feature string) bool {
	return s.counters != nil && s.redisFeatures[feature]
}

// consumeRedis Redis 通道：先读后写挡住常规超额，
// 自增返回的新值再挡一次，并发压线的那次拿到超限值后同样被拒。
func (s *QuotaService) consumeRedis(ctx context.Context, userID int64, feature string, now time.Time, dayLimit int, hasDay bool, monthLimit int, hasMonth bool) (*QuotaDecision, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Quota.StoreTimeout())
	defer cancel()

	day, month, err := s.counters.Get(ctx, userID, feature, now)
	if err != nil {
		return nil, ErrUnavailable
	}

	if hasDay && day >= int64(dayLimit) {
		return &QuotaDecision{Allowed: false, Limit: dayLimit, Used: int(day)}, nil
	}
	if hasMonth && month >= int64(monthLimit) {
		return &QuotaDecision{Allowed: false, Limit: monthLimit, Used: int(month)}, nil
	}

	newDay, newMonth, err := s.counters.Incr(ctx, userID, feature, now)
	if err != nil {
		return nil, ErrUnavailable
	}

	if hasDay && newDay > int64(dayLimit) {
		return &QuotaDecision{Allowed: false, Limit: dayLimit, Used: dayLimit}, nil
	}
	if hasMonth && newMonth > int64(monthLimit) {
		return &QuotaDecision{Allowed: false, Limit: monthLimit, Used: monthLimit}, nil
	}

	limit := dayLimit
	if !hasDay {
		limit = monthLimit
	}
	return &QuotaDecision{Allowed: true, Limit: limit, Used: int(newDay)}, nil
}

// consumeDB 数据库通道：懒建零行 + 条件自增，只支持日限额。
// 月度限额仅对 Redis 通道的功能生效。
func (s *QuotaService) consumeDB(userID int64, feature string, now time.Time, dayLimit int, hasDay bool) (*QuotaDecision, error) {
	if !hasDay {
		return &QuotaDecision{Allowed: true, Unconfigured: true}, nil
	}

	date := model.UsageDate(now.UTC())

	used, err := s.usageRepo.GetCount(userID, date, feature)
	if err != nil {
		return nil, ErrUnavailable
	}
	if used >= dayLimit {
		return &QuotaDecision{Allowed: false, Limit: dayLimit, Used: used}, nil
	}

	ok, err := s.usageRepo.IncrementWithinLimit(userID, date, feature, dayLimit)
	if err != nil {
		return nil, ErrUnavailable
	}
	if !ok {
		return &QuotaDecision{Allowed: false, Limit: dayLimit, Used: dayLimit}, nil
	}
	return &QuotaDecision{Allowed: true, Limit: dayLimit, Used: used + 1}, nil
}

// GetEffectiveLimits 自助面板用的只读有效限额
func (s *QuotaService) GetEffectiveLimits(userID int64) (Limits, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	return ResolveLimits(user, time.Now()), nil
}

// GetQuotaInfo 有效限额及当日用量快照
func (s *QuotaService) GetQuotaInfo(ctx context.Context, user *model.User) (*dto.QuotaInfo, error) {
	now := time.Now()
	limits := ResolveLimits(user, now)

	info := &dto.QuotaInfo{}
	if user.Plan != nil {
		info.Plan = user.Plan.Name
	}

	features := make([]string, 0, len(limits))
	for f := range limits {
		if strings.HasSuffix(f, "_monthly") {
			continue
		}
		features = append(features, f)
	}
	sort.Strings(features)

	for _, f := range features {
		limit, configured := limits.LimitFor(f)
		fu := dto.FeatureUsage{Feature: f, Limit: UnlimitedQuota}
		if configured {
			fu.Limit = limit
		}

		used, err := s.currentUsage(ctx, user.ID, f, now)
		if err != nil {
			return nil, ErrUnavailable
		}
		fu.Used = used

		if configured {
			fu.Remain = limit - used
			if fu.Remain < 0 {
				fu.Remain = 0
			}
		} else {
			fu.Remain = UnlimitedQuota
		}
		info.Features = append(info.Features, fu)
	}

	return info, nil
}

func (s *QuotaService) currentUsage(ctx context.Context, userID int64, feature string, now time.Time) (int, error) {
	if s.useRedis(feature) {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.Quota.StoreTimeout())
		defer cancel()
		day, _, err := s.counters.Get(ctx, userID, feature, now)
		return int(day), err
	}
	return s.usageRepo.GetCount(userID, model.UsageDate(now.UTC()), feature)
}
