package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qs3c/ytd_go_server/config"
	"github.com/qs3c/ytd_go_server/internal/model/dto"
	"github.com/qs3c/ytd_go_server/internal/pkg/ratelimit"
	"github.com/qs3c/ytd_go_server/internal/repository"
)

const actionPlanChange = "plan_change"

var (
	ErrRateLimited       = errors.New("操作过于频繁，请稍后再试")
	ErrPlanNotFound      = errors.New("套餐不存在或已下线")
	ErrPlanNotHigher     = errors.New("只能升级到更高等级的套餐")
	ErrPromoPlanMismatch = errors.New("兑换码与所选套餐不符")
)

// SubscriptionService 套餐变更入口：滑动窗口限流 + 升级方向校验，
// 实际的权益变更统一走促销码兑换状态机。
type SubscriptionService struct {
	userRepo *repository.UserRepository
	planRepo *repository.PlanRepository
	promoSvc *PromoService
	limiter  *ratelimit.SlidingWindow
	auditSvc *AuditService
	cfg      *config.Config
}

func NewSubscriptionService(userRepo *repository.UserRepository, planRepo *repository.PlanRepository, promoSvc *PromoService, limiter *ratelimit.SlidingWindow, auditSvc *AuditService, cfg *config.Config) *SubscriptionService {
	return &SubscriptionService{
		userRepo: userRepo,
		planRepo: planRepo,
		promoSvc: promoSvc,
		limiter:  limiter,
		auditSvc: auditSvc,
		cfg:      cfg,
	}
}

// UpdateSubscription 套餐变更。
// 目标套餐等级必须严格高于当前有效套餐；窗口内超额的尝试直接拒绝。
// 限流存储不可达时 fail-closed。
func (s *SubscriptionService) UpdateSubscription(ctx context.Context, userID int64, req *dto.UpdateSubscriptionRequest, ip string) (*dto.UpdateSubscriptionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Quota.StoreTimeout())
	defer cancel()

	allowed, err := s.limiter.Allow(ctx, userID, actionPlanChange)
	if err != nil {
		return nil, ErrUnavailable
	}
	if !allowed {
		s.auditSvc.RecordAsync(&userID, nil, ActionRateLimited, ip, actionPlanChange)
		return nil, ErrRateLimited
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	target, err := s.planRepo.GetByName(req.Plan)
	if err != nil || !target.IsActive {
		return nil, ErrPlanNotFound
	}

	// 当前无有效套餐视为最低等级
	currentRank := -1
	now := time.Now()
	if user.Plan != nil && user.IsPlanActive(now) {
		currentRank = user.Plan.Rank
	}
	if target.Rank <= currentRank {
		s.auditSvc.RecordAsync(&userID, &user.Username, ActionPlanChangeDenied, ip,
			fmt.Sprintf("target=%s rank=%d current_rank=%d", target.Name, target.Rank, currentRank))
		return nil, ErrPlanNotHigher
	}

	promo, err := s.promoSvc.promoRepo.GetByCode(req.PromoCode)
	if err == nil && promo.PlanName != req.Plan {
		return nil, ErrPromoPlanMismatch
	}

	result, err := s.promoSvc.Redeem(userID, req.PromoCode, ip)
	if err != nil {
		return nil, err
	}

	s.auditSvc.RecordAsync(&userID, &user.Username, ActionPlanChange, ip,
		fmt.Sprintf("plan=%s expire_at=%s", result.Plan, result.PlanExpireAt.Format(time.RFC3339)))

	return &dto.UpdateSubscriptionResponse{
		Plan:         result.Plan,
		PlanExpireAt: result.PlanExpireAt.Format(time.RFC3339),
	}, nil
}

// Redeem 不变更套餐等级的兑换入口。权益变更的写操作都过同一个
// 滑动窗口，限流器不可用时 fail-closed 拒绝而不是放行
func (s *SubscriptionService) Redeem(ctx context.Context, userID int64, code, ip string) (*RedeemResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Quota.StoreTimeout())
	defer cancel()

	allowed, err := s.limiter.Allow(ctx, userID, actionPlanChange)
	if err != nil {
		return nil, ErrUnavailable
	}
	if !allowed {
		s.auditSvc.RecordAsync(&userID, nil, ActionRateLimited, ip, actionPlanChange)
		return nil, ErrRateLimited
	}

	return s.promoSvc.Redeem(userID, code, ip)
}

// GetStatus 当前订阅状态
func (s *SubscriptionService) GetStatus(userID int64) (*dto.SubscriptionStatus, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	status := &dto.SubscriptionStatus{}
	now := time.Now()
	status.IsActive = user.IsPlanActive(now)
	if user.Plan != nil {
		status.Plan = user.Plan.Name
		status.Rank = user.Plan.Rank
	}
	if user.PlanExpireAt != nil {
		formatted := user.PlanExpireAt.Format(time.RFC3339)
		status.PlanExpireAt = &formatted
	}
	return status, nil
}
