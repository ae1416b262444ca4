package service

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/ytd_go_server/config"
	"github.com/qs3c/ytd_go_server/internal/repository"
)

// 兑换拒绝原因，全部是正常业务结果而非异常
var (
	ErrPromoNotFound    = errors.New("兑换码不存在")
	ErrPromoInactive    = errors.New("兑换码已停用")
	ErrPromoExpired     = errors.New("兑换码已过期")
	ErrPromoMaxUses     = errors.New("兑换码已达使用上限")
	ErrPromoAlreadyUsed = errors.New("该兑换码已被您使用过")
)

// RedeemResult 兑换成功后的新权益
type RedeemResult struct {
	Plan         string
	PlanExpireAt time.Time
}

// PromoService 促销码兑换状态机。
// 同一促销码的并发兑换由码行上的 FOR UPDATE 行锁串行化，
// 过期/用尽路径先把下线状态提交落库，再向调用方返回拒绝。
type PromoService struct {
	db        *gorm.DB
	promoRepo *repository.PromoRepository
	userRepo  *repository.UserRepository
	planRepo  *repository.PlanRepository
	auditSvc  *AuditService
	cfg       *config.Config
}

func NewPromoService(db *gorm.DB, promoRepo *repository.PromoRepository, userRepo *repository.UserRepository, planRepo *repository.PlanRepository, auditSvc *AuditService, cfg *config.Config) *PromoService {
	return &PromoService{
		db:        db,
		promoRepo: promoRepo,
		userRepo:  userRepo,
		planRepo:  planRepo,
		auditSvc:  auditSvc,
		cfg:       cfg,
	}
}

// Redeem 兑换促销码。所有校验和变更在同一事务内完成：
// 套餐切换、到期叠加、用量递增、兑换登记、权益版本号 +1 要么全部生效要么全不生效。
func (s *PromoService) Redeem(userID int64, code, ip string) (*RedeemResult, error) {
	var (
		result    *RedeemResult
		rejectErr error
		username  *string
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		promos := s.promoRepo.WithTx(tx)
		users := s.userRepo.WithTx(tx)

		user, err := users.GetByID(userID)
		if err != nil {
			return err
		}
		username = &user.Username

		promo, err := promos.GetByCodeForUpdate(code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				rejectErr = ErrPromoNotFound
				return nil
			}
			return err
		}

		if !promo.IsActive {
			rejectErr = ErrPromoInactive
			return nil
		}

		// 定向码对非指定用户表现为不存在
		if promo.AssignedUserID != nil && *promo.AssignedUserID != userID {
			rejectErr = ErrPromoNotFound
			return nil
		}
		if promo.UserEmail != nil && (user.Email == nil || *user.Email != *promo.UserEmail) {
			rejectErr = ErrPromoNotFound
			return nil
		}

		now := time.Now()

		if promo.ExpiresAt != nil && now.After(*promo.ExpiresAt) {
			promo.IsActive = false
			if err := promos.Save(promo); err != nil {
				return err
			}
			rejectErr = ErrPromoExpired
			return nil // 提交下线状态
		}

		if promo.CurrentUses >= promo.MaxUses {
			promo.IsActive = false
			if err := promos.Save(promo); err != nil {
				return err
			}
			rejectErr = ErrPromoMaxUses
			return nil
		}

		if promo.IsSingleUsePerUser {
			used, err := promos.HasUsage(promo.ID, userID)
			if err != nil {
				return err
			}
			if used {
				rejectErr = ErrPromoAlreadyUsed
				return nil
			}
		}

		plan, err := s.planRepo.GetByName(promo.PlanName)
		if err != nil {
			return fmt.Errorf("promo %s references unknown plan %s: %w", promo.Code, promo.PlanName, err)
		}

		// 剩余时长为正则叠加续期，否则从现在起算；叠加上限封顶
		duration := time.Duration(promo.DurationDays) * 24 * time.Hour
		expireAt := now.Add(duration)
		if user.PlanExpireAt != nil && user.PlanExpireAt.After(now) {
			expireAt = user.PlanExpireAt.Add(duration)
		}
		ceiling := now.Add(time.Duration(s.cfg.Subscription.MaxExtensionDays) * 24 * time.Hour)
		if expireAt.After(ceiling) {
			expireAt = ceiling
		}

		if err := users.ApplyPlanGrant(userID, plan.ID, expireAt); err != nil {
			return err
		}

		promo.CurrentUses++
		if promo.CurrentUses >= promo.MaxUses {
			promo.IsActive = false
		}
		if err := promos.Save(promo); err != nil {
			return err
		}

		if promo.IsSingleUsePerUser {
			if err := promos.CreateUsage(promo.ID, userID, now); err != nil {
				return err
			}
		}

		if err := users.BumpTokenVersion(userID); err != nil {
			return err
		}

		result = &RedeemResult{Plan: plan.Name, PlanExpireAt: expireAt}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if rejectErr != nil {
		s.auditSvc.Record(&userID, username, ActionPromoRejected, ip,
			fmt.Sprintf("code=%s reason=%v", code, rejectErr))
		return nil, rejectErr
	}

	s.auditSvc.Record(&userID, username, ActionPromoRedeem, ip,
		fmt.Sprintf("code=%s plan=%s expire_at=%s", code, result.Plan, result.PlanExpireAt.Format(time.RFC3339)))
	return result, nil
}
