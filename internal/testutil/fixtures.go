package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/ytd_go_server/internal/model"
)

var fixtureSeq int64

func nextSeq() int64 {
	return atomic.AddInt64(&fixtureSeq, 1)
}

// TestPlan 创建测试套餐
func TestPlan(t *testing.T, db *gorm.DB, name string, rank int, features string) *model.Plan {
	t.Helper()

	plan := &model.Plan{
		Name:     name,
		Rank:     rank,
		IsActive: true,
	}
	if features != "" {
		plan.Features = &features
	}

	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("Failed to create test plan: %v", err)
	}

	return plan
}

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	seq := nextSeq()
	email := fmt.Sprintf("test_%d_%d@example.com", time.Now().UnixNano(), seq)
	passwordHash := "$2a$10$abcdefghijklmnopqrstuvwxyz123456" // bcrypt hash placeholder
	user := &model.User{
		Username:     fmt.Sprintf("testuser_%d_%d", time.Now().UnixNano()%100000, seq),
		Email:        &email,
		PasswordHash: &passwordHash,
		APIKey:       fmt.Sprintf("apikey-%d-%d", time.Now().UnixNano(), seq),
		Role:         model.RoleUser,
		IsActive:     true,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// WithRole 设置角色
func WithRole(role string) func(*model.User) {
	return func(u *model.User) {
		u.Role = role
	}
}

// WithPlan 绑定套餐
func WithPlan(plan *model.Plan, expireAt *time.Time) func(*model.User) {
	return func(u *model.User) {
		u.PlanID = &plan.ID
		u.PlanExpireAt = expireAt
	}
}

// WithBoost 设置临时 boost 限额
func WithBoost(features string, expireAt time.Time) func(*model.User) {
	return func(u *model.User) {
		u.BoostFeatures = &features
		u.BoostExpireAt = &expireAt
	}
}

// WithCustomFeatures 设置用户专属限额覆盖
func WithCustomFeatures(features string) func(*model.User) {
	return func(u *model.User) {
		u.CustomFeatures = &features
	}
}

// WithTokenVersion 设置权益版本号
func WithTokenVersion(version int) func(*model.User) {
	return func(u *model.User) {
		u.TokenVersion = version
	}
}

// TestPromoCode 创建测试促销码
func TestPromoCode(t *testing.T, db *gorm.DB, code, planName string, durationDays, maxUses int, opts ...func(*model.PromoCode)) *model.PromoCode {
	t.Helper()

	promo := &model.PromoCode{
		Code:         code,
		PlanName:     planName,
		DurationDays: durationDays,
		MaxUses:      maxUses,
		IsActive:     true,
	}

	for _, opt := range opts {
		opt(promo)
	}

	if err := db.Create(promo).Error; err != nil {
		t.Fatalf("Failed to create test promo code: %v", err)
	}

	return promo
}

// WithExpiry 设置促销码过期时间
func WithExpiry(expiresAt time.Time) func(*model.PromoCode) {
	return func(p *model.PromoCode) {
		p.ExpiresAt = &expiresAt
	}
}

// WithSingleUsePerUser 单用户单次兑换
func WithSingleUsePerUser() func(*model.PromoCode) {
	return func(p *model.PromoCode) {
		p.IsSingleUsePerUser = true
	}
}

// WithInactive 下线状态
func WithInactive() func(*model.PromoCode) {
	return func(p *model.PromoCode) {
		p.IsActive = false
	}
}

// WithAssignedUser 绑定指定用户
func WithAssignedUser(userID int64) func(*model.PromoCode) {
	return func(p *model.PromoCode) {
		p.AssignedUserID = &userID
	}
}
