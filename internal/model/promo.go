package model

import (
	"time"
)

type PromoCode struct {
	ID           int64   `gorm:"primaryKey" json:"id"`
	Code         string  `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Description  *string `gorm:"size:128" json:"description,omitempty"`
	PlanName     string  `gorm:"size:100;not null" json:"plan"`
	DurationDays int     `gorm:"not null" json:"duration_days"`
	MaxUses      int     `gorm:"not null;default:1" json:"max_uses"`
	CurrentUses  int     `gorm:"not null;default:0" json:"current_uses"`
	IsActive     bool    `gorm:"default:true;not null" json:"is_active"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	// 绑定用户/邮箱时仅该用户可兑换
	AssignedUserID     *int64    `gorm:"index" json:"assigned_user_id,omitempty"`
	UserEmail          *string   `gorm:"size:120" json:"user_email,omitempty"`
	IsSingleUsePerUser bool      `gorm:"default:false;not null" json:"is_single_use_per_user"`
	CreatedAt          time.Time `json:"created_at"`
}

func (PromoCode) TableName() string {
	return "promo_codes"
}

// PromoCodeUsage 兑换记录，(code, user) 唯一约束保证单次兑换幂等
type PromoCodeUsage struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	PromoCodeID int64     `gorm:"not null;uniqueIndex:uq_promo_user;index" json:"promo_code_id"`
	UserID      int64     `gorm:"not null;uniqueIndex:uq_promo_user" json:"user_id"`
	UsedAt      time.Time `gorm:"not null;index" json:"used_at"`
}

func (PromoCodeUsage) TableName() string {
	return "promo_code_usages"
}
