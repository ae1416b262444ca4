package model

import (
	"time"
)

// 用户角色
const (
	RoleUser        = "user"
	RoleAdmin       = "admin"
	RoleSystemAdmin = "system_admin"
)

type User struct {
	ID            int64      `gorm:"primaryKey" json:"id"`
	Username      string     `gorm:"size:80;uniqueIndex;not null" json:"username"`
	Email         *string    `gorm:"size:120;uniqueIndex" json:"email,omitempty"`
	PasswordHash  *string    `gorm:"size:255" json:"-"`
	APIKey        string     `gorm:"column:api_key;size:128;uniqueIndex;not null" json:"-"`
	Role          string     `gorm:"size:20;default:user;not null" json:"role"`
	PlanID        *int64     `gorm:"index" json:"plan_id,omitempty"`
	Plan          *Plan      `json:"plan,omitempty"`
	PlanExpireAt  *time.Time `json:"plan_expire_at,omitempty"`
	BoostFeatures *string    `gorm:"type:text" json:"-"`
	BoostExpireAt *time.Time `json:"boost_expire_at,omitempty"`
	// 用户专属限额覆盖（JSON），优先级高于 boost 和套餐
	CustomFeatures *string `gorm:"type:text" json:"-"`
	// 权益版本号：每次套餐/角色变更时 +1，旧 access token 立即失效
	TokenVersion int       `gorm:"default:0;not null" json:"-"`
	IsActive     bool      `gorm:"default:true;not null" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// IsAdminRole 管理员或系统角色不受配额限制
func (u *User) IsAdminRole() bool {
	return u.Role == RoleAdmin || u.Role == RoleSystemAdmin
}

// IsPlanActive 套餐是否仍在有效期内（无到期时间视为长期有效）
func (u *User) IsPlanActive(now time.Time) bool {
	if u.PlanID == nil {
		return false
	}
	if u.PlanExpireAt == nil {
		return true
	}
	return now.Before(*u.PlanExpireAt)
}
