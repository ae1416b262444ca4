package model

import (
	"time"
)

// 内置套餐名称，按 Rank 升序
const (
	PlanTrial    = "TRIAL"
	PlanBasic    = "BASIC"
	PlanAdvanced = "ADVANCED"
	PlanPremium  = "PREMIUM"
)

// ProtectedPlanNames 内置套餐不允许删除或改名
var ProtectedPlanNames = []string{PlanTrial, PlanBasic, PlanAdvanced, PlanPremium}

type Plan struct {
	ID   int64  `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	// Rank 用于升降级比较，数值越大套餐越高
	Rank int `gorm:"not null;default:0" json:"rank"`
	// Features 功能限额表（JSON：feature -> limit），缺失的 key 表示不限量
	Features  *string   `gorm:"type:text" json:"features,omitempty"`
	IsActive  bool      `gorm:"default:true;not null" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (Plan) TableName() string {
	return "plans"
}

// IsProtectedPlanName 判断是否内置套餐名
func IsProtectedPlanName(name string) bool {
	for _, n := range ProtectedPlanNames {
		if n == name {
			return true
		}
	}
	return false
}
