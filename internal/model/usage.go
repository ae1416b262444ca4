package model

import (
	"time"
)

// UsageRecord 按 (用户, UTC 日期, 功能) 记录一行用量，首次使用时懒创建
type UsageRecord struct {
	ID      int64  `gorm:"primaryKey" json:"id"`
	UserID  int64  `gorm:"not null;uniqueIndex:uq_user_date_feature" json:"user_id"`
	Date    string `gorm:"size:10;not null;uniqueIndex:uq_user_date_feature" json:"date"`
	Feature string `gorm:"size:100;not null;uniqueIndex:uq_user_date_feature" json:"feature"`
	Count   int    `gorm:"default:0;not null" json:"count"`
}

func (UsageRecord) TableName() string {
	return "usage_records"
}

// UsageDate UTC 日界对应的日期键
func UsageDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
