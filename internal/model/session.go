package model

import (
	"time"
)

// UserSession 刷新令牌会话。TokenHash 存 bcrypt 摘要，明文不落库。
type UserSession struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"not null;index" json:"user_id"`
	JTI       string    `gorm:"column:jti;size:64;uniqueIndex;not null" json:"-"`
	TokenHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	Revoked   bool      `gorm:"default:false;not null" json:"revoked"`
}

func (UserSession) TableName() string {
	return "user_sessions"
}
