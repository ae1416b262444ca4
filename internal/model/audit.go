package model

import (
	"time"
)

type AuditLog struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    *int64    `gorm:"index" json:"user_id,omitempty"`
	Username  *string   `gorm:"size:128" json:"username,omitempty"`
	Action    string    `gorm:"size:128;not null;index" json:"action"`
	IPAddress *string   `gorm:"size:64" json:"ip_address,omitempty"`
	Details   *string   `gorm:"type:text" json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
