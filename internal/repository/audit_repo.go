package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/ytd_go_server/internal/model"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) WithTx(tx *gorm.DB) *AuditRepository {
	return &AuditRepository{db: tx}
}

func (r *AuditRepository) Create(entry *model.AuditLog) error {
	return r.db.Create(entry).Error
}

// ListRecent 管理面板用：按时间倒序取最近 N 条
func (r *AuditRepository) ListRecent(limit int) ([]model.AuditLog, error) {
	var logs []model.AuditLog
	err := r.db.Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
