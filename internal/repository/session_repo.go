package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/ytd_go_server/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) WithTx(tx *gorm.DB) *SessionRepository {
	return &SessionRepository{db: tx}
}

func (r *SessionRepository) Create(session *model.UserSession) error {
	return r.db.Create(session).Error
}

func (r *SessionRepository) GetByJTI(jti string) (*model.UserSession, error) {
	var session model.UserSession
	err := r.db.Where("jti = ?", jti).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Revoke 条件撤销：只有首个调用者能把 revoked 从 false 翻到 true。
// 返回 false 表示会话不存在或已被并发撤销，调用方应视为轮换失败。
func (r *SessionRepository) Revoke(jti string) (bool, error) {
	res := r.db.Model(&model.UserSession{}).
		Where("jti = ? AND revoked = ?", jti, false).
		Update("revoked", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RevokeAllForUser 撤销用户全部会话（登出 / 管理员封禁）
func (r *SessionRepository) RevokeAllForUser(userID int64) error {
	return r.db.Model(&model.UserSession{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true).Error
}

// CountActiveForUser 当前有效会话数
func (r *SessionRepository) CountActiveForUser(userID int64, now time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.UserSession{}).
		Where("user_id = ? AND revoked = ? AND expires_at > ?", userID, false, now).
		Count(&count).Error
	return count, err
}

// DeleteExpired 清理已过期或已撤销的会话行
func (r *SessionRepository) DeleteExpired(now time.Time) (int64, error) {
	res := r.db.Where("expires_at <= ? OR revoked = ?", now, true).
		Delete(&model.UserSession{})
	return res.RowsAffected, res.Error
}
