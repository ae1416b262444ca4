package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/ytd_go_server/internal/model"
)

type PromoRepository struct {
	db *gorm.DB
}

func NewPromoRepository(db *gorm.DB) *PromoRepository {
	return &PromoRepository{db: db}
}

func (r *PromoRepository) WithTx(tx *gorm.DB) *PromoRepository {
	return &PromoRepository{db: tx}
}

func (r *PromoRepository) Create(code *model.PromoCode) error {
	return r.db.Create(code).Error
}

func (r *PromoRepository) GetByCode(code string) (*model.PromoCode, error) {
	var promo model.PromoCode
	err := r.db.Where("code = ?", code).First(&promo).Error
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

// GetByCodeForUpdate 行锁读取，串行化同一促销码的并发兑换。
// 必须在事务内调用。
func (r *PromoRepository) GetByCodeForUpdate(code string) (*model.PromoCode, error) {
	var promo model.PromoCode
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", code).First(&promo).Error
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

func (r *PromoRepository) Save(promo *model.PromoCode) error {
	return r.db.Save(promo).Error
}

// HasUsage 该用户是否已兑换过此码
func (r *PromoRepository) HasUsage(promoCodeID, userID int64) (bool, error) {
	var count int64
	err := r.db.Model(&model.PromoCodeUsage{}).
		Where("promo_code_id = ? AND user_id = ?", promoCodeID, userID).
		Count(&count).Error
	return count > 0, err
}

// CreateUsage 写入兑换记录；(code, user) 唯一约束兜底并发
func (r *PromoRepository) CreateUsage(promoCodeID, userID int64, usedAt time.Time) error {
	return r.db.Create(&model.PromoCodeUsage{
		PromoCodeID: promoCodeID,
		UserID:      userID,
		UsedAt:      usedAt,
	}).Error
}

// DeactivateExpired 批量下线已过期的促销码
func (r *PromoRepository) DeactivateExpired(now time.Time) (int64, error) {
	res := r.db.Model(&model.PromoCode{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}
