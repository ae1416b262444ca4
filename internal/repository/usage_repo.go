package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/ytd_go_server/internal/model"
)

type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// GetCount 读取 (用户, 日期, 功能) 的当前用量，无记录视为 0
func (r *UsageRepository) GetCount(userID int64, date, feature string) (int, error) {
	var record model.UsageRecord
	err := r.db.Where("user_id = ? AND date = ? AND feature = ?", userID, date, feature).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return record.Count, nil
}

// IncrementWithinLimit 在不超过 limit 的前提下原子 +1。
// 先按需补零行，再做条件自增：两个并发调用不可能都读到旧值后双双放行，
// 数据库层的 count < limit 条件保证只有额度内的那次自增生效。
func (r *UsageRepository) IncrementWithinLimit(userID int64, date, feature string, limit int) (bool, error) {
	record := model.UsageRecord{
		UserID:  userID,
		Date:    date,
		Feature: feature,
		Count:   0,
	}
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		return false, err
	}

	res := r.db.Model(&model.UsageRecord{}).
		Where("user_id = ? AND date = ? AND feature = ? AND count < ?", userID, date, feature, limit).
		Update("count", gorm.Expr("count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListForUserDate 某用户某日的全部用量行
func (r *UsageRepository) ListForUserDate(userID int64, date string) ([]model.UsageRecord, error) {
	var records []model.UsageRecord
	err := r.db.Where("user_id = ? AND date = ?", userID, date).Find(&records).Error
	return records, err
}

// DeleteBefore 保留期外的留存清理
func (r *UsageRepository) DeleteBefore(date string) (int64, error) {
	res := r.db.Where("date < ?", date).Delete(&model.UsageRecord{})
	return res.RowsAffected, res.Error
}
