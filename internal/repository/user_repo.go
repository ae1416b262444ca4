package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/ytd_go_server/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx 返回绑定到指定事务的仓库副本
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) GetByID(id int64) (*model.User, error) {
	var user model.User
	err := r.db.Preload("Plan").Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByUsername(username string) (*model.User, error) {
	var user model.User
	err := r.db.Preload("Plan").Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByAPIKey(apiKey string) (*model.User, error) {
	var user model.User
	err := r.db.Preload("Plan").Where("api_key = ?", apiKey).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Update(user *model.User) error {
	return r.db.Save(user).Error
}

func (r *UserRepository) ExistsByUsername(username string) (bool, error) {
	var count int64
	err := r.db.Model(&model.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) ExistsByEmail(email string) (bool, error) {
	var count int64
	err := r.db.Model(&model.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

// BumpTokenVersion 权益版本号 +1，使所有已签发的 access token 失效。
// SQL 层自增，避免读-改-写竞态。
func (r *UserRepository) BumpTokenVersion(id int64) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).
		Update("token_version", gorm.Expr("token_version + 1")).Error
}

// ApplyPlanGrant 套餐变更：切换套餐、更新到期时间
func (r *UserRepository) ApplyPlanGrant(id int64, planID int64, expireAt time.Time) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"plan_id":        planID,
		"plan_expire_at": expireAt,
	}).Error
}

// SetBoost 给用户临时 boost 限额（JSON），到期后自动失效
func (r *UserRepository) SetBoost(id int64, features string, expireAt time.Time) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"boost_features":  features,
		"boost_expire_at": expireAt,
	}).Error
}

// SetCustomFeatures 设置用户专属限额覆盖（JSON）
func (r *UserRepository) SetCustomFeatures(id int64, features *string) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).
		Update("custom_features", features).Error
}

// ClearExpiredBoosts 清理已过期的 boost
func (r *UserRepository) ClearExpiredBoosts(now time.Time) (int64, error) {
	res := r.db.Model(&model.User{}).
		Where("boost_expire_at IS NOT NULL AND boost_expire_at <= ?", now).
		Updates(map[string]interface{}{
			"boost_features":  nil,
			"boost_expire_at": nil,
		})
	return res.RowsAffected, res.Error
}
