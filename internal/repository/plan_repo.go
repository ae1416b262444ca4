package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/qs3c/ytd_go_server/internal/model"
)

var (
	ErrPlanProtected = errors.New("内置套餐不允许删除或改名")
)

type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) Create(plan *model.Plan) error {
	return r.db.Create(plan).Error
}

func (r *PlanRepository) GetByID(id int64) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.Where("id = ?", id).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *PlanRepository) GetByName(name string) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.Where("name = ?", name).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *PlanRepository) List() ([]model.Plan, error) {
	var plans []model.Plan
	err := r.db.Order("`rank` ASC").Find(&plans).Error
	return plans, err
}

// Update 更新套餐；内置套餐不允许改名
func (r *PlanRepository) Update(plan *model.Plan) error {
	var current model.Plan
	if err := r.db.Where("id = ?", plan.ID).First(&current).Error; err != nil {
		return err
	}
	if model.IsProtectedPlanName(current.Name) && current.Name != plan.Name {
		return ErrPlanProtected
	}
	return r.db.Save(plan).Error
}

// Delete 删除套餐；内置套餐受保护
func (r *PlanRepository) Delete(id int64) error {
	var plan model.Plan
	if err := r.db.Where("id = ?", id).First(&plan).Error; err != nil {
		return err
	}
	if model.IsProtectedPlanName(plan.Name) {
		return ErrPlanProtected
	}
	return r.db.Delete(&plan).Error
}
