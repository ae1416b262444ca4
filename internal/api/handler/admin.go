package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qs3c/ytd_go_server/internal/model"
	"github.com/qs3c/ytd_go_server/internal/pkg/response"
	"github.com/qs3c/ytd_go_server/internal/repository"
)

// AdminHandler 管理侧的套餐 / 促销码 / boost 维护
type AdminHandler struct {
	planRepo  *repository.PlanRepository
	promoRepo *repository.PromoRepository
	userRepo  *repository.UserRepository
}

func NewAdminHandler(planRepo *repository.PlanRepository, promoRepo *repository.PromoRepository, userRepo *repository.UserRepository) *AdminHandler {
	return &AdminHandler{
		planRepo:  planRepo,
		promoRepo: promoRepo,
		userRepo:  userRepo,
	}
}

// ListPlans 套餐列表（按等级升序）
// GET /api/v1/admin/plans
func (h *AdminHandler) ListPlans(c *gin.Context) {
	plans, err := h.planRepo.List()
	if err != nil {
		response.ServerError(c, "")
		return
	}
	response.Success(c, plans)
}

// DeletePlan 删除套餐，内置套餐受保护
// DELETE /api/v1/admin/plans/:id
func (h *AdminHandler) DeletePlan(c *gin.Context) {
	var uri struct {
		ID int64 `uri:"id" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	err := h.planRepo.Delete(uri.ID)
	switch {
	case err == nil:
		response.SuccessWithMessage(c, "套餐已删除", nil)
	case errors.Is(err, repository.ErrPlanProtected):
		response.PermissionError(c, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		response.NotFoundError(c, "")
	default:
		response.ServerError(c, "")
	}
}

// CreatePromoCode 新建促销码
// POST /api/v1/admin/promo-codes
func (h *AdminHandler) CreatePromoCode(c *gin.Context) {
	var req struct {
		Code             string  `json:"code" binding:"required"`
		Plan             string  `json:"plan" binding:"required"`
		DurationDays     int     `json:"duration_days" binding:"required,min=1"`
		MaxUses          int     `json:"max_uses" binding:"required,min=1"`
		ExpiresAt        *string `json:"expires_at"`
		SingleUsePerUser bool    `json:"single_use_per_user"`
		AssignedUserID   *int64  `json:"assigned_user_id"`
		UserEmail        *string `json:"user_email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if _, err := h.planRepo.GetByName(req.Plan); err != nil {
		response.ParamError(c, "套餐不存在")
		return
	}

	promo := &model.PromoCode{
		Code:               req.Code,
		PlanName:           req.Plan,
		DurationDays:       req.DurationDays,
		MaxUses:            req.MaxUses,
		IsActive:           true,
		IsSingleUsePerUser: req.SingleUsePerUser,
		AssignedUserID:     req.AssignedUserID,
		UserEmail:          req.UserEmail,
	}
	if req.ExpiresAt != nil {
		expiresAt, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			response.ParamError(c, "expires_at 格式错误")
			return
		}
		promo.ExpiresAt = &expiresAt
	}

	if err := h.promoRepo.Create(promo); err != nil {
		response.ServerError(c, "")
		return
	}
	response.SuccessWithMessage(c, "促销码已创建", promo)
}

// GiveBoost 给用户临时 boost 限额
// POST /api/v1/admin/users/:id/boost
func (h *AdminHandler) GiveBoost(c *gin.Context) {
	var uri struct {
		ID int64 `uri:"id" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	var req struct {
		Features     string `json:"features" binding:"required"`
		DurationDays int    `json:"duration_days" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if _, err := h.userRepo.GetByID(uri.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFoundError(c, "用户不存在")
			return
		}
		response.ServerError(c, "")
		return
	}

	expireAt := time.Now().Add(time.Duration(req.DurationDays) * 24 * time.Hour)
	if err := h.userRepo.SetBoost(uri.ID, req.Features, expireAt); err != nil {
		response.ServerError(c, "")
		return
	}
	// boost 也是一次权益变更，旧 access token 作废
	if err := h.userRepo.BumpTokenVersion(uri.ID); err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessWithMessage(c, "boost 已生效", gin.H{"expire_at": expireAt.Format(time.RFC3339)})
}
