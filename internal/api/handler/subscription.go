package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/ytd_go_server/internal/api/middleware"
	"github.com/qs3c/ytd_go_server/internal/model/dto"
	"github.com/qs3c/ytd_go_server/internal/pkg/response"
	"github.com/qs3c/ytd_go_server/internal/service"
)

type SubscriptionHandler struct {
	subscriptionService *service.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
	}
}

// Update 套餐变更（兑换码驱动，限流 + 升级方向校验）
// PUT /api/v1/subscription
func (h *SubscriptionHandler) Update(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.UpdateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.subscriptionService.UpdateSubscription(c.Request.Context(), user.ID, &req, c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRateLimited):
			response.RateLimitError(c, err.Error())
		case errors.Is(err, service.ErrPlanNotFound), errors.Is(err, service.ErrPlanNotHigher),
			errors.Is(err, service.ErrPromoPlanMismatch):
			response.ParamError(c, err.Error())
		case errors.Is(err, service.ErrPromoNotFound), errors.Is(err, service.ErrPromoInactive),
			errors.Is(err, service.ErrPromoExpired), errors.Is(err, service.ErrPromoMaxUses),
			errors.Is(err, service.ErrPromoAlreadyUsed):
			response.PromoError(c, err.Error())
		case errors.Is(err, service.ErrUnavailable):
			response.UnavailableError(c, "")
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "套餐已更新", resp)
}

// Redeem 直接兑换促销码（不换套餐等级走这里），与套餐变更共用限流窗口
// POST /api/v1/subscription/redeem
func (h *SubscriptionHandler) Redeem(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	result, err := h.subscriptionService.Redeem(c.Request.Context(), user.ID, req.Code, c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRateLimited):
			response.RateLimitError(c, err.Error())
		case errors.Is(err, service.ErrPromoNotFound), errors.Is(err, service.ErrPromoInactive),
			errors.Is(err, service.ErrPromoExpired), errors.Is(err, service.ErrPromoMaxUses),
			errors.Is(err, service.ErrPromoAlreadyUsed):
			response.PromoError(c, err.Error())
		case errors.Is(err, service.ErrUnavailable):
			response.UnavailableError(c, "")
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "兑换成功", dto.UpdateSubscriptionResponse{
		Plan:         result.Plan,
		PlanExpireAt: result.PlanExpireAt.Format(time.RFC3339),
	})
}

// Status 当前订阅状态
// GET /api/v1/subscription
func (h *SubscriptionHandler) Status(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	status, err := h.subscriptionService.GetStatus(user.ID)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, status)
}
