package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/ytd_go_server/internal/api/middleware"
	"github.com/qs3c/ytd_go_server/internal/model/dto"
	"github.com/qs3c/ytd_go_server/internal/pkg/response"
	"github.com/qs3c/ytd_go_server/internal/service"
)

type QuotaHandler struct {
	quotaService *service.QuotaService
}

func NewQuotaHandler(quotaService *service.QuotaService) *QuotaHandler {
	return &QuotaHandler{
		quotaService: quotaService,
	}
}

// GetLimits 有效限额表（custom > boost > plan 合并结果）
// GET /api/v1/quota/limits
func (h *QuotaHandler) GetLimits(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	limits, err := h.quotaService.GetEffectiveLimits(user.ID)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, dto.LimitsInfo{Limits: limits})
}

// GetUsage 限额及当日用量快照
// GET /api/v1/quota
func (h *QuotaHandler) GetUsage(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	info, err := h.quotaService.GetQuotaInfo(c.Request.Context(), user)
	if err != nil {
		if errors.Is(err, service.ErrUnavailable) {
			response.UnavailableError(c, "")
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, info)
}

// Consume 被计量动作的准入检查：额度内放行并消耗一次
// POST /api/v1/quota/consume
func (h *QuotaHandler) Consume(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req struct {
		Feature string `json:"feature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	decision, err := h.quotaService.CheckAndConsume(c.Request.Context(), user, req.Feature)
	if err != nil {
		if errors.Is(err, service.ErrUnavailable) {
			response.UnavailableError(c, "")
			return
		}
		response.ServerError(c, "")
		return
	}

	if !decision.Allowed {
		response.QuotaError(c, "该功能配额已用完")
		return
	}

	response.Success(c, gin.H{
		"feature":      req.Feature,
		"limit":        decision.Limit,
		"used":         decision.Used,
		"unconfigured": decision.Unconfigured,
	})
}
