package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/ytd_go_server/config"
	"github.com/qs3c/ytd_go_server/internal/api/middleware"
	"github.com/qs3c/ytd_go_server/internal/model/dto"
	"github.com/qs3c/ytd_go_server/internal/pkg/response"
	"github.com/qs3c/ytd_go_server/internal/service"
)

type AuthHandler struct {
	tokenService *service.TokenService
	cfg          *config.Config
}

func NewAuthHandler(tokenService *service.TokenService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		tokenService: tokenService,
		cfg:          cfg,
	}
}

// Register 用户注册
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.tokenService.Register(&req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUsernameExists), errors.Is(err, service.ErrEmailExists):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "注册成功", resp)
}

// Login 用户登录，签发三元组并把防伪造令牌写入 cookie
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.tokenService.Login(&req, c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrUserDisabled):
			response.AuthError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	h.setCSRFCookie(c, resp.Tokens.CSRFToken)
	response.SuccessWithMessage(c, "登录成功", resp)
}

// Refresh 刷新令牌轮换
// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	pair, err := h.tokenService.RotateRefresh(req.RefreshToken, c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRefresh), errors.Is(err, service.ErrUserDisabled):
			response.AuthError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	h.setCSRFCookie(c, pair.CSRFToken)
	response.Success(c, pair)
}

// Logout 撤销当前用户全部会话
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	if err := h.tokenService.Logout(user.ID, c.ClientIP()); err != nil {
		response.ServerError(c, "")
		return
	}

	c.SetCookie("csrf_token", "", -1, "/", "", false, false)
	response.SuccessWithMessage(c, "已退出登录", nil)
}

// setCSRFCookie 防伪造令牌走 cookie，与响应体双通道下发。
// 非 HttpOnly：浏览器端脚本要能读出来回填到请求头
func (h *AuthHandler) setCSRFCookie(c *gin.Context, token string) {
	maxAge := int(h.cfg.JWT.RefreshTTL().Seconds())
	c.SetCookie("csrf_token", token, maxAge, "/", "", false, false)
}
