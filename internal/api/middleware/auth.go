package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qs3c/ytd_go_server/internal/model"
	"github.com/qs3c/ytd_go_server/internal/pkg/response"
	"github.com/qs3c/ytd_go_server/internal/repository"
	"github.com/qs3c/ytd_go_server/internal/service"
)

const (
	UserKey = "currentUser"

	apiKeyHeader = "X-API-KEY"
	csrfHeader   = "X-CSRF-Token"
	csrfCookie   = "csrf_token"
)

// Auth 认证中间件：优先 Bearer access token，其次 X-API-KEY。
// access token 的权益版本号与用户行交叉校验，
// 套餐或角色变更后旧 token 立即失效，无需显式撤销。
func Auth(tokenSvc *service.TokenService, userRepo *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if authHeader == "" {
			if apiKey := c.GetHeader(apiKeyHeader); apiKey != "" {
				authByAPIKey(c, userRepo, apiKey)
				return
			}
			response.AuthError(c, "请提供认证信息")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			response.AuthError(c, "认证格式错误")
			c.Abort()
			return
		}

		claims, err := tokenSvc.VerifyAccess(tokenString)
		if err != nil {
			response.AuthError(c, "认证失败或已过期")
			c.Abort()
			return
		}

		user, err := userRepo.GetByID(claims.UserID)
		if err != nil {
			response.AuthError(c, "认证失败或已过期")
			c.Abort()
			return
		}

		if !user.IsActive || claims.TokenVersion != user.TokenVersion {
			// 版本不匹配：签发之后权益已变更
			response.AuthError(c, "凭证已失效，请重新登录")
			c.Abort()
			return
		}

		c.Set(UserKey, user)
		c.Next()
	}
}

func authByAPIKey(c *gin.Context, userRepo *repository.UserRepository, apiKey string) {
	user, err := userRepo.GetByAPIKey(apiKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.AuthError(c, "API Key 无效")
		} else {
			response.ServerError(c, "")
		}
		c.Abort()
		return
	}
	if !user.IsActive {
		response.AuthError(c, "账号已被禁用")
		c.Abort()
		return
	}

	c.Set(UserKey, user)
	c.Next()
}

// AdminOnly 管理员门槛，必须在 Auth 之后
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetUser(c)
		if !ok || !user.IsAdminRole() {
			response.PermissionError(c, "")
			c.Abort()
			return
		}
		c.Next()
	}
}

// CSRF 防伪造校验：写请求必须带与 cookie 一致的防伪造头。
// API Key 调用方没有 cookie 会话，豁免此校验。
func CSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case "GET", "HEAD", "OPTIONS":
			c.Next()
			return
		}

		if c.GetHeader(apiKeyHeader) != "" {
			c.Next()
			return
		}

		cookie, err := c.Cookie(csrfCookie)
		header := c.GetHeader(csrfHeader)
		if err != nil || cookie == "" || header == "" || cookie != header {
			response.PermissionError(c, "防伪造校验失败")
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetUser 从上下文取当前用户
func GetUser(c *gin.Context) (*model.User, bool) {
	v, exists := c.Get(UserKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok
}
