package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/ytd_go_server/config"
	"github.com/qs3c/ytd_go_server/internal/api/middleware"
	"github.com/qs3c/ytd_go_server/internal/model"
	"github.com/qs3c/ytd_go_server/internal/pkg/audit"
	"github.com/qs3c/ytd_go_server/internal/pkg/response"
	"github.com/qs3c/ytd_go_server/internal/repository"
	"github.com/qs3c/ytd_go_server/internal/service"
	"github.com/qs3c/ytd_go_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func handlerConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			AccessSecret:        "handler-access-secret",
			RefreshSecret:       "handler-refresh-secret",
			Issuer:              "ytdcrypto",
			Audience:            "ytdcrypto_users",
			AccessExpireMinutes: 15,
			RefreshExpireDays:   7,
		},
		Subscription: config.SubscriptionConfig{
			MaxExtensionDays: 5 * 365,
			PlanChange: config.PlanChangeConfig{
				Limit:         1,
				WindowSeconds: 60,
			},
		},
		Quota: config.QuotaConfig{TimeoutMillis: 500},
	}
}

func newTokenService(t *testing.T, db *gorm.DB, cfg *config.Config) *service.TokenService {
	t.Helper()
	auditSvc := service.NewAuditService(
		repository.NewAuditRepository(db),
		audit.NewFallbackWriter(t.TempDir(), 0),
		nil,
	)
	return service.NewTokenService(db,
		repository.NewUserRepository(db),
		repository.NewSessionRepository(db),
		auditSvc, cfg)
}

func performRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

// injectUser 测试用：绕过认证中间件直接注入当前用户
func injectUser(user *model.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserKey, user)
		c.Next()
	}
}

func activePlanUser(t *testing.T, db *gorm.DB, planName string, rank int, features string) *model.User {
	t.Helper()
	plan := testutil.TestPlan(t, db, planName, rank, features)
	future := time.Now().Add(30 * 24 * time.Hour)
	user := testutil.TestUser(t, db, testutil.WithPlan(plan, &future))
	user.Plan = plan
	return user
}
