package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/ytd_go_server/config"
	"github.com/qs3c/ytd_go_server/internal/model"
	"github.com/qs3c/ytd_go_server/internal/pkg/audit"
	"github.com/qs3c/ytd_go_server/internal/pkg/jwt"
	"github.com/qs3c/ytd_go_server/internal/pkg/response"
	"github.com/qs3c/ytd_go_server/internal/repository"
	"github.com/qs3c/ytd_go_server/internal/service"
	"github.com/qs3c/ytd_go_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func middlewareConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			AccessSecret:        "mw-access-secret",
			RefreshSecret:       "mw-refresh-secret",
			Issuer:              "ytdcrypto",
			Audience:            "ytdcrypto_users",
			AccessExpireMinutes: 15,
			RefreshExpireDays:   7,
		},
	}
}

func newMiddlewareStack(t *testing.T, db *gorm.DB) (*service.TokenService, *repository.UserRepository) {
	t.Helper()
	userRepo := repository.NewUserRepository(db)
	auditSvc := service.NewAuditService(
		repository.NewAuditRepository(db),
		audit.NewFallbackWriter(t.TempDir(), 0),
		nil,
	)
	tokenSvc := service.NewTokenService(db, userRepo, repository.NewSessionRepository(db), auditSvc, middlewareConfig())
	return tokenSvc, userRepo
}

func accessTokenFor(t *testing.T, user *model.User) string {
	t.Helper()
	cfg := middlewareConfig()
	token, _, err := jwt.GenerateToken(user.ID, user.Username, user.Role, user.TokenVersion, jwt.Options{
		Secret:   cfg.JWT.AccessSecret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		Kind:     jwt.KindAccess,
		TTL:      cfg.JWT.AccessTTL(),
	})
	require.NoError(t, err)
	return token
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

func authedRouter(tokenSvc *service.TokenService, userRepo *repository.UserRepository) *gin.Engine {
	router := gin.New()
	router.Use(Auth(tokenSvc, userRepo))
	router.GET("/test", func(c *gin.Context) {
		user, ok := GetUser(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{})
			return
		}
		response.Success(c, gin.H{"user_id": user.ID})
	})
	return router
}

func TestAuth_BearerSuccess(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tokenSvc, userRepo := newMiddlewareStack(t, db)
	user := testutil.TestUser(t, db)
	router := authedRouter(tokenSvc, userRepo)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+accessTokenFor(t, user))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeSuccess, resp.Code)
}

func TestAuth_MissingHeader(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tokenSvc, userRepo := newMiddlewareStack(t, db)
	router := authedRouter(tokenSvc, userRepo)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeAuthFailed, resp.Code)
}

func TestAuth_GarbageToken(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tokenSvc, userRepo := newMiddlewareStack(t, db)
	router := authedRouter(tokenSvc, userRepo)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeAuthFailed, resp.Code)
}

func TestAuth_StaleTokenVersionRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tokenSvc, userRepo := newMiddlewareStack(t, db)
	user := testutil.TestUser(t, db)
	router := authedRouter(tokenSvc, userRepo)

	token := accessTokenFor(t, user)

	// 权益变更后版本号 +1，已签发的 token 立即失效
	require.NoError(t, userRepo.BumpTokenVersion(user.ID))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeAuthFailed, resp.Code)
}

func TestAuth_DisabledUserRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tokenSvc, userRepo := newMiddlewareStack(t, db)
	user := testutil.TestUser(t, db)
	router := authedRouter(tokenSvc, userRepo)

	token := accessTokenFor(t, user)
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", user.ID).Update("is_active", false).Error)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeAuthFailed, resp.Code)
}

func TestAuth_APIKeyFallback(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tokenSvc, userRepo := newMiddlewareStack(t, db)
	user := testutil.TestUser(t, db)
	router := authedRouter(tokenSvc, userRepo)

	t.Run("ValidKey", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-API-KEY", user.APIKey)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		resp := parseResponse(t, w)
		assert.Equal(t, response.CodeSuccess, resp.Code)
	})

	t.Run("UnknownKey", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-API-KEY", "no-such-key")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		resp := parseResponse(t, w)
		assert.Equal(t, response.CodeAuthFailed, resp.Code)
	})
}

func TestAdminOnly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tokenSvc, userRepo := newMiddlewareStack(t, db)

	router := gin.New()
	router.Use(Auth(tokenSvc, userRepo), AdminOnly())
	router.GET("/admin", func(c *gin.Context) {
		response.Success(c, nil)
	})

	t.Run("AdminAllowed", func(t *testing.T) {
		admin := testutil.TestUser(t, db, testutil.WithRole(model.RoleAdmin))
		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+accessTokenFor(t, admin))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		resp := parseResponse(t, w)
		assert.Equal(t, response.CodeSuccess, resp.Code)
	})

	t.Run("RegularUserDenied", func(t *testing.T) {
		user := testutil.TestUser(t, db)
		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+accessTokenFor(t, user))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		resp := parseResponse(t, w)
		assert.Equal(t, response.CodePermissionDenied, resp.Code)
	})
}

func TestCSRF(t *testing.T) {
	router := gin.New()
	router.Use(CSRF())
	router.POST("/mutate", func(c *gin.Context) {
		response.Success(c, nil)
	})
	router.GET("/read", func(c *gin.Context) {
		response.Success(c, nil)
	})

	t.Run("MatchingTokenAllowed", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/mutate", nil)
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok-123"})
		req.Header.Set("X-CSRF-Token", "tok-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		resp := parseResponse(t, w)
		assert.Equal(t, response.CodeSuccess, resp.Code)
	})

	t.Run("MissingHeaderRejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/mutate", nil)
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok-123"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		resp := parseResponse(t, w)
		assert.Equal(t, response.CodePermissionDenied, resp.Code)
	})

	t.Run("MismatchRejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/mutate", nil)
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok-123"})
		req.Header.Set("X-CSRF-Token", "tok-456")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		resp := parseResponse(t, w)
		assert.Equal(t, response.CodePermissionDenied, resp.Code)
	})

	t.Run("APIKeyExempt", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/mutate", nil)
		req.Header.Set("X-API-KEY", "some-key")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		resp := parseResponse(t, w)
		assert.Equal(t, response.CodeSuccess, resp.Code)
	})

	t.Run("ReadsExempt", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/read", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		resp := parseResponse(t, w)
		assert.Equal(t, response.CodeSuccess, resp.Code)
	})
}
