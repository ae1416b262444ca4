package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/ytd_go_server/internal/model"
	"github.com/qs3c/ytd_go_server/internal/pkg/response"
	"github.com/qs3c/ytd_go_server/internal/repository"
	"github.com/qs3c/ytd_go_server/internal/testutil"
)

func setupAdminHandler(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	h := NewAdminHandler(
		repository.NewPlanRepository(db),
		repository.NewPromoRepository(db),
		repository.NewUserRepository(db),
	)

	engine := gin.New()
	engine.GET("/admin/plans", h.ListPlans)
	engine.DELETE("/admin/plans/:id", h.DeletePlan)
	engine.POST("/admin/promo-codes", h.CreatePromoCode)
	engine.POST("/admin/users/:id/boost", h.GiveBoost)
	return engine, db
}

func TestAdminHandler_ListPlans(t *testing.T) {
	engine, db := setupAdminHandler(t)

	testutil.TestPlan(t, db, model.PlanBasic, 10, "")
	testutil.TestPlan(t, db, model.PlanPremium, 40, "")

	w := performRequest(engine, http.MethodGet, "/admin/plans", nil, nil)

	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)

	plans := resp.Data.([]interface{})
	require.Len(t, plans, 2)
	// 按 rank 升序
	first := plans[0].(map[string]interface{})
	assert.Equal(t, model.PlanBasic, first["name"])
}

func TestAdminHandler_DeletePlan(t *testing.T) {
	engine, db := setupAdminHandler(t)

	t.Run("Success", func(t *testing.T) {
		plan := testutil.TestPlan(t, db, "seasonal_promo", 5, "")

		w := performRequest(engine, http.MethodDelete, fmt.Sprintf("/admin/plans/%d", plan.ID), nil, nil)
		assert.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)

		var count int64
		db.Model(&model.Plan{}).Where("id = ?", plan.ID).Count(&count)
		assert.Equal(t, int64(0), count)
	})

	t.Run("ProtectedPlanRejected", func(t *testing.T) {
		plan := testutil.TestPlan(t, db, model.PlanBasic, 10, "")

		w := performRequest(engine, http.MethodDelete, fmt.Sprintf("/admin/plans/%d", plan.ID), nil, nil)
		assert.Equal(t, response.CodePermissionDenied, parseResponse(t, w).Code)
	})

	t.Run("NotFound", func(t *testing.T) {
		w := performRequest(engine, http.MethodDelete, "/admin/plans/99999", nil, nil)
		assert.Equal(t, response.CodeResourceNotFound, parseResponse(t, w).Code)
	})
}

func TestAdminHandler_CreatePromoCode(t *testing.T) {
	engine, db := setupAdminHandler(t)
	testutil.TestPlan(t, db, model.PlanPremium, 40, "")

	t.Run("Success", func(t *testing.T) {
		expiresAt := time.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339)
		w := performRequest(engine, http.MethodPost, "/admin/promo-codes", gin.H{
			"code":          "NEWYEAR2027",
			"plan":          model.PlanPremium,
			"duration_days": 30,
			"max_uses":      50,
			"expires_at":    expiresAt,
		}, nil)

		require.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)

		var promo model.PromoCode
		require.NoError(t, db.Where("code = ?", "NEWYEAR2027").First(&promo).Error)
		assert.True(t, promo.IsActive)
		assert.Equal(t, 50, promo.MaxUses)
		require.NotNil(t, promo.ExpiresAt)
	})

	t.Run("UnknownPlan", func(t *testing.T) {
		w := performRequest(engine, http.MethodPost, "/admin/promo-codes", gin.H{
			"code":          "GHOSTPLAN",
			"plan":          "no_such_plan",
			"duration_days": 30,
			"max_uses":      50,
		}, nil)

		assert.Equal(t, response.CodeParamError, parseResponse(t, w).Code)
	})

	t.Run("BadExpiresAt", func(t *testing.T) {
		w := performRequest(engine, http.MethodPost, "/admin/promo-codes", gin.H{
			"code":          "BADDATE",
			"plan":          model.PlanPremium,
			"duration_days": 30,
			"max_uses":      50,
			"expires_at":    "next tuesday",
		}, nil)

		assert.Equal(t, response.CodeParamError, parseResponse(t, w).Code)
	})
}

func TestAdminHandler_GiveBoost(t *testing.T) {
	engine, db := setupAdminHandler(t)

	t.Run("Success", func(t *testing.T) {
		user := testutil.TestUser(t, db)
		versionBefore := user.TokenVersion

		w := performRequest(engine, http.MethodPost, fmt.Sprintf("/admin/users/%d/boost", user.ID), gin.H{
			"features":      `{"llm_analyze": 100}`,
			"duration_days": 7,
		}, nil)

		require.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)

		var updated model.User
		require.NoError(t, db.First(&updated, user.ID).Error)
		require.NotNil(t, updated.BoostFeatures)
		assert.Contains(t, *updated.BoostFeatures, "llm_analyze")
		require.NotNil(t, updated.BoostExpireAt)
		assert.True(t, updated.BoostExpireAt.After(time.Now()))
		// 权益变更后旧 access token 作废
		assert.Equal(t, versionBefore+1, updated.TokenVersion)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		w := performRequest(engine, http.MethodPost, "/admin/users/99999/boost", gin.H{
			"features":      `{"llm_analyze": 100}`,
			"duration_days": 7,
		}, nil)

		assert.Equal(t, response.CodeResourceNotFound, parseResponse(t, w).Code)
	})
}
