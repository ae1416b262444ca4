package handler

import (
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/ytd_go_server/internal/model"
	"github.com/qs3c/ytd_go_server/internal/pkg/counter"
	"github.com/qs3c/ytd_go_server/internal/pkg/response"
	"github.com/qs3c/ytd_go_server/internal/repository"
	"github.com/qs3c/ytd_go_server/internal/service"
	"github.com/qs3c/ytd_go_server/internal/testutil"
)

func setupQuotaHandler(t *testing.T) (*QuotaHandler, *gorm.DB, *miniredis.Miniredis) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	rdb, mr, cleanup := testutil.SetupTestRedis(t)
	t.Cleanup(cleanup)

	cfg := handlerConfig()
	cfg.Quota.RedisFeatures = []string{"llm_analyze"}

	quotaSvc := service.NewQuotaService(
		repository.NewUserRepository(db),
		repository.NewUsageRepository(db),
		counter.NewStore(rdb),
		cfg,
	)
	return NewQuotaHandler(quotaSvc), db, mr
}

func quotaEngine(h *QuotaHandler, user *model.User) *gin.Engine {
	engine := gin.New()
	g := engine.Group("", injectUser(user))
	g.GET("/quota", h.GetUsage)
	g.GET("/quota/limits", h.GetLimits)
	g.POST("/quota/consume", h.Consume)
	return engine
}

func TestQuotaHandler_Consume(t *testing.T) {
	h, db, _ := setupQuotaHandler(t)
	user := activePlanUser(t, db, model.PlanBasic, 10, `{"analyze": 2, "llm_analyze": 3}`)
	engine := quotaEngine(h, user)

	t.Run("WithinLimit", func(t *testing.T) {
		for i := 1; i <= 2; i++ {
			w := performRequest(engine, http.MethodPost, "/quota/consume", gin.H{"feature": "analyze"}, nil)
			resp := parseResponse(t, w)
			require.Equal(t, response.CodeSuccess, resp.Code)

			data := resp.Data.(map[string]interface{})
			assert.Equal(t, float64(i), data["used"])
			assert.Equal(t, float64(2), data["limit"])
		}
	})

	t.Run("BeyondLimitDenied", func(t *testing.T) {
		w := performRequest(engine, http.MethodPost, "/quota/consume", gin.H{"feature": "analyze"}, nil)
		assert.Equal(t, response.CodeQuotaExceeded, parseResponse(t, w).Code)
	})

	t.Run("RedisFeature", func(t *testing.T) {
		w := performRequest(engine, http.MethodPost, "/quota/consume", gin.H{"feature": "llm_analyze"}, nil)
		resp := parseResponse(t, w)
		require.Equal(t, response.CodeSuccess, resp.Code)

		data := resp.Data.(map[string]interface{})
		assert.Equal(t, float64(1), data["used"])
	})

	t.Run("UnconfiguredFeature", func(t *testing.T) {
		w := performRequest(engine, http.MethodPost, "/quota/consume", gin.H{"feature": "mystery"}, nil)
		resp := parseResponse(t, w)
		require.Equal(t, response.CodeSuccess, resp.Code)

		data := resp.Data.(map[string]interface{})
		assert.Equal(t, true, data["unconfigured"])
	})

	t.Run("MissingFeature", func(t *testing.T) {
		w := performRequest(engine, http.MethodPost, "/quota/consume", gin.H{}, nil)
		assert.Equal(t, response.CodeParamError, parseResponse(t, w).Code)
	})
}

func TestQuotaHandler_ConsumeRedisDown(t *testing.T) {
	h, db, mr := setupQuotaHandler(t)
	user := activePlanUser(t, db, model.PlanBasic, 10, `{"llm_analyze": 3}`)
	engine := quotaEngine(h, user)

	mr.Close()

	// 计数存储不可用时 fail-closed
	w := performRequest(engine, http.MethodPost, "/quota/consume", gin.H{"feature": "llm_analyze"}, nil)
	assert.Equal(t, response.CodeUnavailable, parseResponse(t, w).Code)
}

func TestQuotaHandler_GetLimits(t *testing.T) {
	h, db, _ := setupQuotaHandler(t)
	user := activePlanUser(t, db, model.PlanBasic, 10, `{"analyze": 5}`)
	engine := quotaEngine(h, user)

	w := performRequest(engine, http.MethodGet, "/quota/limits", nil, nil)

	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	data := resp.Data.(map[string]interface{})
	limits := data["limits"].(map[string]interface{})
	assert.Equal(t, float64(5), limits["analyze"])
}

func TestQuotaHandler_GetUsage(t *testing.T) {
	h, db, _ := setupQuotaHandler(t)
	user := activePlanUser(t, db, model.PlanBasic, 10, `{"analyze": 5}`)
	engine := quotaEngine(h, user)

	w := performRequest(engine, http.MethodPost, "/quota/consume", gin.H{"feature": "analyze"}, nil)
	require.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)

	w = performRequest(engine, http.MethodGet, "/quota", nil, nil)
	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, model.PlanBasic, data["plan"])

	features := data["features"].([]interface{})
	require.Len(t, features, 1)
	entry := features[0].(map[string]interface{})
	assert.Equal(t, "analyze", entry["feature"])
	assert.Equal(t, float64(1), entry["used"])
	assert.Equal(t, float64(4), entry["remain"])
}
