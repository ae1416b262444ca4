package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/ytd_go_server/internal/model"
	"github.com/qs3c/ytd_go_server/internal/repository"
	"github.com/qs3c/ytd_go_server/internal/testutil"
)

func setupCronService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	svc := NewService(
		repository.NewSessionRepository(db),
		repository.NewUsageRepository(db),
		repository.NewPromoRepository(db),
		repository.NewUserRepository(db),
		90,
	)
	return svc, db
}

func TestSweepNow_ExpiredSessions(t *testing.T) {
	svc, db := setupCronService(t)

	user := testutil.TestUser(t, db)
	expired := &model.UserSession{
		UserID:    user.ID,
		JTI:       "expired-jti",
		TokenHash: "hash-1",
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	live := &model.UserSession{
		UserID:    user.ID,
		JTI:       "live-jti",
		TokenHash: "hash-2",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, db.Create(expired).Error)
	require.NoError(t, db.Create(live).Error)

	svc.SweepNow()

	var count int64
	db.Model(&model.UserSession{}).Count(&count)
	assert.Equal(t, int64(1), count)

	var remaining model.UserSession
	require.NoError(t, db.First(&remaining).Error)
	assert.Equal(t, "live-jti", remaining.JTI)
}

func TestSweepNow_ExpiredBoosts(t *testing.T) {
	svc, db := setupCronService(t)

	stale := testutil.TestUser(t, db, testutil.WithBoost(`{"analyze": 99}`, time.Now().Add(-time.Hour)))
	fresh := testutil.TestUser(t, db, testutil.WithBoost(`{"analyze": 99}`, time.Now().Add(time.Hour)))

	svc.SweepNow()

	var staleUser, freshUser model.User
	require.NoError(t, db.First(&staleUser, stale.ID).Error)
	require.NoError(t, db.First(&freshUser, fresh.ID).Error)

	assert.Nil(t, staleUser.BoostFeatures)
	assert.Nil(t, staleUser.BoostExpireAt)
	assert.NotNil(t, freshUser.BoostFeatures)
}

func TestSweepNow_ExpiredPromoCodes(t *testing.T) {
	svc, db := setupCronService(t)

	testutil.TestPlan(t, db, model.PlanBasic, 10, "")
	stale := testutil.TestPromoCode(t, db, "STALE", model.PlanBasic, 30, 10,
		testutil.WithExpiry(time.Now().Add(-time.Hour)))
	fresh := testutil.TestPromoCode(t, db, "FRESH", model.PlanBasic, 30, 10,
		testutil.WithExpiry(time.Now().Add(time.Hour)))

	svc.SweepNow()

	var stalePromo, freshPromo model.PromoCode
	require.NoError(t, db.First(&stalePromo, stale.ID).Error)
	require.NoError(t, db.First(&freshPromo, fresh.ID).Error)

	assert.False(t, stalePromo.IsActive)
	assert.True(t, freshPromo.IsActive)
}

func TestSweepNow_OldUsageRecords(t *testing.T) {
	svc, db := setupCronService(t)

	user := testutil.TestUser(t, db)
	old := &model.UsageRecord{
		UserID:  user.ID,
		Date:    model.UsageDate(time.Now().AddDate(0, 0, -120)),
		Feature: "analyze",
		Count:   3,
	}
	recent := &model.UsageRecord{
		UserID:  user.ID,
		Date:    model.UsageDate(time.Now()),
		Feature: "analyze",
		Count:   1,
	}
	require.NoError(t, db.Create(old).Error)
	require.NoError(t, db.Create(recent).Error)

	svc.SweepNow()

	var count int64
	db.Model(&model.UsageRecord{}).Count(&count)
	assert.Equal(t, int64(1), count)

	var remaining model.UsageRecord
	require.NoError(t, db.First(&remaining).Error)
	assert.Equal(t, model.UsageDate(time.Now()), remaining.Date)
}

func TestStartStop(t *testing.T) {
	svc, _ := setupCronService(t)

	svc.Start()
	svc.Stop()
}
