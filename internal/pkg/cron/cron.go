package cron

import (
	"log"
	"time"

	"github.com/qs3c/ytd_go_server/internal/model"
	"github.com/qs3c/ytd_go_server/internal/repository"
)

// Service 后台维护任务：过期会话、过期 boost、过期促销码与历史用量的定期清理
type Service struct {
	sessionRepo   *repository.SessionRepository
	usageRepo     *repository.UsageRepository
	promoRepo     *repository.PromoRepository
	userRepo      *repository.UserRepository
	retentionDays int
	stopChan      chan struct{}
}

func NewService(
	sessionRepo *repository.SessionRepository,
	usageRepo *repository.UsageRepository,
	promoRepo *repository.PromoRepository,
	userRepo *repository.UserRepository,
	retentionDays int,
) *Service {
	return &Service{
		sessionRepo:   sessionRepo,
		usageRepo:     usageRepo,
		promoRepo:     promoRepo,
		userRepo:      userRepo,
		retentionDays: retentionDays,
		stopChan:      make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runHourlySweep()
	log.Println("Cron service started (session/boost/promo/usage sweep)")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Cron service stopped")
}

// runHourlySweep 每小时执行一次全量清理
func (s *Service) runHourlySweep() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.SweepNow()
		}
	}
}

// SweepNow 立即执行一轮清理（启动时和手动触发也用它）
func (s *Service) SweepNow() {
	now := time.Now().UTC()

	sessions, err := s.sessionRepo.DeleteExpired(now)
	if err != nil {
		log.Printf("Sweep sessions failed: %v", err)
	}

	boosts, err := s.userRepo.ClearExpiredBoosts(now)
	if err != nil {
		log.Printf("Sweep boosts failed: %v", err)
	}

	promos, err := s.promoRepo.DeactivateExpired(now)
	if err != nil {
		log.Printf("Sweep promo codes failed: %v", err)
	}

	var usage int64
	if s.retentionDays > 0 {
		cutoff := model.UsageDate(now.AddDate(0, 0, -s.retentionDays))
		usage, err = s.usageRepo.DeleteBefore(cutoff)
		if err != nil {
			log.Printf("Sweep usage records failed: %v", err)
		}
	}

	total := sessions + boosts + promos + usage
	if total > 0 {
		log.Printf("Sweep summary: sessions=%d, boosts=%d, promos=%d, usage=%d",
			sessions, boosts, promos, usage)
	}
}
