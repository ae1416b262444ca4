package service

import (
	"log"
	"time"

	"github.com/qs3c/ytd_go_server/internal/model"
	"github.com/qs3c/ytd_go_server/internal/pkg/alarm"
	"github.com/qs3c/ytd_go_server/internal/pkg/audit"
	"github.com/qs3c/ytd_go_server/internal/repository"
)

// 审计动作类型
const (
	ActionLogin            = "login"
	ActionLoginFailed      = "login_failed"
	ActionLogout           = "logout"
	ActionTokenRefresh     = "token_refresh"
	ActionTokenReplay      = "token_replay_detected"
	ActionPromoRedeem      = "promo_redeem"
	ActionPromoRejected    = "promo_rejected"
	ActionPlanChange       = "plan_change"
	ActionPlanChangeDenied = "plan_change_denied"
	ActionRateLimited      = "rate_limited"
)

// AuditService 审计落库，失败时写本地兜底文件。
// 记录失败绝不向调用方传播，核心路径不依赖审计的成败。
type AuditService struct {
	auditRepo *repository.AuditRepository
	fallback  *audit.FallbackWriter
	notifier  *alarm.Notifier
}

func NewAuditService(auditRepo *repository.AuditRepository, fallback *audit.FallbackWriter, notifier *alarm.Notifier) *AuditService {
	return &AuditService{
		auditRepo: auditRepo,
		fallback:  fallback,
		notifier:  notifier,
	}
}

// Record 同步写一条审计记录，best-effort
func (s *AuditService) Record(userID *int64, username *string, action, ip, details string) {
	entry := &model.AuditLog{
		UserID:    userID,
		Username:  username,
		Action:    action,
		CreatedAt: time.Now(),
	}
	if ip != "" {
		entry.IPAddress = &ip
	}
	if details != "" {
		entry.Details = &details
	}

	if err := s.auditRepo.Create(entry); err != nil {
		log.Printf("audit: db write failed, falling back to file: %v", err)
		s.writeFallback(entry)
	}
}

// RecordAsync 异步记录，用于不能阻塞的请求路径
func (s *AuditService) RecordAsync(userID *int64, username *string, action, ip, details string) {
	go s.Record(userID, username, action, ip, details)
}

// RecordSecurity 安全相关事件：审计 + 告警
func (s *AuditService) RecordSecurity(userID *int64, username *string, action, ip, details, severity string) {
	s.Record(userID, username, action, ip, details)

	if s.notifier != nil {
		name := ""
		if username != nil {
			name = *username
		}
		s.notifier.Notify(alarm.Event{
			AlertType: action,
			Severity:  severity,
			Username:  name,
			IPAddress: ip,
			Details:   details,
		})
	}
}

func (s *AuditService) writeFallback(entry *model.AuditLog) {
	if s.fallback == nil {
		return
	}

	row := map[string]interface{}{
		"action":     entry.Action,
		"created_at": entry.CreatedAt.UTC().Format(time.RFC3339),
	}
	if entry.UserID != nil {
		row["user_id"] = *entry.UserID
	}
	if entry.Username != nil {
		row["username"] = *entry.Username
	}
	if entry.IPAddress != nil {
		row["ip_address"] = *entry.IPAddress
	}
	if entry.Details != nil {
		row["details"] = *entry.Details
	}

	if err := s.fallback.Write(row); err != nil {
		log.Printf("audit: fallback write failed, entry dropped: %v", err)
	}
}
