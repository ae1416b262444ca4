package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/qs3c/ytd_go_server/config"
	"github.com/qs3c/ytd_go_server/internal/model"
	"github.com/qs3c/ytd_go_server/internal/model/dto"
	"github.com/qs3c/ytd_go_server/internal/pkg/alarm"
	"github.com/qs3c/ytd_go_server/internal/pkg/jwt"
	"github.com/qs3c/ytd_go_server/internal/repository"
)

var (
	ErrUsernameExists     = errors.New("用户名已被使用")
	ErrEmailExists        = errors.New("邮箱已被注册")
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrUserDisabled       = errors.New("账号已被禁用")
	ErrInvalidRefresh     = errors.New("刷新令牌无效或已失效")
)

// TokenService 凭证生命周期：签发、校验、轮换、撤销。
// 刷新令牌的 jti 对应一行 user_sessions；轮换时旧行的条件撤销
// 是并发竞争的仲裁点，赢家才允许签发新对。
type TokenService struct {
	db          *gorm.DB
	userRepo    *repository.UserRepository
	sessionRepo *repository.SessionRepository
	auditSvc    *AuditService
	cfg         *config.Config
}

func NewTokenService(db *gorm.DB, userRepo *repository.UserRepository, sessionRepo *repository.SessionRepository, auditSvc *AuditService, cfg *config.Config) *TokenService {
	return &TokenService{
		db:          db,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		auditSvc:    auditSvc,
		cfg:         cfg,
	}
}

func (s *TokenService) accessOpts() jwt.Options {
	return jwt.Options{
		Secret:   s.cfg.JWT.AccessSecret,
		Issuer:   s.cfg.JWT.Issuer,
		Audience: s.cfg.JWT.Audience,
		Kind:     jwt.KindAccess,
		TTL:      s.cfg.JWT.AccessTTL(),
	}
}

func (s *TokenService) refreshOpts() jwt.Options {
	return jwt.Options{
		Secret:   s.cfg.JWT.RefreshSecret,
		Issuer:   s.cfg.JWT.Issuer,
		Audience: s.cfg.JWT.Audience,
		Kind:     jwt.KindRefresh,
		TTL:      s.cfg.JWT.RefreshTTL(),
	}
}

// Register 用户注册
func (s *TokenService) Register(req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	exists, err := s.userRepo.ExistsByUsername(req.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUsernameExists
	}

	exists, err = s.userRepo.ExistsByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	apiKey, err := randomHex(32)
	if err != nil {
		return nil, err
	}

	passwordStr := string(hashed)
	user := &model.User{
		Username:     req.Username,
		Email:        &req.Email,
		PasswordHash: &passwordStr,
		APIKey:       apiKey,
		Role:         model.RoleUser,
		IsActive:     true,
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	return &dto.RegisterResponse{
		UserID: user.ID,
		APIKey: apiKey,
	}, nil
}

// Login 校验口令并签发三元组，会话行与签发同一事务落库
func (s *TokenService) Login(req *dto.LoginRequest, ip string) (*dto.LoginResponse, error) {
	user, err := s.userRepo.GetByUsername(req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.auditSvc.RecordAsync(nil, &req.Username, ActionLoginFailed, ip, "unknown username")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		s.auditSvc.RecordAsync(&user.ID, &user.Username, ActionLoginFailed, ip, "wrong password")
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	var pair *dto.TokenPair
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		pair, txErr = s.issue(tx, user)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.auditSvc.RecordAsync(&user.ID, &user.Username, ActionLogin, ip, "")

	return &dto.LoginResponse{
		Tokens: *pair,
		User:   toUserInfo(user),
	}, nil
}

// issue 在给定事务内签发一套 access/refresh/csrf 并持久化会话行
func (s *TokenService) issue(tx *gorm.DB, user *model.User) (*dto.TokenPair, error) {
	access, _, err := jwt.GenerateToken(user.ID, user.Username, user.Role, user.TokenVersion, s.accessOpts())
	if err != nil {
		return nil, err
	}

	refresh, jti, err := jwt.GenerateToken(user.ID, user.Username, user.Role, user.TokenVersion, s.refreshOpts())
	if err != nil {
		return nil, err
	}

	csrf, err := jwt.GenerateCSRFToken()
	if err != nil {
		return nil, err
	}

	session := &model.UserSession{
		UserID:    user.ID,
		JTI:       jti,
		TokenHash: hashToken(refresh),
		ExpiresAt: time.Now().Add(s.cfg.JWT.RefreshTTL()),
	}
	if err := s.sessionRepo.WithTx(tx).Create(session); err != nil {
		return nil, err
	}

	return &dto.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		CSRFToken:    csrf,
	}, nil
}

// VerifyAccess 校验访问令牌。任何失败都返回 jwt 包的哨兵错误，
// 权益版本号与用户行的交叉校验在认证中间件完成。
func (s *TokenService) VerifyAccess(tokenString string) (*jwt.Claims, error) {
	return jwt.ParseToken(tokenString, s.accessOpts())
}

// RotateRefresh 刷新令牌轮换。
// 同一旧令牌的并发轮换最多一个成功：条件撤销旧会话行，
// RowsAffected==1 的赢家在同一事务里拿到新对，输家观察到 ErrInvalidRefresh。
// 已撤销令牌的再次使用触发安全告警。
func (s *TokenService) RotateRefresh(refreshToken, ip string) (*dto.TokenPair, error) {
	claims, err := jwt.ParseToken(refreshToken, s.refreshOpts())
	if err != nil {
		return nil, ErrInvalidRefresh
	}

	var (
		pair     *dto.TokenPair
		replayBy int64
	)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		sessions := s.sessionRepo.WithTx(tx)

		session, err := sessions.GetByJTI(claims.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}

		if session.TokenHash != hashToken(refreshToken) {
			return ErrInvalidRefresh
		}
		if time.Now().After(session.ExpiresAt) {
			return ErrInvalidRefresh
		}

		if session.Revoked {
			// 已撤销令牌被再次使用：可能是重放，也可能只是输掉了
			// 并发轮换。只告警不扩大撤销面，赢家的新会话保持有效
			replayBy = session.UserID
			return nil
		}

		won, err := sessions.Revoke(claims.ID)
		if err != nil {
			return err
		}
		if !won {
			// 输给了并发的另一次轮换
			return ErrInvalidRefresh
		}

		user, err := s.userRepo.WithTx(tx).GetByID(session.UserID)
		if err != nil {
			return err
		}
		if !user.IsActive {
			return ErrUserDisabled
		}

		pair, err = s.issue(tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	if replayBy != 0 {
		s.auditSvc.RecordSecurity(&replayBy, nil, ActionTokenReplay, ip,
			"revoked refresh token reused", alarm.SeverityWarning)
		return nil, ErrInvalidRefresh
	}

	s.auditSvc.RecordAsync(&claims.UserID, &claims.Username, ActionTokenRefresh, ip, "")
	return pair, nil
}

// Logout 撤销该用户的全部会话
func (s *TokenService) Logout(userID int64, ip string) error {
	if err := s.sessionRepo.RevokeAllForUser(userID); err != nil {
		return err
	}
	s.auditSvc.RecordAsync(&userID, nil, ActionLogout, ip, "")
	return nil
}

// hashToken 刷新令牌入库前取 SHA-256，泄库不泄令牌
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func toUserInfo(user *model.User) *dto.UserInfo {
	info := &dto.UserInfo{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
	}
	if user.Email != nil {
		info.Email = *user.Email
	}
	if user.Plan != nil {
		info.Plan = user.Plan.Name
	}
	if user.PlanExpireAt != nil {
		formatted := user.PlanExpireAt.Format(time.RFC3339)
		info.PlanExpireAt = &formatted
	}
	return info
}
