package jwt

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// 令牌类型，写入 typ 声明。access 与 refresh 除密钥不同外再按类型隔离，
// 两个密钥被配置成同一个值时刷新令牌也冒充不了访问令牌。
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Claims 访问/刷新令牌载荷。ver 为签发时的用户权益版本号，
// 套餐或角色变更后旧令牌因版本不匹配而失效。
type Claims struct {
	UserID       int64  `json:"uid"`
	Username     string `json:"username,omitempty"`
	Role         string `json:"role,omitempty"`
	TokenKind    string `json:"typ,omitempty"`
	TokenVersion int    `json:"ver"`
	jwt.RegisteredClaims
}

// Options 单类令牌的签发参数
type Options struct {
	Secret   string
	Issuer   string
	Audience string
	Kind     string
	TTL      time.Duration
}

// GenerateToken 签发 HS256 令牌，返回令牌串和 jti
func GenerateToken(userID int64, username, role string, tokenVersion int, opts Options) (string, string, error) {
	jti, err := randomHex(8)
	if err != nil {
		return "", "", err
	}

	now := time.Now()
	claims := Claims{
		UserID:       userID,
		Username:     username,
		Role:         role,
		TokenKind:    opts.Kind,
		TokenVersion: tokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    opts.Issuer,
			Audience:  jwt.ClaimStrings{opts.Audience},
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(opts.TTL)),
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(opts.Secret))
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

// ParseToken 校验签名、exp、nbf、iss、aud 后返回载荷。
// 任何校验失败都归入 ErrInvalidToken / ErrExpiredToken，不向上抛原始错误。
func ParseToken(tokenString string, opts Options) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(opts.Secret), nil
	},
		jwt.WithIssuer(opts.Issuer),
		jwt.WithAudience(opts.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if opts.Kind != "" && claims.TokenKind != opts.Kind {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateCSRFToken 生成 32 字节随机防伪造令牌（独立于 JWT，不嵌入载荷）
func GenerateCSRFToken() (string, error) {
	return randomHex(32)
}

func randomHex(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
