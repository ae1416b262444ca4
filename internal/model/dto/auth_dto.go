package dto

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=80"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type RegisterResponse struct {
	UserID int64  `json:"user_id"`
	APIKey string `json:"api_key"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenPair 一次签发的三元组：access + refresh + 防伪造令牌。
// CSRFToken 不嵌入任何 JWT，由客户端 cookie 持有并随写请求回传。
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	CSRFToken    string `json:"csrf_token"`
}

type LoginResponse struct {
	Tokens TokenPair `json:"tokens"`
	User   *UserInfo `json:"user"`
}

type UserInfo struct {
	ID           int64   `json:"id"`
	Username     string  `json:"username"`
	Email        string  `json:"email,omitempty"`
	Role         string  `json:"role"`
	Plan         string  `json:"plan,omitempty"`
	PlanExpireAt *string `json:"plan_expire_at,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}
