package dto

type UpdateSubscriptionRequest struct {
	Plan      string `json:"plan" binding:"required"`
	PromoCode string `json:"promo_code" binding:"required"`
}

type UpdateSubscriptionResponse struct {
	Plan         string `json:"plan"`
	PlanExpireAt string `json:"plan_expire_at"`
}

type SubscriptionStatus struct {
	Plan         string  `json:"plan"`
	Rank         int     `json:"rank"`
	IsActive     bool    `json:"is_active"`
	PlanExpireAt *string `json:"plan_expire_at,omitempty"`
}
