package service

import (
	"encoding/json"
	"time"

	"github.com/qs3c/ytd_go_server/internal/model"
)

// UnlimitedQuota 限额表中显式的不限量值；key 缺失同样表示不限量
const UnlimitedQuota = -1

// Limits 功能限额表：feature -> 每日上限。
// 月度上限使用 "<feature>_monthly" 作为 key。
type Limits map[string]int

// MonthlyKey 返回功能的月度限额 key
func MonthlyKey(feature string) string {
	return feature + "_monthly"
}

// ParseFeatureMap 解析存储中的限额 JSON。
// nil、空串或畸形 JSON 一律返回空表，不向调用方抛错。
func ParseFeatureMap(raw *string) Limits {
	if raw == nil || *raw == "" {
		return Limits{}
	}

	var m Limits
	if err := json.Unmarshal([]byte(*raw), &m); err != nil {
		return Limits{}
	}
	if m == nil {
		return Limits{}
	}
	return m
}

// ResolveLimits 合并出用户的有效限额表，纯函数不做 I/O。
// 合并顺序（后者覆盖前者）：套餐限额 -> 未过期的 boost -> 用户专属覆盖。
// boost 在到期瞬间即失效：now == BoostExpireAt 时不再计入。
func ResolveLimits(user *model.User, now time.Time) Limits {
	merged := Limits{}

	if user.Plan != nil && user.IsPlanActive(now) {
		for k, v := range ParseFeatureMap(user.Plan.Features) {
			merged[k] = v
		}
	}

	if user.BoostFeatures != nil && user.BoostExpireAt != nil && now.Before(*user.BoostExpireAt) {
		for k, v := range ParseFeatureMap(user.BoostFeatures) {
			merged[k] = v
		}
	}

	for k, v := range ParseFeatureMap(user.CustomFeatures) {
		merged[k] = v
	}

	return merged
}

// LimitFor 查某功能的有效限额。第二个返回值为 false 表示未配置（不限量）。
func (l Limits) LimitFor(feature string) (int, bool) {
	v, ok := l[feature]
	if !ok || v == UnlimitedQuota {
		return 0, false
	}
	return v, true
}
