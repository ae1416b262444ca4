package dto

// LimitsInfo 自助面板用的有效限额快照
type LimitsInfo struct {
	Limits map[string]int `json:"limits"`
}

type FeatureUsage struct {
	Feature string `json:"feature"`
	Limit   int    `json:"limit"`
	Used    int    `json:"used"`
	Remain  int    `json:"remain"`
}

type QuotaInfo struct {
	Plan     string         `json:"plan"`
	Features []FeatureUsage `json:"features"`
}
