package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	Quota        QuotaConfig        `mapstructure:"quota"`
	Audit        AuditConfig        `mapstructure:"audit"`
	Alarm        AlarmConfig        `mapstructure:"alarm"`
	Retention    RetentionConfig    `mapstructure:"retention"`
	CORS         CORSConfig         `mapstructure:"cors"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	AccessSecret        string `mapstructure:"access_secret"`
	RefreshSecret       string `mapstructure:"refresh_secret"`
	Issuer              string `mapstructure:"issuer"`
	Audience            string `mapstructure:"audience"`
	AccessExpireMinutes int    `mapstructure:"access_expire_minutes"`
	RefreshExpireDays   int    `mapstructure:"refresh_expire_days"`
}

type SubscriptionConfig struct {
	// 促销码叠加续期的最大上限（天），默认 5 年
	MaxExtensionDays int              `mapstructure:"max_extension_days"`
	PlanChange       PlanChangeConfig `mapstructure:"plan_change"`
}

// PlanChangeConfig 套餐变更限流策略（滑动窗口）
type PlanChangeConfig struct {
	Limit         int `mapstructure:"limit"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

type QuotaConfig struct {
	// 使用 Redis 计数器的高频功能列表，其余功能走数据库计数
	RedisFeatures []string `mapstructure:"redis_features"`
	// 外部存储调用的超时（毫秒）
	TimeoutMillis int `mapstructure:"timeout_millis"`
}

type AuditConfig struct {
	FallbackDir       string `mapstructure:"fallback_dir"`
	FallbackSizeLimit int64  `mapstructure:"fallback_size_limit_mb"`
}

type AlarmConfig struct {
	WebhookURL string      `mapstructure:"webhook_url"`
	Email      EmailConfig `mapstructure:"email"`
}

type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	AlertTo  string `mapstructure:"alert_to"`
}

type RetentionConfig struct {
	UsageDays int `mapstructure:"usage_days"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// AccessTTL 访问令牌有效期
func (c *JWTConfig) AccessTTL() time.Duration {
	if c.AccessExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.AccessExpireMinutes) * time.Minute
}

// RefreshTTL 刷新令牌有效期
func (c *JWTConfig) RefreshTTL() time.Duration {
	if c.RefreshExpireDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.RefreshExpireDays) * 24 * time.Hour
}

// StoreTimeout 配额/限流存储调用超时
func (c *QuotaConfig) StoreTimeout() time.Duration {
	if c.TimeoutMillis <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Subscription.MaxExtensionDays <= 0 {
		cfg.Subscription.MaxExtensionDays = 5 * 365
	}
	if cfg.Subscription.PlanChange.Limit <= 0 {
		cfg.Subscription.PlanChange.Limit = 1
	}
	if cfg.Subscription.PlanChange.WindowSeconds <= 0 {
		cfg.Subscription.PlanChange.WindowSeconds = 60
	}
	if cfg.Retention.UsageDays <= 0 {
		cfg.Retention.UsageDays = 90
	}
	if cfg.Audit.FallbackDir == "" {
		cfg.Audit.FallbackDir = "/var/log/ytd_audit_logs"
	}
	if cfg.Audit.FallbackSizeLimit <= 0 {
		cfg.Audit.FallbackSizeLimit = 100
	}
}
