package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
	"github.com/Performile1/Performile-Version-1-sub001/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Email      EmailConfig      `mapstructure:"email"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Review     ReviewConfig     `mapstructure:"review"`
	Assignment AssignmentConfig `mapstructure:"assignment"`
	Ops        OpsConfig        `mapstructure:"ops"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   string `mapstructure:"port"`
	Mode                   string `mapstructure:"mode"` // debug / release
	ReadTimeoutSeconds     int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `mapstructure:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

// Addr 监听地址
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// ShutdownTimeout 优雅退出等待时长
func (c ServerConfig) ShutdownTimeout() time.Duration {
	if c.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	Console    bool   `mapstructure:"console"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Level:      c.Level,
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
		Console:    c.Console,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// EmailConfig 邮件服务配置
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
	UseTLS   bool   `mapstructure:"use_tls"`
	UseSSL   bool   `mapstructure:"use_ssl"`
	// Async 为 true 时邮件经由队列投递，由 worker 实际发送
	Async bool `mapstructure:"async"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// WebhookConfig 入站 webhook 配置
type WebhookConfig struct {
	MaxBodyBytes           int64                            `mapstructure:"max_body_bytes"`
	LogPayloadLimit        int                              `mapstructure:"log_payload_limit"`
	StripeToleranceSeconds int                              `mapstructure:"stripe_tolerance_seconds"`
	Providers              map[string]WebhookProviderConfig `mapstructure:"providers"`
}

// WebhookProviderConfig 单个提供方配置
type WebhookProviderConfig struct {
	Secret string `mapstructure:"secret"`
}

// ProviderSecret 返回提供方级别的签名密钥
func (c WebhookConfig) ProviderSecret(provider string) string {
	if len(c.Providers) == 0 {
		return ""
	}
	item, ok := c.Providers[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return ""
	}
	return strings.TrimSpace(item.Secret)
}

// StripeTolerance Stripe 时间戳容忍窗口，未配置时为 5 分钟
func (c WebhookConfig) StripeTolerance() time.Duration {
	if c.StripeToleranceSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.StripeToleranceSeconds) * time.Second
}

// ReviewConfig 评价邀请与提醒配置
type ReviewConfig struct {
	BaseURL              string `mapstructure:"base_url"`
	ReminderDelayHours   int    `mapstructure:"reminder_delay_hours"`
	SweepIntervalSeconds int    `mapstructure:"sweep_interval_seconds"`
	SweepBatchSize       int    `mapstructure:"sweep_batch_size"`
	ClaimLeaseSeconds    int    `mapstructure:"claim_lease_seconds"`
	MaxAttempts          int    `mapstructure:"max_attempts"`
}

// SweepInterval 提醒扫描间隔，未配置时为 1 分钟
func (c ReviewConfig) SweepInterval() time.Duration {
	if c.SweepIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// AssignmentConfig 自动分配配置
type AssignmentConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	CandidateLimit int  `mapstructure:"candidate_limit"`
}

// OpsConfig 运维接口配置
type OpsConfig struct {
	JWTSecret       string              `mapstructure:"jwt_secret"`
	ExpireHours     int                 `mapstructure:"expire_hours"`
	LoginRateLimit  RateLimitRuleConfig `mapstructure:"login_rate_limit"`
	DefaultUsername string              `mapstructure:"default_username"`
	DefaultPassword string              `mapstructure:"default_password"`
}

// RateLimitRuleConfig 限流配置
type RateLimitRuleConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxAttempts   int `mapstructure:"max_attempts"`
}

// MetricsConfig 指标暴露配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

var webhookProviders = []string{
	constants.ProviderShopify,
	constants.ProviderWooCommerce,
	constants.ProviderStripe,
	constants.ProviderMagento,
	constants.ProviderPrestaShop,
	constants.ProviderOpenCart,
	constants.ProviderWix,
	constants.ProviderSquarespace,
	constants.ProviderExternal,
}

// Load 从 config.yml 加载配置
func Load() *Config {
	// 本地开发时允许 .env 覆盖环境变量，文件不存在时忽略
	if err := godotenv.Load(); err == nil {
		logger.Infow("config_dotenv_loaded")
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")     // 从当前目录查找
	viper.AddConfigPath("./")    // 备用路径
	viper.AddConfigPath("../")   // 如果从 cmd/server 运行
	viper.AddConfigPath("./etc") // etc 文件夹

	SetDefaults(viper.GetViper())

	// 环境变量支持
	viper.AutomaticEnv()                                   // 自动读取环境变量
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 将 . 替换为 _ (例如 server.port -> SERVER_PORT)

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}

	return &cfg
}

// SetDefaults 写入全部默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 30)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("log.level", "")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("log.console", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/webhooks.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "wh")
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.host", "")
	v.SetDefault("email.port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from", "")
	v.SetDefault("email.from_name", "")
	v.SetDefault("email.use_tls", true)
	v.SetDefault("email.use_ssl", false)
	v.SetDefault("email.async", true)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"X-Requested-With",
		"X-Request-ID",
	})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("webhook.max_body_bytes", 1<<20)
	v.SetDefault("webhook.log_payload_limit", 2048)
	v.SetDefault("webhook.stripe_tolerance_seconds", 300)
	// 逐个声明提供方密钥，保证 WEBHOOK_PROVIDERS_SHOPIFY_SECRET 之类的环境变量可以覆盖
	for _, provider := range webhookProviders {
		v.SetDefault("webhook.providers."+provider+".secret", "")
	}
	v.SetDefault("review.base_url", "http://localhost:8080/review")
	v.SetDefault("review.reminder_delay_hours", 168)
	v.SetDefault("review.sweep_interval_seconds", 60)
	v.SetDefault("review.sweep_batch_size", 50)
	v.SetDefault("review.claim_lease_seconds", 300)
	v.SetDefault("review.max_attempts", 5)
	v.SetDefault("assignment.enabled", true)
	v.SetDefault("assignment.candidate_limit", 20)
	v.SetDefault("ops.jwt_secret", "change-me-in-production")
	v.SetDefault("ops.expire_hours", 12)
	v.SetDefault("ops.login_rate_limit.window_seconds", 300)
	v.SetDefault("ops.login_rate_limit.max_attempts", 10)
	v.SetDefault("ops.default_username", "")
	v.SetDefault("ops.default_password", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
