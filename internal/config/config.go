package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/contact-app/followup/internal/mail"
	"github.com/contact-app/followup/internal/service/engagement"
	"github.com/contact-app/followup/internal/settings"
)

// Config holds all configuration for the application
type Config struct {
	Environment string            `yaml:"environment"`
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Followup    FollowupConfig    `yaml:"followup"`
	Scoring     engagement.Config `yaml:"scoring"`
	TimeRex     TimeRexConfig     `yaml:"timerex"`
	SES         SESConfig         `yaml:"ses"`
	SQS         SQSConfig         `yaml:"sqs"`
	Archive     ArchiveConfig     `yaml:"archive"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// IsProduction reports whether the webhook secret must be enforced.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig is optional; without it settings are read straight from
// Postgres and locks fall back to advisory locks.
type RedisConfig struct {
	URL                string `yaml:"url"`
	SettingsTTLSeconds int    `yaml:"settings_ttl_seconds"`
}

func (c RedisConfig) SettingsTTL() time.Duration {
	return time.Duration(c.SettingsTTLSeconds) * time.Second
}

// FollowupConfig tunes scheduling, dispatch and retention. Defaults seed
// the settings table values that operators can change at runtime.
type FollowupConfig struct {
	Defaults               settings.Followup `yaml:"defaults"`
	DispatchMode           string            `yaml:"dispatch_mode"` // "inline" or "queue"
	PollIntervalSeconds    int               `yaml:"poll_interval_seconds"`
	BatchSize              int               `yaml:"batch_size"`
	SendTimeoutSeconds     int               `yaml:"send_timeout_seconds"`
	BookingLookbackHours   int               `yaml:"booking_lookback_hours"`
	RetentionDays          int               `yaml:"retention_days"`
	CleanupIntervalMinutes int               `yaml:"cleanup_interval_minutes"`
}

func (c FollowupConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c FollowupConfig) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSeconds) * time.Second
}

func (c FollowupConfig) BookingLookback() time.Duration {
	return time.Duration(c.BookingLookbackHours) * time.Hour
}

func (c FollowupConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

// UseQueue reports whether due followups go through SQS.
func (c FollowupConfig) UseQueue() bool {
	return c.DispatchMode == "queue"
}

type TimeRexConfig struct {
	WebhookToken string `yaml:"webhook_token"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
}

type SESConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Region           string `yaml:"region"`
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	FromEmail        string `yaml:"from_email"`
	FromName         string `yaml:"from_name"`
	ReplyTo          string `yaml:"reply_to"`
	ConfigurationSet string `yaml:"configuration_set"`
}

// Mail converts to the transport's configuration.
func (c SESConfig) Mail() mail.SESConfig {
	return mail.SESConfig{
		Region:           c.Region,
		AccessKeyID:      c.AccessKey,
		SecretAccessKey:  c.SecretKey,
		FromEmail:        c.FromEmail,
		FromName:         c.FromName,
		ReplyTo:          c.ReplyTo,
		ConfigurationSet: c.ConfigurationSet,
	}
}

type SQSConfig struct {
	QueueURL string `yaml:"queue_url"`
	Region   string `yaml:"region"`
}

type ArchiveConfig struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Compress bool   `yaml:"compress"`
}

type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// RedactionEnabled defaults to true.
func (c LoggingConfig) RedactionEnabled() bool {
	return c.RedactPII == nil || *c.RedactPII
}

const (
	DefaultSubjectTemplate = "{{ document.title }} のご確認ありがとうございます"
	DefaultBodyTemplate    = `<p>{{ company.contact_name | default: company.name }} 様</p>
<p>「{{ document.title }}」をご覧いただきありがとうございました。</p>
{% if booking_url != "" %}<p>ご相談は <a href="{{ booking_url }}">こちら</a> からご予約いただけます。</p>{% endif %}`
)

// Load reads a YAML file and applies defaults. A missing file yields the
// defaults alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, err
			}
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Redis.SettingsTTLSeconds == 0 {
		cfg.Redis.SettingsTTLSeconds = int(settings.DefaultCacheTTL / time.Second)
	}

	f := &cfg.Followup
	if f.Defaults.DelayMinutes == 0 {
		f.Defaults.DelayMinutes = 15
	}
	if f.Defaults.SubjectTemplate == "" {
		f.Defaults.SubjectTemplate = DefaultSubjectTemplate
	}
	if f.Defaults.BodyTemplate == "" {
		f.Defaults.BodyTemplate = DefaultBodyTemplate
	}
	if f.DispatchMode == "" {
		f.DispatchMode = "inline"
	}
	if f.PollIntervalSeconds == 0 {
		f.PollIntervalSeconds = 30
	}
	if f.BatchSize == 0 {
		f.BatchSize = 100
	}
	if f.SendTimeoutSeconds == 0 {
		f.SendTimeoutSeconds = 30
	}
	if f.BookingLookbackHours == 0 {
		f.BookingLookbackHours = 24
	}
	if f.RetentionDays == 0 {
		f.RetentionDays = 30
	}
	if f.CleanupIntervalMinutes == 0 {
		f.CleanupIntervalMinutes = 60
	}

	if cfg.SES.Region == "" {
		cfg.SES.Region = "ap-northeast-1"
	}
	if cfg.SQS.Region == "" {
		cfg.SQS.Region = cfg.SES.Region
	}
	if cfg.Archive.Region == "" {
		cfg.Archive.Region = cfg.SES.Region
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads .env (if present), then the YAML file, then applies
// environment overrides.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (cfg *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
			*dst = v
		}
	}

	setString(&cfg.Environment, "ENVIRONMENT")
	setInt(&cfg.Server.Port, "PORT")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")

	setString(&cfg.TimeRex.WebhookToken, "TIMEREX_WEBHOOK_TOKEN")
	setString(&cfg.TimeRex.APIKey, "TIMEREX_API_KEY")
	setString(&cfg.TimeRex.BaseURL, "TIMEREX_BASE_URL")

	setString(&cfg.SES.Region, "AWS_REGION")
	setString(&cfg.SQS.Region, "AWS_REGION")
	setString(&cfg.Archive.Region, "AWS_REGION")
	setString(&cfg.SES.AccessKey, "AWS_SES_ACCESS_KEY")
	setString(&cfg.SES.SecretKey, "AWS_SES_SECRET_KEY")
	setString(&cfg.SES.FromEmail, "SES_FROM_EMAIL")
	setString(&cfg.SQS.QueueURL, "FOLLOWUP_QUEUE_URL")
	setString(&cfg.Archive.Bucket, "FOLLOWUP_ARCHIVE_BUCKET")

	setString(&cfg.Followup.DispatchMode, "FOLLOWUP_DISPATCH_MODE")
	setInt(&cfg.Followup.RetentionDays, "FOLLOWUP_RETENTION_DAYS")
	setString(&cfg.Logging.Level, "LOG_LEVEL")

	if cfg.SES.AccessKey != "" || cfg.SES.FromEmail != "" {
		cfg.SES.Enabled = true
	}
}
