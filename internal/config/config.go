package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Storage      StorageConfig      `yaml:"storage"`
	Database     DatabaseConfig     `yaml:"database"`
	Firebase     FirebaseConfig     `yaml:"firebase"`
	Redis        RedisConfig        `yaml:"redis"`
	Ledger       LedgerConfig       `yaml:"ledger"`
	Notification NotificationConfig `yaml:"notification"`
	Identity     IdentityConfig     `yaml:"identity"`
	Security     SecurityConfig     `yaml:"security"`
	Log          LogConfig          `yaml:"log"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
}

// ServerConfig contains gRPC and HTTP listener settings
type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	HTTPPort int    `yaml:"http_port"`
}

// StorageConfig selects the record store backend
type StorageConfig struct {
	Type string `yaml:"type"` // "postgres", "firestore" or "memory"
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type FirebaseConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

type RedisConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	EventsChannel string `yaml:"events_channel"`
	LockTTLMillis int    `yaml:"lock_ttl_ms"`
}

// LedgerConfig holds the money rules. Amounts are decimal strings so that YAML never
// routes them through float64.
type LedgerConfig struct {
	CommissionRate      string `yaml:"commission_rate"`
	MinimumWithdrawal   string `yaml:"minimum_withdrawal"`
	Currency            string `yaml:"currency"`
	HistoryLimit        int    `yaml:"history_limit"`
	StoreTimeoutSeconds int    `yaml:"store_timeout_seconds"`
}

type NotificationConfig struct {
	Channels    []string       `yaml:"channels"` // "whatsapp", "email"
	AdminPhone  string         `yaml:"admin_phone"`
	AdminEmail  string         `yaml:"admin_email"`
	Workers     int            `yaml:"workers"`
	QueueSize   int            `yaml:"queue_size"`
	MaxAttempts int            `yaml:"max_attempts"`
	SendGrid    SendGridConfig `yaml:"sendgrid"`
}

type SendGridConfig struct {
	APIKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

// IdentityConfig selects how bearer tokens are verified
type IdentityConfig struct {
	Provider  string `yaml:"provider"` // "jwt" or "firebase"
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`
}

type SecurityConfig struct {
	ServiceKeys []ServiceKey `yaml:"service_keys"`
}

// ServiceKey is a bcrypt-hashed API key for backend callers such as the ride service.
type ServiceKey struct {
	Name    string `yaml:"name"`
	KeyHash string `yaml:"key_hash"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	RetryNotifications        string `yaml:"retry_notifications"`
	RemindPendingTransactions string `yaml:"remind_pending_transactions"`
	PendingReminderAfterHours int    `yaml:"pending_reminder_after_hours"`
}

// Load reads configuration from a YAML file. A .env file next to the working directory is
// loaded first so that its values take part in the environment overrides.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	envString("SERVER_HOST", &c.Server.Host)
	envInt("SERVER_PORT", &c.Server.Port)
	envInt("HTTP_PORT", &c.Server.HTTPPort)

	envString("STORAGE_TYPE", &c.Storage.Type)

	envString("DB_HOST", &c.Database.Host)
	envInt("DB_PORT", &c.Database.Port)
	envString("DB_USER", &c.Database.User)
	envString("DB_PASSWORD", &c.Database.Password)
	envString("DB_NAME", &c.Database.Database)
	envString("DB_SSL_MODE", &c.Database.SSLMode)

	envString("FIREBASE_PROJECT_ID", &c.Firebase.ProjectID)
	envString("GOOGLE_APPLICATION_CREDENTIALS", &c.Firebase.CredentialsFile)

	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
		c.Redis.Enabled = true
	}
	envString("REDIS_PASSWORD", &c.Redis.Password)

	envString("COMMISSION_RATE", &c.Ledger.CommissionRate)
	envString("MINIMUM_WITHDRAWAL", &c.Ledger.MinimumWithdrawal)

	envString("ADMIN_PHONE", &c.Notification.AdminPhone)
	envString("ADMIN_EMAIL", &c.Notification.AdminEmail)
	if val := os.Getenv("NOTIFICATION_CHANNELS"); val != "" {
		c.Notification.Channels = strings.Split(val, ",")
	}
	envString("SENDGRID_API_KEY", &c.Notification.SendGrid.APIKey)

	envString("IDENTITY_PROVIDER", &c.Identity.Provider)
	envString("JWT_SECRET", &c.Identity.JWTSecret)

	envString("LOG_LEVEL", &c.Log.Level)
	envString("LOG_FORMAT", &c.Log.Format)
}

// Validate checks the configuration and fills defaults for optional settings
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "postgres"
	}
	switch c.Storage.Type {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
		if c.Database.MaxOpenConns == 0 {
			c.Database.MaxOpenConns = 20
		}
	case "firestore":
		if c.Firebase.ProjectID == "" {
			return fmt.Errorf("firebase project id is required for firestore storage")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage type: %q", c.Storage.Type)
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required when redis is enabled")
		}
		if c.Redis.EventsChannel == "" {
			c.Redis.EventsChannel = "wallet_events"
		}
		if c.Redis.LockTTLMillis == 0 {
			c.Redis.LockTTLMillis = 10000
		}
	}

	if err := c.validateLedger(); err != nil {
		return err
	}

	if len(c.Notification.Channels) == 0 {
		c.Notification.Channels = []string{"whatsapp"}
	}
	for _, ch := range c.Notification.Channels {
		switch strings.TrimSpace(ch) {
		case "whatsapp":
		case "email":
			if c.Notification.SendGrid.APIKey == "" {
				return fmt.Errorf("sendgrid api key is required for the email channel")
			}
			if c.Notification.SendGrid.FromEmail == "" {
				return fmt.Errorf("sendgrid from email is required for the email channel")
			}
		default:
			return fmt.Errorf("unknown notification channel: %q", ch)
		}
	}
	if c.Notification.Workers == 0 {
		c.Notification.Workers = 4
	}
	if c.Notification.QueueSize == 0 {
		c.Notification.QueueSize = 256
	}
	if c.Notification.MaxAttempts == 0 {
		c.Notification.MaxAttempts = 5
	}
	if c.Notification.SendGrid.FromName == "" {
		c.Notification.SendGrid.FromName = "DriveKR"
	}

	if c.Identity.Provider == "" {
		c.Identity.Provider = "jwt"
	}
	switch c.Identity.Provider {
	case "jwt":
		if c.Identity.JWTSecret == "" {
			return fmt.Errorf("JWT secret is required")
		}
		if len(c.Identity.JWTSecret) < 32 {
			return fmt.Errorf("JWT secret must be at least 32 characters")
		}
	case "firebase":
		if c.Firebase.ProjectID == "" {
			return fmt.Errorf("firebase project id is required for firebase identity")
		}
	default:
		return fmt.Errorf("unknown identity provider: %q", c.Identity.Provider)
	}
	if c.Identity.JWTIssuer == "" {
		c.Identity.JWTIssuer = "drivekr-auth"
	}

	for _, k := range c.Security.ServiceKeys {
		if k.Name == "" || k.KeyHash == "" {
			return fmt.Errorf("service keys need a name and a key_hash")
		}
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Scheduler.RetryNotifications == "" {
		c.Scheduler.RetryNotifications = "0 */10 * * * *" // every 10 minutes
	}
	if c.Scheduler.RemindPendingTransactions == "" {
		c.Scheduler.RemindPendingTransactions = "0 0 9 * * *" // 9 AM UTC
	}
	if c.Scheduler.PendingReminderAfterHours == 0 {
		c.Scheduler.PendingReminderAfterHours = 24
	}

	return nil
}

func (c *Config) validateLedger() error {
	if c.Ledger.CommissionRate == "" {
		c.Ledger.CommissionRate = "0.15"
	}
	rate, err := decimal.NewFromString(c.Ledger.CommissionRate)
	if err != nil {
		return fmt.Errorf("invalid commission rate: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("commission rate must be in [0, 1): %s", rate)
	}

	if c.Ledger.MinimumWithdrawal == "" {
		c.Ledger.MinimumWithdrawal = "500"
	}
	minimum, err := decimal.NewFromString(c.Ledger.MinimumWithdrawal)
	if err != nil {
		return fmt.Errorf("invalid minimum withdrawal: %w", err)
	}
	if minimum.IsNegative() {
		return fmt.Errorf("minimum withdrawal must not be negative: %s", minimum)
	}

	if c.Ledger.Currency == "" {
		c.Ledger.Currency = "Rs"
	}
	if c.Ledger.HistoryLimit == 0 {
		c.Ledger.HistoryLimit = 50
	}
	if c.Ledger.StoreTimeoutSeconds == 0 {
		c.Ledger.StoreTimeoutSeconds = 10
	}
	return nil
}

// CommissionRate returns the validated platform commission rate.
func (c *Config) CommissionRate() decimal.Decimal {
	return decimal.RequireFromString(c.Ledger.CommissionRate)
}

// MinimumWithdrawal returns the validated minimum withdrawal amount.
func (c *Config) MinimumWithdrawal() decimal.Decimal {
	return decimal.RequireFromString(c.Ledger.MinimumWithdrawal)
}

// StoreTimeout bounds every ledger operation.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.Ledger.StoreTimeoutSeconds) * time.Second
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the gRPC server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetHTTPAddress returns the health/metrics listener address
func (c *Config) GetHTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}
