// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
	GetMigrateOnStart() bool
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// CacheConfig provides Redis settings shared by the settings cache and the driver.
type CacheConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetSettingsCacheTTL() time.Duration
	IsRedisEnabled() bool
}

// SchedulerConfig provides settings for the automation driver process.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAutomationPollInterval() time.Duration
	GetAutomationBatchSize() int
	GetAutomationReaperInterval() time.Duration
	GetAutomationStuckAfter() time.Duration
	GetAutomationConcurrency() int
	GetAutomationQueue() string
	GetAutomationTaskTimeout() time.Duration
	GetMetricsAddr() string
}

// AutomationConfig provides settings for the automation engine itself.
type AutomationConfig interface {
	GetGenerationTimeout() time.Duration
	GetAccountScanLimit() int
	GetPhoneRegion() string
}

// AIConfig provides settings for the content generator.
type AIConfig interface {
	GetMoonshotAPIKey() string
	GetMoonshotModel() string
	IsAIEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env             string
	HTTPAddr        string
	DatabaseURL     string
	MigrateOnStart  bool
	JWTAccessSecret string
	CORSAllowAll    bool
	CORSOrigins     []string
	CORSAllowCreds  bool

	RedisURL         string
	RedisTLSInsecure bool
	SettingsCacheTTL time.Duration

	AutomationPollInterval   time.Duration
	AutomationBatchSize      int
	AutomationReaperInterval time.Duration
	AutomationStuckAfter     time.Duration
	AutomationConcurrency    int
	AutomationQueue          string
	AccountScanLimit         int
	GenerationTimeout        time.Duration
	PhoneRegion              string
	MetricsAddr              string

	MoonshotAPIKey string
	MoonshotModel  string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string  { return c.DatabaseURL }
func (c *Config) GetMigrateOnStart() bool { return c.MigrateOnStart }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// CacheConfig implementation
func (c *Config) GetRedisURL() string                { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool          { return c.RedisTLSInsecure }
func (c *Config) GetSettingsCacheTTL() time.Duration { return c.SettingsCacheTTL }
func (c *Config) IsRedisEnabled() bool               { return c.RedisURL != "" }

// SchedulerConfig implementation
func (c *Config) GetAutomationPollInterval() time.Duration   { return c.AutomationPollInterval }
func (c *Config) GetAutomationBatchSize() int                { return c.AutomationBatchSize }
func (c *Config) GetAutomationReaperInterval() time.Duration { return c.AutomationReaperInterval }
func (c *Config) GetAutomationStuckAfter() time.Duration     { return c.AutomationStuckAfter }
func (c *Config) GetAutomationConcurrency() int              { return c.AutomationConcurrency }
func (c *Config) GetAutomationQueue() string                 { return c.AutomationQueue }
func (c *Config) GetMetricsAddr() string                     { return c.MetricsAddr }

// GetAutomationTaskTimeout bounds one worker run: the generation call plus
// the claim, re-check and status writes around it.
func (c *Config) GetAutomationTaskTimeout() time.Duration {
	if c.GenerationTimeout <= 0 {
		return 0
	}
	return c.GenerationTimeout + taskTimeoutMargin
}

// AutomationConfig implementation
func (c *Config) GetGenerationTimeout() time.Duration { return c.GenerationTimeout }
func (c *Config) GetAccountScanLimit() int            { return c.AccountScanLimit }
func (c *Config) GetPhoneRegion() string              { return c.PhoneRegion }

// AIConfig implementation
func (c *Config) GetMoonshotAPIKey() string { return c.MoonshotAPIKey }
func (c *Config) GetMoonshotModel() string  { return c.MoonshotModel }
func (c *Config) IsAIEnabled() bool         { return c.MoonshotAPIKey != "" }

const taskTimeoutMargin = time.Minute

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		MigrateOnStart:  strings.EqualFold(getEnv("MIGRATE_ON_START", "false"), "true"),
		JWTAccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:    corsAllowAll,
		CORSOrigins:     corsOrigins,
		CORSAllowCreds:  strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		SettingsCacheTTL: mustDuration(getEnv("AUTOMATION_SETTINGS_CACHE_TTL", "5m")),

		AutomationPollInterval:   mustDuration(getEnv("AUTOMATION_POLL_INTERVAL", "30s")),
		AutomationBatchSize:      mustPositiveInt(getEnv("AUTOMATION_BATCH_SIZE", "50"), 50),
		AutomationReaperInterval: mustDuration(getEnv("AUTOMATION_REAPER_INTERVAL", "5m")),
		AutomationStuckAfter:     mustDuration(getEnv("AUTOMATION_STUCK_AFTER", "30m")),
		AutomationConcurrency:    mustPositiveInt(getEnv("AUTOMATION_CONCURRENCY", "5"), 5),
		AutomationQueue:          getEnv("AUTOMATION_QUEUE", "automations"),
		AccountScanLimit:         mustPositiveInt(getEnv("AUTOMATION_ACCOUNT_SCAN_LIMIT", "500"), 500),
		GenerationTimeout:        mustDuration(getEnv("AUTOMATION_GENERATION_TIMEOUT", "45s")),
		PhoneRegion:              strings.ToUpper(getEnv("DEFAULT_PHONE_REGION", "US")),
		MetricsAddr:              getEnv("METRICS_ADDR", ":9091"),

		MoonshotAPIKey: getEnv("MOONSHOT_API_KEY", ""),
		MoonshotModel:  getEnv("MOONSHOT_MODEL", "kimi-k2.5"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.AutomationPollInterval <= 0 {
		return nil, fmt.Errorf("AUTOMATION_POLL_INTERVAL must be a positive duration")
	}
	if cfg.GenerationTimeout <= 0 {
		return nil, fmt.Errorf("AUTOMATION_GENERATION_TIMEOUT must be a positive duration")
	}
	if cfg.AutomationStuckAfter > 0 && cfg.AutomationStuckAfter <= cfg.GetAutomationTaskTimeout() {
		return nil, fmt.Errorf("AUTOMATION_STUCK_AFTER must exceed AUTOMATION_GENERATION_TIMEOUT plus %s", taskTimeoutMargin)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustPositiveInt(value string, fallback int) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || result <= 0 {
		return fallback
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
