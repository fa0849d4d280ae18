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

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketReportImages() string
	IsMinIOEnabled() bool
}

// SchedulerConfig provides Redis and asynq settings for background work.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetClusterPassSchedule() string
	GetSubmissionRunSchedule() string
	GetStaleSweepInterval() time.Duration
}

// ClassifierConfig selects and configures the image classifier backend.
type ClassifierConfig interface {
	GetClassifierProvider() string
	GetClassifierURL() string
	GetGeminiAPIKey() string
	GetGeminiModel() string
}

// EscalationConfig provides clustering thresholds.
type EscalationConfig interface {
	GetEscalationMinCount() int
	GetEscalationRadiusMeters() float64
}

// SubmissionConfig provides settings for driving the external complaint form.
type SubmissionConfig interface {
	GetSubmissionFormURL() string
	GetSubmissionMaxRetries() int
	GetSubmissionRetryBackoff() time.Duration
	GetSubmissionReportDelay() time.Duration
	GetSubmissionSettleDelay() time.Duration
	GetSubmissionFailureCooldown() time.Duration
	GetSubmissionFieldTimeout() time.Duration
	GetSubmissionRunLockTTL() time.Duration
	GetChromeHeadless() bool
	GetChromePath() string
}

// IntakeConfig provides report intake settings.
type IntakeConfig interface {
	GetIntakeEXIFLocation() bool
}

// AnonymousIdentityConfig provides the sentinel contact used for anonymous reports.
type AnonymousIdentityConfig interface {
	GetAnonymousIdentity() AnonymousIdentity
}

// AnonymousIdentity is the raw sentinel identity as configured.
type AnonymousIdentity struct {
	Name     string
	Surname  string
	Email    string
	Mobile   string
	Gender   string
	District string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                       string
	HTTPAddr                  string
	DatabaseURL               string
	JWTAccessSecret           string
	CORSAllowAll              bool
	CORSOrigins               []string
	CORSAllowCreds            bool
	MinIOEndpoint             string
	MinIOAccessKey            string
	MinIOSecretKey            string
	MinIOUseSSL               bool
	MinIOMaxFileSize          int64
	MinioBucketReportImages   string
	RedisURL                  string
	RedisTLSInsecure          bool
	AsynqQueueName            string
	AsynqConcurrency          int
	ClusterPassSchedule       string
	SubmissionRunSchedule     string
	StaleSweepInterval        time.Duration
	ClassifierProvider        string
	ClassifierURL             string
	GeminiAPIKey              string
	GeminiModel               string
	EscalationMinCount        int
	EscalationRadiusMeters    float64
	SubmissionFormURL         string
	SubmissionMaxRetries      int
	SubmissionRetryBackoff    time.Duration
	SubmissionReportDelay     time.Duration
	SubmissionSettleDelay     time.Duration
	SubmissionFailureCooldown time.Duration
	SubmissionFieldTimeout    time.Duration
	SubmissionRunLockTTL      time.Duration
	ChromeHeadless            bool
	ChromePath                string
	IntakeEXIFLocation        bool
	Anonymous                 AnonymousIdentity
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string           { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string          { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string          { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool               { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64         { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketReportImages() string { return c.MinioBucketReportImages }
func (c *Config) IsMinIOEnabled() bool               { return c.MinIOEndpoint != "" }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                  { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool            { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string            { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int             { return c.AsynqConcurrency }
func (c *Config) GetClusterPassSchedule() string       { return c.ClusterPassSchedule }
func (c *Config) GetSubmissionRunSchedule() string     { return c.SubmissionRunSchedule }
func (c *Config) GetStaleSweepInterval() time.Duration { return c.StaleSweepInterval }

// ClassifierConfig implementation
func (c *Config) GetClassifierProvider() string { return c.ClassifierProvider }
func (c *Config) GetClassifierURL() string      { return c.ClassifierURL }
func (c *Config) GetGeminiAPIKey() string       { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string        { return c.GeminiModel }

// EscalationConfig implementation
func (c *Config) GetEscalationMinCount() int         { return c.EscalationMinCount }
func (c *Config) GetEscalationRadiusMeters() float64 { return c.EscalationRadiusMeters }

// SubmissionConfig implementation
func (c *Config) GetSubmissionFormURL() string                { return c.SubmissionFormURL }
func (c *Config) GetSubmissionMaxRetries() int                { return c.SubmissionMaxRetries }
func (c *Config) GetSubmissionRetryBackoff() time.Duration    { return c.SubmissionRetryBackoff }
func (c *Config) GetSubmissionReportDelay() time.Duration     { return c.SubmissionReportDelay }
func (c *Config) GetSubmissionSettleDelay() time.Duration     { return c.SubmissionSettleDelay }
func (c *Config) GetSubmissionFailureCooldown() time.Duration { return c.SubmissionFailureCooldown }
func (c *Config) GetSubmissionFieldTimeout() time.Duration    { return c.SubmissionFieldTimeout }
func (c *Config) GetSubmissionRunLockTTL() time.Duration      { return c.SubmissionRunLockTTL }
func (c *Config) GetChromeHeadless() bool                     { return c.ChromeHeadless }
func (c *Config) GetChromePath() string                       { return c.ChromePath }

// IntakeConfig implementation
func (c *Config) GetIntakeEXIFLocation() bool { return c.IntakeEXIFLocation }

// AnonymousIdentityConfig implementation
func (c *Config) GetAnonymousIdentity() AnonymousIdentity { return c.Anonymous }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                       getEnv("APP_ENV", "development"),
		HTTPAddr:                  getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		JWTAccessSecret:           getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:              corsAllowAll,
		CORSOrigins:               corsOrigins,
		CORSAllowCreds:            strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		MinIOEndpoint:             getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:            getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:            getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:               strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:          mustInt64(getEnv("MINIO_MAX_FILE_SIZE", "16777216")),
		MinioBucketReportImages:   getEnv("MINIO_BUCKET_REPORT_IMAGES", "report-images"),
		RedisURL:                  getEnv("REDIS_URL", ""),
		RedisTLSInsecure:          strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:            getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:          mustInt(getEnv("ASYNQ_CONCURRENCY", "2")),
		ClusterPassSchedule:       getEnv("CLUSTER_PASS_SCHEDULE", "@every 10m"),
		SubmissionRunSchedule:     getEnv("SUBMISSION_RUN_SCHEDULE", "@every 30m"),
		StaleSweepInterval:        mustDuration(getEnv("STALE_SWEEP_INTERVAL", "1h")),
		ClassifierProvider:        strings.ToLower(getEnv("CLASSIFIER_PROVIDER", "none")),
		ClassifierURL:             getEnv("CLASSIFIER_URL", ""),
		GeminiAPIKey:              getEnv("GEMINI_API_KEY", ""),
		GeminiModel:               getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		EscalationMinCount:        mustInt(getEnv("ESCALATION_MIN_COUNT", "3")),
		EscalationRadiusMeters:    mustFloat(getEnv("ESCALATION_RADIUS_M", "500")),
		SubmissionFormURL:         getEnv("SUBMISSION_FORM_URL", ""),
		SubmissionMaxRetries:      mustInt(getEnv("SUBMISSION_MAX_RETRIES", "3")),
		SubmissionRetryBackoff:    mustDuration(getEnv("SUBMISSION_RETRY_BACKOFF", "5s")),
		SubmissionReportDelay:     mustDuration(getEnv("SUBMISSION_REPORT_DELAY", "1s")),
		SubmissionSettleDelay:     mustDuration(getEnv("SUBMISSION_SETTLE_DELAY", "2s")),
		SubmissionFailureCooldown: mustDuration(getEnv("SUBMISSION_FAILURE_COOLDOWN", "1h")),
		SubmissionFieldTimeout:    mustDuration(getEnv("SUBMISSION_FIELD_TIMEOUT", "10s")),
		SubmissionRunLockTTL:      mustDuration(getEnv("SUBMISSION_RUN_LOCK_TTL", "2h")),
		ChromeHeadless:            !strings.EqualFold(getEnv("CHROME_HEADLESS", "true"), "false"),
		ChromePath:                getEnv("CHROME_PATH", ""),
		IntakeEXIFLocation:        strings.EqualFold(getEnv("INTAKE_EXIF_LOCATION", "false"), "true"),
		Anonymous: AnonymousIdentity{
			Name:     getEnv("ANON_NAME", "CivicFix"),
			Surname:  getEnv("ANON_SURNAME", "Support"),
			Email:    getEnv("ANON_EMAIL", "support@civicfix.org"),
			Mobile:   getEnv("ANON_MOBILE", "9999999999"),
			Gender:   getEnv("ANON_GENDER", "Other"),
			District: getEnv("ANON_DISTRICT", "Bhopal"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.EscalationMinCount < 2 {
		return nil, fmt.Errorf("ESCALATION_MIN_COUNT must be at least 2")
	}
	if cfg.EscalationRadiusMeters <= 0 {
		return nil, fmt.Errorf("ESCALATION_RADIUS_M must be positive")
	}
	if cfg.StaleSweepInterval <= 0 {
		return nil, fmt.Errorf("STALE_SWEEP_INTERVAL must be a positive duration")
	}
	if cfg.SubmissionMaxRetries < 1 {
		return nil, fmt.Errorf("SUBMISSION_MAX_RETRIES must be at least 1")
	}
	switch cfg.ClassifierProvider {
	case "none":
	case "http":
		if cfg.ClassifierURL == "" {
			return nil, fmt.Errorf("CLASSIFIER_URL is required when CLASSIFIER_PROVIDER is http")
		}
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required when CLASSIFIER_PROVIDER is gemini")
		}
	default:
		return nil, fmt.Errorf("unknown CLASSIFIER_PROVIDER %q", cfg.ClassifierProvider)
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

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
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
