// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the configuration for the HTTP API and the AWS-backed
// lifecycle controller.
type Config struct {
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// AWS wiring
	Region          string // AWS region for all service clients
	TableName       string // DynamoDB request table
	InstanceARN     string // Identity Center instance ARN
	IdentityStoreID string // Identity Store id for principal lookup

	// Auto-revocation trigger
	ScheduleGroup   string // EventBridge Scheduler group (default "default")
	RevokeTargetARN string // ARN the scheduler invokes at expiry
	SchedulerRole   string // IAM role the scheduler assumes to invoke the target

	// Notifications (optional — empty disables the channel)
	ApprovalTopicARN string // SNS topic for approver notifications
	SenderEmail      string // verified SES sender for requester mail

	// Policy
	MaxDurationMinutes int           // upper bound on requested duration (default 60)
	PollMaxAttempts    int           // provider status poll attempts (default 30)
	PollInterval       time.Duration // delay between poll attempts (default 2s)
	CatalogPath        string        // YAML catalog of targets and capabilities

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// Catalog is loaded from CatalogPath.
	Catalog Catalog

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables and the
// catalog file. Missing AWS identifiers are collected as warnings in
// development and rejected in production.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr:       os.Getenv("LISTEN_ADDR"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		Env:              os.Getenv("ENV"),
		Region:           os.Getenv("AWS_REGION"),
		TableName:        os.Getenv("DYNAMODB_TABLE"),
		InstanceARN:      os.Getenv("IDENTITY_CENTER_INSTANCE_ARN"),
		IdentityStoreID:  os.Getenv("IDENTITY_STORE_ID"),
		ScheduleGroup:    os.Getenv("SCHEDULE_GROUP"),
		RevokeTargetARN:  os.Getenv("REVOKE_TARGET_ARN"),
		SchedulerRole:    os.Getenv("SCHEDULER_ROLE_ARN"),
		ApprovalTopicARN: os.Getenv("SNS_APPROVAL_TOPIC_ARN"),
		SenderEmail:      os.Getenv("SES_SENDER_EMAIL"),
		CatalogPath:      os.Getenv("CATALOG_FILE"),
	}

	if v := os.Getenv("MAX_DURATION_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("MAX_DURATION_MINUTES must be a positive integer, got %q", v)
		}
		cfg.MaxDurationMinutes = n
	}
	if v := os.Getenv("POLL_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PollMaxAttempts = n
		}
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PollInterval = d
		}
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ScheduleGroup == "" {
		cfg.ScheduleGroup = "default"
	}
	if cfg.MaxDurationMinutes == 0 {
		cfg.MaxDurationMinutes = 60
	}
	if cfg.PollMaxAttempts == 0 {
		cfg.PollMaxAttempts = 30
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.CatalogPath == "" {
		cfg.CatalogPath = "jit-catalog.yaml"
	}

	catalog, err := LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	cfg.Catalog = *catalog

	for _, missing := range []struct{ name, value string }{
		{"AWS_REGION", cfg.Region},
		{"DYNAMODB_TABLE", cfg.TableName},
		{"IDENTITY_CENTER_INSTANCE_ARN", cfg.InstanceARN},
		{"IDENTITY_STORE_ID", cfg.IdentityStoreID},
		{"REVOKE_TARGET_ARN", cfg.RevokeTargetARN},
	} {
		if missing.value == "" {
			cfg.Warnings = append(cfg.Warnings, missing.name+" is not set")
		}
	}
	if cfg.ApprovalTopicARN == "" {
		cfg.Warnings = append(cfg.Warnings, "SNS_APPROVAL_TOPIC_ARN not set — approver notifications disabled")
	}
	if cfg.SenderEmail == "" {
		cfg.Warnings = append(cfg.Warnings, "SES_SENDER_EMAIL not set — requester mail disabled")
	}

	// Production mode: missing AWS wiring is a fatal error.
	if cfg.IsProduction() {
		if cfg.Region == "" || cfg.TableName == "" || cfg.InstanceARN == "" || cfg.IdentityStoreID == "" {
			return nil, fmt.Errorf("AWS_REGION, DYNAMODB_TABLE, IDENTITY_CENTER_INSTANCE_ARN and IDENTITY_STORE_ID must be set in production (ENV=production)")
		}
		if cfg.RevokeTargetARN == "" || cfg.SchedulerRole == "" {
			return nil, fmt.Errorf("REVOKE_TARGET_ARN and SCHEDULER_ROLE_ARN must be set in production (ENV=production)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the
// environment. Lines must be in KEY=VALUE format. Comments (#) and blank
// lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
