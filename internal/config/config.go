// Package config provides configuration loading and validation for the API
// server. It uses koanf to merge environment variables with optional file
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// Redis (view state, rate limiting)
	RedisURL string `koanf:"redis_url"`

	// JWT Authentication
	JWTSecret string `koanf:"jwt_secret"`

	// Change feed endpoint advertised to sync clients
	FeedURL string `koanf:"feed_url"`

	// Polling cadence for sync controllers (seconds)
	PointsPollSeconds    int `koanf:"points_poll_seconds"`
	RecyclersPollSeconds int `koanf:"recyclers_poll_seconds"`

	// Stripe (recycler donations)
	StripeAPIKey        string `koanf:"stripe_api_key"`
	StripeWebhookSecret string `koanf:"stripe_webhook_secret"`

	// S3-compatible object storage for point photos
	S3BucketName      string `koanf:"s3_bucket_name"`
	S3AccessKeyID     string `koanf:"s3_access_key_id"`
	S3SecretAccessKey string `koanf:"s3_secret_access_key"`
	S3Endpoint        string `koanf:"s3_endpoint"`
	S3MaxUploadSizeMB int    `koanf:"s3_max_upload_size_mb"`

	// OpenTelemetry trace exporter endpoint (empty disables tracing)
	OTLPEndpoint string `koanf:"otlp_endpoint"`

	// CORS allowlist for browser clients (empty disables CORS)
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Exposes /debug/pprof in non-production environments
	ProfilingEnabled bool `koanf:"profiling_enabled"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL         = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret           = errors.New("JWT_SECRET is required")
	ErrMissingStripeWebhookSecret = errors.New("STRIPE_WEBHOOK_SECRET is required when Stripe is configured")
	ErrMissingS3BucketName        = errors.New("S3_BUCKET_NAME is required")
	ErrMissingS3AccessKeyID       = errors.New("S3_ACCESS_KEY_ID is required")
	ErrMissingS3SecretAccessKey   = errors.New("S3_SECRET_ACCESS_KEY is required")
	ErrMissingS3Endpoint          = errors.New("S3_ENDPOINT is required")
	ErrInvalidPort                = errors.New("PORT must be a valid integer")
)

// Default values for non-secret configuration.
const (
	DefaultPort                 = 8080
	DefaultEnv                  = "development"
	DefaultPointsPollSeconds    = 30
	DefaultRecyclersPollSeconds = 5
	DefaultS3MaxUploadSizeMB    = 10
)

// Load reads configuration from environment variables and an optional config
// file. Environment variables take precedence over file values. Returns the
// loaded config and a slice of validation errors (empty if valid).
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefaultMulti([]string{"ECOCICLO_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	pointsPoll, pointsErr := getEnvIntOrDefault("POINTS_POLL_SECONDS", k.Int("points_poll_seconds"), DefaultPointsPollSeconds)
	if pointsErr != nil {
		loadErrs = append(loadErrs, pointsErr)
	}
	recyclersPoll, recyclersErr := getEnvIntOrDefault("RECYCLERS_POLL_SECONDS", k.Int("recyclers_poll_seconds"), DefaultRecyclersPollSeconds)
	if recyclersErr != nil {
		loadErrs = append(loadErrs, recyclersErr)
	}
	maxUploadSize, uploadSizeErr := getEnvIntOrDefault("S3_MAX_UPLOAD_SIZE_MB", k.Int("s3_max_upload_size_mb"), DefaultS3MaxUploadSizeMB)
	if uploadSizeErr != nil {
		loadErrs = append(loadErrs, uploadSizeErr)
	}

	cfg := &Config{
		Port:                 port,
		Env:                  getEnvOrDefaultMulti([]string{"ECOCICLO_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:          getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:             getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		JWTSecret:            getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		FeedURL:              getEnvOrKoanf("FEED_URL", k, "feed_url"),
		PointsPollSeconds:    pointsPoll,
		RecyclersPollSeconds: recyclersPoll,
		StripeAPIKey:         getEnvOrKoanf("STRIPE_API_KEY", k, "stripe_api_key"),
		StripeWebhookSecret:  getEnvOrKoanf("STRIPE_WEBHOOK_SECRET", k, "stripe_webhook_secret"),
		S3BucketName:         getEnvOrKoanf("S3_BUCKET_NAME", k, "s3_bucket_name"),
		S3AccessKeyID:        getEnvOrKoanf("S3_ACCESS_KEY_ID", k, "s3_access_key_id"),
		S3SecretAccessKey:    getEnvOrKoanf("S3_SECRET_ACCESS_KEY", k, "s3_secret_access_key"),
		S3Endpoint:           getEnvOrKoanf("S3_ENDPOINT", k, "s3_endpoint"),
		S3MaxUploadSizeMB:    maxUploadSize,
		OTLPEndpoint:         getEnvOrKoanf("OTLP_ENDPOINT", k, "otlp_endpoint"),
		CORSAllowedOrigins:   getEnvListOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		ProfilingEnabled:     getEnvBoolOrKoanf("PROFILING_ENABLED", k, "profiling_enabled"),
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvListOrKoanf returns a comma-separated environment variable as a
// slice, falling back to the koanf value. Empty entries are dropped.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	raw := os.Getenv(envKey)
	if raw == "" {
		return k.Strings(koanfKey)
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvBoolOrKoanf returns the environment variable parsed as a boolean if
// set, otherwise the koanf value.
func getEnvBoolOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) bool {
	if val := os.Getenv(envKey); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return k.Bool(koanfKey)
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set,
// otherwise the koanf value, or default. Returns an error if the environment
// variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}

	// Stripe is optional; the webhook secret is only required once an API
	// key is configured.
	if c.StripeAPIKey != "" && c.StripeWebhookSecret == "" {
		errs = append(errs, ErrMissingStripeWebhookSecret)
	}

	// Object storage is optional. Only validate fields if any value is set.
	if c.S3BucketName != "" || c.S3AccessKeyID != "" || c.S3SecretAccessKey != "" || c.S3Endpoint != "" {
		if c.S3BucketName == "" {
			errs = append(errs, ErrMissingS3BucketName)
		}
		if c.S3AccessKeyID == "" {
			errs = append(errs, ErrMissingS3AccessKeyID)
		}
		if c.S3SecretAccessKey == "" {
			errs = append(errs, ErrMissingS3SecretAccessKey)
		}
		if c.S3Endpoint == "" {
			errs = append(errs, ErrMissingS3Endpoint)
		}
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                   fmt.Sprintf("%d", c.Port),
		"env":                    c.Env,
		"database_url":           maskDatabaseURL(c.DatabaseURL),
		"redis_url":              maskDatabaseURL(c.RedisURL),
		"jwt_secret":             maskSecret(c.JWTSecret),
		"feed_url":               c.FeedURL,
		"points_poll_seconds":    fmt.Sprintf("%d", c.PointsPollSeconds),
		"recyclers_poll_seconds": fmt.Sprintf("%d", c.RecyclersPollSeconds),
		"stripe_api_key":         maskStripeKey(c.StripeAPIKey),
		"stripe_webhook_secret":  maskSecret(c.StripeWebhookSecret),
		"s3_bucket_name":         c.S3BucketName,
		"s3_access_key_id":       maskSecret(c.S3AccessKeyID),
		"s3_secret_access_key":   maskSecret(c.S3SecretAccessKey),
		"s3_endpoint":            c.S3Endpoint,
		"s3_max_upload_size_mb":  fmt.Sprintf("%d", c.S3MaxUploadSizeMB),
		"otlp_endpoint":          c.OTLPEndpoint,
		"cors_allowed_origins":   strings.Join(c.CORSAllowedOrigins, ","),
		"profiling_enabled":      fmt.Sprintf("%t", c.ProfilingEnabled),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters
// followed by ****. If the secret is shorter than 8 characters, it's fully
// masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskStripeKey masks a Stripe API key, preserving the prefix (sk_live_,
// sk_test_, etc.)
func maskStripeKey(s string) string {
	if s == "" {
		return "<not set>"
	}

	parts := strings.SplitN(s, "_", 3)
	if len(parts) == 3 {
		return parts[0] + "_" + parts[1] + "_****"
	}
	return maskSecret(s)
}

// maskDatabaseURL masks the password in a connection URL. Supports
// postgres://, postgresql:// and redis:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
