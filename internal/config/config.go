// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"feedline/internal/observability"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultAccessSecret  = "dev-access-secret-change-in-production"
	defaultRefreshSecret = "dev-refresh-secret-change-in-production"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env      string `mapstructure:"APP_ENV"`
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	JWTAccessSecret  string        `mapstructure:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret string        `mapstructure:"JWT_REFRESH_SECRET"`
	AccessTokenTTL   time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL  time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`
	JWTIssuer        string        `mapstructure:"JWT_ISSUER"`
	JWTAudience      string        `mapstructure:"JWT_AUDIENCE"`
	BcryptCost       int           `mapstructure:"BCRYPT_COST"`

	DBHost        string `mapstructure:"DB_HOST"`
	DBPort        string `mapstructure:"DB_PORT"`
	DBUser        string `mapstructure:"DB_USER"`
	DBPassword    string `mapstructure:"DB_PASSWORD"`
	DBName        string `mapstructure:"DB_NAME"`
	DBSSLMode     string `mapstructure:"DB_SSLMODE"`
	DBAutoMigrate bool   `mapstructure:"DB_AUTO_MIGRATE"`

	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	FeedRequireAuth bool `mapstructure:"FEED_REQUIRE_AUTH"`
	MaxUploadMB     int  `mapstructure:"MAX_UPLOAD_MB"`

	StorageDriver      string        `mapstructure:"STORAGE_DRIVER"`
	ImageDir           string        `mapstructure:"IMAGE_DIR"`
	ImagePublicBaseURL string        `mapstructure:"IMAGE_PUBLIC_BASE_URL"`
	S3Bucket           string        `mapstructure:"S3_BUCKET"`
	S3Region           string        `mapstructure:"S3_REGION"`
	S3Endpoint         string        `mapstructure:"S3_ENDPOINT"`
	S3AccessKeyID      string        `mapstructure:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey  string        `mapstructure:"S3_SECRET_ACCESS_KEY"`
	S3ForcePathStyle   bool          `mapstructure:"S3_FORCE_PATH_STYLE"`
	S3Timeout          time.Duration `mapstructure:"S3_TIMEOUT"`

	LoginRateLimit  int           `mapstructure:"LOGIN_RATE_LIMIT"`
	LoginRateWindow time.Duration `mapstructure:"LOGIN_RATE_WINDOW"`

	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint       string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

// envKeys lists every key so AutomaticEnv can populate Unmarshal without a config file.
var envKeys = []string{
	"APP_ENV", "PORT", "LOG_LEVEL",
	"JWT_ACCESS_SECRET", "JWT_REFRESH_SECRET", "ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL",
	"JWT_ISSUER", "JWT_AUDIENCE", "BCRYPT_COST",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE", "DB_AUTO_MIGRATE",
	"REDIS_URL", "ALLOWED_ORIGINS", "FEED_REQUIRE_AUTH", "MAX_UPLOAD_MB",
	"STORAGE_DRIVER", "IMAGE_DIR", "IMAGE_PUBLIC_BASE_URL",
	"S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY",
	"S3_FORCE_PATH_STYLE", "S3_TIMEOUT",
	"LOGIN_RATE_LIMIT", "LOGIN_RATE_WINDOW",
	"TRACING_ENABLED", "TRACING_EXPORTER", "OTLP_ENDPOINT", "TRACING_SAMPLE_RATIO",
}

// LoadConfig loads .env (if present), config.yml and the environment, in
// increasing order of precedence.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.AddConfigPath("../..")
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// The base config file is optional.
	_ = v.ReadInConfig()

	env := v.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}
	if env != "development" && env != "test" {
		v.SetConfigName("config." + env)
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config.%s.yml: %w", env, err)
			}
		} else {
			observability.Logger.Info("loaded profile configuration", slog.String("profile", "config."+env+".yml"))
		}
	}

	setDefaults(v, env)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper, env string) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_ACCESS_SECRET", defaultAccessSecret)
	v.SetDefault("JWT_REFRESH_SECRET", defaultRefreshSecret)
	v.SetDefault("ACCESS_TOKEN_TTL", time.Hour)
	v.SetDefault("REFRESH_TOKEN_TTL", 48*time.Hour)
	v.SetDefault("JWT_ISSUER", "feedline-api")
	v.SetDefault("JWT_AUDIENCE", "feedline-client")
	v.SetDefault("BCRYPT_COST", 14)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "user")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "feedline")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_AUTO_MIGRATE", !isProduction(env))
	v.SetDefault("REDIS_URL", "localhost:6379")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	v.SetDefault("FEED_REQUIRE_AUTH", true)
	v.SetDefault("MAX_UPLOAD_MB", 10)
	v.SetDefault("STORAGE_DRIVER", "local")
	v.SetDefault("IMAGE_DIR", "./images")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_TIMEOUT", 30*time.Second)
	v.SetDefault("LOGIN_RATE_LIMIT", 10)
	v.SetDefault("LOGIN_RATE_WINDOW", time.Minute)
	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_EXPORTER", "stdout")
	v.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	c.ImagePublicBaseURL = strings.TrimRight(strings.TrimSpace(c.ImagePublicBaseURL), "/")
	if c.ImagePublicBaseURL == "" {
		c.ImagePublicBaseURL = c.defaultImageBaseURL()
	}
}

func (c *Config) defaultImageBaseURL() string {
	if c.StorageDriver == "s3" && c.S3Bucket != "" {
		if c.S3Endpoint != "" {
			return strings.TrimRight(c.S3Endpoint, "/") + "/" + c.S3Bucket
		}
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.S3Bucket, c.S3Region)
	}
	return "/images"
}

// IsProduction reports whether the config targets production.
func (c *Config) IsProduction() bool {
	return isProduction(c.Env)
}

func isProduction(env string) bool {
	return env == "production" || env == "prod"
}

// Origins returns ALLOWED_ORIGINS split on commas.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTAccessSecret == "" || c.JWTRefreshSecret == "" {
		return errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST %d out of range [4,31]", c.BcryptCost)
	}
	if c.MaxUploadMB <= 0 {
		return errors.New("MAX_UPLOAD_MB must be positive")
	}

	// Credentialed CORS cannot use a wildcard origin.
	if len(c.Origins()) == 0 || slices.Contains(c.Origins(), "*") {
		return errors.New("ALLOWED_ORIGINS must list explicit origins")
	}

	switch c.StorageDriver {
	case "local":
		if c.ImageDir == "" {
			return errors.New("IMAGE_DIR is required for the local storage driver")
		}
	case "s3":
		if c.S3Bucket == "" || c.S3Region == "" {
			return errors.New("S3_BUCKET and S3_REGION are required for the s3 storage driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.IsProduction() {
		for name, secret := range map[string]string{
			"JWT_ACCESS_SECRET":  c.JWTAccessSecret,
			"JWT_REFRESH_SECRET": c.JWTRefreshSecret,
		} {
			if secret == defaultAccessSecret || secret == defaultRefreshSecret {
				return fmt.Errorf("%s must be changed from the default value in production", name)
			}
			if len(secret) < 32 {
				return fmt.Errorf("%s must be at least 32 characters in production", name)
			}
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable SSL in production")
		}
	} else if len(c.JWTAccessSecret) < 32 {
		observability.Logger.Warn("JWT_ACCESS_SECRET is shorter than 32 characters")
	}

	return nil
}
