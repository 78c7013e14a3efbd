package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
)

const namespace = "CATALOG"

const defaultSecret = "change-me-in-production-change-me"

// Config holds the API server settings, read from CATALOG_* variables.
type Config struct {
	DBDSN         string        `envconfig:"DB_DSN" required:"true"`
	HTTPAddr      string        `envconfig:"HTTP_ADDR" default:":8080"`
	AppName       string        `envconfig:"APP_NAME" default:"Library Catalog"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
	AutoMigrate   bool          `envconfig:"AUTO_MIGRATE" default:"false"`
	EnableMetrics bool          `envconfig:"ENABLE_METRICS" default:"true"`
	EnableSwagger bool          `envconfig:"ENABLE_SWAGGER" default:"false"`
	CORSOrigins   []string      `envconfig:"CORS_ORIGINS"`
	SecureCookies bool          `envconfig:"SECURE_COOKIES" default:"false"`
	UploadMaxMB   int64         `envconfig:"UPLOAD_MAX_MB" default:"20"`
	ImportMapping string        `envconfig:"IMPORT_MAPPING"`
	Session       SessionConfig `envconfig:"SESSION"`
	Login         LoginConfig   `envconfig:"LOGIN"`
}

// SessionConfig controls the signed session cookie.
type SessionConfig struct {
	Secret string        `envconfig:"SECRET" default:"change-me-in-production-change-me"`
	Issuer string        `envconfig:"ISSUER" default:"library-catalog"`
	Expiry time.Duration `envconfig:"EXPIRY" default:"336h"`
}

// LoginConfig is the per-address login throttle: Rate attempts per minute, Burst at once.
type LoginConfig struct {
	Rate  float64 `envconfig:"RATE" default:"10"`
	Burst int     `envconfig:"BURST" default:"5"`
}

// Load reads the configuration from the environment. The given dotenv files
// (default ".env") are loaded first when present; real variables win.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var cfg Config
	if err := envconfig.Process(namespace, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &cfg, nil
}

// LoadAndValidate loads the configuration and rejects unusable values.
func LoadAndValidate(envFiles ...string) (*Config, error) {
	cfg, err := Load(envFiles...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the session and throttle settings.
func (c *Config) Validate() error {
	var problems []string
	if len(c.Session.Secret) < 32 {
		problems = append(problems, "CATALOG_SESSION_SECRET must be at least 32 characters")
	}
	if strings.TrimSpace(c.Session.Issuer) == "" {
		problems = append(problems, "CATALOG_SESSION_ISSUER must not be empty")
	}
	if c.Session.Expiry <= 0 {
		problems = append(problems, "CATALOG_SESSION_EXPIRY must be positive")
	}
	if c.Login.Rate <= 0 || c.Login.Burst <= 0 {
		problems = append(problems, "CATALOG_LOGIN_RATE and CATALOG_LOGIN_BURST must be positive")
	}
	if c.UploadMaxMB <= 0 {
		problems = append(problems, "CATALOG_UPLOAD_MAX_MB must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// UsesDefaultSecret reports whether the built-in development secret is in use.
func (c *Config) UsesDefaultSecret() bool {
	return c.Session.Secret == defaultSecret
}

// ZapLevel maps LogLevel to a zap level, defaulting to info.
func (c *Config) ZapLevel() zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}
