package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"facture-workflow/internal/core/domain"
	"facture-workflow/internal/pkg/logger"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	AppMode        string
	Port           string
	AllowedOrigins string
	Database       DatabaseConfig
	JWT            JWTConfig
	Cookie         CookieConfig
	Redis          RedisConfig
	Workflow       WorkflowConfig
	Upload         UploadConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string `env:"DRIVER" envDefault:"mysql"`
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"3306"`
	User     string `env:"USER" envDefault:"root"`
	Password string `env:"PASS"`
	Name     string `env:"NAME" envDefault:"facture_workflow"`
	// DSN overrides the fields above; for sqlite it is the file path.
	DSN string `env:"DSN"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	RefreshSecret    string
	AccessTokenMins  int
	RefreshTokenDays int
}

// CookieConfig holds auth cookie configuration
type CookieConfig struct {
	Secure   bool
	SameSite string
	Domain   string
}

// RedisConfig holds the read cache connection. An empty Addr disables
// caching.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	CacheTTL time.Duration
}

// WorkflowConfig holds invoice workflow tunables
type WorkflowConfig struct {
	UrgencyThresholdDays int     `env:"URGENCY_THRESHOLD_DAYS" envDefault:"7"`
	ReminderSchedule     string  `env:"REMINDER_SCHEDULE" envDefault:"0 8 * * *"`
	DefaultVATRate       float64 `env:"DEFAULT_VAT_RATE" envDefault:"20"`
}

// UploadConfig holds attachment storage settings
type UploadConfig struct {
	Dir      string `env:"DIR" envDefault:"./uploads"`
	MaxBytes int64  `env:"MAX_BYTES" envDefault:"10485760"`
}

// shared are variables read without a mode prefix.
type shared struct {
	AppMode          string         `env:"APP_MODE" envDefault:"dev"`
	Port             string         `env:"PORT" envDefault:"3000"`
	AllowedOrigins   string         `env:"ALLOWED_ORIGINS"`
	AccessTokenMins  int            `env:"ACCESS_TOKEN_MINUTES" envDefault:"15"`
	RefreshTokenDays int            `env:"REFRESH_TOKEN_DAYS" envDefault:"7"`
	CookieSameSite   string         `env:"COOKIE_SAMESITE" envDefault:"lax"`
	CookieDomain     string         `env:"COOKIE_DOMAIN"`
	CacheTTL         time.Duration  `env:"CACHE_TTL" envDefault:"5m"`
	Workflow         WorkflowConfig `envPrefix:"WORKFLOW_"`
	Upload           UploadConfig   `envPrefix:"UPLOAD_"`
}

// scoped are variables read with the DEV_ or PROD_ prefix.
type scoped struct {
	Database         DatabaseConfig `envPrefix:"DB_"`
	Redis            RedisConfig    `envPrefix:"REDIS_"`
	JWTSecret        string         `env:"JWT_SECRET" envDefault:"default_secret"`
	JWTRefreshSecret string         `env:"JWT_REFRESH_SECRET" envDefault:"default_refresh_secret"`
	CookieSecure     bool           `env:"COOKIE_SECURE" envDefault:"false"`
}

// Global config instance
var AppConfig *Config

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// .env is optional; production injects real environment variables
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.S().Warnw("could not read .env file", "error", err)
	}

	var sh shared
	if err := env.Parse(&sh); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	appMode := strings.TrimSpace(sh.AppMode)
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	var sc scoped
	if err := env.ParseWithOptions(&sc, env.Options{Prefix: strings.ToUpper(appMode) + "_"}); err != nil {
		return nil, fmt.Errorf("parse %s env: %w", appMode, err)
	}

	cfg := &Config{
		AppMode:        appMode,
		Port:           sh.Port,
		AllowedOrigins: sh.AllowedOrigins,
		Database:       sc.Database,
		JWT: JWTConfig{
			Secret:           sc.JWTSecret,
			RefreshSecret:    sc.JWTRefreshSecret,
			AccessTokenMins:  sh.AccessTokenMins,
			RefreshTokenDays: sh.RefreshTokenDays,
		},
		Cookie: CookieConfig{
			Secure:   sc.CookieSecure,
			SameSite: sh.CookieSameSite,
			Domain:   sh.CookieDomain,
		},
		Redis:    sc.Redis,
		Workflow: sh.Workflow,
		Upload:   sh.Upload,
	}
	cfg.Redis.CacheTTL = sh.CacheTTL

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	AppConfig = cfg
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid DB_DRIVER: '%s' (must be mysql, postgres or sqlite)", c.Database.Driver)
	}
	if c.Workflow.UrgencyThresholdDays < 0 {
		return fmt.Errorf("WORKFLOW_URGENCY_THRESHOLD_DAYS must not be negative")
	}
	if c.Workflow.DefaultVATRate < 0 || c.Workflow.DefaultVATRate > 100 {
		return fmt.Errorf("WORKFLOW_DEFAULT_VAT_RATE must be between 0 and 100")
	}
	if c.Upload.MaxBytes <= 0 || c.Upload.MaxBytes > domain.MaxAttachmentSize {
		c.Upload.MaxBytes = domain.MaxAttachmentSize
	}
	if c.IsProd() && (c.JWT.Secret == "default_secret" || c.JWT.RefreshSecret == "default_refresh_secret") {
		return fmt.Errorf("PROD_JWT_SECRET and PROD_JWT_REFRESH_SECRET must be set in prod mode")
	}
	return nil
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	if c.AllowedOrigins == "" {
		if c.IsDev() {
			return "*"
		}
		return "http://localhost:4200"
	}
	return c.AllowedOrigins
}
