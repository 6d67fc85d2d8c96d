package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported storage and media drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"

	MediaLocal      = "local"
	MediaCloudinary = "cloudinary"
)

// Config is the process-wide configuration. It is loaded once in main and
// handed to constructors; nothing else reads the environment.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	DatabaseDriver string
	DatabaseDSN    string

	Auth  AuthConfig
	Media MediaConfig

	CORSOrigins []string

	RabbitMQURL string
	Redis       RedisConfig
}

// AuthConfig holds session token and cookie settings.
type AuthConfig struct {
	JWTSecret      string
	TokenTTL       time.Duration
	CookieSecure   bool
	CookieSameSite string
}

// MediaConfig selects and configures the image uploader.
type MediaConfig struct {
	Driver    string
	Folder    string
	UploadDir string
	Timeout   time.Duration

	CloudName string
	APIKey    string
	APISecret string
}

// RedisConfig configures the optional logout denylist.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":5000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_DRIVER", DriverPostgres)
	v.SetDefault("DATABASE_DSN", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOKEN_TTL", "72h")
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("COOKIE_SAME_SITE", "None")
	v.SetDefault("CORS_ORIGINS", "http://127.0.0.1:5173")
	v.SetDefault("MEDIA_DRIVER", MediaLocal)
	v.SetDefault("MEDIA_FOLDER", "Inventory")
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("MEDIA_UPLOAD_TIMEOUT", "30s")
	v.SetDefault("CLOUDINARY_CLOUD_NAME", "")
	v.SetDefault("CLOUDINARY_API_KEY", "")
	v.SetDefault("CLOUDINARY_API_SECRET", "")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
}

// Load reads configuration from the optional CONFIG_FILE and the environment.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppPort:        v.GetString("APP_PORT"),
		AppEnv:         v.GetString("APP_ENV"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		DatabaseDriver: strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseDSN:    v.GetString("DATABASE_DSN"),
		Auth: AuthConfig{
			JWTSecret:      v.GetString("JWT_SECRET"),
			TokenTTL:       v.GetDuration("TOKEN_TTL"),
			CookieSecure:   v.GetBool("COOKIE_SECURE"),
			CookieSameSite: v.GetString("COOKIE_SAME_SITE"),
		},
		Media: MediaConfig{
			Driver:    strings.ToLower(v.GetString("MEDIA_DRIVER")),
			Folder:    v.GetString("MEDIA_FOLDER"),
			UploadDir: v.GetString("UPLOAD_DIR"),
			Timeout:   v.GetDuration("MEDIA_UPLOAD_TIMEOUT"),
			CloudName: v.GetString("CLOUDINARY_CLOUD_NAME"),
			APIKey:    v.GetString("CLOUDINARY_API_KEY"),
			APISecret: v.GetString("CLOUDINARY_API_SECRET"),
		},
		CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		RabbitMQURL: v.GetString("RABBITMQ_URL"),
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
		if c.DatabaseDSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver))
	}
	switch c.Media.Driver {
	case MediaLocal:
	case MediaCloudinary:
		if c.Media.CloudName == "" || c.Media.APIKey == "" || c.Media.APISecret == "" {
			errs = append(errs, errors.New("cloudinary media driver requires CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported MEDIA_DRIVER %q", c.Media.Driver))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
