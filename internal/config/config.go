// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	Port           string `mapstructure:"PORT"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`
	Env            string `mapstructure:"APP_ENV"`

	FeedSessionTTLSeconds int `mapstructure:"FEED_SESSION_TTL_SECONDS"`
	SearchMaxLimit        int `mapstructure:"SEARCH_MAX_LIMIT"`

	WSSendBuffer          int `mapstructure:"WS_SEND_BUFFER"`
	WSRateLimitPerMinute  int `mapstructure:"WS_RATE_LIMIT_PER_MINUTE"`
	WSTicketTTLSeconds    int `mapstructure:"WS_TICKET_TTL_SECONDS"`
	PopularTagsTTLSeconds int `mapstructure:"POPULAR_TAGS_TTL_SECONDS"`

	AssistantBaseURL        string `mapstructure:"ASSISTANT_BASE_URL"`
	AssistantModel          string `mapstructure:"ASSISTANT_MODEL"`
	AssistantTimeoutSeconds int    `mapstructure:"ASSISTANT_TIMEOUT_SECONDS"`

	OTelEnabled  bool   `mapstructure:"OTEL_ENABLED"`
	OTelExporter string `mapstructure:"OTEL_EXPORTER"`
	OTelEndpoint string `mapstructure:"OTEL_ENDPOINT"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		slog.Info("Loaded profile-specific configuration", "file", "config."+env+".yml")
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "inkwell")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("FEATURE_FLAGS", "ai_assistant=on,search_fulltext=on")
	viper.SetDefault("APP_ENV", "development")

	viper.SetDefault("FEED_SESSION_TTL_SECONDS", 1800)
	viper.SetDefault("SEARCH_MAX_LIMIT", 50)

	viper.SetDefault("WS_SEND_BUFFER", 256)
	viper.SetDefault("WS_RATE_LIMIT_PER_MINUTE", 120)
	viper.SetDefault("WS_TICKET_TTL_SECONDS", 60)
	viper.SetDefault("POPULAR_TAGS_TTL_SECONDS", 300)

	viper.SetDefault("ASSISTANT_BASE_URL", "http://localhost:11434")
	viper.SetDefault("ASSISTANT_MODEL", "llama3")
	viper.SetDefault("ASSISTANT_TIMEOUT_SECONDS", 60)

	viper.SetDefault("OTEL_ENABLED", false)
	viper.SetDefault("OTEL_EXPORTER", "stdout")
	viper.SetDefault("OTEL_ENDPOINT", "localhost:4318")
}

func (c *Config) normalize() {
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.OTelExporter = strings.ToLower(strings.TrimSpace(c.OTelExporter))
	c.AssistantBaseURL = strings.TrimRight(strings.TrimSpace(c.AssistantBaseURL), "/")
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.SearchMaxLimit < 0 {
		return errors.New("SEARCH_MAX_LIMIT must not be negative")
	}
	if c.WSSendBuffer < 0 {
		return errors.New("WS_SEND_BUFFER must not be negative")
	}
	switch c.OTelExporter {
	case "", "stdout", "otlp":
	default:
		return fmt.Errorf("OTEL_EXPORTER must be stdout or otlp, got %q", c.OTelExporter)
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.AllowedOrigins == "*" {
			return errors.New("ALLOWED_ORIGINS must not be '*' in production")
		}
	} else if len(c.JWTSecret) < 32 {
		slog.Warn("JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
