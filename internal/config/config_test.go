package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:            "production",
		DBSSLMode:      "require",
		JWTSecret:      "secure-secret-at-least-32-chars-long",
		DBPassword:     "secure-password",
		Port:           "8080",
		RedisURL:       "redis://localhost:6379",
		AllowedOrigins: "https://inkwell.example",
		OTelExporter:   "otlp",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"valid production", func(c *Config) {}, false},
		{"production with disable SSL mode", func(c *Config) { c.DBSSLMode = "disable" }, true},
		{"prod with empty SSL mode", func(c *Config) { c.Env = "prod"; c.DBSSLMode = "" }, true},
		{"production with default secret", func(c *Config) { c.JWTSecret = defaultJWTSecret }, true},
		{"production with short secret", func(c *Config) { c.JWTSecret = "short" }, true},
		{"production with weak db password", func(c *Config) { c.DBPassword = "password" }, true},
		{"production with wildcard cors", func(c *Config) { c.AllowedOrigins = "*" }, true},
		{"development allows defaults", func(c *Config) {
			c.Env = "development"
			c.DBSSLMode = "disable"
			c.JWTSecret = "short"
			c.AllowedOrigins = "*"
		}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"unknown exporter", func(c *Config) { c.OTelExporter = "zipkin" }, true},
		{"negative search limit", func(c *Config) { c.SearchMaxLimit = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_EnvOverridesAndNormalization(t *testing.T) {
	t.Cleanup(viper.Reset)

	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("ASSISTANT_BASE_URL", "http://ollama:11434/")
	t.Setenv("SEARCH_MAX_LIMIT", "25")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "http://ollama:11434", c.AssistantBaseURL)
	assert.Equal(t, 25, c.SearchMaxLimit)
	assert.Equal(t, 256, c.WSSendBuffer)
	assert.False(t, c.IsProduction())
}
