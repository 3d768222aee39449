package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the session gateway.
type ServerConfig struct {
	HTTPPort string `mapstructure:"HTTP_PORT"`

	// Identity provider connection.
	ProviderBaseURL    string `mapstructure:"PROVIDER_BASE_URL"`
	ProviderAPIKey     string `mapstructure:"PROVIDER_API_KEY"`
	ProviderTimeoutSec int    `mapstructure:"PROVIDER_TIMEOUT_SEC"`

	// User directory.
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`

	// Verified-session cache. RedisAddr empty means the in-memory store.
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	RedisPrefix string `mapstructure:"REDIS_PREFIX"`

	// Session cookie.
	CookieName      string `mapstructure:"COOKIE_NAME"`
	SessionTTLHours int    `mapstructure:"SESSION_TTL_HOURS"`

	// DevMode relaxes the Secure cookie flag for plain-HTTP local runs.
	DevMode bool `mapstructure:"DEV_MODE"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

// ProviderTimeout returns the remote call timeout as a duration.
func (c *ServerConfig) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSec) * time.Second
}

// SessionTTL returns the session credential validity window.
func (c *ServerConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// LoadConfig reads configuration from an optional yaml file, environment
// variables, and defaults, in that order of precedence.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/sessiongate/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("PROVIDER_BASE_URL", "http://localhost:9099")
	v.SetDefault("PROVIDER_API_KEY", "")
	v.SetDefault("PROVIDER_TIMEOUT_SEC", 5)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/sessiongate_dev")
	v.SetDefault("MONGO_DB_NAME", "sessiongate_dev")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PREFIX", "sessiongate")
	v.SetDefault("COOKIE_NAME", "app_session")
	v.SetDefault("SESSION_TTL_HOURS", 120) // 5 days
	v.SetDefault("DEV_MODE", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("OTEL_SERVICE_NAME", "sessiongate")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, we run on env vars and defaults.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
