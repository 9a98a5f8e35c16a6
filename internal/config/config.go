// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	Port    string `env:"PORT" envDefault:"8080"`
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	SpoonacularAPIKey  string        `env:"SPOONACULAR_API_KEY"`
	SpoonacularBaseURL string        `env:"SPOONACULAR_BASE_URL"`
	CacheTTL           time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisAddr   string `env:"REDIS_ADDR"`

	SessionSecret string `env:"SESSION_SECRET" envDefault:"dev-only-secret"`

	OAuth OAuthConfig `envPrefix:"OAUTH_"`
}

// OAuthConfig holds the hosted identity provider settings
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	AuthURL      string `env:"AUTH_URL"`
	TokenURL     string `env:"TOKEN_URL"`
	UserInfoURL  string `env:"USERINFO_URL"`
}

// Load reads configuration from environment variables
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// HasOAuth returns true if the hosted identity provider is fully configured
func (c Config) HasOAuth() bool {
	o := c.OAuth
	return o.ClientID != "" && o.ClientSecret != "" && o.AuthURL != "" && o.TokenURL != "" && o.UserInfoURL != ""
}

// Validate ensures the configuration can serve recipe traffic
func (c Config) Validate() error {
	if c.SpoonacularAPIKey == "" {
		return errors.New("SPOONACULAR_API_KEY is required")
	}
	return nil
}
