package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SPOONACULAR_API_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "http://localhost:8080", cfg.BaseURL)
	require.Equal(t, 5*time.Minute, cfg.CacheTTL)
	require.NoError(t, cfg.Validate())
	require.False(t, cfg.HasOAuth())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SPOONACULAR_API_KEY", "key")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "9000", cfg.Port)
	require.Equal(t, 90*time.Second, cfg.CacheTTL)
	require.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestValidate_RequiresAPIKey(t *testing.T) {
	var cfg Config
	require.Error(t, cfg.Validate())
}

func TestHasOAuth(t *testing.T) {
	t.Setenv("SPOONACULAR_API_KEY", "key")
	t.Setenv("OAUTH_CLIENT_ID", "id")
	t.Setenv("OAUTH_CLIENT_SECRET", "secret")
	t.Setenv("OAUTH_AUTH_URL", "https://id.example.com/authorize")
	t.Setenv("OAUTH_TOKEN_URL", "https://id.example.com/token")
	t.Setenv("OAUTH_USERINFO_URL", "https://id.example.com/userinfo")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.HasOAuth())
}
