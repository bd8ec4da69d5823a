package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "session-secret")
	t.Setenv("CSRF_SECRET", "csrf-secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, "http://localhost:8080/login/google/callback", cfg.OAuthRedirectURL)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.GoogleLoginEnabled())
}

func TestLoadConfigMissingSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigGoogleLogin(t *testing.T) {
	t.Setenv("SESSION_SECRET", "session-secret")
	t.Setenv("CSRF_SECRET", "csrf-secret")
	t.Setenv("GOOGLE_OAUTH_CLIENT_ID", "client-id")
	t.Setenv("GOOGLE_OAUTH_CLIENT_SECRET", "client-secret")
	t.Setenv("APP_BASE_URL", "https://gotrak.example.com")
	t.Setenv("OAUTH_REDIRECT_URL", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.GoogleLoginEnabled())
	assert.Equal(t, "https://gotrak.example.com/login/google/callback", cfg.OAuthRedirectURL)
}

func TestLoadConfigProduction(t *testing.T) {
	t.Setenv("SESSION_SECRET", "session-secret")
	t.Setenv("CSRF_SECRET", "csrf-secret")
	t.Setenv("APP_ENV", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}
