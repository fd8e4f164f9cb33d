package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, 3, cfg.Claims.MaxAttempts)
	assert.Equal(t, time.Hour, cfg.Claims.LockoutDuration())
	assert.Equal(t, "0 0 3 * * *", cfg.Claims.CleanupCron)
	assert.Equal(t, 500, cfg.Images.PublicMaxDim)
	assert.Equal(t, 600, cfg.Images.OriginalMaxDim)
	assert.Equal(t, 60, cfg.Images.JPEGQuality)
	assert.Equal(t, int64(10<<20), cfg.Images.MaxUploadBytes())
	assert.Equal(t, "local", cfg.Storage.Mode)
	assert.False(t, cfg.Mirror.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Mirror.TimeoutDuration())
	assert.Equal(t, 5, cfg.RateLimit.ClaimsPerMinute)
	assert.Contains(t, cfg.RateLimit.WhitelistPaths, "/health")
	assert.Equal(t, "cmrithyderabad.edu.in", cfg.Auth.StudentEmailDomain)
	assert.Equal(t, "cmritonline.ac.in", cfg.Auth.FacultyEmailDomain)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CLAIMS_MAXATTEMPTS", "5")
	t.Setenv("CLAIMS_LOCKOUTMINUTES", "15")
	t.Setenv("APP_ENVIRONMENT", "staging")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("GEMINI_API_KEY", "env-gemini")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Claims.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Claims.LockoutDuration())
	assert.Equal(t, "staging", cfg.App.Environment)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "env-gemini", cfg.AI.APIKey)
}

type fakeSecrets map[string]string

func (f fakeSecrets) GetSecretOrEnv(_ context.Context, secretName, _ string) (string, error) {
	if v, ok := f[secretName]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

func TestApplySecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Host = "localhost"
	cfg.Database.Name = "honesta"

	err := ApplySecrets(context.Background(), cfg, fakeSecrets{
		"jwt-signing-key":    "vault-jwt",
		"POSTGRES-MAIN-HOST": "db.internal",
		"gemini-api-key":     "vault-gemini",
		"mirror-url":         "https://blob.example/honesta.json",
	})
	require.NoError(t, err)

	assert.Equal(t, "vault-jwt", cfg.Auth.JWTSecret)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "vault-gemini", cfg.AI.APIKey)
	assert.Equal(t, "https://blob.example/honesta.json", cfg.Mirror.URL)
	// Missing secrets keep what was configured
	assert.Equal(t, "honesta", cfg.Database.Name)
	assert.Empty(t, cfg.Storage.CloudConnectionString)

	t.Setenv("DEFAULT_DATABASE", "honesta_staging")
	require.NoError(t, ApplySecrets(context.Background(), cfg, fakeSecrets{}))
	assert.Equal(t, "honesta_staging", cfg.Database.Name)
}

func TestValidateSecrets(t *testing.T) {
	t.Run("development gets a fallback signing key", func(t *testing.T) {
		cfg := &Config{App: AppConfig{Environment: "development"}}
		require.NoError(t, cfg.validateSecrets())
		assert.NotEmpty(t, cfg.Auth.JWTSecret)
	})

	t.Run("production requires a signing key", func(t *testing.T) {
		cfg := &Config{App: AppConfig{Environment: "production"}}
		assert.Error(t, cfg.validateSecrets())
	})

	t.Run("ai requires an api key", func(t *testing.T) {
		cfg := &Config{App: AppConfig{Environment: "development"}, AI: AIConfig{Enabled: true}}
		assert.Error(t, cfg.validateSecrets())
	})
}

func TestDurations(t *testing.T) {
	server := ServerConfig{ReadTimeout: 30, WriteTimeout: 60, RequestTimeout: 45}
	assert.Equal(t, 30*time.Second, server.ReadTimeoutDuration())
	assert.Equal(t, time.Minute, server.WriteTimeoutDuration())
	assert.Equal(t, 45*time.Second, server.RequestTimeoutDuration())

	claims := ClaimsConfig{LockoutMinutes: 60, AttemptRetentionHours: 24}
	assert.Equal(t, time.Hour, claims.LockoutDuration())
	assert.Equal(t, 24*time.Hour, claims.RetentionDuration())

	ai := AIConfig{TimeoutSeconds: 20}
	assert.Equal(t, 20*time.Second, ai.TimeoutDuration())
}
