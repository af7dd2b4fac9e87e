package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 100, cfg.MaxAnonymousLinks)
	assert.Equal(t, 30, cfg.UnusedLinkDays)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_ANONYMOUS_LINKS", "5")
	t.Setenv("SWEEP_INTERVAL", "15m")
	t.Setenv("ADMIN_EMAILS", "root@example.com, Ops@Example.com ,")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5, cfg.MaxAnonymousLinks)
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
	assert.Equal(t, []string{"root@example.com", "Ops@Example.com"}, cfg.AdminEmails)
	assert.True(t, cfg.IsAdmin("ops@example.com"))
	assert.False(t, cfg.IsAdmin("user@example.com"))
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Empty(t, cfg.Warnings)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("MAX_ANONYMOUS_LINKS", "lots")
	t.Setenv("SWEEP_INTERVAL", "-5m")

	cfg := Load()

	assert.Equal(t, 100, cfg.MaxAnonymousLinks)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Len(t, cfg.Warnings, 2)
}

func TestValidate_JWTSecret(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		secret  string
		wantErr bool
	}{
		{"local default", "local", DefaultJWTSecret, false},
		{"production default", "production", DefaultJWTSecret, true},
		{"production empty", "production", "", true},
		{"production custom", "production", "9f3c-long-random", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{AppEnv: tt.env, JWTSecret: tt.secret}
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}
