package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("VCFLOW_ADDR", "")
	t.Setenv("PUBLIC_BASE_URL", "")
	t.Setenv("ISSUER_ID", "")
	t.Setenv("DEMO_OFFER_FALLBACK", "")
	t.Setenv("LOG_LEVEL", "")

	cfg := FromEnv()
	assert.Equal(t, ":3001", cfg.Addr)
	assert.Equal(t, "http://localhost:3001", cfg.PublicBaseURL)
	assert.Equal(t, cfg.PublicBaseURL, cfg.IssuerID)
	assert.True(t, cfg.DemoOfferFallback)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("VCFLOW_ADDR", ":9000")
	t.Setenv("PUBLIC_BASE_URL", "https://issuer.example.org/")
	t.Setenv("DEMO_OFFER_FALLBACK", "false")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_READ_TIMEOUT", "250ms")
	t.Setenv("ISSUER_KEY_SEED", "00ff")

	cfg := FromEnv()
	assert.Equal(t, "https://issuer.example.org", cfg.PublicBaseURL)
	assert.False(t, cfg.DemoOfferFallback)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.Redis.ReadTimeout)
	assert.Equal(t, "00ff", cfg.IssuerKeySeed)
}

func TestClientFromEnv(t *testing.T) {
	t.Setenv("VCFLOW_SERVER_URL", "http://dev:3001/")
	t.Setenv("INVITATION_TTL", "30m")
	t.Setenv("ISSUER_ID", "")

	cfg := ClientFromEnv()
	assert.Equal(t, "http://dev:3001", cfg.ServerURL)
	assert.Equal(t, "http://dev:3001", cfg.IssuerID)
	assert.Equal(t, 30*time.Minute, cfg.InvitationTTL)
	assert.Equal(t, "openid-credential-offer", cfg.OfferScheme)
}
