package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_123")
	t.Setenv("FRONTEND_URL", "https://ositoslua.cl/")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "https://ositoslua.cl", cfg.FrontendURL)
	assert.Equal(t, []string{"https://ositoslua.cl"}, cfg.CORSOrigins)
	assert.Equal(t, "ositoslua", cfg.DBName)
	assert.Equal(t, "clp", cfg.Currency)
	assert.Equal(t, 60*time.Minute, cfg.PendingOrderTTL)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.True(t, cfg.IsDevelopment())
}

func TestFromEnvReportsAllMissingKeys(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STRIPE_WEBHOOK_SECRET", " ")

	_, err := FromEnv()
	var missing *MissingEnvError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"JWT_SECRET", "STRIPE_WEBHOOK_SECRET"}, missing.Keys)
}

func TestFromEnvRejectsBadSMTPPort(t *testing.T) {
	setRequired(t)
	t.Setenv("SMTP_PORT", "70000")

	_, err := FromEnv()
	require.Error(t, err)
}

func TestFromEnvRejectsRelativeFrontendURL(t *testing.T) {
	setRequired(t)
	t.Setenv("FRONTEND_URL", "ositoslua.cl")

	_, err := FromEnv()
	require.Error(t, err)
}

func TestGetListEnvTrimsEntries(t *testing.T) {
	t.Setenv("CORS_ORIGINS", " https://a.cl/ , ,https://b.cl")
	assert.Equal(t, []string{"https://a.cl", "https://b.cl"}, getListEnv("CORS_ORIGINS", nil))
}
