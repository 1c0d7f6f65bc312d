package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "megaeth", cfg.ChainID)
	assert.Equal(t, "https://api.dexscreener.com", cfg.DexScreenerBaseURL)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 1000.0, cfg.MinVolumeUSD)
	assert.Equal(t, 500.0, cfg.MinLiquidityUSD)
	assert.Equal(t, 10.0, cfg.PriceChangeThreshold)
	assert.Equal(t, time.Hour, cfg.NewPairMaxAge)
	assert.Equal(t, time.Hour, cfg.AlertCooldown)
	assert.Equal(t, 2.0, cfg.VolumeSpikeRatio)
	assert.Equal(t, 1, cfg.MaxAlertsPerToken)
	assert.Equal(t, 5*time.Minute, cfg.PortalInviteExpiry)
	assert.Equal(t, 1, cfg.PortalMaxUses)
	assert.Equal(t, time.Minute, cfg.PortalSweepInterval)
	assert.Equal(t, "vigil.db", cfg.DatabasePath)
	assert.False(t, cfg.UsePostgres())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("POLL_INTERVAL", "10")
	t.Setenv("PRICE_CHANGE_THRESHOLD", "25.5")
	t.Setenv("PORTAL_INVITE_EXPIRY_MINUTES", "15")
	t.Setenv("POSTGRES_HOST", "db.internal")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 25.5, cfg.PriceChangeThreshold)
	assert.Equal(t, 15*time.Minute, cfg.PortalInviteExpiry)
	assert.True(t, cfg.UsePostgres())
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_BOT_TOKEN")

	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("VOLUME_SPIKE_RATIO", "0.5")
	_, err = LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VOLUME_SPIKE_RATIO")

	t.Setenv("VOLUME_SPIKE_RATIO", "2.0")
	t.Setenv("MAX_ALERTS_PER_TOKEN", "0")
	_, err = LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_ALERTS_PER_TOKEN")

	t.Setenv("MAX_ALERTS_PER_TOKEN", "1")
	t.Setenv("DATABASE_PATH", "")
	_, err = LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_PATH")
}
