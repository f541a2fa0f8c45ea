package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.RateWindow)
	assert.Equal(t, 10, cfg.MaxOffers)
	assert.Equal(t, 50, cfg.MaxICECandidates)
	assert.Equal(t, 10*time.Minute, cfg.RoomIdleTimeout)
	assert.Equal(t, 45*time.Second, cfg.ReaperInterval)
	require.NoError(t, cfg.Validate())
}

func TestEnvDurationForms(t *testing.T) {
	t.Setenv("ROOM_IDLE_TIMEOUT", "300")
	t.Setenv("REAPER_INTERVAL", "1m30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.RoomIdleTimeout)
	assert.Equal(t, 90*time.Second, cfg.ReaperInterval)
}

func TestValidateRejectsBadWindow(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.RateWindow = 0
	assert.Error(t, cfg.Validate())
}

func TestDatabaseURLEscapesPassword(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.DB.Password = "p@ss word"
	assert.Contains(t, cfg.DatabaseURL(), "p%40ss+word")
}
