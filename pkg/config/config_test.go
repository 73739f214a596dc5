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
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 5*time.Minute, cfg.Dashboard.CacheTTL)
	assert.Equal(t, int64(15*1024*1024), cfg.Documents.MaxFileSizeBytes)
	assert.Contains(t, cfg.Documents.AllowedMIMEs, "application/pdf")
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DEADLINE_SWEEP_INTERVAL", "15m")
	t.Setenv("JWT_EXPIRATION", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "https://sgt.example.com, ,https://admin.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.Deadlines.SweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, []string{"https://sgt.example.com", "https://admin.example.com"}, cfg.CORS.AllowedOrigins)
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{Timezone: "Mars/Olympus_Mons"}
	assert.Equal(t, time.UTC, cfg.Location())
}
