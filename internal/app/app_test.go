package app

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORAGE_TIMEOUT", "2s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 2*time.Second, cfg.StorageTimeout)
	assert.Equal(t, 10*time.Minute, cfg.ReportCacheTTL)
	assert.Equal(t, "0 2 * * *", cfg.ChainVerifyCron)

	opts := cfg.RedisOptions().AsynqOpt()
	assert.Equal(t, cfg.RedisAddr, opts.Addr)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MINUTE", "-1")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "RATE_LIMIT_PER_MINUTE")

	cfg := &Config{PGDSN: "postgres://x", StorageTimeout: 0}
	require.ErrorContains(t, cfg.Validate(), "STORAGE_TIMEOUT")

	var nilCfg *Config
	assert.False(t, nilCfg.IsProduction())
}

func TestJSONLoggerCarriesEnv(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", AppEnv: "staging"}, &buf)
	logger.Info("posted", "tenant_id", 7)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "staging", line["env"])
	assert.Equal(t, "posted", line["msg"])
	assert.EqualValues(t, 7, line["tenant_id"])
	assert.Contains(t, line, "source")
}

func TestTestModeFollowsEnvironment(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	assert.False(t, InTestMode())
}
