package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.Data.Dir)
	assert.Equal(t, "referrals.xlsx", cfg.Data.RawFile)
	assert.Equal(t, "preferred_providers.xlsx", cfg.Data.PreferredFile)
	assert.Equal(t, time.Hour, cfg.Data.CacheTTL())
	assert.True(t, cfg.Data.IssueWorkbook)
	assert.Equal(t, 5, cfg.Persist.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Persist.RetryStep())
	assert.InDelta(t, 0.5, cfg.Scoring.DistanceWeight, 0.001)
	assert.InDelta(t, 0.3, cfg.Scoring.OutboundWeight, 0.001)
	assert.InDelta(t, 0.8, cfg.Scoring.PreferredWarnFraction, 0.001)
	assert.Equal(t, 10, cfg.Scoring.DefaultLimit)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.InDelta(t, 20.0, cfg.Server.RecommendRPS, 0.001)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/referrals
log:
  level: debug
  format: console
server:
  port: 9090
scoring:
  distance_weight: 0.2
  outbound_weight: 0.8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 0.8, cfg.Scoring.OutboundWeight, 0.001)
	// Defaults still apply for unset values
	assert.Equal(t, 60, cfg.Data.CacheTTLMinutes)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("REFERRAL_STORE_DRIVER", "postgres")
	t.Setenv("REFERRAL_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("REFERRAL_SERVER_PORT", "3000")
	t.Setenv("REFERRAL_DATA_DIR", "/srv/referrals")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "/srv/referrals", cfg.Data.Dir)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Data.Dir = "data"
	cfg.Data.CacheTTLMinutes = 60
	cfg.Persist.MaxAttempts = 5
	cfg.Persist.RetryStepMillis = 200
	cfg.Scoring.DistanceWeight = 0.5
	cfg.Scoring.OutboundWeight = 0.5
	cfg.Scoring.PreferredWarnFraction = 0.8
	cfg.Scoring.DefaultLimit = 10
	cfg.Store.Driver = "sqlite"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_AllModes(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"prepare", "recommend", "validate", "serve", "runs"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidatePrepare_MissingDir(t *testing.T) {
	cfg := validDefaults()
	cfg.Data.Dir = ""

	err := cfg.Validate("prepare")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "data.dir is required")
}

func TestValidatePersistBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Persist.MaxAttempts = 0
	err := cfg.Validate("prepare")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "persist.max_attempts must be between 1 and 20")

	cfg.Persist.MaxAttempts = 21
	assert.Error(t, cfg.Validate("prepare"))

	cfg.Persist.MaxAttempts = 20
	assert.NoError(t, cfg.Validate("prepare"))
}

func TestValidateScoringWeights(t *testing.T) {
	cfg := validDefaults()

	cfg.Scoring.InboundWeight = -0.1
	err := cfg.Validate("recommend")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "scoring weights must be >= 0")

	cfg = validDefaults()
	cfg.Scoring.DistanceWeight = 0
	cfg.Scoring.OutboundWeight = 0
	err = cfg.Validate("recommend")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "at least one scoring weight")

	cfg = validDefaults()
	cfg.Scoring.PreferredWarnFraction = 1.5
	err = cfg.Validate("recommend")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "preferred_warn_fraction")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	cfg = validDefaults()
	cfg.Server.RecommendRPS = -1
	err = cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.recommend_rps")
}

func TestValidateStoreDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("prepare")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")

	cfg.Store.Driver = "postgres"
	assert.NoError(t, cfg.Validate("prepare"))
}
