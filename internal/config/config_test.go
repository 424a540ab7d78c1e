package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainops/tronledger/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[tron]
contract = "TContract111111111111111111111111"
api_key = "k"
page_size = 100

[ledger]
trader_filter = "TLsV52sRDL79HXGGm9yzwKibb6BeruhUzy"

[ledger.decimals]
"41a614f803b6fd780986a42c78ec9c7f77e6ded13c" = 18

[database]
dsn = "postgres://u:p@localhost:5432/ledger"

[tail]
interval = "10s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "TContract111111111111111111111111", cfg.Tron.Contract)
	assert.Equal(t, 100, cfg.Tron.PageSize)
	// Untouched fields keep their defaults.
	assert.Equal(t, "https://api.trongrid.io", cfg.Tron.EventsBase)
	assert.Equal(t, int64(1_000_000), cfg.Ledger.PriceScale)
	assert.Equal(t, 18, cfg.Ledger.Decimals["41a614f803b6fd780986a42c78ec9c7f77e6ded13c"])
	assert.Equal(t, 10*time.Second, cfg.Tail.Interval.Duration)

	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[tron]
contract = "TContract111111111111111111111111"
api_key = "from-file"
`)
	t.Setenv("TRONLEDGER_TRON_API_KEY", "from-env")
	t.Setenv("TRONLEDGER_TAIL_INTERVAL", "30s")
	t.Setenv("TRONLEDGER_REDIS_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Tron.ApiKey)
	assert.Equal(t, 30*time.Second, cfg.Tail.Interval.Duration)
	assert.True(t, cfg.Redis.Enabled)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Tron.Contract = "" // required
	cfg.Tron.PageSize = 500
	cfg.Database.Host = ""
	cfg.Database.Database = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingConfig))
	assert.Contains(t, err.Error(), "tron: contract")
	assert.Contains(t, err.Error(), "page_size")
	assert.Contains(t, err.Error(), "database: host")
}

func TestValidate_DefaultsNeedOnlyContract(t *testing.T) {
	cfg := Defaults()
	require.Error(t, cfg.Validate())

	cfg.Tron.Contract = "TContract111111111111111111111111"
	require.NoError(t, cfg.Validate())
}
