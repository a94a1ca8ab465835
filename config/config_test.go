package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, BackendLocal, cfg.Store.Backend)
	require.Equal(t, 24*time.Hour, cfg.Oracle.AnnouncementOffset)
	require.True(t, cfg.Oracle.DropNoncesAfterAttest)
	require.Len(t, cfg.AssetPairs, 1)
	require.Equal(t, AssetPairConfig{Pair: "BTCUSD", Unit: "BTCUSD", Base: 2, NumDigits: 14}, cfg.AssetPairs[0])
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
store:
  backend: storage_api
  storage_api:
    endpoint: http://storage:8100
asset_pairs:
  - pair: BTCUSD
    unit: BTCUSD
    base: 2
    num_digits: 20
  - pair: ETHUSD
    unit: ETHUSD
    base: 2
    num_digits: 16
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("ORACLE_ORACLE_ANNOUNCEMENT_OFFSET", "2h")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, BackendStorageAPI, cfg.Store.Backend)
	require.Equal(t, "http://storage:8100", cfg.Store.StorageAPI.Endpoint)
	require.Equal(t, 2*time.Hour, cfg.Oracle.AnnouncementOffset)
	require.Len(t, cfg.AssetPairs, 2)
	require.Equal(t, uint16(16), cfg.AssetPairs[1].NumDigits)
}

func sharedUnitPair(p AssetPairConfig) AssetPairConfig {
	p.Pair = "ETHUSD"
	return p
}

func TestValidateRejects(t *testing.T) {
	base, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	cases := map[string]func(c *Config){
		"non-positive announcement offset": func(c *Config) { c.Oracle.AnnouncementOffset = 0 },
		"unknown backend":                  func(c *Config) { c.Store.Backend = "sled" },
		"redis without addresses":          func(c *Config) { c.Store.Backend = BackendRedis; c.Store.Redis.Addrs = nil },
		"duplicate asset pair":             func(c *Config) { c.AssetPairs = append(c.AssetPairs, c.AssetPairs[0]) },
		"signed descriptor":                func(c *Config) { c.AssetPairs[0].IsSigned = true },
		"base out of range":                func(c *Config) { c.AssetPairs[0].Base = 16 },
		"no asset pairs":                   func(c *Config) { c.AssetPairs = nil },
		"shared unit":                      func(c *Config) { c.AssetPairs = append(c.AssetPairs, sharedUnitPair(c.AssetPairs[0])) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			c.AssetPairs = append([]AssetPairConfig(nil), base.AssetPairs...)
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}
