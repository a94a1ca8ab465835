package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// StoreBackend selects the event record store implementation.
type StoreBackend string

// Supported store backends
const (
	BackendLocal      StoreBackend = "local"
	BackendRedis      StoreBackend = "redis"
	BackendStorageAPI StoreBackend = "storage_api"
)

// Key sources
const (
	KeySourceFile  = "file"
	KeySourceVault = "vault"
)

// Config holds all application configuration
type Config struct {
	Environment string            `mapstructure:"environment" validate:"required"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Store       StoreConfig       `mapstructure:"store"`
	Keys        KeysConfig        `mapstructure:"keys"`
	Oracle      OracleConfig      `mapstructure:"oracle"`
	AssetPairs  []AssetPairConfig `mapstructure:"asset_pairs" validate:"required,min=1,dive"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	Worker      WorkerConfig      `mapstructure:"worker"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address string        `mapstructure:"address" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout"`
	// APIKeys guard the mutating routes when non-empty.
	APIKeys []string `mapstructure:"api_keys"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// StoreConfig holds event store configuration
type StoreConfig struct {
	Backend    StoreBackend     `mapstructure:"backend" validate:"oneof=local redis storage_api"`
	OpTimeout  time.Duration    `mapstructure:"op_timeout" validate:"gt=0s"`
	Local      LocalStoreConfig `mapstructure:"local"`
	Redis      RedisConfig      `mapstructure:"redis"`
	StorageAPI StorageAPIConfig `mapstructure:"storage_api"`
}

// LocalStoreConfig holds the embedded bbolt store configuration
type LocalStoreConfig struct {
	Path        string        `mapstructure:"path"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addrs       []string      `mapstructure:"addrs"`
	Password    string        `mapstructure:"password"`
	Cluster     bool          `mapstructure:"cluster"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// StorageAPIConfig holds the remote storage service configuration
type StorageAPIConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	RetryMax int           `mapstructure:"retry_max" validate:"min=0"`
}

// KeysConfig selects where the oracle secret key lives
type KeysConfig struct {
	Source string      `mapstructure:"source" validate:"oneof=file vault"`
	File   string      `mapstructure:"file"`
	Vault  VaultConfig `mapstructure:"vault"`
}

// VaultConfig holds Vault KV v2 configuration. Address and token fall back to
// VAULT_ADDR and VAULT_TOKEN when empty.
type VaultConfig struct {
	Address string `mapstructure:"address"`
	Token   string `mapstructure:"token"`
	Mount   string `mapstructure:"mount"`
	Path    string `mapstructure:"path"`
}

// OracleConfig holds protocol settings
type OracleConfig struct {
	AnnouncementOffset    time.Duration `mapstructure:"announcement_offset" validate:"gt=0s"`
	DropNoncesAfterAttest bool          `mapstructure:"drop_nonces_after_attest"`
}

// AssetPairConfig describes one attestable asset pair
type AssetPairConfig struct {
	Pair      string `mapstructure:"pair" validate:"required"`
	Unit      string `mapstructure:"unit" validate:"required"`
	Base      uint16 `mapstructure:"base" validate:"min=2,max=10"`
	IsSigned  bool   `mapstructure:"is_signed"`
	Precision int32  `mapstructure:"precision"`
	NumDigits uint16 `mapstructure:"num_digits" validate:"min=1"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	LicenseKey     string `mapstructure:"license_key"`
	AppName        string `mapstructure:"app_name"`
	LogEnabled     bool   `mapstructure:"log_enabled"`
	DistribTracing bool   `mapstructure:"distributed_tracing_enabled"`
}

// WorkerConfig holds maturity watcher configuration
type WorkerConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gt=0s"`
	Grace    time.Duration `mapstructure:"grace" validate:"min=0s"`
}

var validate = validator.New()

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AddConfigPath(path)
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
		// Defaults and ORACLE_* variables are enough to run.
	}

	v.SetEnvPrefix("ORACLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks field constraints and the rules that span sections.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	switch c.Store.Backend {
	case BackendRedis:
		if len(c.Store.Redis.Addrs) == 0 {
			return errors.New("invalid configuration: store.redis.addrs is empty")
		}
	case BackendStorageAPI:
		if c.Store.StorageAPI.Endpoint == "" {
			return errors.New("invalid configuration: store.storage_api.endpoint is empty")
		}
	case BackendLocal:
		if c.Store.Local.Path == "" {
			return errors.New("invalid configuration: store.local.path is empty")
		}
	}

	// Events of every pair share one store and are told apart by unit.
	seen := make(map[string]bool, len(c.AssetPairs))
	units := make(map[string]string, len(c.AssetPairs))
	for _, p := range c.AssetPairs {
		if seen[p.Pair] {
			return errors.Errorf("invalid configuration: asset pair %s listed twice", p.Pair)
		}
		seen[p.Pair] = true
		if other, ok := units[p.Unit]; ok {
			return errors.Errorf("invalid configuration: asset pairs %s and %s share unit %s", other, p.Pair, p.Unit)
		}
		units[p.Unit] = p.Pair
		if p.IsSigned {
			return errors.Errorf("invalid configuration: asset pair %s: signed outcomes are not supported", p.Pair)
		}
	}

	return nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("server.address", "0.0.0.0:8080")
	v.SetDefault("server.timeout", "30s")
	v.SetDefault("server.api_keys", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("store.backend", string(BackendLocal))
	v.SetDefault("store.op_timeout", "5s")
	v.SetDefault("store.local.path", "events.db")
	v.SetDefault("store.local.open_timeout", "1s")
	v.SetDefault("store.redis.addrs", []string{"127.0.0.1:6379"})
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.cluster", true)
	v.SetDefault("store.redis.key_prefix", "oracle:event:")
	v.SetDefault("store.redis.dial_timeout", "5s")
	v.SetDefault("store.storage_api.endpoint", "http://localhost:8100")
	v.SetDefault("store.storage_api.timeout", "10s")
	v.SetDefault("store.storage_api.retry_max", 3)

	v.SetDefault("keys.source", KeySourceFile)
	v.SetDefault("keys.file", "config/secret.key")
	v.SetDefault("keys.vault.mount", "secret")
	v.SetDefault("keys.vault.path", "")

	v.SetDefault("oracle.announcement_offset", "24h")
	v.SetDefault("oracle.drop_nonces_after_attest", true)

	v.SetDefault("asset_pairs", []map[string]interface{}{
		{
			"pair":       "BTCUSD",
			"unit":       "BTCUSD",
			"base":       2,
			"is_signed":  false,
			"precision":  0,
			"num_digits": 14,
		},
	})

	v.SetDefault("tracing.app_name", "DLC Oracle")
	v.SetDefault("tracing.log_enabled", true)
	v.SetDefault("tracing.distributed_tracing_enabled", true)

	v.SetDefault("worker.interval", "5m")
	v.SetDefault("worker.grace", "1h")
}
