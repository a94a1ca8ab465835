package cmd

import (
	"context"
	"os"

	"github.com/dorucioclea/dlc-stack/config"
	"github.com/dorucioclea/dlc-stack/internal/keys"
	"github.com/dorucioclea/dlc-stack/internal/metrics"
	"github.com/dorucioclea/dlc-stack/internal/oracle"
	"github.com/dorucioclea/dlc-stack/internal/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// application holds what every command builds from config
type application struct {
	store   store.EventStore
	service *oracle.Service
	metrics *metrics.Metrics
}

func (r *application) Close() {
	if r.store == nil {
		return
	}
	if err := r.store.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close event store")
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.Config{}, err
	}
	configureLogging(cfg)
	return cfg, nil
}

func configureLogging(cfg config.Config) {
	if cfg.Logging.Format == "console" || cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if os.Getenv("LOG_LEVEL") != "" {
		return
	}
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
}

func loadKeys(ctx context.Context, cfg config.Config) (*oracle.Registry, error) {
	provider, err := keys.NewProvider(cfg.Keys)
	if err != nil {
		return nil, err
	}
	kp, err := provider.GetOrGenerateKeypair(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load oracle key")
	}
	return oracle.NewRegistry(cfg.AssetPairs, kp)
}

// bootstrap opens the key, the event store and the service.
func bootstrap(ctx context.Context, cfg config.Config) (*application, error) {
	registry, err := loadKeys(ctx, cfg)
	if err != nil {
		return nil, err
	}

	eventStore, err := store.Open(cfg.Store)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open event store")
	}

	m := metrics.NewMetrics()
	svc, err := oracle.NewService(registry, eventStore, m, cfg.Oracle)
	if err != nil {
		eventStore.Close()
		return nil, err
	}

	log.Info().
		Str("pubkey", registry.PubkeyHex()).
		Str("store", string(cfg.Store.Backend)).
		Msg("Oracle initialised")

	return &application{
		store:   eventStore,
		service: svc,
		metrics: m,
	}, nil
}
