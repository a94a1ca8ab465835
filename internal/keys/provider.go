// Package keys loads the oracle's long-term secret key, generating and
// persisting one on first start.
package keys

import (
	"context"

	"github.com/dorucioclea/dlc-stack/config"
	"github.com/dorucioclea/dlc-stack/internal/signing"
	"github.com/pkg/errors"
)

// Provider yields the oracle keypair.
type Provider interface {
	GetOrGenerateKeypair(ctx context.Context) (*signing.KeyPair, error)
}

// NewProvider builds the provider selected by cfg.Source.
func NewProvider(cfg config.KeysConfig) (Provider, error) {
	switch cfg.Source {
	case config.KeySourceFile:
		return NewFileProvider(cfg.File), nil
	case config.KeySourceVault:
		return NewVaultProvider(cfg.Vault)
	default:
		return nil, errors.Errorf("unknown key source %q", cfg.Source)
	}
}
