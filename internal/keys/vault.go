package keys

import (
	"context"
	"os"

	"github.com/dorucioclea/dlc-stack/config"
	"github.com/dorucioclea/dlc-stack/internal/signing"
	vault "github.com/hashicorp/vault/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// secretField is the KV field holding the hex secret.
const secretField = "privateKeyValue"

// kvStore is the part of vault.KVv2 the provider uses.
type kvStore interface {
	Get(ctx context.Context, secretPath string) (*vault.KVSecret, error)
	Put(ctx context.Context, secretPath string, data map[string]interface{}, opts ...vault.KVOption) (*vault.KVSecret, error)
}

// VaultProvider keeps the secret in a Vault KV v2 mount.
type VaultProvider struct {
	kv   kvStore
	path string
}

// NewVaultProvider connects to Vault. The secret path defaults to
// oracle/<hostname>.
func NewVaultProvider(cfg config.VaultConfig) (*VaultProvider, error) {
	vcfg := vault.DefaultConfig()
	if vcfg.Error != nil {
		return nil, errors.Wrap(vcfg.Error, "failed to read Vault environment")
	}
	if cfg.Address != "" {
		vcfg.Address = cfg.Address
	}
	client, err := vault.NewClient(vcfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Vault client")
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	path := cfg.Path
	if path == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve hostname for Vault path")
		}
		path = "oracle/" + host
	}
	return &VaultProvider{kv: client.KVv2(cfg.Mount), path: path}, nil
}

// GetOrGenerateKeypair reads the secret, storing a fresh one when Vault has
// none at the path.
func (p *VaultProvider) GetOrGenerateKeypair(ctx context.Context) (*signing.KeyPair, error) {
	secret, err := p.kv.Get(ctx, p.path)
	switch {
	case err == nil:
		raw, ok := secret.Data[secretField].(string)
		if !ok {
			return nil, errors.Errorf("Vault secret %s has no %s field", p.path, secretField)
		}
		kp, err := signing.ParseKeyPairHex(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "Vault secret %s", p.path)
		}
		return kp, nil
	case errors.Is(err, vault.ErrSecretNotFound):
	default:
		return nil, errors.Wrapf(err, "failed to read Vault secret %s", p.path)
	}

	kp, err := signing.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	if _, err := p.kv.Put(ctx, p.path, map[string]interface{}{secretField: kp.SecretHex()}); err != nil {
		return nil, errors.Wrapf(err, "failed to store Vault secret %s", p.path)
	}

	log.Info().Str("path", p.path).Str("pubkey", kp.PubkeyHex()).Msg("Generated new oracle key in Vault")
	return kp, nil
}
