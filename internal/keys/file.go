package keys

import (
	"context"
	"os"
	"path/filepath"

	"github.com/dorucioclea/dlc-stack/internal/signing"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// FileProvider keeps the hex encoded secret in a local file.
type FileProvider struct {
	path string
}

// NewFileProvider returns a provider backed by path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// GetOrGenerateKeypair reads the secret file, creating it when missing.
func (p *FileProvider) GetOrGenerateKeypair(ctx context.Context) (*signing.KeyPair, error) {
	kp, found, err := p.read()
	if err != nil || found {
		return kp, err
	}

	kp, err = signing.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return p.create(kp)
}

func (p *FileProvider) read() (*signing.KeyPair, bool, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to read secret key file %s", p.path)
	}
	kp, err := signing.ParseKeyPairHex(string(data))
	if err != nil {
		return nil, false, errors.Wrapf(err, "secret key file %s", p.path)
	}
	return kp, true, nil
}

// create publishes kp at p.path by linking a fully written temp file. When
// another process got there first its key is returned instead.
func (p *FileProvider) create(kp *signing.KeyPair) (*signing.KeyPair, error) {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "failed to create secret key directory")
	}

	tmp, err := os.CreateTemp(dir, ".secret-*.tmp")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temporary secret key file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(kp.SecretHex()); err != nil {
		tmp.Close()
		return nil, errors.Wrapf(err, "failed to write secret key file %s", p.path)
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.Wrapf(err, "failed to write secret key file %s", p.path)
	}

	if err := os.Link(tmp.Name(), p.path); err != nil {
		if !os.IsExist(err) {
			return nil, errors.Wrapf(err, "failed to create secret key file %s", p.path)
		}
		existing, found, err := p.read()
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, errors.Errorf("secret key file %s vanished after creation", p.path)
		}
		log.Info().Str("path", p.path).Str("pubkey", existing.PubkeyHex()).Msg("Using oracle key created concurrently")
		return existing, nil
	}

	log.Info().Str("path", p.path).Str("pubkey", kp.PubkeyHex()).Msg("Generated new oracle key")
	return kp, nil
}
