// Package signing implements the BIP-340 Schnorr primitives the oracle signs
// with: the long-term keypair, standard signing, signing with a caller pinned
// nonce and the nonce commitment generator.
package signing

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/pkg/errors"
)

// ErrInvalidSecret is returned for secrets that are not a valid scalar.
var ErrInvalidSecret = errors.New("invalid secret key")

// KeyPair is the oracle's long-term signing key.
type KeyPair struct {
	priv *btcec.PrivateKey
}

// GenerateKeyPair creates a fresh random keypair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate private key")
	}
	return &KeyPair{priv: priv}, nil
}

// NewKeyPair builds a keypair from a 32-byte big-endian secret.
func NewKeyPair(secret []byte) (*KeyPair, error) {
	if len(secret) != 32 {
		return nil, errors.Wrapf(ErrInvalidSecret, "expected 32 bytes, got %d", len(secret))
	}
	var k btcec.ModNScalar
	if overflow := k.SetByteSlice(secret); overflow || k.IsZero() {
		return nil, errors.Wrap(ErrInvalidSecret, "scalar out of range")
	}
	priv, _ := btcec.PrivKeyFromBytes(secret)
	return &KeyPair{priv: priv}, nil
}

// ParseKeyPairHex builds a keypair from a hex encoded secret.
func ParseKeyPairHex(s string) (*KeyPair, error) {
	secret, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSecret, err.Error())
	}
	return NewKeyPair(secret)
}

// SecretHex returns the hex encoded secret for persistence.
func (k *KeyPair) SecretHex() string {
	return hex.EncodeToString(k.priv.Serialize())
}

// XOnlyPubkey returns the BIP-340 public key.
func (k *KeyPair) XOnlyPubkey() [32]byte {
	var out [32]byte
	copy(out[:], schnorr.SerializePubKey(k.priv.PubKey()))
	return out
}

// PubkeyHex returns the hex encoded x-only public key.
func (k *KeyPair) PubkeyHex() string {
	pub := k.XOnlyPubkey()
	return hex.EncodeToString(pub[:])
}

// Zero wipes the secret from memory.
func (k *KeyPair) Zero() {
	k.priv.Zero()
}
