package signing

import (
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pkg/errors"
)

// maxDraws bounds rejection sampling. A uniform 32-byte draw falls outside
// the scalar range with probability below 2^-127.
const maxDraws = 64

// GenerateNonces draws n independent secret nonces from rand and returns them
// with their x-only public points, index aligned.
func GenerateNonces(rand io.Reader, n int) (secrets [][32]byte, publics [][32]byte, err error) {
	if n <= 0 {
		return nil, nil, errors.Errorf("nonce count must be positive, got %d", n)
	}
	secrets = make([][32]byte, n)
	publics = make([][32]byte, n)
	for i := 0; i < n; i++ {
		if err := drawNonce(rand, &secrets[i]); err != nil {
			return nil, nil, err
		}
		publics[i], err = NoncePoint(secrets[i])
		if err != nil {
			return nil, nil, err
		}
	}
	return secrets, publics, nil
}

func drawNonce(rand io.Reader, out *[32]byte) error {
	var k secp256k1.ModNScalar
	for i := 0; i < maxDraws; i++ {
		if _, err := io.ReadFull(rand, out[:]); err != nil {
			return errors.Wrap(err, "failed to read nonce entropy")
		}
		if overflow := k.SetBytes(out); overflow == 0 && !k.IsZero() {
			k.Zero()
			return nil
		}
	}
	return errors.New("entropy source keeps producing invalid scalars")
}

// NoncePoint returns the x-only public point of a secret nonce.
func NoncePoint(secret [32]byte) ([32]byte, error) {
	var out [32]byte
	var k secp256k1.ModNScalar
	if overflow := k.SetBytes(&secret); overflow != 0 || k.IsZero() {
		return out, errors.Wrap(ErrInvalidNonce, "scalar out of range")
	}
	defer k.Zero()

	var p secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&k, &p)
	p.ToAffine()
	p.X.PutBytes(&out)
	return out, nil
}
