package signing

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"
)

var (
	// AnnouncementTag domain separates announcement signatures.
	AnnouncementTag = []byte("DLC/oracle/announcement/v0")

	challengeTag = []byte("BIP0340/challenge")
)

// ErrInvalidNonce is returned when a pinned nonce is not a valid scalar.
var ErrInvalidNonce = errors.New("invalid nonce")

// TaggedHash is the BIP-340 tagged hash sha256(sha256(tag)||sha256(tag)||msgs...).
func TaggedHash(tag []byte, msgs ...[]byte) [32]byte {
	return *chainhash.TaggedHash(tag, msgs...)
}

// Sign produces a standard BIP-340 signature over a 32-byte message hash. The
// nonce is derived deterministically from the key and the message.
func Sign(k *KeyPair, hash [32]byte) ([64]byte, error) {
	var out [64]byte
	sig, err := schnorr.Sign(k.priv, hash[:])
	if err != nil {
		return out, errors.Wrap(err, "schnorr sign")
	}
	copy(out[:], sig.Serialize())
	return out, nil
}

// SignWithNonce produces a BIP-340 signature over msg whose nonce is exactly
// the given secret scalar, so the signature's R equals the x-only point
// previously committed for that scalar. A nonce must never sign two
// different messages: doing so reveals the private key.
func SignWithNonce(k *KeyPair, nonce [32]byte, msg [32]byte) ([64]byte, error) {
	var out [64]byte

	var kn btcec.ModNScalar
	if overflow := kn.SetBytes(&nonce); overflow != 0 || kn.IsZero() {
		return out, errors.Wrap(ErrInvalidNonce, "scalar out of range")
	}
	defer kn.Zero()

	pub := k.priv.PubKey()
	var d btcec.ModNScalar
	d.Set(&k.priv.Key)
	defer d.Zero()
	if pub.SerializeCompressed()[0] == 0x03 {
		d.Negate()
	}

	var r btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&kn, &r)
	r.ToAffine()
	if r.Y.IsOdd() {
		kn.Negate()
	}

	rx := r.X.Bytes()
	e := chainhash.TaggedHash(challengeTag, rx[:], schnorr.SerializePubKey(pub), msg[:])
	var es btcec.ModNScalar
	es.SetBytes((*[32]byte)(e))

	s := new(btcec.ModNScalar).Mul2(&es, &d).Add(&kn)
	sig := schnorr.NewSignature(&r.X, s)
	if !sig.Verify(msg[:], pub) {
		return out, errors.New("pinned nonce signature failed verification")
	}
	copy(out[:], sig.Serialize())
	return out, nil
}

// Verify checks a BIP-340 signature against an x-only public key.
func Verify(pubkey [32]byte, msg [32]byte, sig [64]byte) bool {
	pub, err := schnorr.ParsePubKey(pubkey[:])
	if err != nil {
		return false
	}
	parsed, err := schnorr.ParseSignature(sig[:])
	if err != nil {
		return false
	}
	return parsed.Verify(msg[:], pub)
}

// SignatureNonce returns the x-only nonce point R carried in a signature.
func SignatureNonce(sig [64]byte) [32]byte {
	var r [32]byte
	copy(r[:], sig[:32])
	return r
}
