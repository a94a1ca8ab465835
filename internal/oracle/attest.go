package oracle

import (
	"crypto/sha256"

	"github.com/dorucioclea/dlc-stack/internal/dlc"
	"github.com/dorucioclea/dlc-stack/internal/signing"
	"github.com/pkg/errors"
)

// BuildAttestation signs sha256(outcomes[i]) with the nonce pinned to
// secrets[i] for every digit.
func BuildAttestation(o *Oracle, eventID string, secrets [][32]byte, outcomes []string) (*dlc.Attestation, error) {
	if len(secrets) != len(outcomes) {
		return nil, errors.Errorf("%d nonces for %d outcome digits", len(secrets), len(outcomes))
	}

	sigs := make([][64]byte, len(outcomes))
	for i, digit := range outcomes {
		sig, err := signing.SignWithNonce(o.keys, secrets[i], sha256.Sum256([]byte(digit)))
		if err != nil {
			return nil, errors.Wrapf(err, "sign digit %d", i)
		}
		sigs[i] = sig
	}

	return &dlc.Attestation{
		EventID:      eventID,
		OraclePubkey: o.Pubkey(),
		Signatures:   sigs,
		Outcomes:     append([]string(nil), outcomes...),
	}, nil
}
