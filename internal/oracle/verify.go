package oracle

import (
	"crypto/sha256"

	"github.com/dorucioclea/dlc-stack/internal/dlc"
	"github.com/dorucioclea/dlc-stack/internal/signing"
	"github.com/pkg/errors"
)

// VerifyAnnouncement checks the announcement signature over its event.
func VerifyAnnouncement(a *dlc.Announcement) error {
	msg, err := a.Event.Encode()
	if err != nil {
		return errors.Wrap(err, "encode oracle event")
	}
	if !signing.Verify(a.OraclePubkey, signing.TaggedHash(signing.AnnouncementTag, msg), a.Signature) {
		return errors.Wrap(ErrInvalidSignature, "announcement")
	}
	return nil
}

// DigitValidity reports, per digit, whether the attestation signature uses
// the announced nonce and verifies over the attested digit.
func DigitValidity(a *dlc.Announcement, att *dlc.Attestation) ([]bool, error) {
	if a.OraclePubkey != att.OraclePubkey {
		return nil, ErrKeyMismatch
	}
	if len(att.Signatures) != len(att.Outcomes) || len(att.Signatures) != len(a.Event.Nonces) {
		return nil, errors.Errorf("attestation has %d signatures and %d outcomes for %d nonces",
			len(att.Signatures), len(att.Outcomes), len(a.Event.Nonces))
	}

	valid := make([]bool, len(att.Signatures))
	for i, sig := range att.Signatures {
		valid[i] = signing.SignatureNonce(sig) == a.Event.Nonces[i] &&
			signing.Verify(a.OraclePubkey, sha256.Sum256([]byte(att.Outcomes[i])), sig)
	}
	return valid, nil
}

// VerifyAttestation checks that every digit of att is bound to a.
func VerifyAttestation(a *dlc.Announcement, att *dlc.Attestation) error {
	if att.EventID != a.Event.EventID {
		return errors.Errorf("attestation for %q does not match announcement %q", att.EventID, a.Event.EventID)
	}
	valid, err := DigitValidity(a, att)
	if err != nil {
		return err
	}
	for i, ok := range valid {
		if !ok {
			return errors.Wrapf(ErrInvalidSignature, "digit %d", i)
		}
	}
	return nil
}
