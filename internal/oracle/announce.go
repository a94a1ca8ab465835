package oracle

import (
	"io"
	"math"
	"time"

	"github.com/dorucioclea/dlc-stack/internal/dlc"
	"github.com/dorucioclea/dlc-stack/internal/signing"
	"github.com/pkg/errors"
)

// BuildAnnouncement commits to fresh nonces for every digit of the event and
// signs the encoded event. The returned secrets are index aligned with the
// announced nonces and must be kept until attestation.
func BuildAnnouncement(o *Oracle, maturation time.Time, eventID string, rand io.Reader) (*dlc.Announcement, [][32]byte, error) {
	epoch := maturation.Unix()
	if epoch < 0 || epoch > math.MaxUint32 {
		return nil, nil, errors.Wrapf(ErrInvalidMaturation, "%s is outside the u32 epoch range", maturation.Format(time.RFC3339))
	}

	secrets, publics, err := signing.GenerateNonces(rand, int(o.Descriptor.NumDigits))
	if err != nil {
		return nil, nil, err
	}

	event := dlc.OracleEvent{
		Nonces:     publics,
		Maturation: uint32(epoch),
		Descriptor: o.Descriptor,
		EventID:    eventID,
	}
	msg, err := event.Encode()
	if err != nil {
		return nil, nil, errors.Wrap(err, "encode oracle event")
	}

	sig, err := signing.Sign(o.keys, signing.TaggedHash(signing.AnnouncementTag, msg))
	if err != nil {
		return nil, nil, err
	}

	return &dlc.Announcement{
		Signature:    sig,
		OraclePubkey: o.Pubkey(),
		Event:        event,
	}, secrets, nil
}
