package dlc

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func sampleAnnouncement() *Announcement {
	a := &Announcement{
		Event: OracleEvent{
			Nonces:     make([][32]byte, 3),
			Maturation: 1700000000,
			Descriptor: EventDescriptor{Base: 2, Unit: "BTCUSD", NumDigits: 3},
			EventID:    "btcusd1700000000",
		},
	}
	for i := range a.Event.Nonces {
		a.Event.Nonces[i][0] = byte(i + 1)
	}
	a.Signature[63] = 0xAA
	a.OraclePubkey[0] = 0x02
	return a
}

func TestAnnouncementEncodings(t *testing.T) {
	a := sampleAnnouncement()

	wire, err := a.Encode()
	require.NoError(t, err)
	decoded, err := DecodeAnnouncement(wire)
	require.NoError(t, err)
	require.Equal(t, a, decoded)

	display, err := a.EncodeTLV()
	require.NoError(t, err)
	require.NotEqual(t, wire, display)
	require.Equal(t, []byte{0xfd, 0xd8, 0x24}, display[:3], "announcement TLV type 55332")

	decoded, err = DecodeAnnouncementTLV(display)
	require.NoError(t, err)
	require.Equal(t, a, decoded)
}

func TestAnnouncementSignedBodyIsEventEncoding(t *testing.T) {
	a := sampleAnnouncement()
	event, err := a.Event.Encode()
	require.NoError(t, err)
	wire, err := a.Encode()
	require.NoError(t, err)
	require.True(t, bytes.HasSuffix(wire, event))
}

func TestAttestationEncodings(t *testing.T) {
	a := &Attestation{
		EventID:    "btcusd1700000000",
		Signatures: make([][64]byte, 2),
		Outcomes:   []string{"0", "1"},
	}
	a.Signatures[1][5] = 9

	wire, err := a.Encode()
	require.NoError(t, err)
	decoded, err := DecodeAttestation(wire)
	require.NoError(t, err)
	require.Equal(t, a, decoded)

	display, err := a.EncodeTLV()
	require.NoError(t, err)
	decoded, err = DecodeAttestationTLV(display)
	require.NoError(t, err)
	require.Equal(t, a, decoded)

	_, err = DecodeAttestationTLV(wire)
	require.True(t, errors.Is(err, ErrMalformed))
}

func TestDecodeRejectsTruncatedAndTrailingBytes(t *testing.T) {
	wire, err := sampleAnnouncement().Encode()
	require.NoError(t, err)

	_, err = DecodeAnnouncement(wire[:len(wire)-1])
	require.True(t, errors.Is(err, ErrMalformed))

	_, err = DecodeAnnouncement(append(append([]byte{}, wire...), 0))
	require.True(t, errors.Is(err, ErrMalformed))
}
