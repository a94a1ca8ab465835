package oracle

import (
	"crypto/rand"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/dorucioclea/dlc-stack/config"
	"github.com/dorucioclea/dlc-stack/internal/dlc"
	"github.com/dorucioclea/dlc-stack/internal/signing"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var btcusd = config.AssetPairConfig{Pair: "BTCUSD", Unit: "BTCUSD", Base: 2, NumDigits: 14}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	kp, err := signing.GenerateKeyPair()
	require.NoError(t, err)
	reg, err := NewRegistry([]config.AssetPairConfig{btcusd}, kp)
	require.NoError(t, err)
	return reg
}

func TestRegistry(t *testing.T) {
	reg := newTestRegistry(t)

	o, err := reg.Get(BTCUSD)
	require.NoError(t, err)
	require.Equal(t, dlc.EventDescriptor{Base: 2, Unit: "BTCUSD", NumDigits: 14}, o.Descriptor)
	require.Equal(t, []AssetPair{BTCUSD}, reg.Pairs())

	_, err = reg.Get(ETHUSD)
	require.True(t, errors.Is(err, ErrUnrecordedAssetPair))

	kp, err := signing.GenerateKeyPair()
	require.NoError(t, err)
	_, err = NewRegistry([]config.AssetPairConfig{{Pair: "DOGEUSD", Base: 2, NumDigits: 4}}, kp)
	require.True(t, errors.Is(err, ErrUnknownAssetPair))
}

func TestParseAssetPair(t *testing.T) {
	p, err := ParseAssetPair("")
	require.NoError(t, err)
	require.Equal(t, BTCUSD, p)

	p, err = ParseAssetPair("ETHUSD")
	require.NoError(t, err)
	require.Equal(t, ETHUSD, p)

	_, err = ParseAssetPair("btcusd")
	require.True(t, errors.Is(err, ErrUnknownAssetPair))
}

func TestBuildAnnouncement(t *testing.T) {
	o, err := newTestRegistry(t).Get(BTCUSD)
	require.NoError(t, err)

	maturation := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	ann, secrets, err := BuildAnnouncement(o, maturation, "evt-1", rand.Reader)
	require.NoError(t, err)
	require.Len(t, secrets, 14)
	require.Len(t, ann.Event.Nonces, 14)
	require.Equal(t, uint32(maturation.Unix()), ann.Event.Maturation)
	require.Equal(t, o.Pubkey(), ann.OraclePubkey)
	require.NoError(t, VerifyAnnouncement(ann))

	for i := range secrets {
		p, err := signing.NoncePoint(secrets[i])
		require.NoError(t, err)
		require.Equal(t, ann.Event.Nonces[i], p)
	}

	ann.Event.Maturation++
	require.True(t, errors.Is(VerifyAnnouncement(ann), ErrInvalidSignature))
}

func TestBuildAnnouncementRejectsMaturationOutsideEpochField(t *testing.T) {
	o, err := newTestRegistry(t).Get(BTCUSD)
	require.NoError(t, err)

	_, _, err = BuildAnnouncement(o, time.Date(1969, 1, 1, 0, 0, 0, 0, time.UTC), "evt-1", rand.Reader)
	require.True(t, errors.Is(err, ErrInvalidMaturation))
	_, _, err = BuildAnnouncement(o, time.Date(2107, 1, 1, 0, 0, 0, 0, time.UTC), "evt-1", rand.Reader)
	require.True(t, errors.Is(err, ErrInvalidMaturation))
}

func TestAttestationIsBoundToAnnouncement(t *testing.T) {
	o, err := newTestRegistry(t).Get(BTCUSD)
	require.NoError(t, err)

	ann, secrets, err := BuildAnnouncement(o, time.Now().Add(time.Hour), "evt-1", rand.Reader)
	require.NoError(t, err)
	digits, err := dlc.DecomposeOutcome(5, 2, 14)
	require.NoError(t, err)

	att, err := BuildAttestation(o, "evt-1", secrets, digits)
	require.NoError(t, err)
	require.NoError(t, VerifyAttestation(ann, att))

	for i, sig := range att.Signatures {
		require.Equal(t, ann.Event.Nonces[i], signing.SignatureNonce(sig))
		require.True(t, signing.Verify(ann.OraclePubkey, sha256.Sum256([]byte(digits[i])), sig))
	}

	// flipping one digit invalidates exactly that digit
	att.Outcomes[13] = "0"
	valid, err := DigitValidity(ann, att)
	require.NoError(t, err)
	for i, ok := range valid {
		require.Equal(t, i != 13, ok, "digit %d", i)
	}
	require.True(t, errors.Is(VerifyAttestation(ann, att), ErrInvalidSignature))
}

func TestBuildAttestationRejectsLengthMismatch(t *testing.T) {
	o, err := newTestRegistry(t).Get(BTCUSD)
	require.NoError(t, err)
	secrets, _, err := signing.GenerateNonces(rand.Reader, 3)
	require.NoError(t, err)

	_, err = BuildAttestation(o, "evt-1", secrets, []string{"0", "1"})
	require.Error(t, err)
}

func TestDigitValidityRejectsForeignKey(t *testing.T) {
	o, err := newTestRegistry(t).Get(BTCUSD)
	require.NoError(t, err)
	other, err := newTestRegistry(t).Get(BTCUSD)
	require.NoError(t, err)

	ann, secrets, err := BuildAnnouncement(o, time.Now().Add(time.Hour), "evt-1", rand.Reader)
	require.NoError(t, err)
	digits, err := dlc.DecomposeOutcome(1, 2, 14)
	require.NoError(t, err)
	att, err := BuildAttestation(other, "evt-1", secrets, digits)
	require.NoError(t, err)

	_, err = DigitValidity(ann, att)
	require.True(t, errors.Is(err, ErrKeyMismatch))
}
