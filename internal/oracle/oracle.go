// Package oracle builds announcements and attestations for numeric events and
// orchestrates their lifecycle against the event store.
package oracle

import (
	"sort"

	"github.com/dorucioclea/dlc-stack/config"
	"github.com/dorucioclea/dlc-stack/internal/dlc"
	"github.com/dorucioclea/dlc-stack/internal/signing"
	"github.com/pkg/errors"
)

// AssetPair names a price feed the oracle may attest to.
type AssetPair string

// Known asset pairs
const (
	BTCUSD  AssetPair = "BTCUSD"
	BTCUSDT AssetPair = "BTCUSDT"
	ETHUSD  AssetPair = "ETHUSD"
)

// DefaultAssetPair is used when a request names none.
const DefaultAssetPair = BTCUSD

var knownPairs = map[AssetPair]struct{}{
	BTCUSD:  {},
	BTCUSDT: {},
	ETHUSD:  {},
}

// ParseAssetPair maps a request or config string onto a known pair.
func ParseAssetPair(s string) (AssetPair, error) {
	if s == "" {
		return DefaultAssetPair, nil
	}
	p := AssetPair(s)
	if _, ok := knownPairs[p]; !ok {
		return "", errors.Wrapf(ErrUnknownAssetPair, "%q", s)
	}
	return p, nil
}

// Oracle signs events of a single asset pair.
type Oracle struct {
	AssetPair  AssetPair
	Descriptor dlc.EventDescriptor
	keys       *signing.KeyPair
}

// Pubkey returns the x-only key the oracle signs with.
func (o *Oracle) Pubkey() [32]byte {
	return o.keys.XOnlyPubkey()
}

// Owns reports whether rec was announced by this oracle. Records of every
// pair share one store and are told apart by descriptor unit.
func (o *Oracle) Owns(rec *EventRecord) bool {
	return rec.Announcement.Event.Descriptor.Unit == o.Descriptor.Unit
}

// Registry maps asset pairs to their oracle. It is built once at startup and
// never mutated afterwards.
type Registry struct {
	oracles map[AssetPair]*Oracle
	keys    *signing.KeyPair
}

// NewRegistry builds one oracle per configured asset pair, all sharing kp.
func NewRegistry(pairs []config.AssetPairConfig, kp *signing.KeyPair) (*Registry, error) {
	if kp == nil {
		return nil, errors.New("oracle keypair is required")
	}
	oracles := make(map[AssetPair]*Oracle, len(pairs))
	for _, p := range pairs {
		pair, err := ParseAssetPair(p.Pair)
		if err != nil || p.Pair == "" {
			return nil, errors.Wrapf(ErrUnknownAssetPair, "configured pair %q", p.Pair)
		}
		if _, dup := oracles[pair]; dup {
			return nil, errors.Errorf("asset pair %s configured twice", pair)
		}
		oracles[pair] = &Oracle{
			AssetPair: pair,
			Descriptor: dlc.EventDescriptor{
				Base:      p.Base,
				IsSigned:  p.IsSigned,
				Unit:      p.Unit,
				Precision: p.Precision,
				NumDigits: p.NumDigits,
			},
			keys: kp,
		}
	}
	return &Registry{oracles: oracles, keys: kp}, nil
}

// Get returns the oracle for pair or ErrUnrecordedAssetPair.
func (r *Registry) Get(pair AssetPair) (*Oracle, error) {
	o, ok := r.oracles[pair]
	if !ok {
		return nil, errors.Wrapf(ErrUnrecordedAssetPair, "%s", pair)
	}
	return o, nil
}

// Pairs lists the configured asset pairs in order.
func (r *Registry) Pairs() []AssetPair {
	pairs := make([]AssetPair, 0, len(r.oracles))
	for p := range r.oracles {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i] < pairs[j] })
	return pairs
}

// PubkeyHex is the hex x-only key shared by every oracle in the registry.
func (r *Registry) PubkeyHex() string {
	return r.keys.PubkeyHex()
}
