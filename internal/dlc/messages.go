// Package dlc holds the oracle messages exchanged with DLC participants and
// their byte encodings.
package dlc

// TLV record types used by the DLC oracle messages.
const (
	TypeDigitDecompositionDescriptor uint64 = 55306
	TypeOracleEvent                  uint64 = 55330
	TypeOracleAnnouncement           uint64 = 55332
	TypeOracleAttestation            uint64 = 55400
)

// EventDescriptor describes how a numeric outcome is decomposed into digits.
type EventDescriptor struct {
	Base      uint16 `json:"base"`
	IsSigned  bool   `json:"is_signed"`
	Unit      string `json:"unit"`
	Precision int32  `json:"precision"`
	NumDigits uint16 `json:"num_digits"`
}

// OracleEvent is the signed body of an announcement. Nonces are x-only public
// nonce points, one per digit.
type OracleEvent struct {
	Nonces     [][32]byte
	Maturation uint32
	Descriptor EventDescriptor
	EventID    string
}

// Announcement commits an oracle key to the nonces of a future event.
type Announcement struct {
	Signature    [64]byte
	OraclePubkey [32]byte
	Event        OracleEvent
}

// Attestation reveals one signature per outcome digit.
type Attestation struct {
	EventID      string
	OraclePubkey [32]byte
	Signatures   [][64]byte
	Outcomes     []string
}
