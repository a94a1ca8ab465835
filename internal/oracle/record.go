package oracle

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/dorucioclea/dlc-stack/internal/dlc"
	"github.com/pkg/errors"
)

// EventRecord is the persisted state of one event. The announcement and
// attestation are held once; both of their encodings are derived from them
// when the record is written.
type EventRecord struct {
	EventID      string
	SecretNonces [][32]byte
	Announcement *dlc.Announcement
	Attestation  *dlc.Attestation
	Outcome      *uint64
}

// Attested reports whether the record holds an attestation.
func (r *EventRecord) Attested() bool {
	return r.Attestation != nil
}

// MarshalJSON writes the record as the 7-element array
// [secret_nonces, announcement, announcement_tlv, attestation, attestation_tlv, outcome, event_id].
func (r *EventRecord) MarshalJSON() ([]byte, error) {
	if r.Announcement == nil {
		return nil, errors.New("event record without announcement")
	}
	if (r.Attestation == nil) != (r.Outcome == nil) {
		return nil, errors.New("attestation and outcome must be set together")
	}

	var nonces []string
	if r.SecretNonces != nil {
		nonces = make([]string, len(r.SecretNonces))
		for i := range r.SecretNonces {
			nonces[i] = hex.EncodeToString(r.SecretNonces[i][:])
		}
	}

	ann, err := r.Announcement.Encode()
	if err != nil {
		return nil, err
	}
	annTLV, err := r.Announcement.EncodeTLV()
	if err != nil {
		return nil, err
	}

	var att, attTLV []byte
	if r.Attestation != nil {
		if att, err = r.Attestation.Encode(); err != nil {
			return nil, err
		}
		if attTLV, err = r.Attestation.EncodeTLV(); err != nil {
			return nil, err
		}
	}

	return json.Marshal([]interface{}{nonces, ann, annTLV, att, attTLV, r.Outcome, r.EventID})
}

// UnmarshalJSON parses the 7-element array. The TLV fields must match the
// encodings derived from the wire fields.
func (r *EventRecord) UnmarshalJSON(b []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return errors.Wrap(ErrCorruptRecord, err.Error())
	}
	if len(fields) != 7 {
		return errors.Wrapf(ErrCorruptRecord, "expected 7 fields, got %d", len(fields))
	}

	var (
		nonces      []string
		ann, annTLV []byte
		att, attTLV []byte
		outcome     *uint64
		eventID     string
	)
	targets := []interface{}{&nonces, &ann, &annTLV, &att, &attTLV, &outcome, &eventID}
	for i, target := range targets {
		if err := json.Unmarshal(fields[i], target); err != nil {
			return errors.Wrapf(ErrCorruptRecord, "field %d: %v", i, err)
		}
	}

	rec := EventRecord{EventID: eventID, Outcome: outcome}
	if nonces != nil {
		rec.SecretNonces = make([][32]byte, len(nonces))
		for i, n := range nonces {
			raw, err := hex.DecodeString(n)
			if err != nil || len(raw) != 32 {
				return errors.Wrapf(ErrCorruptRecord, "secret nonce %d", i)
			}
			copy(rec.SecretNonces[i][:], raw)
		}
	}

	announcement, err := dlc.DecodeAnnouncement(ann)
	if err != nil {
		return errors.Wrapf(ErrCorruptRecord, "announcement: %v", err)
	}
	if err := sameEncoding(announcement.EncodeTLV, annTLV); err != nil {
		return errors.Wrapf(err, "announcement")
	}
	rec.Announcement = announcement

	if (att == nil) != (outcome == nil) {
		return errors.Wrap(ErrCorruptRecord, "attestation and outcome must be set together")
	}
	if att != nil {
		attestation, err := dlc.DecodeAttestation(att)
		if err != nil {
			return errors.Wrapf(ErrCorruptRecord, "attestation: %v", err)
		}
		if err := sameEncoding(attestation.EncodeTLV, attTLV); err != nil {
			return errors.Wrapf(err, "attestation")
		}
		rec.Attestation = attestation
	}

	if rec.EventID != rec.Announcement.Event.EventID {
		return errors.Wrapf(ErrCorruptRecord, "record %q holds announcement for %q",
			rec.EventID, rec.Announcement.Event.EventID)
	}

	*r = rec
	return nil
}

func sameEncoding(encode func() ([]byte, error), stored []byte) error {
	derived, err := encode()
	if err != nil {
		return errors.Wrap(ErrCorruptRecord, err.Error())
	}
	if !bytes.Equal(derived, stored) {
		return errors.Wrap(ErrCorruptRecord, "TLV encoding diverges from wire encoding")
	}
	return nil
}

// DecodeEventRecord parses stored bytes.
func DecodeEventRecord(b []byte) (*EventRecord, error) {
	rec := &EventRecord{}
	if err := json.Unmarshal(b, rec); err != nil {
		if !errors.Is(err, ErrCorruptRecord) {
			err = errors.Wrap(ErrCorruptRecord, err.Error())
		}
		return nil, err
	}
	return rec, nil
}

// EventView is the public representation of a record. Secret nonces are never
// part of it.
type EventView struct {
	EventID         string              `json:"event_id"`
	Maturation      time.Time           `json:"maturation"`
	Descriptor      dlc.EventDescriptor `json:"event_descriptor"`
	OraclePubkey    string              `json:"oracle_pubkey"`
	Announcement    string              `json:"announcement"`
	AnnouncementTLV string              `json:"announcement_tlv"`
	Attestation     *string             `json:"attestation"`
	AttestationTLV  *string             `json:"attestation_tlv"`
	Outcome         *uint64             `json:"outcome"`
	Outcomes        []string            `json:"outcomes,omitempty"`
}

// View renders the record for clients.
func (r *EventRecord) View() (*EventView, error) {
	ann, err := r.Announcement.Encode()
	if err != nil {
		return nil, err
	}
	annTLV, err := r.Announcement.EncodeTLV()
	if err != nil {
		return nil, err
	}

	v := &EventView{
		EventID:         r.EventID,
		Maturation:      time.Unix(int64(r.Announcement.Event.Maturation), 0).UTC(),
		Descriptor:      r.Announcement.Event.Descriptor,
		OraclePubkey:    hex.EncodeToString(r.Announcement.OraclePubkey[:]),
		Announcement:    hex.EncodeToString(ann),
		AnnouncementTLV: hex.EncodeToString(annTLV),
		Outcome:         r.Outcome,
	}
	if r.Attestation != nil {
		att, err := r.Attestation.Encode()
		if err != nil {
			return nil, err
		}
		attTLV, err := r.Attestation.EncodeTLV()
		if err != nil {
			return nil, err
		}
		attHex, attTLVHex := hex.EncodeToString(att), hex.EncodeToString(attTLV)
		v.Attestation = &attHex
		v.AttestationTLV = &attTLVHex
		v.Outcomes = r.Attestation.Outcomes
	}
	return v, nil
}
