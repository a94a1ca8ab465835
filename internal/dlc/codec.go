package dlc

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/lightningnetwork/lnd/tlv"
	"github.com/pkg/errors"
)

// ErrMalformed is returned when bytes cannot be decoded into a message.
var ErrMalformed = errors.New("malformed message")

// format selects between the lightning-style wire encoding, where strings and
// the descriptor base are fixed-width prefixed, and the TLV display encoding,
// where they are BigSize prefixed and messages carry their own TLV header.
type format int

const (
	formatWire format = iota
	formatTLV
)

type encoder struct {
	buf     bytes.Buffer
	f       format
	scratch [8]byte
	err     error
}

func (e *encoder) raw(b []byte) { e.buf.Write(b) }

func (e *encoder) u8(v uint8) { e.buf.WriteByte(v) }

func (e *encoder) u16(v uint16) {
	binary.BigEndian.PutUint16(e.scratch[:2], v)
	e.buf.Write(e.scratch[:2])
}

func (e *encoder) u32(v uint32) {
	binary.BigEndian.PutUint32(e.scratch[:4], v)
	e.buf.Write(e.scratch[:4])
}

func (e *encoder) bool(v bool) {
	if v {
		e.u8(1)
		return
	}
	e.u8(0)
}

func (e *encoder) bigSize(v uint64) {
	if err := tlv.WriteVarInt(&e.buf, v, &e.scratch); err != nil && e.err == nil {
		e.err = err
	}
}

func (e *encoder) count(n int) {
	if n > math.MaxUint16 {
		if e.err == nil {
			e.err = errors.Errorf("%d elements exceed the u16 count field", n)
		}
		return
	}
	e.u16(uint16(n))
}

func (e *encoder) str(s string) {
	if e.f == formatTLV {
		e.bigSize(uint64(len(s)))
	} else {
		e.count(len(s))
	}
	e.buf.WriteString(s)
}

func (e *encoder) record(typ uint64, body []byte) {
	e.bigSize(typ)
	e.bigSize(uint64(len(body)))
	e.raw(body)
}

func (e *encoder) bytes() ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.buf.Bytes(), nil
}

type decoder struct {
	r       *bytes.Reader
	f       format
	scratch [8]byte
	err     error
}

func newDecoder(b []byte, f format) *decoder {
	return &decoder{r: bytes.NewReader(b), f: f}
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = errors.Wrap(ErrMalformed, err.Error())
	}
}

func (d *decoder) raw(b []byte) {
	if d.err != nil {
		return
	}
	if _, err := io.ReadFull(d.r, b); err != nil {
		d.fail(err)
	}
}

func (d *decoder) u8() uint8 {
	d.raw(d.scratch[:1])
	return d.scratch[0]
}

func (d *decoder) u16() uint16 {
	d.raw(d.scratch[:2])
	return binary.BigEndian.Uint16(d.scratch[:2])
}

func (d *decoder) u32() uint32 {
	d.raw(d.scratch[:4])
	return binary.BigEndian.Uint32(d.scratch[:4])
}

func (d *decoder) bool() bool {
	switch d.u8() {
	case 0:
		return false
	case 1:
		return true
	default:
		d.fail(errors.New("invalid bool"))
		return false
	}
}

func (d *decoder) bigSize() uint64 {
	if d.err != nil {
		return 0
	}
	v, err := tlv.ReadVarInt(d.r, &d.scratch)
	if err != nil {
		d.fail(err)
	}
	return v
}

func (d *decoder) length(n uint64) int {
	if d.err == nil && n > uint64(d.r.Len()) {
		d.fail(errors.Errorf("length %d exceeds remaining %d bytes", n, d.r.Len()))
	}
	if d.err != nil {
		return 0
	}
	return int(n)
}

func (d *decoder) str() string {
	var n uint64
	if d.f == formatTLV {
		n = d.bigSize()
	} else {
		n = uint64(d.u16())
	}
	b := make([]byte, d.length(n))
	d.raw(b)
	return string(b)
}

func (d *decoder) record(typ uint64) *decoder {
	got := d.bigSize()
	if d.err == nil && got != typ {
		d.fail(errors.Errorf("expected record type %d, got %d", typ, got))
	}
	body := make([]byte, d.length(d.bigSize()))
	d.raw(body)
	return newDecoder(body, d.f)
}

// finish reports the first error of d or of any nested decoder, and rejects
// trailing bytes.
func (d *decoder) finish(nested ...*decoder) error {
	for _, n := range append(nested, d) {
		if n.err != nil {
			return n.err
		}
		if n.r.Len() != 0 {
			return errors.Wrapf(ErrMalformed, "%d trailing bytes", n.r.Len())
		}
	}
	return nil
}

func (desc *EventDescriptor) encode(e *encoder) {
	if e.f == formatTLV {
		e.bigSize(uint64(desc.Base))
	} else {
		e.u16(desc.Base)
	}
	e.bool(desc.IsSigned)
	e.str(desc.Unit)
	e.u32(uint32(desc.Precision))
	e.u16(desc.NumDigits)
}

func (desc *EventDescriptor) decode(d *decoder) {
	if d.f == formatTLV {
		base := d.bigSize()
		if base > math.MaxUint16 {
			d.fail(errors.Errorf("base %d overflows u16", base))
		}
		desc.Base = uint16(base)
	} else {
		desc.Base = d.u16()
	}
	desc.IsSigned = d.bool()
	desc.Unit = d.str()
	desc.Precision = int32(d.u32())
	desc.NumDigits = d.u16()
}

func (ev *OracleEvent) encode(e *encoder) {
	e.count(len(ev.Nonces))
	for i := range ev.Nonces {
		e.raw(ev.Nonces[i][:])
	}
	e.u32(ev.Maturation)

	inner := &encoder{f: e.f}
	ev.Descriptor.encode(inner)
	body, err := inner.bytes()
	if err != nil && e.err == nil {
		e.err = err
	}
	e.record(TypeDigitDecompositionDescriptor, body)
	e.str(ev.EventID)
}

func (ev *OracleEvent) decode(d *decoder) *decoder {
	n := d.u16()
	if int(n)*32 > d.r.Len() {
		d.fail(errors.Errorf("%d nonces exceed remaining bytes", n))
		return d
	}
	ev.Nonces = make([][32]byte, n)
	for i := range ev.Nonces {
		d.raw(ev.Nonces[i][:])
	}
	ev.Maturation = d.u32()
	inner := d.record(TypeDigitDecompositionDescriptor)
	ev.Descriptor.decode(inner)
	ev.EventID = d.str()
	return inner
}

// Encode returns the wire encoding of the event. This is the message the
// announcement signature commits to.
func (ev *OracleEvent) Encode() ([]byte, error) {
	e := &encoder{f: formatWire}
	ev.encode(e)
	return e.bytes()
}

func (a *Announcement) encode(f format) ([]byte, error) {
	inner := &encoder{f: f}
	a.Event.encode(inner)
	event, err := inner.bytes()
	if err != nil {
		return nil, errors.Wrap(err, "encode oracle event")
	}

	body := &encoder{f: f}
	body.raw(a.Signature[:])
	body.raw(a.OraclePubkey[:])
	body.record(TypeOracleEvent, event)
	if f == formatWire {
		return body.bytes()
	}
	b, err := body.bytes()
	if err != nil {
		return nil, err
	}
	outer := &encoder{f: f}
	outer.record(TypeOracleAnnouncement, b)
	return outer.bytes()
}

// Encode returns the wire encoding stored and served as the canonical form.
func (a *Announcement) Encode() ([]byte, error) { return a.encode(formatWire) }

// EncodeTLV returns the TLV display encoding.
func (a *Announcement) EncodeTLV() ([]byte, error) { return a.encode(formatTLV) }

func decodeAnnouncement(b []byte, f format) (*Announcement, error) {
	d := newDecoder(b, f)
	body := d
	if f == formatTLV {
		body = d.record(TypeOracleAnnouncement)
	}

	a := &Announcement{}
	body.raw(a.Signature[:])
	body.raw(a.OraclePubkey[:])
	ev := body.record(TypeOracleEvent)
	desc := a.Event.decode(ev)
	if err := d.finish(body, ev, desc); err != nil {
		return nil, err
	}
	return a, nil
}

// DecodeAnnouncement parses the wire encoding.
func DecodeAnnouncement(b []byte) (*Announcement, error) { return decodeAnnouncement(b, formatWire) }

// DecodeAnnouncementTLV parses the TLV display encoding.
func DecodeAnnouncementTLV(b []byte) (*Announcement, error) {
	return decodeAnnouncement(b, formatTLV)
}

func (a *Attestation) encode(f format) ([]byte, error) {
	e := &encoder{f: f}
	e.str(a.EventID)
	e.raw(a.OraclePubkey[:])
	e.count(len(a.Signatures))
	for i := range a.Signatures {
		e.raw(a.Signatures[i][:])
	}
	e.count(len(a.Outcomes))
	for _, o := range a.Outcomes {
		e.str(o)
	}
	if f == formatWire {
		return e.bytes()
	}
	body, err := e.bytes()
	if err != nil {
		return nil, err
	}
	outer := &encoder{f: f}
	outer.record(TypeOracleAttestation, body)
	return outer.bytes()
}

// Encode returns the wire encoding.
func (a *Attestation) Encode() ([]byte, error) { return a.encode(formatWire) }

// EncodeTLV returns the TLV display encoding.
func (a *Attestation) EncodeTLV() ([]byte, error) { return a.encode(formatTLV) }

func decodeAttestation(b []byte, f format) (*Attestation, error) {
	d := newDecoder(b, f)
	body := d
	if f == formatTLV {
		body = d.record(TypeOracleAttestation)
	}

	a := &Attestation{EventID: body.str()}
	body.raw(a.OraclePubkey[:])
	n := body.u16()
	if int(n)*64 > body.r.Len() {
		body.fail(errors.Errorf("%d signatures exceed remaining bytes", n))
	} else {
		a.Signatures = make([][64]byte, n)
		for i := range a.Signatures {
			body.raw(a.Signatures[i][:])
		}
	}
	m := body.u16()
	if body.err == nil {
		a.Outcomes = make([]string, 0, m)
		for i := uint16(0); i < m && body.err == nil; i++ {
			a.Outcomes = append(a.Outcomes, body.str())
		}
	}
	if err := d.finish(body); err != nil {
		return nil, err
	}
	return a, nil
}

// DecodeAttestation parses the wire encoding.
func DecodeAttestation(b []byte) (*Attestation, error) { return decodeAttestation(b, formatWire) }

// DecodeAttestationTLV parses the TLV display encoding.
func DecodeAttestationTLV(b []byte) (*Attestation, error) { return decodeAttestation(b, formatTLV) }
