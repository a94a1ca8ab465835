package oracle

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"io"
	"math"
	"sort"
	"time"

	"github.com/dorucioclea/dlc-stack/config"
	"github.com/dorucioclea/dlc-stack/internal/dlc"
	"github.com/dorucioclea/dlc-stack/internal/metrics"
	"github.com/dorucioclea/dlc-stack/internal/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Service runs the announce and attest lifecycle against the event store.
// It holds no record state between calls.
type Service struct {
	registry   *Registry
	store      store.EventStore
	metrics    *metrics.Metrics
	locks      *keyedLocker
	dropNonces bool

	now  func() time.Time
	rand io.Reader
}

// NewService creates the oracle service
func NewService(registry *Registry, eventStore store.EventStore, m *metrics.Metrics, cfg config.OracleConfig) (*Service, error) {
	if cfg.AnnouncementOffset <= 0 {
		return nil, errors.New("announcement offset must be positive")
	}
	return &Service{
		registry:   registry,
		store:      eventStore,
		metrics:    m,
		locks:      newKeyedLocker(),
		dropNonces: cfg.DropNoncesAfterAttest,
		now:        time.Now,
		rand:       rand.Reader,
	}, nil
}

// PublicKey returns the hex x-only oracle key.
func (s *Service) PublicKey() string {
	return s.registry.PubkeyHex()
}

// AssetPairs lists the configured pairs.
func (s *Service) AssetPairs() []AssetPair {
	return s.registry.Pairs()
}

func (s *Service) track(op string, start time.Time, err *error) {
	s.metrics.RecordTimer(op, time.Since(start).Milliseconds())
	if *err != nil {
		s.metrics.RecordError(op)
		if store.IsStoreError(*err) {
			s.metrics.SetHealth("store", false)
		}
		return
	}
	s.metrics.RecordSuccess(op)
	s.metrics.SetHealth("store", true)
}

// parseMaturation accepts RFC3339 only.
func (s *Service) parseMaturation(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.Wrap(ErrInvalidMaturation, "missing")
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.Wrap(ErrInvalidMaturation, err.Error())
	}
	return t, nil
}

// CreateEvent announces eventID for pair. An event that already exists is
// returned as stored; its nonces are never regenerated.
func (s *Service) CreateEvent(ctx context.Context, eventID, maturation string, pair AssetPair) (view *EventView, err error) {
	defer s.track("create_event", time.Now(), &err)

	o, err := s.registry.Get(pair)
	if err != nil {
		return nil, err
	}
	if eventID == "" {
		return nil, errors.Wrap(ErrInvalidEventID, "empty")
	}
	if len(eventID) > math.MaxUint16 {
		return nil, errors.Wrapf(ErrInvalidEventID, "%d bytes exceed the %d byte limit", len(eventID), math.MaxUint16)
	}
	mat, err := s.parseMaturation(maturation)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(eventID)
	defer unlock()

	raw, found, err := s.store.Get(ctx, eventID)
	if err != nil {
		return nil, errors.Wrapf(err, "load event %s", eventID)
	}
	if found {
		rec, err := DecodeEventRecord(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "event %s", eventID)
		}
		if !o.Owns(rec) {
			return nil, errors.Wrapf(ErrInvalidEventID, "%s is already announced for another asset pair", eventID)
		}
		log.Info().Str("event_id", eventID).Msg("Event already announced")
		return rec.View()
	}

	ann, secrets, err := BuildAnnouncement(o, mat, eventID, s.rand)
	if err != nil {
		return nil, err
	}
	rec := &EventRecord{
		EventID:      eventID,
		SecretNonces: secrets,
		Announcement: ann,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.Wrap(err, "encode event record")
	}
	if err := s.persist(ctx, eventID, nil, data); err != nil {
		return nil, err
	}

	s.metrics.IncrementCounter("events_announced")
	log.Info().
		Str("event_id", eventID).
		Str("asset_pair", string(pair)).
		Time("maturation", mat).
		Uint16("num_digits", o.Descriptor.NumDigits).
		Msg("Announced event")

	return rec.View()
}

// Attest signs outcome for a previously announced event. Each event is
// attested at most once.
func (s *Service) Attest(ctx context.Context, eventID string, pair AssetPair, outcome uint64) (view *EventView, err error) {
	defer s.track("attest", time.Now(), &err)

	o, err := s.registry.Get(pair)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(eventID)
	defer unlock()

	if s.store.IsEmpty(ctx) {
		return nil, errors.Wrapf(ErrEventNotFound, "%s", eventID)
	}
	raw, found, err := s.store.Get(ctx, eventID)
	if err != nil {
		return nil, errors.Wrapf(err, "load event %s", eventID)
	}
	if !found {
		return nil, errors.Wrapf(ErrEventNotFound, "%s", eventID)
	}
	rec, err := DecodeEventRecord(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "event %s", eventID)
	}
	if !o.Owns(rec) {
		return nil, errors.Wrapf(ErrEventNotFound, "%s for %s", eventID, pair)
	}
	if rec.Attested() {
		return nil, errors.Wrapf(ErrEventAlreadyAttested, "%s with outcome %d", eventID, *rec.Outcome)
	}

	ann := rec.Announcement
	if ann.OraclePubkey != o.Pubkey() {
		return nil, errors.Wrapf(ErrKeyMismatch, "%s", eventID)
	}
	desc := ann.Event.Descriptor
	digits, err := dlc.DecomposeOutcome(outcome, desc.Base, desc.NumDigits)
	if err != nil {
		return nil, errors.Wrapf(err, "event %s", eventID)
	}
	if len(rec.SecretNonces) != len(ann.Event.Nonces) {
		return nil, errors.Wrapf(ErrCorruptRecord, "event %s holds %d secret nonces for %d announced",
			eventID, len(rec.SecretNonces), len(ann.Event.Nonces))
	}

	att, err := BuildAttestation(o, eventID, rec.SecretNonces, digits)
	if err != nil {
		return nil, err
	}
	if err := VerifyAttestation(ann, att); err != nil {
		return nil, errors.Wrapf(err, "attestation for %s does not match its announcement", eventID)
	}

	rec.Attestation = att
	rec.Outcome = &outcome
	if s.dropNonces {
		rec.SecretNonces = nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.Wrap(err, "encode event record")
	}
	if err := s.persist(ctx, eventID, raw, data); err != nil {
		return nil, err
	}

	s.metrics.IncrementCounter("events_attested")
	log.Info().
		Str("event_id", eventID).
		Str("asset_pair", string(pair)).
		Uint64("outcome", outcome).
		Msg("Attested event")

	return rec.View()
}

// persist writes data, replacing expected when the backend supports
// conditional writes.
func (s *Service) persist(ctx context.Context, eventID string, expected, data []byte) error {
	if cas, ok := s.store.(store.ConditionalStore); ok {
		swapped, err := cas.CompareAndSwap(ctx, eventID, expected, data)
		if err != nil {
			return errors.Wrapf(err, "store event %s", eventID)
		}
		if !swapped {
			return errors.Wrapf(ErrConcurrentUpdate, "%s", eventID)
		}
		return nil
	}
	if _, err := s.store.Insert(ctx, eventID, data); err != nil {
		return errors.Wrapf(err, "store event %s", eventID)
	}
	return nil
}

// Announcement returns a single event.
func (s *Service) Announcement(ctx context.Context, eventID string, pair AssetPair) (*EventView, error) {
	o, err := s.registry.Get(pair)
	if err != nil {
		return nil, err
	}
	raw, found, err := s.store.Get(ctx, eventID)
	if err != nil {
		return nil, errors.Wrapf(err, "load event %s", eventID)
	}
	if !found {
		return nil, errors.Wrapf(ErrEventNotFound, "%s", eventID)
	}
	rec, err := DecodeEventRecord(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "event %s", eventID)
	}
	if !o.Owns(rec) {
		return nil, errors.Wrapf(ErrEventNotFound, "%s for %s", eventID, pair)
	}
	return rec.View()
}

// Announcements lists the events of pair ordered by event id.
func (s *Service) Announcements(ctx context.Context, pair AssetPair) ([]EventView, error) {
	o, err := s.registry.Get(pair)
	if err != nil {
		return nil, err
	}
	records, err := s.records(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]EventView, 0, len(records))
	for _, rec := range records {
		if !o.Owns(rec) {
			continue
		}
		v, err := rec.View()
		if err != nil {
			return nil, errors.Wrapf(err, "event %s", rec.EventID)
		}
		views = append(views, *v)
	}
	return views, nil
}

// Overdue returns announced events whose maturation passed more than grace
// ago without an attestation.
func (s *Service) Overdue(ctx context.Context, grace time.Duration) ([]EventView, error) {
	records, err := s.records(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := s.now().Add(-grace)
	var overdue []EventView
	for _, rec := range records {
		if rec.Attested() {
			continue
		}
		if time.Unix(int64(rec.Announcement.Event.Maturation), 0).After(cutoff) {
			continue
		}
		v, err := rec.View()
		if err != nil {
			return nil, errors.Wrapf(err, "event %s", rec.EventID)
		}
		overdue = append(overdue, *v)
	}
	return overdue, nil
}

func (s *Service) records(ctx context.Context) ([]*EventRecord, error) {
	entries, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list events")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].EventID < entries[j].EventID })

	records := make([]*EventRecord, 0, len(entries))
	for _, e := range entries {
		rec, err := DecodeEventRecord(e.Record)
		if err != nil {
			return nil, errors.Wrapf(err, "event %s", e.EventID)
		}
		records = append(records, rec)
	}
	return records, nil
}
