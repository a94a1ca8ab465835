// Package watcher reports announced events whose maturation has passed
// without an attestation.
package watcher

import (
	"context"
	"time"

	"github.com/dorucioclea/dlc-stack/internal/metrics"
	"github.com/dorucioclea/dlc-stack/internal/oracle"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// OverdueGauge is the gauge holding the latest overdue count
const OverdueGauge = "overdue_events"

// EventSource lists overdue events
type EventSource interface {
	Overdue(ctx context.Context, grace time.Duration) ([]oracle.EventView, error)
}

// Watcher scans the store for overdue events
type Watcher struct {
	source  EventSource
	metrics *metrics.Metrics
	grace   time.Duration
}

// New creates a watcher
func New(source EventSource, m *metrics.Metrics, grace time.Duration) *Watcher {
	return &Watcher{source: source, metrics: m, grace: grace}
}

// Scan logs each overdue event and returns how many there were.
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	start := time.Now()
	overdue, err := w.source.Overdue(ctx, w.grace)
	w.metrics.RecordTimer("overdue_scan", time.Since(start).Milliseconds())
	if err != nil {
		w.metrics.RecordError("overdue_scan")
		return 0, errors.Wrap(err, "scan overdue events")
	}
	w.metrics.RecordSuccess("overdue_scan")

	for _, ev := range overdue {
		log.Warn().
			Str("event_id", ev.EventID).
			Time("maturation", ev.Maturation).
			Dur("overdue_by", time.Since(ev.Maturation)).
			Msg("Event matured without attestation")
	}
	w.metrics.SetGauge(OverdueGauge, int64(len(overdue)))
	return len(overdue), nil
}
