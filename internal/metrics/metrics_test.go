package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricsConcurrentUpdates(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.IncrementCounter("events_attested")
			m.RecordTimer("attest", int64(i))
			if i%5 == 0 {
				m.RecordError("attest")
			} else {
				m.RecordSuccess("attest")
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, int64(50), m.GetCounters()["events_attested"])

	timer := m.GetTimers()["attest"]
	require.Equal(t, int64(50), timer.Count)
	require.Equal(t, int64(0), timer.MinTimeMs)
	require.Equal(t, int64(49), timer.MaxTimeMs)

	rate := m.GetErrorRates()["attest"]
	require.Equal(t, int64(10), rate.Errors)
	require.InDelta(t, 20.0, rate.ErrorRate, 0.001)
}

func TestMetricsGaugesAndHealth(t *testing.T) {
	m := NewMetrics()
	m.SetGauge("overdue_events", 3)
	m.SetGauge("overdue_events", 1)
	m.SetHealth("store", false)
	m.SetHealth("store", true)

	require.Equal(t, int64(1), m.GetGauges()["overdue_events"])
	require.True(t, m.GetHealthChecks()["store"])
	require.Contains(t, m.GetAllMetrics(), "uptime_seconds")
}
