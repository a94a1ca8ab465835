package watcher

import (
	"context"
	"testing"
	"time"

	"github.com/dorucioclea/dlc-stack/internal/metrics"
	"github.com/dorucioclea/dlc-stack/internal/oracle"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEventSource struct {
	mock.Mock
}

func (m *MockEventSource) Overdue(ctx context.Context, grace time.Duration) ([]oracle.EventView, error) {
	args := m.Called(ctx, grace)
	views, _ := args.Get(0).([]oracle.EventView)
	return views, args.Error(1)
}

func TestScanSetsGauge(t *testing.T) {
	src := new(MockEventSource)
	src.On("Overdue", mock.Anything, time.Minute).Return([]oracle.EventView{
		{EventID: "a", Maturation: time.Now().Add(-time.Hour)},
		{EventID: "b", Maturation: time.Now().Add(-2 * time.Hour)},
	}, nil).Once()
	src.On("Overdue", mock.Anything, time.Minute).Return(nil, nil).Once()

	m := metrics.NewMetrics()
	w := New(src, m, time.Minute)

	n, err := w.Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, int64(2), m.GetGauges()[OverdueGauge])

	n, err = w.Scan(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, int64(0), m.GetGauges()[OverdueGauge])
	src.AssertExpectations(t)
}

func TestScanKeepsGaugeOnFailure(t *testing.T) {
	src := new(MockEventSource)
	src.On("Overdue", mock.Anything, time.Duration(0)).Return(nil, errors.New("store down"))

	m := metrics.NewMetrics()
	m.SetGauge(OverdueGauge, 3)

	_, err := New(src, m, 0).Scan(context.Background())
	require.Error(t, err)
	require.Equal(t, int64(3), m.GetGauges()[OverdueGauge])
	require.Equal(t, int64(1), m.GetErrorRates()["overdue_scan"].Errors)
}
