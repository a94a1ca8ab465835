package tracing

import (
	"testing"

	"github.com/dorucioclea/dlc-stack/config"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestTracerWithoutLicenseIsInert(t *testing.T) {
	tracer, err := NewTracer(config.TracingConfig{AppName: "oracle-test"})
	require.NoError(t, err)
	require.Nil(t, tracer.Application())

	txn := tracer.StartTransaction("attest")
	require.Nil(t, txn)

	require.NotPanics(t, func() {
		tracer.AddAttribute(txn, "event_id", "e1")
		tracer.RecordError(txn, errors.New("boom"))
		tracer.EndTransaction(txn)
		tracer.Close()
	})
}
