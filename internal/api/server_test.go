package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dorucioclea/dlc-stack/config"
	"github.com/dorucioclea/dlc-stack/internal/api/handlers"
	"github.com/dorucioclea/dlc-stack/internal/api/middleware"
	"github.com/dorucioclea/dlc-stack/internal/dlc"
	"github.com/dorucioclea/dlc-stack/internal/metrics"
	"github.com/dorucioclea/dlc-stack/internal/oracle"
	"github.com/dorucioclea/dlc-stack/internal/signing"
	"github.com/dorucioclea/dlc-stack/internal/store"
	"github.com/dorucioclea/dlc-stack/internal/tracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, apiKeys []string) *Server {
	t.Helper()

	cfg := config.Config{
		Environment: "test",
		Server:      config.ServerConfig{Address: ":0", Timeout: time.Second, APIKeys: apiKeys},
		AssetPairs: []config.AssetPairConfig{
			{Pair: "BTCUSD", Unit: "BTCUSD", Base: 2, NumDigits: 14},
		},
		Oracle: config.OracleConfig{AnnouncementOffset: time.Hour, DropNoncesAfterAttest: true},
	}

	kp, err := signing.GenerateKeyPair()
	require.NoError(t, err)
	registry, err := oracle.NewRegistry(cfg.AssetPairs, kp)
	require.NoError(t, err)

	st, err := store.NewBoltStore(config.LocalStoreConfig{
		Path:        filepath.Join(t.TempDir(), "events.db"),
		OpenTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	m := metrics.NewMetrics()
	svc, err := oracle.NewService(registry, st, m, cfg.Oracle)
	require.NoError(t, err)

	tracer, err := tracing.NewTracer(config.TracingConfig{})
	require.NoError(t, err)

	return NewServer(cfg, svc, m, tracer)
}

func do(t *testing.T, s *Server, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) oracle.EventView {
	t.Helper()
	var v oracle.EventView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestCreateAndAttestOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s, "/v1/create_event/btc-1?maturation=2030-01-01T00:00:00Z")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decodeView(t, w)
	assert.Equal(t, "btc-1", created.EventID)
	assert.Nil(t, created.Attestation)
	assert.NotEmpty(t, created.AnnouncementTLV)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = do(t, s, "/v1/attest/btc-1?outcome=5")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	attested := decodeView(t, w)
	require.NotNil(t, attested.Outcome)
	assert.Equal(t, uint64(5), *attested.Outcome)
	require.Len(t, attested.Outcomes, 14)
	assert.Equal(t, "1", attested.Outcomes[13])
	assert.Equal(t, "0", attested.Outcomes[12])
	assert.Equal(t, "1", attested.Outcomes[11])

	raw, err := hex.DecodeString(*attested.Attestation)
	require.NoError(t, err)
	att, err := dlc.DecodeAttestation(raw)
	require.NoError(t, err)
	assert.Equal(t, attested.Outcomes, att.Outcomes)

	w = do(t, s, "/v1/attest/btc-1?outcome=6")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, s, "/v1/announcement/btc-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint64(5), *decodeView(t, w).Outcome)

	w = do(t, s, "/v1/announcements")
	require.Equal(t, http.StatusOK, w.Code)
	var views []oracle.EventView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	assert.Len(t, views, 1)
}

func TestRequestErrors(t *testing.T) {
	s := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, do(t, s, "/v1/create_event/e1?maturation=2030-01-01T00:00:00Z").Code)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"missing outcome", "/v1/attest/e1", http.StatusBadRequest},
		{"negative outcome", "/v1/attest/e1?outcome=-1", http.StatusBadRequest},
		{"non-numeric outcome", "/v1/attest/e1?outcome=abc", http.StatusBadRequest},
		{"outcome over budget", "/v1/attest/e1?outcome=16384", http.StatusBadRequest},
		{"unknown pair", "/v1/attest/e1?outcome=1&asset_pair=DOGEUSD", http.StatusBadRequest},
		{"unconfigured pair", "/v1/create_event/e2?asset_pair=ETHUSD", http.StatusBadRequest},
		{"bad maturation", "/v1/create_event/e2?maturation=tomorrow", http.StatusBadRequest},
		{"missing maturation", "/v1/create_event/e2", http.StatusBadRequest},
		{"unknown list pair", "/v1/announcements?asset_pair=DOGEUSD", http.StatusBadRequest},
		{"unknown get pair", "/v1/announcement/e1?asset_pair=DOGEUSD", http.StatusBadRequest},
		{"attest unknown event", "/v1/attest/nope?outcome=1", http.StatusNotFound},
		{"get unknown event", "/v1/announcement/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, tt.target)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			var resp handlers.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Message)
		})
	}

	// Rejected attempts leave the event attestable.
	assert.Equal(t, http.StatusOK, do(t, s, "/v1/attest/e1?outcome=16383").Code)
}

func TestAPIKeyGuardsMutatingRoutes(t *testing.T) {
	s := newTestServer(t, []string{"secret"})

	assert.Equal(t, http.StatusUnauthorized, do(t, s, "/v1/create_event/e1?maturation=2030-01-01T00:00:00Z").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, s, "/v1/create_event/e1?maturation=2030-01-01T00:00:00Z", middleware.APIKeyHeader, "wrong").Code)
	assert.Equal(t, http.StatusOK, do(t, s, "/v1/create_event/e1?maturation=2030-01-01T00:00:00Z", middleware.APIKeyHeader, " secret ").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, s, "/v1/attest/e1?outcome=1").Code)

	assert.Equal(t, http.StatusOK, do(t, s, "/v1/announcement/e1").Code)
	assert.Equal(t, http.StatusOK, do(t, s, "/v1/publickey").Code)
}

func TestPublicKeyAndHealth(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s, "/v1/publickey")
	require.Equal(t, http.StatusOK, w.Code)
	var pk handlers.PublicKeyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pk))
	assert.Len(t, pk.PublicKey, 64)

	do(t, s, "/v1/create_event/e1?maturation=2030-01-01T00:00:00Z")
	w = do(t, s, "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "events_announced")
}

func TestRequestIDIsPropagated(t *testing.T) {
	s := newTestServer(t, nil)
	w := do(t, s, "/v1/publickey", middleware.RequestIDHeader, "req-42")
	assert.Equal(t, "req-42", w.Header().Get(middleware.RequestIDHeader))
}
