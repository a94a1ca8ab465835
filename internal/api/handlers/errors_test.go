package handlers

import (
	"net/http"
	"testing"

	"github.com/dorucioclea/dlc-stack/internal/oracle"
	"github.com/dorucioclea/dlc-stack/internal/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unknown pair", errors.Wrap(oracle.ErrUnknownAssetPair, "DOGEUSD"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unrecorded pair", oracle.ErrUnrecordedAssetPair, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"out of range", errors.Wrap(oracle.ErrOutcomeOutOfRange, "event e"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad maturation", oracle.ErrInvalidMaturation, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", errors.Wrapf(oracle.ErrEventNotFound, "%s", "e"), http.StatusNotFound, "NOT_FOUND"},
		{"attested", oracle.ErrEventAlreadyAttested, http.StatusConflict, "CONFLICT"},
		{"raced", oracle.ErrConcurrentUpdate, http.StatusConflict, "CONFLICT"},
		{"store", errors.Wrap(&store.Error{Backend: "redis", Op: "get", Err: errors.New("dial tcp: refused")}, "load event e"),
			http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
		{"corrupt", errors.Wrap(oracle.ErrCorruptRecord, "event e"), http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"passthrough", newValidationError("bad query"), http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.Equal(t, tt.status, got.StatusCode)
			assert.Equal(t, tt.code, got.Code)
		})
	}
}

func TestClassifyHidesBackendDetail(t *testing.T) {
	err := &store.Error{Backend: "redis", Op: "get", Err: errors.New("auth failed for user admin")}
	assert.NotContains(t, classify(err).Message, "admin")
}
