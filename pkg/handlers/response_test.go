package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sellercentry/account-health/pkg/apperrors"
)

func TestErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, ErrorResponse(w, http.StatusNotFound, "not_found", "resource not found"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"error": "not_found", "message": "resource not found"}, body)
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteJSON(w, http.StatusMultiStatus, map[string]int{"n": 1}))
	assert.Equal(t, http.StatusMultiStatus, w.Code)
	assert.JSONEq(t, `{"n":1}`, w.Body.String())
}

func TestStatusForKind(t *testing.T) {
	tests := map[apperrors.Kind]int{
		apperrors.KindUnauthorized: http.StatusUnauthorized,
		apperrors.KindForbidden:    http.StatusForbidden,
		apperrors.KindNotFound:     http.StatusNotFound,
		apperrors.KindRateLimited:  http.StatusTooManyRequests,
		apperrors.KindInvalid:      http.StatusBadRequest,
		apperrors.KindTransport:    http.StatusBadGateway,
	}
	for kind, want := range tests {
		assert.Equal(t, want, StatusForKind(kind), kind)
	}
}

func TestWriteAppError_HidesTransportDetail(t *testing.T) {
	w := httptest.NewRecorder()
	writeAppError(w, errors.New("dial tcp 10.0.0.1:443: connection refused"), zap.NewNop())

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.1")
	assert.Contains(t, w.Body.String(), `"error":"transport"`)
}

func TestWriteAppError_KeepsClassifiedMessage(t *testing.T) {
	w := httptest.NewRecorder()
	writeAppError(w, apperrors.New(apperrors.KindNotFound, "op", "violation V-9 not found"), zap.NewNop())

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "violation V-9 not found")
}
