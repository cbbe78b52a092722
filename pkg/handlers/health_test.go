package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealthHandler_Health(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "http://acme.sellercentry.com/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHealthHandler_Ping(t *testing.T) {
	tests := []struct {
		name      string
		directory Pinger
		status    int
		want      string
	}{
		{"file directory", nil, http.StatusOK, "file"},
		{"database up", fakePinger{}, http.StatusOK, "ok"},
		{"database down", fakePinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("v1.0.0", "test", tt.directory, zap.NewNop())
			rec := httptest.NewRecorder()
			h.Ping(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

			require.Equal(t, tt.status, rec.Code)
			resp := decodeBody[PingResponse](t, rec)
			assert.Equal(t, "v1.0.0", resp.Version)
			assert.Equal(t, "account-health", resp.Service)
			assert.Equal(t, tt.want, resp.Directory)
		})
	}
}
