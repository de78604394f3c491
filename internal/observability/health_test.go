package observability_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rustassist/internal/observability"
)

var (
	errWorkspaceLoading = errors.New("workspace loading")
	errIndexStale       = errors.New("index stale")
)

type healthBody struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func serve(t *testing.T, handler http.Handler, path string) (int, healthBody) {
	t.Helper()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body healthBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return rec.Code, body
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	code, body := serve(t, observability.HealthHandler(), "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, healthBody{Status: "ok"}, body)
}

func TestReadyHandler(t *testing.T) {
	t.Parallel()

	pass := func(context.Context) error { return nil }
	loading := func(context.Context) error { return errWorkspaceLoading }
	stale := func(context.Context) error { return errIndexStale }

	tests := []struct {
		name     string
		checks   []observability.ReadyCheck
		wantCode int
		want     healthBody
	}{
		{"no checks", nil, http.StatusOK, healthBody{Status: "ok"}},
		{"all pass", []observability.ReadyCheck{pass, pass}, http.StatusOK, healthBody{Status: "ok"}},
		{
			"one fails", []observability.ReadyCheck{pass, loading},
			http.StatusServiceUnavailable, healthBody{Status: "unavailable", Reason: "workspace loading"},
		},
		{
			"failures joined", []observability.ReadyCheck{loading, stale},
			http.StatusServiceUnavailable, healthBody{Status: "unavailable", Reason: "workspace loading\nindex stale"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			code, body := serve(t, observability.ReadyHandler(tt.checks...), "/readyz")
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.want, body)
		})
	}
}
