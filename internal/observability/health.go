package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

const (
	statusOK          = "ok"
	statusUnavailable = "unavailable"
)

// ReadyCheck reports whether a subsystem is ready, for example whether the
// workspace finished loading.
type ReadyCheck func(ctx context.Context) error

type healthResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// HealthHandler serves liveness at /healthz: always 200 {"status":"ok"}.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		respond(rw, http.StatusOK, healthResponse{Status: statusOK})
	})
}

// ReadyHandler serves readiness at /readyz. Every check runs; when any
// fails the response is 503 with the joined failures as reason.
func ReadyHandler(checks ...ReadyCheck) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		var errs []error

		for _, check := range checks {
			errs = append(errs, check(hr.Context()))
		}

		if err := errors.Join(errs...); err != nil {
			respond(rw, http.StatusServiceUnavailable, healthResponse{Status: statusUnavailable, Reason: err.Error()})

			return
		}

		respond(rw, http.StatusOK, healthResponse{Status: statusOK})
	})
}

func respond(rw http.ResponseWriter, code int, body healthResponse) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)

	_ = json.NewEncoder(rw).Encode(body)
}
