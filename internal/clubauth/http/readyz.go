package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/service"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/store"
	"github.com/aussiebroadwan/clubauth/pkg/clubsdk"
	"github.com/aussiebroadwan/clubauth/pkg/httpx"
)

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe. Reports the database and every vendor circuit breaker.
//	@Description	Degrades with 503 when the database is unreachable or a vendor circuit is open.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	clubsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	clubsdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	auth *service.AuthService,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &clubsdk.HealthChecks{
			Database: "disabled",
			Vendors:  map[string]string{},
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if st != nil {
			checks.Database = "ok"
			if err := st.Ping(r.Context()); err != nil {
				checks.Database = "error: " + err.Error()
				overallStatus = "degraded"
				statusCode = http.StatusServiceUnavailable
			}
		}

		for _, svc := range auth.Services() {
			state := auth.BreakerState(svc)
			checks.Vendors[string(svc)] = state
			if state == "open" {
				overallStatus = "degraded"
				statusCode = http.StatusServiceUnavailable
			}
		}
		checks.CachedSessions = len(auth.SessionInfo())

		httpx.WriteJSON(w, statusCode, clubsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
