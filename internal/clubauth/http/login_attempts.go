package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/service"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/store"
	"github.com/aussiebroadwan/clubauth/pkg/clubsdk"
	"github.com/aussiebroadwan/clubauth/pkg/httpx"
	"github.com/aussiebroadwan/clubauth/pkg/slogx"
)

const maxAttemptsLimit = 1000

type LoginAttemptsHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP lists recorded vendor logins
//
//	@Summary		List login attempts
//	@Description	Audit trail of vendor logins, newest first. Empty when persistence is disabled.
//	@Tags			Audit
//	@Produce		json
//	@Param			service		query		string								false	"Vendor service"	Enums(clubos, clubhub)
//	@Param			username	query		string								false	"Vendor username"
//	@Param			limit		query		int									false	"Maximum rows (1-1000, default 100)"
//	@Success		200			{object}	clubsdk.ListLoginAttemptsResponse	"Login attempts"
//	@Failure		400			{object}	clubsdk.ErrorResponse				"Invalid filter"
//	@Failure		401			{object}	clubsdk.ErrorResponse				"Missing or invalid admin token"
//	@Failure		500			{object}	clubsdk.ErrorResponse				"Internal server error"
//	@Security		AdminToken
//	@Router			/v1/login-attempts [get].
func (h *LoginAttemptsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	q := r.URL.Query()

	var f store.LoginAttemptFilter
	if raw := q.Get("service"); raw != "" {
		svc, err := domain.ParseService(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, clubsdk.ErrorCodeInvalidService, err.Error())
			return
		}
		f.Service = svc
	}
	f.Username = q.Get("username")
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAttemptsLimit {
			httpx.WriteError(w, http.StatusBadRequest, clubsdk.ErrorCodeInvalidRequest, "limit must be between 1 and 1000")
			return
		}
		f.Limit = n
	}

	attempts, err := h.AuthService.LoginAttempts(ctx, f)
	if err != nil {
		log.Error("failed to list login attempts", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, clubsdk.ErrorCodeServerError, "Failed to retrieve login attempts")
		return
	}

	resp := clubsdk.ListLoginAttemptsResponse{Attempts: make([]clubsdk.LoginAttempt, len(attempts))}
	for i, a := range attempts {
		resp.Attempts[i] = clubsdk.LoginAttempt{
			ID:         a.ID,
			Service:    string(a.Service),
			Username:   a.Username,
			StartedAt:  a.StartedAt,
			FinishedAt: a.FinishedAt,
			Outcome:    a.Outcome,
			Reason:     a.Reason,
		}
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
