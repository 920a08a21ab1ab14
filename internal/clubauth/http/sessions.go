package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/service"
	"github.com/aussiebroadwan/clubauth/pkg/clubsdk"
	"github.com/aussiebroadwan/clubauth/pkg/httpx"
	"github.com/aussiebroadwan/clubauth/pkg/slogx"
)

// maxLoginBody bounds the JSON body of a login request.
const maxLoginBody = 4 << 10

type SessionsHandler struct {
	AuthService *service.AuthService
}

func toSessionInfo(s domain.SessionInfo) clubsdk.SessionInfo {
	return clubsdk.SessionInfo{
		ID:            s.ID,
		Service:       string(s.Service),
		Username:      s.Username,
		Authenticated: s.Authenticated,
		CreatedAt:     s.CreatedAt,
		LastUsedAt:    s.LastUsedAt,
		Expired:       s.Expired,
		Stale:         s.Stale,
		HasBearer:     s.HasBearer,
		VendorContext: s.VendorContext,
	}
}

// HandleList godoc
//
//	@Summary		List cached sessions
//	@Description	Diagnostic snapshot of the session cache. Nothing is evicted or probed.
//	@Tags			Sessions
//	@Produce		json
//	@Success		200	{object}	clubsdk.ListSessionsResponse	"Cached sessions"
//	@Failure		401	{object}	clubsdk.ErrorResponse			"Missing or invalid admin token"
//	@Security		AdminToken
//	@Router			/v1/sessions [get].
func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	infos := h.AuthService.SessionInfo()

	resp := clubsdk.ListSessionsResponse{Sessions: make([]clubsdk.SessionInfo, len(infos))}
	for i, s := range infos {
		resp.Sessions[i] = toSessionInfo(s)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleLogin godoc
//
//	@Summary		Authenticate with a vendor
//	@Description	Returns the cached session for the service when it is still alive, otherwise logs in.
//	@Description	Username and password are optional and default to the configured credentials.
//	@Tags			Sessions
//	@Accept			json
//	@Produce		json
//	@Param			service	path		string					true	"Vendor service"	Enums(clubos, clubhub)
//	@Param			request	body		clubsdk.LoginRequest	false	"Credential override"
//	@Success		200		{object}	clubsdk.LoginResponse	"Authenticated session"
//	@Failure		400		{object}	clubsdk.ErrorResponse	"Unknown or unconfigured service, or malformed body"
//	@Failure		401		{object}	clubsdk.ErrorResponse	"Missing or invalid admin token"
//	@Failure		429		{object}	clubsdk.ErrorResponse	"Too many login requests"
//	@Failure		502		{object}	clubsdk.ErrorResponse	"Vendor login failed"
//	@Failure		503		{object}	clubsdk.ErrorResponse	"Vendor circuit open"
//	@Security		AdminToken
//	@Router			/v1/sessions/{service} [post].
func (h *SessionsHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	svc, err := domain.ParseService(r.PathValue("service"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, clubsdk.ErrorCodeInvalidService, err.Error())
		return
	}

	var req clubsdk.LoginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxLoginBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httpx.WriteError(w, http.StatusBadRequest, clubsdk.ErrorCodeInvalidRequest, "invalid JSON body")
		return
	}

	sess, err := h.AuthService.Authenticate(ctx, svc, req.Username, req.Password)
	if err != nil {
		log.Warn("authentication failed", "service", svc, "error", err)
		status, code := http.StatusBadGateway, clubsdk.ErrorCodeAuthenticationFailed
		switch {
		case errors.Is(err, domain.ErrUnknownService):
			status, code = http.StatusBadRequest, clubsdk.ErrorCodeInvalidService
		case errors.Is(err, domain.ErrCircuitOpen):
			status, code = http.StatusServiceUnavailable, clubsdk.ErrorCodeVendorUnavailable
		}
		httpx.WriteError(w, status, code, err.Error())
		return
	}

	info := h.AuthService.Cache().Info(sess)
	httpx.WriteJSON(w, http.StatusOK, clubsdk.LoginResponse{Session: toSessionInfo(info)})
}

// HandleInvalidate godoc
//
//	@Summary		Drop a cached session
//	@Description	Invalidates and evicts the session. Idempotent: a missing session is not an error.
//	@Tags			Sessions
//	@Produce		json
//	@Param			service		path		string						true	"Vendor service"	Enums(clubos, clubhub)
//	@Param			username	path		string						true	"Vendor username (case-insensitive)"
//	@Success		200			{object}	clubsdk.InvalidateResponse	"Whether a session was dropped"
//	@Failure		400			{object}	clubsdk.ErrorResponse		"Unknown service"
//	@Failure		401			{object}	clubsdk.ErrorResponse		"Missing or invalid admin token"
//	@Security		AdminToken
//	@Router			/v1/sessions/{service}/{username} [delete].
func (h *SessionsHandler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	svc, err := domain.ParseService(r.PathValue("service"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, clubsdk.ErrorCodeInvalidService, err.Error())
		return
	}

	username := r.PathValue("username")
	ok := h.AuthService.InvalidateSession(svc, username)
	slogx.FromContext(r.Context()).Info("admin invalidate",
		"service", svc,
		"username", username,
		"dropped", ok,
		"by", httpx.OperatorFromContext(r.Context()),
	)
	httpx.WriteJSON(w, http.StatusOK, clubsdk.InvalidateResponse{Invalidated: ok})
}
