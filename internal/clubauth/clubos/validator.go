package clubos

import (
	"context"
	"strings"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
	"github.com/aussiebroadwan/clubauth/pkg/htmlx"
	"github.com/aussiebroadwan/clubauth/pkg/slogx"
)

// Alive probes the dashboard without following redirects. Only a 2xx that
// is not the login form counts as alive; network errors fail closed.
func (v *Vendor) Alive(ctx context.Context, s *domain.Session) bool {
	log := slogx.FromContext(ctx).With("vendor", domain.ServiceClubOS, "username", s.Username)

	client := s.Client()
	if client == nil {
		return false
	}

	resp, err := client.GetNoRedirect(ctx, DashboardPath, nil, v.cfg.ValidateTimeout)
	if err != nil {
		log.Info("clubos_session_probe_failed", "err", err)
		return false
	}

	switch {
	case resp.IsRedirect():
		loc := resp.Location()
		log.Info("clubos_session_redirected", "status", resp.StatusCode, "location", loc,
			"to_login", strings.Contains(strings.ToLower(loc), strings.ToLower(LoginActionPath)))
		return false
	case !resp.IsSuccess():
		log.Info("clubos_session_probe_status", "status", resp.StatusCode)
		return false
	case htmlx.Parse(resp.Body).HasLoginForm(LoginActionPath):
		log.Info("clubos_session_served_login_form")
		return false
	}
	return true
}
