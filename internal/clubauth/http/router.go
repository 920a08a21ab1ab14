package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/metrics"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/service"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/store"
	"github.com/aussiebroadwan/clubauth/pkg/httpx"
	"github.com/aussiebroadwan/clubauth/pkg/slogx"

	_ "github.com/aussiebroadwan/clubauth/api/clubauth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Rate limit presets.
var (
	// LenientLimit suits probes and read-only admin calls.
	LenientLimit = httpx.RateLimitConfig{RequestsPerWindow: 120, Window: time.Minute, Burst: 20}

	// LoginLimit caps vendor logins triggered through the API per service.
	// The login throttle spaces the real vendor traffic; this only stops a
	// runaway client from queueing hundreds of waiters.
	LoginLimit = httpx.RateLimitConfig{RequestsPerWindow: 12, Window: time.Minute, Burst: 4}
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	adminToken   string
	startTime    time.Time
	logger       *slog.Logger

	// store may be nil when persistence is disabled.
	store       store.Store
	AuthService *service.AuthService
}

func NewRouter(auth *service.AuthService, st store.Store, adminToken, buildVersion string, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		adminToken:   adminToken,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		AuthService:  auth,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}
	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSessions()
	r.registerAudit()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			ClubAuth Vendor Session API
//	@version		0.1.0
//	@description	Admin API for the vendor session cache. Opens, lists and drops authenticated ClubOS and ClubHub sessions and exposes the login audit trail.
//	@description
//	@description				Sessions never leave the process; responses only carry diagnostics.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/clubauth
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	AdminToken
//	@in							header
//	@name						Authorization
//	@description				Static admin token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) admin(h http.Handler, limit httpx.RateLimitConfig, key httpx.KeyExtractor) http.Handler {
	return httpx.Chain(h,
		httpx.RateLimitMiddleware(limit, key),
		httpx.AdminTokenMiddleware(r.adminToken),
	)
}

func (r *Router) registerSessions() {
	h := &SessionsHandler{AuthService: r.AuthService}

	r.Mux.Handle("GET /v1/sessions",
		r.admin(http.HandlerFunc(h.HandleList), LenientLimit, httpx.IPKeyExtractor))

	// Keyed by IP and service so one vendor's queue cannot starve the other.
	r.Mux.Handle("POST /v1/sessions/{service}",
		r.admin(http.HandlerFunc(h.HandleLogin), LoginLimit,
			httpx.CompositeKeyExtractor(":", httpx.IPKeyExtractor, httpx.PathValueKeyExtractor("service"))))

	r.Mux.Handle("DELETE /v1/sessions/{service}/{username}",
		r.admin(http.HandlerFunc(h.HandleInvalidate), LenientLimit, httpx.IPKeyExtractor))
}

func (r *Router) registerAudit() {
	h := &LoginAttemptsHandler{AuthService: r.AuthService}

	r.Mux.Handle("GET /v1/login-attempts",
		r.admin(h, LenientLimit, httpx.IPKeyExtractor))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitMiddleware(LenientLimit, httpx.IPKeyExtractor),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.AuthService),
			httpx.RateLimitMiddleware(LenientLimit, httpx.IPKeyExtractor),
		),
	)
	r.Mux.Handle("GET /metrics", metrics.Handler())
}
