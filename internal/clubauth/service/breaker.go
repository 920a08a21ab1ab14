package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerConfig configures the per-vendor circuit breaker. A zero
// FailureThreshold disables the breaker.
type BreakerConfig struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
	HalfOpenRequests uint32
}

// DefaultBreakerConfig trips after five consecutive vendor failures and
// probes again after a minute.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		OpenTimeout:      time.Minute,
		HalfOpenRequests: 1,
	}
}

// breaker guards one vendor's login flow. Only vendor-side failures count
// against it: a wrong password or a cancelled caller says nothing about
// the vendor's health.
type breaker struct {
	cb *gobreaker.CircuitBreaker[*domain.Session]
}

// callerDone marks a login error that surfaced after the caller's context
// ended. It reads and unwraps as the error it carries.
type callerDone struct{ err error }

func (e *callerDone) Error() string { return e.err.Error() }
func (e *callerDone) Unwrap() error { return e.err }

// vendorFault reports whether err counts against the vendor. A deadline
// that expired while the caller was still waiting is a vendor timeout and
// counts; cancellation never does.
func vendorFault(err error) bool {
	var done *callerDone
	switch {
	case err == nil:
		return false
	case errors.As(err, &done):
		return false
	case errors.Is(err, domain.ErrLoginRejected),
		errors.Is(err, domain.ErrCredentialsUnavailable),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}

func newBreaker(service domain.Service, cfg BreakerConfig, logger *slog.Logger) *breaker {
	if cfg.FailureThreshold == 0 {
		return nil
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}

	metrics.BreakerState.WithLabelValues(string(service)).Set(0)
	return &breaker{cb: gobreaker.NewCircuitBreaker[*domain.Session](gobreaker.Settings{
		Name:        string(service),
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool { return !vendorFault(err) },
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("vendor circuit state changed", "service", name, "from", from.String(), "to", to.String())
			metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.BreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})}
}

// Run executes login through the breaker. A nil breaker runs it directly.
// ctx is the context login runs on; once it has ended, whatever login
// returns is the caller's doing and is not held against the vendor.
func (b *breaker) Run(ctx context.Context, login func() (*domain.Session, error)) (*domain.Session, error) {
	if b == nil {
		return login()
	}
	s, err := b.cb.Execute(func() (*domain.Session, error) {
		s, err := login()
		if err != nil && ctx.Err() != nil {
			err = &callerDone{err: err}
		}
		return s, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &domain.LoginError{State: domain.StateFetchLoginPage, Reason: "vendor circuit open", Err: domain.ErrCircuitOpen}
	}
	return s, err
}

// State reports the breaker state, "closed" for a disabled breaker.
func (b *breaker) State() string {
	if b == nil {
		return gobreaker.StateClosed.String()
	}
	return b.cb.State().String()
}
