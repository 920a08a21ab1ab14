package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/metrics"
)

// HousekeepingService periodically evicts dead sessions, forgets idle
// throttle keys and trims the login attempt audit trail.
type HousekeepingService struct {
	Auth      *AuthService
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping worker. A non-positive
// interval defaults to one minute; a non-positive retention keeps attempts
// forever.
func NewHousekeepingService(auth *AuthService, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HousekeepingService{
		Auth:      auth,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to end it.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup runs one pass. Each step is independent.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	evicted := s.Auth.Cache().Sweep()
	pruned := s.Auth.Throttle().Prune()

	counts := s.Auth.Cache().Counts()
	for _, svc := range s.Auth.Services() {
		metrics.CachedSessions.WithLabelValues(string(svc)).Set(float64(counts[svc]))
	}

	var trimmed int64
	if s.Auth.Store != nil && s.Retention > 0 {
		cutoff := s.Auth.now().Add(-s.Retention)
		n, err := s.Auth.Store.LoginAttempts().DeleteLoginAttemptsBefore(ctx, cutoff)
		if err != nil {
			s.Logger.Error("failed to delete old login attempts", "error", err)
		}
		trimmed = n
	}

	if evicted > 0 || trimmed > 0 {
		s.Logger.Info("housekeeping cleanup completed",
			"sessions_evicted", evicted,
			"throttle_keys_pruned", pruned,
			"login_attempts_deleted", trimmed,
		)
		return
	}
	s.Logger.Debug("housekeeping cleanup completed", "throttle_keys_pruned", pruned)
}

