package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/domain"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/store"
)

// HousekeepingService periodically removes expired join sessions and tokens
// past their TTL so the tables do not grow without bound. The ledger also
// sweeps per-user on every mutation; this worker covers accounts that have
// gone quiet.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 minute.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Minute
	}

	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// This is non-blocking and should be called after the database is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

func (s *HousekeepingService) cleanup() {
	ctx := context.Background()
	now := time.Now()

	sessionCutoff := now.Add(-domain.JoinSessionTTL).UnixMilli()
	if err := s.Store.Sessions().DeleteExpiredSessions(ctx, sessionCutoff); err != nil {
		s.Logger.Error("failed to delete expired join sessions", "error", err)
		return
	}

	tokenCutoff := now.Add(-domain.TokenTTL).UnixMilli()
	if err := s.Store.Tokens().DeleteAllExpiredTokens(ctx, tokenCutoff); err != nil {
		s.Logger.Error("failed to delete expired tokens", "error", err)
		return
	}

	s.Logger.Debug("housekeeping sweep complete")
}
