package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/ericfisherdev/sessionwatch/internal/domain/port/driven"
)

// refreshRequest represents a manual re-verification trigger for one owner.
type refreshRequest struct {
	ownerID int64
	done    chan error
}

// VerifyScheduler re-verifies every stored credential on a fixed interval,
// one owner batch at a time. It also listens for manual refresh requests so
// the API can force a pass without waiting for the ticker. The engine itself
// never retries; this scheduler is the caller that schedules the next pass.
type VerifyScheduler struct {
	svc       *VerifyService
	store     driven.CredentialStore
	interval  time.Duration
	refreshCh chan refreshRequest
	logger    *slog.Logger
}

// NewVerifyScheduler creates a scheduler running a full pass every interval.
func NewVerifyScheduler(svc *VerifyService, store driven.CredentialStore, interval time.Duration, logger *slog.Logger) *VerifyScheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &VerifyScheduler{
		svc:       svc,
		store:     store,
		interval:  interval,
		refreshCh: make(chan refreshRequest),
		logger:    logger,
	}
}

// Start begins the verification loop. It runs an immediate pass, then one
// per interval, and serves manual refresh requests in between. Start blocks
// until the context is canceled.
func (s *VerifyScheduler) Start(ctx context.Context) {
	if err := s.verifyAllOwners(ctx); err != nil {
		s.logger.Error("initial verification pass failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("verify scheduler stopped")
			return
		case <-ticker.C:
			if err := s.verifyAllOwners(ctx); err != nil {
				s.logger.Error("verification pass failed", "error", err)
			}
		case req := <-s.refreshCh:
			_, err := s.svc.VerifyAll(ctx, req.ownerID)
			req.done <- err
		}
	}
}

// RefreshOwner triggers an immediate batch verification for one owner,
// bypassing the interval. It blocks until the pass completes or the context
// is canceled.
func (s *VerifyScheduler) RefreshOwner(ctx context.Context, ownerID int64) error {
	done := make(chan error, 1)
	req := refreshRequest{ownerID: ownerID, done: done}

	select {
	case s.refreshCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// verifyAllOwners runs one batch verification per known owner. Owner-level
// failures are logged and counted but do not stop the pass.
func (s *VerifyScheduler) verifyAllOwners(ctx context.Context) error {
	start := time.Now()

	owners, err := s.store.ListOwners(ctx)
	if err != nil {
		return err
	}

	var passErrors int
	for _, ownerID := range owners {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if _, err := s.svc.VerifyAll(ctx, ownerID); err != nil {
			s.logger.Error("owner verification failed", "owner", ownerID, "error", err)
			passErrors++
		}
	}

	s.logger.Info("verification pass complete",
		"owners", len(owners),
		"errors", passErrors,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return nil
}
