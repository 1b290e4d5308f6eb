package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/sessionwatch/internal/domain/model"
	"github.com/ericfisherdev/sessionwatch/internal/domain/port/driven"
)

// Outcome messages surfaced to callers. Deliberately generic: the remote's
// own error detail is logged, not echoed.
const (
	msgCredentialRejected = "credential rejected by remote"
	msgTransportFailure   = "could not reach remote endpoint"
)

// VerifyService verifies stored credentials against the remote identity
// endpoint and reconciles the persisted records with what it observes.
// It exposes the two engine entry points: VerifyOne and VerifyAll.
type VerifyService struct {
	store       driven.CredentialStore
	probe       driven.SessionProbe
	now         func() time.Time
	concurrency int
	logger      *slog.Logger

	// sf collapses concurrent verifications of the same credential, e.g. a
	// manual verify racing a scheduled batch, into one probe call.
	sf singleflight.Group
}

// NewVerifyService creates a VerifyService. now may be nil for wall-clock
// time; concurrency bounds the batch fan-out and is clamped to at least 1.
func NewVerifyService(
	store driven.CredentialStore,
	probe driven.SessionProbe,
	now func() time.Time,
	concurrency int,
	logger *slog.Logger,
) *VerifyService {
	if now == nil {
		now = time.Now
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &VerifyService{
		store:       store,
		probe:       probe,
		now:         now,
		concurrency: concurrency,
		logger:      logger,
	}
}

// VerifyOne verifies a single credential and reconciles its stored record.
// Returns driven.ErrCredentialNotFound when the owner has no such
// credential; persistence failures are returned alongside the outcome that
// could not be written. Probe failures are not errors: they come back as an
// outcome whose payload describes the failure.
func (s *VerifyService) VerifyOne(ctx context.Context, ownerID, id int64) (model.VerificationOutcome, error) {
	cred, err := s.store.GetByID(ctx, ownerID, id)
	if err != nil {
		return model.VerificationOutcome{}, err
	}

	return s.reconcile(ctx, cred)
}

// VerifyAll verifies every credential owned by ownerID with bounded
// parallelism. Per-item failures of any kind are captured in that item's
// report entry and never abort the remaining items; the report preserves
// the store's listing order. Only the initial listing can fail.
func (s *VerifyService) VerifyAll(ctx context.Context, ownerID int64) (model.BatchReport, error) {
	start := s.now()

	creds, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return model.BatchReport{}, fmt.Errorf("list credentials for owner %d: %w", ownerID, err)
	}

	items := make([]model.BatchItem, len(creds))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, cred := range creds {
		g.Go(func() error {
			items[i] = s.verifyItem(ctx, cred)
			return nil
		})
	}
	// Workers never return errors; Wait only synchronizes.
	_ = g.Wait()

	report := model.BatchReport{Items: items}
	for _, item := range items {
		if item.Success {
			report.Verified++
		} else {
			report.Failed++
		}
	}

	s.logger.Info("batch verification complete",
		"owner", ownerID,
		"credentials", len(items),
		"verified", report.Verified,
		"failed", report.Failed,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return report, nil
}

// ImportToken creates a credential from a bare session token, verifying it
// inline and backfilling the label from the observed account. A token the
// remote rejects still produces a stored inactive record so the owner can
// correct it later.
func (s *VerifyService) ImportToken(ctx context.Context, ownerID int64, secret, notes string) (model.Credential, model.VerificationOutcome, error) {
	now := s.now().UTC()

	cred := model.Credential{
		OwnerID:        ownerID,
		Label:          "imported account",
		Secret:         secret,
		Tier:           model.TierFree,
		Status:         model.StatusInactive,
		Notes:          notes,
		LastVerifiedAt: &now,
	}

	desc, err := s.probe.Probe(ctx, secret)
	outcome := s.classifyProbeResult(desc, err, now, cred.Status)

	if err == nil {
		cred.Tier = outcome.Tier
		cred.Status = outcome.Status
		if outcome.Tier != model.TierFree && outcome.ExpiresAt != nil {
			cred.ExpiresAt = outcome.ExpiresAt
		}
		if outcome.ObservedEmail != "" {
			cred.Label = outcome.ObservedEmail
		} else if outcome.ObservedName != "" {
			cred.Label = outcome.ObservedName
		}
	}

	created, createErr := s.store.Create(ctx, cred)
	if createErr != nil {
		return model.Credential{}, outcome, fmt.Errorf("store imported credential: %w", createErr)
	}

	s.logger.Info("credential imported",
		"owner", ownerID,
		"credential", created.ID,
		"tier", string(created.Tier),
		"status", string(created.Status),
	)

	return created, outcome, nil
}

// verifyItem runs one batch item and converts the result into a report
// entry. It never lets an error escape: that is the batch isolation
// contract.
func (s *VerifyService) verifyItem(ctx context.Context, cred model.Credential) model.BatchItem {
	item := model.BatchItem{
		CredentialID: cred.ID,
		Label:        cred.Label,
	}

	outcome, err := s.reconcile(ctx, cred)
	item.Tier = outcome.Tier
	item.Status = outcome.Status

	if err != nil {
		// The classification (if any) is preserved above; only the write or
		// lookup failed.
		item.ErrorMessage = err.Error()
		s.logger.Error("batch item failed",
			"owner", cred.OwnerID,
			"credential", cred.ID,
			"error", err,
		)
		return item
	}

	item.Success = outcome.Valid
	item.ErrorMessage = outcome.ErrorMessage
	return item
}

// reconcile verifies one loaded credential and writes the outcome back.
// Concurrent calls for the same credential share a single execution.
func (s *VerifyService) reconcile(ctx context.Context, cred model.Credential) (model.VerificationOutcome, error) {
	key := fmt.Sprintf("%d/%d", cred.OwnerID, cred.ID)
	v, err, _ := s.sf.Do(key, func() (any, error) {
		return s.reconcileOnce(ctx, cred)
	})

	outcome, _ := v.(model.VerificationOutcome)
	return outcome, err
}

// reconcileOnce is the single-credential verification algorithm: probe,
// classify, then apply exactly the fields the probe result justifies
// touching. The write always happens before return so the persisted record
// and the returned outcome agree.
func (s *VerifyService) reconcileOnce(ctx context.Context, cred model.Credential) (model.VerificationOutcome, error) {
	now := s.now().UTC()

	desc, probeErr := s.probe.Probe(ctx, cred.Secret)
	outcome := s.classifyProbeResult(desc, probeErr, now, cred.Status)

	patch := driven.CredentialPatch{LastVerifiedAt: &now}

	switch {
	case probeErr == nil:
		// Full reconciliation: tier, status, and expiry all observed.
		tier := outcome.Tier
		status := outcome.Status
		patch.Tier = &tier
		patch.Status = &status
		if tier == model.TierFree {
			patch.ClearExpiresAt = true
		} else if outcome.ExpiresAt != nil {
			patch.ExpiresAt = outcome.ExpiresAt
		}

	case outcome.ErrorKind == string(driven.ProbeKindRejected):
		// The credential is confirmed unusable: downgrade status but keep
		// the last-known tier rather than discarding it.
		status := outcome.Status
		patch.Status = &status

	default:
		// Transport failure: the credential's state is unknown, so only the
		// verification timestamp moves.
	}

	if _, err := s.store.Update(ctx, cred.OwnerID, cred.ID, patch); err != nil {
		return outcome, fmt.Errorf("apply reconciliation for credential %d: %w", cred.ID, err)
	}

	s.logger.Debug("credential verified",
		"owner", cred.OwnerID,
		"credential", cred.ID,
		"valid", outcome.Valid,
		"tier", string(outcome.Tier),
		"status", string(outcome.Status),
	)

	return outcome, nil
}

// classifyProbeResult turns a probe result into a VerificationOutcome
// without side effects. currentStatus is echoed on transport failures,
// where the stored status must not change.
func (s *VerifyService) classifyProbeResult(desc *model.SessionDescriptor, probeErr error, now time.Time, currentStatus model.Status) model.VerificationOutcome {
	if probeErr == nil {
		tier := ClassifyTier(desc)
		status := ResolveStatus(desc, now)
		return model.VerificationOutcome{
			Valid:         status == model.StatusActive,
			Tier:          tier,
			Status:        status,
			ObservedEmail: desc.Email,
			ObservedName:  desc.Name,
			ExpiresAt:     desc.ExpiresAt,
		}
	}

	var pe *driven.ProbeError
	if errors.As(probeErr, &pe) && pe.Kind == driven.ProbeKindRejected {
		return model.VerificationOutcome{
			Valid:        false,
			Tier:         model.TierUnknown,
			Status:       model.StatusInactive,
			ErrorKind:    string(driven.ProbeKindRejected),
			ErrorMessage: msgCredentialRejected,
		}
	}

	// Transport failure, or an unexpected error shape from a probe
	// implementation: either way the credential was not confirmed bad.
	return model.VerificationOutcome{
		Valid:        false,
		Tier:         model.TierUnknown,
		Status:       currentStatus,
		ErrorKind:    string(driven.ProbeKindTransport),
		ErrorMessage: msgTransportFailure,
	}
}
