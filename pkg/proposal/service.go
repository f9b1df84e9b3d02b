package proposal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vitalis-health/platform/pkg/catalog"
	"github.com/vitalis-health/platform/pkg/common/logger"
	"github.com/vitalis-health/platform/pkg/common/models"
	"github.com/vitalis-health/platform/pkg/observability/metrics"
	"github.com/vitalis-health/platform/pkg/redact"
	"github.com/vitalis-health/platform/pkg/signals"
)

// Store is the persistence surface the workflow needs; *Repository
// satisfies it.
type Store interface {
	Create(ctx context.Context, p models.AISignalProposal) error
	Get(ctx context.Context, userID, proposalID uuid.UUID) (models.AISignalProposal, bool, error)
	ListPending(ctx context.Context, userID uuid.UUID, limit int) ([]models.AISignalProposal, error)
	Reject(ctx context.Context, userID, proposalID uuid.UUID) (bool, error)
	ExpireOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// CaptureService is the confirmation path into the capture pipeline. The
// pending->confirmed transition and the instance insert happen atomically
// inside it.
type CaptureService interface {
	Capture(ctx context.Context, callerID uuid.UUID, req models.CaptureRequest) (models.SignalInstance, error)
}

type Service struct {
	catalog  *catalog.Catalog
	store    Store
	capture  CaptureService
	scrubber *redact.Scrubber
	nowFunc  func() time.Time
}

// NewService wires the proposal workflow. scrubber may be nil, in which case
// chat excerpts are stored verbatim.
func NewService(cat *catalog.Catalog, store Store, capture CaptureService, scrubber *redact.Scrubber) *Service {
	return &Service{
		catalog:  cat,
		store:    store,
		capture:  capture,
		scrubber: scrubber,
		nowFunc:  time.Now,
	}
}

// CreateProposal records a candidate value suggested by the extractor. It is
// not a fact: no instance exists until the user confirms. Out-of-range
// extractor confidence is rejected outright since it indicates a caller bug.
func (s *Service) CreateProposal(ctx context.Context, callerID uuid.UUID, req models.CreateProposalRequest) (models.AISignalProposal, error) {
	if callerID == uuid.Nil || callerID != req.UserID {
		return models.AISignalProposal{}, signals.NewError(signals.CodeUnauthorized, "caller does not own this user")
	}
	if req.AIConfidence < 0 || req.AIConfidence > 1 {
		return models.AISignalProposal{}, signals.NewError(signals.CodeValidationFailed,
			fmt.Sprintf("extractor confidence %.3f outside [0,1]", req.AIConfidence))
	}

	def, err := s.catalog.Lookup(req.SignalID)
	if err != nil {
		return models.AISignalProposal{}, signals.NewError(signals.CodeUnknownSignal, req.SignalID)
	}
	if !def.SourceAllowed(models.SourceChatConfirmed) {
		return models.AISignalProposal{}, signals.NewError(signals.CodeSourceNotAllowed,
			fmt.Sprintf("signal %s does not accept chat-extracted values", def.ID))
	}
	if _, err := def.ResolveUnit(req.ProposedUnit); err != nil {
		return models.AISignalProposal{}, signals.NewError(signals.CodeInvalidUnit, err.Error())
	}
	// A proposal that can never pass capture validation is rejected up front
	// rather than parked until confirmation fails.
	if err := def.ValidateValue(req.ProposedValue); err != nil {
		return models.AISignalProposal{}, signals.NewError(signals.CodeValidationFailed, err.Error())
	}

	p := models.AISignalProposal{
		ID:            uuid.New(),
		UserID:        req.UserID,
		SignalID:      def.ID,
		ProposedValue: req.ProposedValue,
		ProposedUnit:  req.ProposedUnit,
		ExtractedFrom: s.scrubber.Scrub(req.ExtractedFrom),
		AIConfidence:  req.AIConfidence,
		Status:        models.ProposalPending,
		CreatedAt:     s.nowFunc().UTC(),
	}
	if err := s.store.Create(ctx, p); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("signal_id", def.ID).Error("failed to create proposal")
		return models.AISignalProposal{}, signals.WrapStorage(err)
	}

	metrics.IncProposalsCreated()
	return p, nil
}

// ConfirmProposal turns a pending proposal into exactly one instance. The
// capture pipeline runs in full, so the safety gate can still pause an
// extreme proposed value; re-invoke with bypass to record it anyway.
// Confirming an already-resolved proposal returns AlreadyResolved.
func (s *Service) ConfirmProposal(ctx context.Context, callerID, proposalID uuid.UUID, bypassSafetyGate bool) (models.SignalInstance, error) {
	p, found, err := s.store.Get(ctx, callerID, proposalID)
	if err != nil {
		return models.SignalInstance{}, signals.WrapStorage(err)
	}
	if !found {
		return models.SignalInstance{}, signals.NewError(signals.CodeValidationFailed, "proposal not found")
	}
	if p.Status != models.ProposalPending {
		return models.SignalInstance{}, signals.NewError(signals.CodeAlreadyResolved,
			fmt.Sprintf("proposal already %s", p.Status))
	}

	inst, err := s.capture.Capture(ctx, callerID, models.CaptureRequest{
		UserID:           p.UserID,
		SignalID:         p.SignalID,
		Value:            p.ProposedValue,
		Unit:             p.ProposedUnit,
		Source:           models.SourceChatConfirmed,
		ProposalID:       &p.ID,
		BypassSafetyGate: bypassSafetyGate,
	})
	if err != nil {
		return models.SignalInstance{}, err
	}

	metrics.IncProposalsConfirmed()
	return inst, nil
}

// RejectProposal resolves a pending proposal without producing an instance.
// Idempotent in effect but observable: resolving twice returns
// AlreadyResolved so callers can tell "worked" from "nothing to do".
func (s *Service) RejectProposal(ctx context.Context, callerID, proposalID uuid.UUID) error {
	rejected, err := s.store.Reject(ctx, callerID, proposalID)
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField("proposal_id", proposalID).Error("failed to reject proposal")
		return signals.WrapStorage(err)
	}
	if !rejected {
		return signals.NewError(signals.CodeAlreadyResolved, "proposal is not pending")
	}
	metrics.IncProposalsRejected()
	return nil
}

// GetPendingProposals lists the caller's unresolved proposals, newest first.
func (s *Service) GetPendingProposals(ctx context.Context, callerID uuid.UUID, limit int) ([]models.AISignalProposal, error) {
	proposals, err := s.store.ListPending(ctx, callerID, limit)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Error("failed to list pending proposals")
		return nil, signals.WrapStorage(err)
	}
	return proposals, nil
}
