package signals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vitalis-health/platform/pkg/catalog"
	"github.com/vitalis-health/platform/pkg/common/logger"
	"github.com/vitalis-health/platform/pkg/common/models"
	"github.com/vitalis-health/platform/pkg/observability/metrics"
)

// InstanceStore is the persistence surface the capture service needs.
// *Repository satisfies it; tests substitute fakes.
type InstanceStore interface {
	CreateInstance(ctx context.Context, inst models.SignalInstance) error
	CreateInstanceForProposal(ctx context.Context, inst models.SignalInstance, proposalID uuid.UUID) (models.SignalInstance, error)
	SupersedeInstance(ctx context.Context, userID, oldID uuid.UUID, replacement models.SignalInstance) error
	Latest(ctx context.Context, userID uuid.UUID, signalID string) (models.SignalInstance, bool, error)
	History(ctx context.Context, userID uuid.UUID, signalID string, limit int) ([]models.SignalInstance, error)
	Get(ctx context.Context, userID, instanceID uuid.UUID) (models.SignalInstance, bool, error)
}

// EventPublisher emits capture events for downstream consumers. Publishing is
// best-effort: a broker outage never fails a capture.
type EventPublisher interface {
	PublishSignalEvent(ctx context.Context, event models.SignalEvent) error
}

type Service struct {
	catalog   *catalog.Catalog
	store     InstanceStore
	cache     *LatestCache
	publisher EventPublisher
	nowFunc   func() time.Time
}

// NewService wires the capture pipeline. cache and publisher may be nil.
func NewService(cat *catalog.Catalog, store InstanceStore, cache *LatestCache, publisher EventPublisher) *Service {
	return &Service{
		catalog:   cat,
		store:     store,
		cache:     cache,
		publisher: publisher,
		nowFunc:   time.Now,
	}
}

// Capture validates and persists one observation. Each step short-circuits
// with a typed error; nothing is written unless every gate passes.
func (s *Service) Capture(ctx context.Context, callerID uuid.UUID, req models.CaptureRequest) (models.SignalInstance, error) {
	if callerID == uuid.Nil || callerID != req.UserID {
		return models.SignalInstance{}, NewError(CodeUnauthorized, "caller does not own this user")
	}

	def, err := s.catalog.Lookup(req.SignalID)
	if err != nil {
		metrics.IncCapturesRejected()
		return models.SignalInstance{}, NewError(CodeUnknownSignal, fmt.Sprintf("signal %q is not in the catalog", req.SignalID))
	}

	if !def.SourceAllowed(req.Source) {
		metrics.IncCapturesRejected()
		return models.SignalInstance{}, NewError(CodeSourceNotAllowed, fmt.Sprintf("source %q not allowed for signal %s", req.Source, def.ID))
	}

	unit, err := def.ResolveUnit(req.Unit)
	if err != nil {
		metrics.IncCapturesRejected()
		return models.SignalInstance{}, NewError(CodeInvalidUnit, err.Error())
	}

	if err := def.ValidateValue(req.Value); err != nil {
		metrics.IncCapturesRejected()
		return models.SignalInstance{}, NewError(CodeValidationFailed, err.Error())
	}

	safetyLevel := def.EvaluateSafety(req.Value)
	if safetyLevel == models.SafetyExtreme && !req.BypassSafetyGate {
		metrics.IncSafetyGateTriggered()
		return models.SignalInstance{}, NewError(CodeRequiresConfirmation,
			fmt.Sprintf("value for %s is medically extreme; re-submit with bypass_safety_gate to record it", def.ID))
	}

	now := s.nowFunc().UTC()
	capturedAt := now
	if req.CapturedAt != nil {
		capturedAt = req.CapturedAt.UTC()
	}

	inst := models.SignalInstance{
		ID:                   uuid.New(),
		UserID:               req.UserID,
		SignalID:             def.ID,
		Value:                req.Value,
		Unit:                 unit,
		Source:               req.Source,
		Confidence:           catalog.Reliability(req.Source),
		CapturedAt:           capturedAt,
		Context:              req.Context,
		SafetyLevel:          safetyLevel,
		RequiresConfirmation: safetyLevel == models.SafetyExtreme,
		CreatedAt:            now,
	}

	if req.ProposalID != nil {
		inst, err = s.store.CreateInstanceForProposal(ctx, inst, *req.ProposalID)
	} else {
		err = s.store.CreateInstance(ctx, inst)
	}
	if err != nil {
		var typed *Error
		if errors.As(err, &typed) {
			return models.SignalInstance{}, typed
		}
		logger.FromContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"user_id":   req.UserID,
			"signal_id": def.ID,
		}).Error("failed to persist signal instance")
		return models.SignalInstance{}, WrapStorage(err)
	}

	metrics.IncCapturesAccepted()
	// A caller-supplied CapturedAt may backfill behind an instance the cache
	// no longer holds, so only a server-timestamped capture is known to be
	// the latest. Backfills drop the key and let the next read repopulate
	// from the authoritative query.
	if req.CapturedAt != nil {
		s.cache.Invalidate(ctx, req.UserID, def.ID)
	} else {
		s.cache.Set(ctx, inst)
	}
	s.publishEvent(ctx, models.EventSignalCaptured, inst)

	return inst, nil
}

// Correct supersedes an existing instance with a replacement value. The old
// row is kept and marked, never mutated beyond the supersession pointer.
func (s *Service) Correct(ctx context.Context, callerID, userID, instanceID uuid.UUID, value models.SignalValue, unit string, bypassSafetyGate bool) (models.SignalInstance, error) {
	if callerID == uuid.Nil || callerID != userID {
		return models.SignalInstance{}, NewError(CodeUnauthorized, "caller does not own this user")
	}

	old, found, err := s.store.Get(ctx, userID, instanceID)
	if err != nil {
		return models.SignalInstance{}, WrapStorage(err)
	}
	if !found {
		return models.SignalInstance{}, NewError(CodeValidationFailed, "instance not found")
	}
	if old.SupersededBy != nil {
		return models.SignalInstance{}, NewError(CodeValidationFailed, "instance already superseded")
	}

	def, err := s.catalog.Lookup(old.SignalID)
	if err != nil {
		return models.SignalInstance{}, NewError(CodeUnknownSignal, old.SignalID)
	}
	resolvedUnit, err := def.ResolveUnit(unit)
	if err != nil {
		return models.SignalInstance{}, NewError(CodeInvalidUnit, err.Error())
	}
	if err := def.ValidateValue(value); err != nil {
		return models.SignalInstance{}, NewError(CodeValidationFailed, err.Error())
	}
	safetyLevel := def.EvaluateSafety(value)
	if safetyLevel == models.SafetyExtreme && !bypassSafetyGate {
		metrics.IncSafetyGateTriggered()
		return models.SignalInstance{}, NewError(CodeRequiresConfirmation,
			fmt.Sprintf("corrected value for %s is medically extreme; re-submit with bypass_safety_gate", def.ID))
	}

	now := s.nowFunc().UTC()
	replacement := models.SignalInstance{
		ID:                   uuid.New(),
		UserID:               userID,
		SignalID:             old.SignalID,
		Value:                value,
		Unit:                 resolvedUnit,
		Source:               models.SourceManual,
		Confidence:           catalog.Reliability(models.SourceManual),
		CapturedAt:           old.CapturedAt,
		Context:              old.Context,
		SafetyLevel:          safetyLevel,
		RequiresConfirmation: safetyLevel == models.SafetyExtreme,
		CreatedAt:            now,
	}

	if err := s.store.SupersedeInstance(ctx, userID, instanceID, replacement); err != nil {
		var typed *Error
		if errors.As(err, &typed) {
			return models.SignalInstance{}, typed
		}
		logger.FromContext(ctx).WithError(err).WithField("instance_id", instanceID).Error("failed to supersede instance")
		return models.SignalInstance{}, WrapStorage(err)
	}

	// The replacement keeps the original CapturedAt, which may not be the
	// user's latest observation, so the key is only dropped here.
	s.cache.Invalidate(ctx, userID, old.SignalID)
	s.publishEvent(ctx, models.EventSignalSuperseded, replacement)

	return replacement, nil
}

// GetLatestSignal returns the most recent non-superseded observation.
func (s *Service) GetLatestSignal(ctx context.Context, callerID, userID uuid.UUID, signalID string) (models.SignalInstance, bool, error) {
	if callerID == uuid.Nil || callerID != userID {
		return models.SignalInstance{}, false, NewError(CodeUnauthorized, "caller does not own this user")
	}
	if _, err := s.catalog.Lookup(signalID); err != nil {
		return models.SignalInstance{}, false, NewError(CodeUnknownSignal, signalID)
	}

	if inst, ok := s.cache.Get(ctx, userID, signalID); ok {
		return inst, true, nil
	}

	inst, found, err := s.store.Latest(ctx, userID, signalID)
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField("signal_id", signalID).Error("failed to read latest signal")
		return models.SignalInstance{}, false, WrapStorage(err)
	}
	if found {
		s.cache.Set(ctx, inst)
	}
	return inst, found, nil
}

// GetSignalHistory returns recent observations, newest first. An empty
// signalID spans all signals.
func (s *Service) GetSignalHistory(ctx context.Context, callerID, userID uuid.UUID, signalID string, limit int) ([]models.SignalInstance, error) {
	if callerID == uuid.Nil || callerID != userID {
		return nil, NewError(CodeUnauthorized, "caller does not own this user")
	}
	if signalID != "" {
		if _, err := s.catalog.Lookup(signalID); err != nil {
			return nil, NewError(CodeUnknownSignal, signalID)
		}
	}
	history, err := s.store.History(ctx, userID, signalID, limit)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Error("failed to read signal history")
		return nil, WrapStorage(err)
	}
	return history, nil
}

// Catalog exposes the definitions for read-only collaborators.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

func (s *Service) publishEvent(ctx context.Context, eventType string, inst models.SignalInstance) {
	if s.publisher == nil {
		return
	}
	event := models.SignalEvent{
		Type:       eventType,
		UserID:     inst.UserID,
		SignalID:   inst.SignalID,
		InstanceID: inst.ID,
		Source:     string(inst.Source),
		CapturedAt: inst.CapturedAt,
	}
	if err := s.publisher.PublishSignalEvent(ctx, event); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("instance_id", inst.ID).Warn("signal event publish failed")
	}
}
