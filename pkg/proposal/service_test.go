package proposal

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vitalis-health/platform/pkg/catalog"
	"github.com/vitalis-health/platform/pkg/common/models"
	"github.com/vitalis-health/platform/pkg/redact"
	"github.com/vitalis-health/platform/pkg/signals"
)

// fakeProposalStore mirrors the repository's pending/resolved transitions in
// memory, including the single-winner semantics of the conditional updates.
type fakeProposalStore struct {
	proposals map[uuid.UUID]models.AISignalProposal
	now       func() time.Time
}

func newFakeProposalStore() *fakeProposalStore {
	return &fakeProposalStore{
		proposals: make(map[uuid.UUID]models.AISignalProposal),
		now:       time.Now,
	}
}

func (f *fakeProposalStore) Create(ctx context.Context, p models.AISignalProposal) error {
	f.proposals[p.ID] = p
	return nil
}

func (f *fakeProposalStore) Get(ctx context.Context, userID, proposalID uuid.UUID) (models.AISignalProposal, bool, error) {
	p, ok := f.proposals[proposalID]
	if !ok || p.UserID != userID {
		return models.AISignalProposal{}, false, nil
	}
	return p, true, nil
}

func (f *fakeProposalStore) ListPending(ctx context.Context, userID uuid.UUID, limit int) ([]models.AISignalProposal, error) {
	var out []models.AISignalProposal
	for _, p := range f.proposals {
		if p.UserID == userID && p.Status == models.ProposalPending {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProposalStore) Reject(ctx context.Context, userID, proposalID uuid.UUID) (bool, error) {
	p, ok := f.proposals[proposalID]
	if !ok || p.UserID != userID || p.Status != models.ProposalPending {
		return false, nil
	}
	now := f.now().UTC()
	p.Status = models.ProposalRejected
	p.ResolvedAt = &now
	f.proposals[proposalID] = p
	return true, nil
}

func (f *fakeProposalStore) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	expired := 0
	for id, p := range f.proposals {
		if p.Status == models.ProposalPending && p.CreatedAt.Before(cutoff) {
			now := f.now().UTC()
			p.Status = models.ProposalExpired
			p.ResolvedAt = &now
			f.proposals[id] = p
			expired++
		}
	}
	return expired, nil
}

// fakeCapture stands in for the capture pipeline and resolves the proposal
// the way the transactional repository path does.
type fakeCapture struct {
	store     *fakeProposalStore
	instances []models.SignalInstance
}

func (f *fakeCapture) Capture(ctx context.Context, callerID uuid.UUID, req models.CaptureRequest) (models.SignalInstance, error) {
	if req.ProposalID == nil {
		return models.SignalInstance{}, signals.NewError(signals.CodeValidationFailed, "missing proposal id")
	}
	p, ok := f.store.proposals[*req.ProposalID]
	if !ok || p.Status != models.ProposalPending {
		return models.SignalInstance{}, signals.NewError(signals.CodeAlreadyResolved, "proposal is not pending")
	}

	def, err := catalog.Default().Lookup(req.SignalID)
	if err != nil {
		return models.SignalInstance{}, signals.NewError(signals.CodeUnknownSignal, req.SignalID)
	}
	if def.EvaluateSafety(req.Value) == models.SafetyExtreme && !req.BypassSafetyGate {
		return models.SignalInstance{}, signals.NewError(signals.CodeRequiresConfirmation, "value is medically extreme")
	}

	now := f.store.now().UTC()
	p.Status = models.ProposalConfirmed
	p.ResolvedAt = &now
	f.store.proposals[*req.ProposalID] = p

	inst := models.SignalInstance{
		ID:           uuid.New(),
		UserID:       req.UserID,
		SignalID:     req.SignalID,
		Value:        req.Value,
		Unit:         req.Unit,
		Source:       req.Source,
		Confidence:   catalog.ConfirmedConfidence(p.AIConfidence),
		CapturedAt:   now,
		AIProposalID: req.ProposalID,
	}
	f.instances = append(f.instances, inst)
	return inst, nil
}

func newTestWorkflow() (*Service, *fakeProposalStore, *fakeCapture) {
	store := newFakeProposalStore()
	capture := &fakeCapture{store: store}
	return NewService(catalog.Default(), store, capture, redact.Default()), store, capture
}

func validRequest(userID uuid.UUID) models.CreateProposalRequest {
	return models.CreateProposalRequest{
		UserID:        userID,
		SignalID:      "sleep_duration",
		ProposedValue: models.NumericValue(7.5),
		ProposedUnit:  "hours",
		ExtractedFrom: "barely slept five hours... no wait, seven and a half",
		AIConfidence:  0.62,
	}
}

func TestCreateProposal(t *testing.T) {
	svc, store, _ := newTestWorkflow()
	userID := uuid.New()

	p, err := svc.CreateProposal(context.Background(), userID, validRequest(userID))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if p.Status != models.ProposalPending {
		t.Errorf("status = %s, want pending", p.Status)
	}
	if len(store.proposals) != 1 {
		t.Errorf("store holds %d proposals, want 1", len(store.proposals))
	}
}

func TestCreateProposalScrubsExcerpt(t *testing.T) {
	svc, store, _ := newTestWorkflow()
	userID := uuid.New()

	req := validRequest(userID)
	req.ExtractedFrom = "slept seven hours, email me at pat@example.com"
	p, err := svc.CreateProposal(context.Background(), userID, req)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(p.ExtractedFrom, "pat@example.com") {
		t.Errorf("excerpt kept a contact identifier: %q", p.ExtractedFrom)
	}
	if !strings.Contains(p.ExtractedFrom, "slept seven hours") {
		t.Errorf("excerpt lost health content: %q", p.ExtractedFrom)
	}
	if strings.Contains(store.proposals[p.ID].ExtractedFrom, "pat@example.com") {
		t.Error("stored excerpt must be scrubbed")
	}
}

func TestCreateProposalRejectsBadConfidence(t *testing.T) {
	svc, store, _ := newTestWorkflow()
	userID := uuid.New()

	for _, confidence := range []float64{-0.1, 1.1, 2} {
		req := validRequest(userID)
		req.AIConfidence = confidence
		_, err := svc.CreateProposal(context.Background(), userID, req)
		if !signals.IsCode(err, signals.CodeValidationFailed) {
			t.Errorf("confidence %.1f: error = %v, want validation_failed", confidence, err)
		}
	}
	if len(store.proposals) != 0 {
		t.Error("invalid proposals must not be stored")
	}
}

func TestCreateProposalValidatesUpFront(t *testing.T) {
	svc, _, _ := newTestWorkflow()
	userID := uuid.New()

	req := validRequest(userID)
	req.SignalID = "nope"
	if _, err := svc.CreateProposal(context.Background(), userID, req); !signals.IsCode(err, signals.CodeUnknownSignal) {
		t.Errorf("unknown signal error = %v", err)
	}

	req = validRequest(userID)
	req.ProposedValue = models.NumericValue(99)
	if _, err := svc.CreateProposal(context.Background(), userID, req); !signals.IsCode(err, signals.CodeValidationFailed) {
		t.Errorf("out-of-range value error = %v", err)
	}

	req = validRequest(userID)
	req.ProposedUnit = "fortnights"
	if _, err := svc.CreateProposal(context.Background(), userID, req); !signals.IsCode(err, signals.CodeInvalidUnit) {
		t.Errorf("bad unit error = %v", err)
	}

	// heart_rate_current only accepts device captures, so the extractor can
	// never propose it.
	req = validRequest(userID)
	req.SignalID = "heart_rate_current"
	req.ProposedValue = models.NumericValue(80)
	req.ProposedUnit = "bpm"
	if _, err := svc.CreateProposal(context.Background(), userID, req); !signals.IsCode(err, signals.CodeSourceNotAllowed) {
		t.Errorf("device-only signal error = %v", err)
	}
}

func TestCreateProposalChecksOwnership(t *testing.T) {
	svc, _, _ := newTestWorkflow()
	req := validRequest(uuid.New())
	if _, err := svc.CreateProposal(context.Background(), uuid.New(), req); !signals.IsCode(err, signals.CodeUnauthorized) {
		t.Errorf("cross-user create error = %v, want unauthorized", err)
	}
}

func TestConfirmProposalOnce(t *testing.T) {
	svc, store, capture := newTestWorkflow()
	userID := uuid.New()

	p, err := svc.CreateProposal(context.Background(), userID, validRequest(userID))
	if err != nil {
		t.Fatal(err)
	}

	inst, err := svc.ConfirmProposal(context.Background(), userID, p.ID, false)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if inst.Source != models.SourceChatConfirmed {
		t.Errorf("instance source = %s, want chat_confirmed", inst.Source)
	}
	if inst.Confidence != catalog.ConfirmedConfidence(0.62) {
		t.Errorf("confidence = %.3f, want boosted extractor confidence", inst.Confidence)
	}
	if store.proposals[p.ID].Status != models.ProposalConfirmed {
		t.Error("proposal should be confirmed")
	}
	if len(capture.instances) != 1 {
		t.Fatalf("confirmation produced %d instances, want exactly 1", len(capture.instances))
	}

	// Second confirmation must not produce another instance.
	_, err = svc.ConfirmProposal(context.Background(), userID, p.ID, false)
	if !signals.IsCode(err, signals.CodeAlreadyResolved) {
		t.Errorf("second confirm error = %v, want already_resolved", err)
	}
	if len(capture.instances) != 1 {
		t.Error("double confirmation must not duplicate the instance")
	}
}

func TestConfirmRespectsSafetyGate(t *testing.T) {
	svc, store, _ := newTestWorkflow()
	userID := uuid.New()

	req := models.CreateProposalRequest{
		UserID:        userID,
		SignalID:      "blood_pressure_systolic",
		ProposedValue: models.NumericValue(200),
		ProposedUnit:  "mmHg",
		ExtractedFrom: "doctor said my blood pressure was 200",
		AIConfidence:  0.8,
	}
	p, err := svc.CreateProposal(context.Background(), userID, req)
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.ConfirmProposal(context.Background(), userID, p.ID, false)
	if !signals.IsCode(err, signals.CodeRequiresConfirmation) {
		t.Fatalf("extreme confirm error = %v, want requires_confirmation", err)
	}
	if store.proposals[p.ID].Status != models.ProposalPending {
		t.Error("a safety-gated proposal stays pending")
	}

	inst, err := svc.ConfirmProposal(context.Background(), userID, p.ID, true)
	if err != nil {
		t.Fatalf("bypassed confirm failed: %v", err)
	}
	if inst.AIProposalID == nil || *inst.AIProposalID != p.ID {
		t.Error("instance should link back to the proposal")
	}
}

func TestRejectProposal(t *testing.T) {
	svc, store, _ := newTestWorkflow()
	userID := uuid.New()

	p, err := svc.CreateProposal(context.Background(), userID, validRequest(userID))
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.RejectProposal(context.Background(), userID, p.ID); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if store.proposals[p.ID].Status != models.ProposalRejected {
		t.Error("proposal should be rejected")
	}
	if store.proposals[p.ID].ResolvedAt == nil {
		t.Error("rejection should set resolved_at")
	}

	err = svc.RejectProposal(context.Background(), userID, p.ID)
	if !signals.IsCode(err, signals.CodeAlreadyResolved) {
		t.Errorf("second reject error = %v, want already_resolved", err)
	}

	// A rejected proposal can no longer be confirmed.
	if _, err := svc.ConfirmProposal(context.Background(), userID, p.ID, false); !signals.IsCode(err, signals.CodeAlreadyResolved) {
		t.Errorf("confirm after reject error = %v, want already_resolved", err)
	}
}

func TestSweeperExpiresStaleProposals(t *testing.T) {
	store := newFakeProposalStore()
	userID := uuid.New()
	stale := models.AISignalProposal{
		ID:        uuid.New(),
		UserID:    userID,
		SignalID:  "sleep_duration",
		Status:    models.ProposalPending,
		CreatedAt: time.Now().UTC().Add(-80 * time.Hour),
	}
	fresh := models.AISignalProposal{
		ID:        uuid.New(),
		UserID:    userID,
		SignalID:  "sleep_duration",
		Status:    models.ProposalPending,
		CreatedAt: time.Now().UTC().Add(-1 * time.Hour),
	}
	store.proposals[stale.ID] = stale
	store.proposals[fresh.ID] = fresh

	sweeper := NewSweeper(store, 72*time.Hour, time.Hour)
	sweeper.SweepOnce(context.Background())

	if store.proposals[stale.ID].Status != models.ProposalExpired {
		t.Error("stale proposal should be expired")
	}
	if store.proposals[fresh.ID].Status != models.ProposalPending {
		t.Error("fresh proposal should stay pending")
	}
}

func TestGetPendingProposals(t *testing.T) {
	svc, _, _ := newTestWorkflow()
	userID := uuid.New()

	if _, err := svc.CreateProposal(context.Background(), userID, validRequest(userID)); err != nil {
		t.Fatal(err)
	}
	p, err := svc.CreateProposal(context.Background(), userID, validRequest(userID))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.RejectProposal(context.Background(), userID, p.ID); err != nil {
		t.Fatal(err)
	}

	pending, err := svc.GetPendingProposals(context.Background(), userID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Errorf("pending count = %d, want 1", len(pending))
	}
}
