package proposal

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/vitalis-health/platform/pkg/common/logger"
	"github.com/vitalis-health/platform/pkg/common/models"
	"github.com/vitalis-health/platform/pkg/server"
	"github.com/vitalis-health/platform/pkg/signals"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/proposals", h.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/proposals/pending", h.handleListPending).Methods(http.MethodGet)
	r.HandleFunc("/proposals/{id}/confirm", h.handleConfirm).Methods(http.MethodPost)
	r.HandleFunc("/proposals/{id}/reject", h.handleReject).Methods(http.MethodPost)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	callerID := server.CallerID(r.Context())
	if req.UserID == uuid.Nil {
		req.UserID = callerID
	}

	p, err := h.service.CreateProposal(r.Context(), callerID, req)
	if err != nil {
		writeProposalError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"proposal": p})
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	proposalID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid proposal id", http.StatusBadRequest)
		return
	}
	var payload struct {
		BypassSafetyGate bool `json:"bypass_safety_gate,omitempty"`
	}
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
	}

	inst, err := h.service.ConfirmProposal(r.Context(), server.CallerID(r.Context()), proposalID, payload.BypassSafetyGate)
	if err != nil {
		writeProposalError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"instance": inst})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	proposalID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid proposal id", http.StatusBadRequest)
		return
	}
	if err := h.service.RejectProposal(r.Context(), server.CallerID(r.Context()), proposalID); err != nil {
		writeProposalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	proposals, err := h.service.GetPendingProposals(r.Context(), server.CallerID(r.Context()), limit)
	if err != nil {
		writeProposalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": proposals})
}

func writeProposalError(w http.ResponseWriter, err error) {
	var typed *signals.Error
	if !errors.As(err, &typed) {
		logger.Log.WithError(err).Error("unclassified proposal error")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	status := http.StatusUnprocessableEntity
	switch typed.Code {
	case signals.CodeUnknownSignal:
		status = http.StatusNotFound
	case signals.CodeUnauthorized:
		status = http.StatusForbidden
	case signals.CodeAlreadyResolved, signals.CodeRequiresConfirmation:
		status = http.StatusConflict
	case signals.CodeStorageFailure:
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    string(typed.Code),
			"message": typed.Message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
