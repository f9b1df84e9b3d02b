package signals

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/vitalis-health/platform/pkg/catalog"
	"github.com/vitalis-health/platform/pkg/common/logger"
	"github.com/vitalis-health/platform/pkg/common/models"
	"github.com/vitalis-health/platform/pkg/server"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/signals/capture", h.handleCapture).Methods(http.MethodPost)
	r.HandleFunc("/signals/{signalId}/latest", h.handleLatest).Methods(http.MethodGet)
	r.HandleFunc("/signals/history", h.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/instances/{id}/correct", h.handleCorrect).Methods(http.MethodPost)
	r.HandleFunc("/catalog", h.handleCatalog).Methods(http.MethodGet)
}

func (h *Handler) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req models.CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	callerID := server.CallerID(r.Context())
	if req.UserID == uuid.Nil {
		req.UserID = callerID
	}

	inst, err := h.service.Capture(r.Context(), callerID, req)
	if err != nil {
		writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"instance": inst})
}

func (h *Handler) handleCorrect(w http.ResponseWriter, r *http.Request) {
	instanceID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid instance id", http.StatusBadRequest)
		return
	}
	var payload struct {
		Value            models.SignalValue `json:"value"`
		Unit             string             `json:"unit,omitempty"`
		BypassSafetyGate bool               `json:"bypass_safety_gate,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	callerID := server.CallerID(r.Context())
	inst, err := h.service.Correct(r.Context(), callerID, callerID, instanceID, payload.Value, payload.Unit, payload.BypassSafetyGate)
	if err != nil {
		writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"instance": inst})
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	signalID := mux.Vars(r)["signalId"]
	callerID := server.CallerID(r.Context())

	inst, found, err := h.service.GetLatestSignal(r.Context(), callerID, callerID, signalID)
	if err != nil {
		writeCaptureError(w, err)
		return
	}
	if !found {
		http.Error(w, "no observations recorded", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"instance": inst})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	signalID := r.URL.Query().Get("signal_id")
	limit := parseLimit(r, 100)
	callerID := server.CallerID(r.Context())

	history, err := h.service.GetSignalHistory(r.Context(), callerID, callerID, signalID, limit)
	if err != nil {
		writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": history})
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	defs := h.service.Catalog().All()

	query := r.URL.Query()
	if query.Has("sex") || query.Has("age") || query.Has("pregnant") {
		userCtx := models.UserContext{BiologicalSex: query.Get("sex")}
		if age, err := strconv.Atoi(query.Get("age")); err == nil {
			userCtx.AgeYears = age
		}
		if pregnant, err := strconv.ParseBool(query.Get("pregnant")); err == nil {
			userCtx.Pregnant = pregnant
		}
		defs = catalog.FilterByContext(defs, userCtx)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"signals": defs})
}

// writeCaptureError maps the typed taxonomy onto HTTP statuses. Storage
// failures stay generic so schema and query details never leak.
func writeCaptureError(w http.ResponseWriter, err error) {
	var typed *Error
	if !errors.As(err, &typed) {
		logger.Log.WithError(err).Error("unclassified capture error")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	status := http.StatusUnprocessableEntity
	switch typed.Code {
	case CodeUnknownSignal:
		status = http.StatusNotFound
	case CodeUnauthorized:
		status = http.StatusForbidden
	case CodeRequiresConfirmation, CodeAlreadyResolved:
		status = http.StatusConflict
	case CodeStorageFailure:
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

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
