package anomaly

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/vitalis-health/platform/pkg/common/logger"
	"github.com/vitalis-health/platform/pkg/server"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/anomalies/active", h.handleListActive).Methods(http.MethodGet)
	r.HandleFunc("/anomalies/{id}/resolve", h.handleResolve).Methods(http.MethodPost)
	r.HandleFunc("/detect", h.handleDetect).Methods(http.MethodPost)
}

func (h *Handler) handleListActive(w http.ResponseWriter, r *http.Request) {
	callerID := server.CallerID(r.Context())
	anomalies, err := h.service.ListActive(r.Context(), callerID, callerID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list active anomalies")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": anomalies})
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	anomalyID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid anomaly id", http.StatusBadRequest)
		return
	}
	resolved, err := h.service.ResolveAnomaly(r.Context(), server.CallerID(r.Context()), anomalyID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to resolve anomaly")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !resolved {
		http.Error(w, "anomaly not found or already resolved", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDetect triggers an on-demand detection run for the caller, used by
// collaborators after a device sync batch lands.
func (h *Handler) handleDetect(w http.ResponseWriter, r *http.Request) {
	callerID := server.CallerID(r.Context())
	result, err := h.service.RunDetection(r.Context(), callerID)
	if err != nil {
		logger.Log.WithError(err).Error("detection run failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"result": result})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
