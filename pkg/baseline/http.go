package baseline

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/vitalis-health/platform/pkg/catalog"
	"github.com/vitalis-health/platform/pkg/common/logger"
	"github.com/vitalis-health/platform/pkg/server"
)

type Handler struct {
	engine            *Engine
	catalog           *catalog.Catalog
	defaultWindowDays int
}

func NewHandler(engine *Engine, cat *catalog.Catalog, defaultWindowDays int) *Handler {
	if defaultWindowDays <= 0 {
		defaultWindowDays = 30
	}
	return &Handler{engine: engine, catalog: cat, defaultWindowDays: defaultWindowDays}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/signals/{signalId}/trend", h.handleTrend).Methods(http.MethodGet)
	r.HandleFunc("/baselines/{metric}", h.handleGetBaseline).Methods(http.MethodGet)
}

func (h *Handler) handleTrend(w http.ResponseWriter, r *http.Request) {
	signalID := mux.Vars(r)["signalId"]
	days := parseIntParam(r, "days", h.defaultWindowDays)
	callerID := server.CallerID(r.Context())

	trend, err := h.engine.ComputeTrend(r.Context(), h.catalog, callerID, signalID, days)
	if err != nil {
		writeBaselineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"trend": trend})
}

func (h *Handler) handleGetBaseline(w http.ResponseWriter, r *http.Request) {
	metric := mux.Vars(r)["metric"]
	if _, err := h.catalog.Lookup(metric); err != nil {
		http.Error(w, "unknown metric", http.StatusNotFound)
		return
	}
	windowDays := parseIntParam(r, "window_days", h.defaultWindowDays)
	callerID := server.CallerID(r.Context())

	b, err := h.engine.GetBaseline(r.Context(), callerID, metric, windowDays)
	if err != nil {
		writeBaselineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"baseline": b})
}

func writeBaselineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		http.Error(w, "unknown signal", http.StatusNotFound)
	case errors.Is(err, ErrInsufficientData):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error": map[string]string{
				"code":    "insufficient_data",
				"message": "not enough observations in the window to compute a baseline",
			},
		})
	default:
		logger.Log.WithError(err).Error("baseline request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
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
