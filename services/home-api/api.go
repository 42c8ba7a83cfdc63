package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/hendranatadiria/tfg-backend/internal/livecache"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// APIHandler sdružuje handlery REST API dashboardu.
// Drží referenci na Service (logika) a Logger.
type APIHandler struct {
	svc    *Service
	logger *slog.Logger
}

// NewAPIHandler vytváří novou instanci handleru.
func NewAPIHandler(svc *Service, logger *slog.Logger) *APIHandler {
	return &APIHandler{svc: svc, logger: logger}
}

// RegisterRoutes mapuje URL cesty na handlery.
// Cesty jsou celé na kořenovém routeru: jen ten odpoví na špatnou metodu 405.
func (h *APIHandler) RegisterRoutes(r *mux.Router) {
	// Seznam zařízení s posledním stavem (Dashboard)
	r.HandleFunc("/api/devices", h.handleListDevices).Methods(http.MethodGet)

	// Aktuální stav jednoho zařízení z Valkey.
	// {id} je proměnná v URL, čte se přes mux.Vars.
	r.HandleFunc("/api/devices/{id}/live", h.handleLive).Methods(http.MethodGet)

	// Historie měření (nejnovější první)
	r.HandleFunc("/api/levels", h.handleLevels).Methods(http.MethodGet)
	r.HandleFunc("/api/temperatures", h.handleTemperatures).Methods(http.MethodGet)
}

// handleListDevices: GET /api/devices
func (h *APIHandler) handleListDevices(w http.ResponseWriter, r *http.Request) {
	// Volání business logiky, kontext requestu nese zrušení od klienta
	devices, err := h.svc.Devices(r.Context())
	if err != nil {
		h.logger.Error("Failed to list devices", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// Serializace do JSONu přímo do HTTP odpovědi
	h.writeJSON(w, http.StatusOK, devices)
}

// handleLevels: GET /api/levels?limit=100
func (h *APIHandler) handleLevels(w http.ResponseWriter, r *http.Request) {
	// 1. Parametr 'limit' z query stringu
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}

	// 2. Volání business logiky
	rows, err := h.svc.Levels(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to load levels", "limit", limit, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, rows)
}

// handleTemperatures: GET /api/temperatures?limit=100
func (h *APIHandler) handleTemperatures(w http.ResponseWriter, r *http.Request) {
	// 1. Parametr 'limit' z query stringu
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}

	// 2. Volání business logiky
	rows, err := h.svc.Temperatures(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to load temperatures", "limit", limit, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, rows)
}

// handleLive: GET /api/devices/{id}/live
func (h *APIHandler) handleLive(w http.ResponseWriter, r *http.Request) {
	// 1. Extrakce ID z URL
	id := mux.Vars(r)["id"]

	// 2. Dotaz do cache a převod chyby na HTTP status
	snap, err := h.svc.Live(r.Context(), id)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, snap)
	case errors.Is(err, errLiveDisabled):
		h.writeError(w, http.StatusServiceUnavailable, "live cache is not configured")
	case errors.Is(err, livecache.ErrNotCached):
		h.writeError(w, http.StatusNotFound, "no live data for device")
	default:
		h.logger.Error("Live lookup failed", "device_id", id, "error", err)
		h.writeError(w, http.StatusBadGateway, "live cache unavailable")
	}
}

// limit přečte ?limit=N. Chybí → 100, mimo 1..1000 nebo nečíselné → 400.
func (h *APIHandler) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxLimit {
		h.writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 1000")
		return 0, false
	}
	return n, true
}

// writeJSON nastaví hlavičku, status a zapíše tělo odpovědi.
func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to write JSON response", "error", err)
	}
}

// writeError vrací chybu jako {"error": "..."}.
func (h *APIHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}
