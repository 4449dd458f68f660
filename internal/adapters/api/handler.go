package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/poyrazK/zonekeeper/internal/core/domain"
	"github.com/poyrazK/zonekeeper/internal/core/ports"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// APIHandler exposes rectify and check over HTTP.
type APIHandler struct {
	rectifier ports.Rectifier
	checker   ports.Checker
	checks    map[string]HealthCheck
	token     string
	logger    *slog.Logger
}

// NewAPIHandler creates and returns a new APIHandler instance.
func NewAPIHandler(rectifier ports.Rectifier, checker ports.Checker, token string, checks map[string]HealthCheck, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{rectifier: rectifier, checker: checker, checks: checks, token: token, logger: logger}
}

// RegisterRoutes registers the API routes with the provided ServeMux.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	// Public Routes
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /metrics", h.Metrics)

	auth := AuthMiddleware(h.token)

	mux.Handle("POST /zones/{zone}/rectify", auth(http.HandlerFunc(h.RectifyZone)))
	mux.Handle("POST /rectify-all", auth(http.HandlerFunc(h.RectifyAllZones)))
	mux.Handle("GET /zones/{zone}/check", auth(http.HandlerFunc(h.CheckZone)))
	mux.Handle("GET /zones/{zone}/ordering", auth(http.HandlerFunc(h.Ordering)))
}

// Metrics handles Prometheus metrics scraping requests.
func (h *APIHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// HealthCheck reports UP when every probe succeeds.
func (h *APIHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "UP"
	details := make(map[string]string)
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			status = "DEGRADED"
			details[name] = err.Error()
		} else {
			details[name] = "OK"
		}
	}

	code := http.StatusOK
	if status == "DEGRADED" {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, map[string]any{"status": status, "details": details})
}

func (h *APIHandler) RectifyZone(w http.ResponseWriter, r *http.Request) {
	zone, ok := h.zoneParam(w, r)
	if !ok {
		return
	}
	res, err := h.rectifier.RectifyZone(r.Context(), zone)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *APIHandler) RectifyAllZones(w http.ResponseWriter, r *http.Request) {
	res, err := h.rectifier.RectifyAllZones(r.Context())
	if res == nil {
		h.writeError(w, err)
		return
	}
	body := map[string]any{"result": res}
	if err != nil {
		body["error"] = err.Error()
	}
	h.writeJSON(w, http.StatusOK, body)
}

// CheckZone always answers 200 with the report; a failing zone is data.
func (h *APIHandler) CheckZone(w http.ResponseWriter, r *http.Request) {
	zone, ok := h.zoneParam(w, r)
	if !ok {
		return
	}
	report, err := h.checker.CheckZone(r.Context(), zone)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// Ordering answers the closest names around ?name= in the zone's ordering.
func (h *APIHandler) Ordering(w http.ResponseWriter, r *http.Request) {
	zone, ok := h.zoneParam(w, r)
	if !ok {
		return
	}
	raw := r.URL.Query().Get("name")
	if raw == "" {
		http.Error(w, "missing name parameter", http.StatusBadRequest)
		return
	}
	name := domain.NewName(raw)
	if !name.IsPartOf(zone) {
		http.Error(w, "name is not part of the zone", http.StatusBadRequest)
		return
	}
	before, after, err := h.rectifier.ClosestNames(r.Context(), zone, name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]domain.Name{"name": name, "before": before, "after": after})
}

func (h *APIHandler) zoneParam(w http.ResponseWriter, r *http.Request) (domain.Name, bool) {
	zone, err := domain.ParseZoneName(r.PathValue("zone"))
	if err != nil {
		http.Error(w, "Invalid zone name: "+err.Error(), http.StatusBadRequest)
		return "", false
	}
	return zone, true
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrZoneNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrPresigned):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrNoSOA):
		code = http.StatusUnprocessableEntity
	}
	if code == http.StatusInternalServerError {
		h.logger.Error("api request failed", "error", err)
	}
	http.Error(w, err.Error(), code)
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
