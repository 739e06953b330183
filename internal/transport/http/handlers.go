package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	authmw "authgate/pkg/platform/middleware/auth"
	"authgate/pkg/requestcontext"
)

// HealthChecker reports backend health for the /healthz endpoint.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Handler is the thin HTTP layer. It delegates to the resolver via middleware
// and only reads the already-resolved identity.
type Handler struct {
	logger *slog.Logger
	health []HealthChecker
}

// NewHandler constructs the handler. Health checkers are optional; nil
// entries are ignored.
func NewHandler(logger *slog.Logger, health ...HealthChecker) *Handler {
	var hc []HealthChecker
	for _, h := range health {
		if h != nil {
			hc = append(hc, h)
		}
	}
	return &Handler{logger: logger, health: hc}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	for _, checker := range h.health {
		if err := checker.Health(r.Context()); err != nil {
			h.logger.ErrorContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWhoAmI echoes the resolved identity, reading it both from the typed
// context value and the ambient slot downstream consumers use.
func (h *Handler) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	org := authmw.GetOrganization(r.Context())
	if org == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "resolution_unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"organization_id":   org.ID,
		"organization_name": org.Name,
		"is_system":         org.IsSystem(),
		"request_id":        requestcontext.RequestID(r.Context()),
	})
}

func (h *Handler) handleInternalStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":          "ok",
		"organization_id": requestcontext.OrganizationID(r.Context()),
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	org := authmw.GetOrganization(r.Context())
	if org == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "resolution_unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"organization_id":      org.ID,
		"organization_name":    org.Name,
		"webhook_callback_url": org.WebhookCallbackURL,
		"domain":               org.Domain,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
