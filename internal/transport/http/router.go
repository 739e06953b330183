package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authmw "authgate/pkg/platform/middleware/auth"
	"authgate/pkg/platform/middleware/requestid"
)

// NewRouter wires the public surface. Every protected route sits behind one
// of the three resolver guards; which guard applies is a per-route decision,
// not a per-implementation one.
func NewRouter(h *Handler, resolver authmw.OrganizationResolver) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// Either credential scheme.
		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireOrganization(resolver))
			r.Get("/whoami", h.handleWhoAmI)
		})

		// Raw API key only: machine-to-machine surface.
		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireAPIKey(resolver))
			r.Get("/internal/status", h.handleInternalStatus)
		})

		// Bearer only: browser/session surface.
		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireBearer(resolver))
			r.Get("/me", h.handleMe)
		})
	})

	return r
}
