// Package auth provides HTTP middleware that guards protected routes behind
// the credential resolver. Three variants exist: either credential scheme,
// raw API key only, and bearer token only; all share the resolver's single
// classify/resolve path.
package auth

import (
	"context"
	"net/http"

	"authgate/internal/organization/models"
	"authgate/pkg/platform/httputil"
	"authgate/pkg/requestcontext"
)

// HeaderAPIKey carries the raw shared-secret credential form.
const HeaderAPIKey = "X-Api-Key"

// OrganizationResolver is the narrow view of the resolver the middleware needs.
type OrganizationResolver interface {
	Resolve(ctx context.Context, apiKey, authorization string) (*models.Organization, error)
	ResolveAPIKey(ctx context.Context, apiKey string) (*models.Organization, error)
	ResolveBearer(ctx context.Context, authorization string) (*models.Organization, error)
}

// Context key for the resolved organization.
type contextKeyOrganization struct{}

// ContextKeyOrganization is exported for use in handler tests.
var ContextKeyOrganization = contextKeyOrganization{}

// GetOrganization retrieves the resolved organization from the context.
func GetOrganization(ctx context.Context) *models.Organization {
	org, ok := ctx.Value(ContextKeyOrganization).(*models.Organization)
	if !ok {
		return nil
	}
	return org
}

// RequireOrganization accepts either credential scheme. The X-Api-Key form
// takes precedence when both headers are present.
func RequireOrganization(resolver OrganizationResolver) func(http.Handler) http.Handler {
	return guard(func(r *http.Request) (*models.Organization, error) {
		return resolver.Resolve(r.Context(), r.Header.Get(HeaderAPIKey), r.Header.Get("Authorization"))
	})
}

// RequireAPIKey accepts only the X-Api-Key credential form, for endpoints
// that intentionally restrict the allowed scheme.
func RequireAPIKey(resolver OrganizationResolver) func(http.Handler) http.Handler {
	return guard(func(r *http.Request) (*models.Organization, error) {
		return resolver.ResolveAPIKey(r.Context(), r.Header.Get(HeaderAPIKey))
	})
}

// RequireBearer accepts only the Authorization Bearer credential form.
func RequireBearer(resolver OrganizationResolver) func(http.Handler) http.Handler {
	return guard(func(r *http.Request) (*models.Organization, error) {
		return resolver.ResolveBearer(r.Context(), r.Header.Get("Authorization"))
	})
}

func guard(resolve func(*http.Request) (*models.Organization, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Install the mutable slot before resolution so the resolver's
			// publish lands in request scope.
			ctx := requestcontext.WithOrganizationSlot(r.Context())

			org, err := resolve(r.WithContext(ctx))
			if err != nil {
				httputil.WriteError(w, err)
				return
			}

			ctx = context.WithValue(ctx, ContextKeyOrganization, org)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
