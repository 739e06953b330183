// Package store provides read access to organizations and their issued
// credentials. The resolver only reads; creation and rotation are owned by an
// external administrative path.
package store

import (
	"context"

	"authgate/internal/organization/models"
)

// Store answers the two questions the resolver needs from the backing store:
// "does this organization exist" and "is this exact presented credential
// still valid for it".
//
// Implementations wrap infrastructure failures in sentinel.ErrUnavailable so
// callers can tell "the store is down" apart from "not found" / "inactive"
// and fail the request closed instead of silently denying it.
type Store interface {
	// GetOrganization returns the organization for the given ID, or
	// sentinel.ErrNotFound.
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)

	// IsTokenActive reports whether the exact raw token string is registered
	// and still valid for the organization. Matching is by exact token, not
	// by subject, so superseded tokens are individually revocable.
	// Returns false (no error) for unknown or invalidated tokens.
	IsTokenActive(ctx context.Context, orgID string, kind models.TokenKind, rawToken string) (bool, error)
}
