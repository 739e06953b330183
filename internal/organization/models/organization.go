package models

import (
	"errors"
	"time"
)

// Reserved identity returned for the deployment-wide system API key.
// The prefixed ID namespace guarantees it can never collide with an
// organization ID issued by the administrative path.
const (
	SystemOrganizationID   = "SYSTEM_GLOBAL_API_KEY_ORG"
	SystemOrganizationName = "System Global API Key Access"
)

// Organization is the tenant identity this resolver produces.
//
// Invariants:
//   - ID is opaque, unique, and immutable once created
//   - Name is non-empty
//   - CreatedAt is immutable after construction
//
// Creation and updates are owned by an external administrative path; this
// core only reads organizations. The optional policy fields (webhook URL,
// step/retry quotas, domain) are carried so downstream consumers of the
// resolved identity see them without a second store round trip. Nested
// collections (issued tokens, users, invites) are deliberately NOT part of
// this aggregate; they live in their own tables keyed by organization ID.
type Organization struct {
	ID                 string    `json:"organization_id"`
	Name               string    `json:"organization_name"`
	WebhookCallbackURL string    `json:"webhook_callback_url,omitempty"`
	MaxStepsPerRun     *int      `json:"max_steps_per_run,omitempty"`
	MaxRetriesPerStep  *int      `json:"max_retries_per_step,omitempty"`
	Domain             string    `json:"domain,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	ModifiedAt         time.Time `json:"modified_at"`
}

// NewOrganization validates invariants and constructs an Organization.
func NewOrganization(id, name string, now time.Time) (*Organization, error) {
	if id == "" {
		return nil, errors.New("organization id cannot be empty")
	}
	if name == "" {
		return nil, errors.New("organization name cannot be empty")
	}
	return &Organization{
		ID:         id,
		Name:       name,
		CreatedAt:  now,
		ModifiedAt: now,
	}, nil
}

// SystemOrganization synthesizes the reserved identity for the system-wide
// override key. It never touches the store, so the timestamps are stamped
// with the caller's clock.
func SystemOrganization(now time.Time) *Organization {
	return &Organization{
		ID:         SystemOrganizationID,
		Name:       SystemOrganizationName,
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

// IsSystem reports whether this is the reserved system identity.
func (o *Organization) IsSystem() bool {
	return o.ID == SystemOrganizationID
}

// TokenKind identifies the class of a presented credential in the token table.
type TokenKind string

const (
	// TokenKindAPI is an org-scoped signed API key presented via X-Api-Key
	// or as a bearer token.
	TokenKindAPI TokenKind = "api"
)

// AuthToken is one issued credential for an organization. Each issued token is
// individually revocable: the Valid flag is flipped false on revocation, and
// lookups match on the exact token string so rotated tokens for the same
// organization do not shadow each other.
type AuthToken struct {
	OrganizationID string    `json:"organization_id"`
	Kind           TokenKind `json:"token_type"`
	Token          string    `json:"token"`
	Valid          bool      `json:"valid"`
	CreatedAt      time.Time `json:"created_at"`
	ModifiedAt     time.Time `json:"modified_at"`
}
