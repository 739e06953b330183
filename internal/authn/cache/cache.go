// Package cache memoizes resolved organizations keyed by the exact presented
// credential string. Entries carry an absolute expiry stamped at insertion
// (fixed TTL, not sliding); an entry past its TTL is never returned. The cache
// is deliberately never invalidated on revocation; the TTL is the staleness
// bound. Bust allows out-of-band invalidation for callers that need immediate
// effect.
package cache

import (
	"context"
	"time"

	"authgate/internal/organization/models"
)

// ResolutionCache is the memoization layer consulted on the token path.
// Implementations must be safe for concurrent lookups and inserts. A backend
// failure is reported as an error; callers treat it as a miss, never as a
// rejection.
type ResolutionCache interface {
	// Get returns the cached organization for the credential, or ok=false on
	// a miss (including expired entries).
	Get(ctx context.Context, credential string) (org *models.Organization, ok bool, err error)

	// Put stores a resolved organization with the given TTL, stamped against
	// the implementation's clock at insertion time.
	Put(ctx context.Context, credential string, org *models.Organization, ttl time.Duration) error

	// Bust removes the entry for the credential, if any.
	Bust(ctx context.Context, credential string) error
}

// Clock abstracts wall-clock reads so TTL boundaries are testable without
// sleeping.
type Clock func() time.Time
