// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// typically set by middleware but consumed by services. By keeping this package free
// of net/http dependencies, services can import only what they need without pulling
// in HTTP-related code.
//
// The organization slot is mutable: middleware installs an empty slot at the start
// of the request, and the auth resolver fills it once resolution succeeds. Code that
// runs outside a request (workers, CLI) sees no slot, and publishing becomes a no-op.
//
// Usage in handlers and logging (read values):
//
//	orgID := requestcontext.OrganizationID(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (install/set values):
//
//	ctx = requestcontext.WithOrganizationSlot(ctx)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"sync"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	organizationSlotKey struct{}
	requestIDKey        struct{}
	requestTimeKey      struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyOrganizationSlot = organizationSlotKey{}
	ContextKeyRequestID        = requestIDKey{}
	ContextKeyRequestTime      = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Organization slot
// -----------------------------------------------------------------------------

// OrganizationSlot is the per-request mutable slot the resolver publishes into.
// It is installed before resolution runs and torn down with the request context.
type OrganizationSlot struct {
	mu   sync.Mutex
	id   string
	name string
}

func (s *OrganizationSlot) set(id, name string) {
	s.mu.Lock()
	s.id = id
	s.name = name
	s.mu.Unlock()
}

func (s *OrganizationSlot) get() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.name
}

// WithOrganizationSlot installs an empty organization slot into the context.
// Called by the request-handling layer before auth resolution runs.
func WithOrganizationSlot(ctx context.Context) context.Context {
	return context.WithValue(ctx, ContextKeyOrganizationSlot, &OrganizationSlot{})
}

// PublishOrganization writes the resolved organization into the current slot.
// No-op when no slot exists (background or non-request invocation).
func PublishOrganization(ctx context.Context, id, name string) {
	if slot, ok := ctx.Value(ContextKeyOrganizationSlot).(*OrganizationSlot); ok {
		slot.set(id, name)
	}
}

// OrganizationID retrieves the resolved organization ID from the context.
// Returns "" if no slot exists or nothing has been published yet.
func OrganizationID(ctx context.Context) string {
	if slot, ok := ctx.Value(ContextKeyOrganizationSlot).(*OrganizationSlot); ok {
		id, _ := slot.get()
		return id
	}
	return ""
}

// OrganizationName retrieves the resolved organization display name from the context.
func OrganizationName(ctx context.Context) string {
	if slot, ok := ctx.Value(ContextKeyOrganizationSlot).(*OrganizationSlot); ok {
		_, name := slot.get()
		return name
	}
	return ""
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
