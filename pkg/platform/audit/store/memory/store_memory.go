// Package memory provides an in-memory audit event store for development and
// tests. Production deployments plug a durable store behind the same
// interface.
package memory

import (
	"context"
	"sync"

	audit "authgate/pkg/platform/audit"
)

// InMemoryStore keeps events in insertion order, guarded by a mutex.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Append stores one event.
func (s *InMemoryStore) Append(ctx context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListByOrganization returns all events for the given organization ID.
func (s *InMemoryStore) ListByOrganization(ctx context.Context, orgID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.OrganizationID == orgID {
			out = append(out, e)
		}
	}
	return out, nil
}
