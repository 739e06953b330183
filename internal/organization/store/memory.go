package store

import (
	"context"
	"fmt"
	"sync"

	"authgate/internal/organization/models"
	"authgate/pkg/platform/sentinel"
)

// InMemory is a map-backed Store for tests and single-node development.
// Admin-side mutators (Put, SetTokenValid) stand in for the external
// administrative path that owns organization lifecycle in production.
type InMemory struct {
	mu     sync.RWMutex
	orgs   map[string]*models.Organization
	tokens map[string]*models.AuthToken // keyed by raw token string
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		orgs:   make(map[string]*models.Organization),
		tokens: make(map[string]*models.AuthToken),
	}
}

func (s *InMemory) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.orgs[id]
	if !ok {
		return nil, fmt.Errorf("organization %q: %w", id, sentinel.ErrNotFound)
	}
	cp := *org
	return &cp, nil
}

func (s *InMemory) IsTokenActive(ctx context.Context, orgID string, kind models.TokenKind, rawToken string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tok, ok := s.tokens[rawToken]
	if !ok {
		return false, nil
	}
	if tok.OrganizationID != orgID || tok.Kind != kind {
		return false, nil
	}
	return tok.Valid, nil
}

// PutOrganization inserts or replaces an organization.
func (s *InMemory) PutOrganization(org *models.Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *org
	s.orgs[org.ID] = &cp
}

// PutToken registers an issued credential for an organization.
func (s *InMemory) PutToken(tok *models.AuthToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tok
	s.tokens[tok.Token] = &cp
}

// SetTokenValid flips the validity flag for the exact token string.
// Returns sentinel.ErrNotFound when the token was never registered.
func (s *InMemory) SetTokenValid(rawToken string, valid bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[rawToken]
	if !ok {
		return fmt.Errorf("token: %w", sentinel.ErrNotFound)
	}
	tok.Valid = valid
	return nil
}
