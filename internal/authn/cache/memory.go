package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"authgate/internal/organization/models"
)

type entry struct {
	org       *models.Organization
	expiresAt time.Time
}

// Memory is a bounded in-process ResolutionCache: LRU eviction when full,
// per-entry absolute expiry checked on every read. The LRU is safe for
// concurrent use; expiry uses the injected clock.
type Memory struct {
	entries *lru.Cache[string, entry]
	clock   Clock
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithClock sets the clock used for expiry stamps and checks.
func WithClock(clock Clock) MemoryOption {
	return func(m *Memory) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewMemory constructs a Memory cache holding at most maxEntries entries.
func NewMemory(maxEntries int, opts ...MemoryOption) (*Memory, error) {
	entries, err := lru.New[string, entry](maxEntries)
	if err != nil {
		return nil, err
	}
	m := &Memory{entries: entries, clock: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Memory) Get(ctx context.Context, credential string) (*models.Organization, bool, error) {
	e, ok := m.entries.Get(credential)
	if !ok {
		return nil, false, nil
	}
	if !m.clock().Before(e.expiresAt) {
		// Expired entries are removed lazily on read. A concurrent Put for
		// the same key may race this Remove; the worst case is evicting a
		// freshly recomputed entry, which only costs one extra store lookup.
		m.entries.Remove(credential)
		return nil, false, nil
	}
	return e.org, true, nil
}

func (m *Memory) Put(ctx context.Context, credential string, org *models.Organization, ttl time.Duration) error {
	m.entries.Add(credential, entry{org: org, expiresAt: m.clock().Add(ttl)})
	return nil
}

func (m *Memory) Bust(ctx context.Context, credential string) error {
	m.entries.Remove(credential)
	return nil
}

// Len reports the number of live-or-expired entries currently held.
func (m *Memory) Len() int {
	return m.entries.Len()
}
