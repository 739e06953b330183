package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authgate/internal/authn"
	"authgate/internal/authn/cache"
	"authgate/internal/authn/token"
	"authgate/internal/organization/models"
	"authgate/internal/organization/store"
	audit "authgate/pkg/platform/audit"
	"authgate/pkg/platform/audit/publisher"
	auditmemory "authgate/pkg/platform/audit/store/memory"
	"authgate/pkg/platform/sentinel"
	"authgate/pkg/requestcontext"
)

const (
	signingKey   = "unit-test-signing-key"
	systemAPIKey = "S3CR3T"
)

// fakeClock drives both the resolver and the cache in tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingStore wraps the in-memory store, counting calls and optionally
// failing or stalling to simulate outages and slow lookups.
type countingStore struct {
	*store.InMemory

	orgCalls   atomic.Int64
	tokenCalls atomic.Int64

	mu    sync.Mutex
	fail  error
	delay time.Duration
}

func newCountingStore() *countingStore {
	return &countingStore{InMemory: store.NewInMemory()}
}

func (s *countingStore) setFailure(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

func (s *countingStore) setDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

func (s *countingStore) before() error {
	s.mu.Lock()
	fail, delay := s.fail, s.delay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return fail
}

func (s *countingStore) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	s.orgCalls.Add(1)
	if err := s.before(); err != nil {
		return nil, err
	}
	return s.InMemory.GetOrganization(ctx, id)
}

func (s *countingStore) IsTokenActive(ctx context.Context, orgID string, kind models.TokenKind, rawToken string) (bool, error) {
	s.tokenCalls.Add(1)
	if err := s.before(); err != nil {
		return false, err
	}
	return s.InMemory.IsTokenActive(ctx, orgID, kind, rawToken)
}

type fixture struct {
	clock    *fakeClock
	store    *countingStore
	cache    *cache.Memory
	resolver *Resolver
	codec    *token.Codec
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	clock := newFakeClock()
	st := newCountingStore()
	c, err := cache.NewMemory(128, cache.WithClock(clock.Now))
	require.NoError(t, err)

	base := []Option{
		WithClock(clock.Now),
		WithLogger(slog.New(slog.DiscardHandler)),
	}
	res := New(Config{
		SigningKey:   signingKey,
		SystemAPIKey: systemAPIKey,
		CacheTTL:     time.Hour,
		StoreTimeout: time.Second,
	}, st, c, append(base, opts...)...)

	return &fixture{
		clock:    clock,
		store:    st,
		cache:    c,
		resolver: res,
		codec:    token.NewCodec(signingKey),
	}
}

// issue registers an organization and a signed, active token for it.
func (f *fixture) issue(t *testing.T, orgID string, expiresIn time.Duration) string {
	t.Helper()

	org, err := models.NewOrganization(orgID, "Org "+orgID, f.clock.Now())
	require.NoError(t, err)
	f.store.PutOrganization(org)

	raw, err := f.codec.Encode(orgID, f.clock.Now().Add(expiresIn))
	require.NoError(t, err)
	f.store.PutToken(&models.AuthToken{
		OrganizationID: orgID,
		Kind:           models.TokenKindAPI,
		Token:          raw,
		Valid:          true,
	})
	return raw
}

func TestResolveMissingCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.resolver.Resolve(ctx, "", "")
	assert.True(t, authn.IsKind(err, authn.KindMissingCredential))

	_, err = f.resolver.ResolveAPIKey(ctx, "")
	assert.True(t, authn.IsKind(err, authn.KindMissingCredential))

	_, err = f.resolver.ResolveBearer(ctx, "")
	assert.True(t, authn.IsKind(err, authn.KindMissingCredential))

	assert.Zero(t, f.store.orgCalls.Load(), "no store call for missing credentials")
}

func TestSystemBypassSkipsStoreAndCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The store being down must not matter for the system key.
	f.store.setFailure(fmt.Errorf("store down: %w", sentinel.ErrUnavailable))

	org, err := f.resolver.Resolve(ctx, systemAPIKey, "")
	require.NoError(t, err)
	assert.Equal(t, models.SystemOrganizationID, org.ID)
	assert.Equal(t, models.SystemOrganizationName, org.Name)
	assert.True(t, org.IsSystem())

	assert.Zero(t, f.store.orgCalls.Load())
	assert.Zero(t, f.store.tokenCalls.Load())
	assert.Zero(t, f.cache.Len(), "bypass must not populate the cache")
}

func TestSystemBypassPrecedenceOverBearer(t *testing.T) {
	f := newFixture(t)

	org, err := f.resolver.Resolve(context.Background(), systemAPIKey, "Bearer garbage")
	require.NoError(t, err)
	assert.True(t, org.IsSystem())
}

func TestSystemBypassNotConfigured(t *testing.T) {
	clock := newFakeClock()
	st := newCountingStore()
	c, err := cache.NewMemory(128, cache.WithClock(clock.Now))
	require.NoError(t, err)

	res := New(Config{SigningKey: signingKey}, st, c,
		WithClock(clock.Now), WithLogger(slog.New(slog.DiscardHandler)))

	// Without a configured override secret the literal key is just an
	// (invalid) token.
	_, err = res.ResolveAPIKey(context.Background(), systemAPIKey)
	assert.True(t, authn.IsKind(err, authn.KindInvalidCredential))
}

func TestResolveCachesWithinTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raw := f.issue(t, "o_acme", 24*time.Hour)

	for range 5 {
		org, err := f.resolver.ResolveAPIKey(ctx, raw)
		require.NoError(t, err)
		assert.Equal(t, "o_acme", org.ID)
	}

	assert.Equal(t, int64(1), f.store.orgCalls.Load(), "store queried once per credential per TTL window")
	assert.Equal(t, int64(1), f.store.tokenCalls.Load())

	// Past the TTL the store is consulted again.
	f.clock.Advance(time.Hour + time.Minute)
	_, err := f.resolver.ResolveAPIKey(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.store.orgCalls.Load())
}

func TestResolveExpiredToken(t *testing.T) {
	f := newFixture(t)
	raw := f.issue(t, "o_acme", -time.Minute)

	_, err := f.resolver.ResolveAPIKey(context.Background(), raw)
	assert.True(t, authn.IsKind(err, authn.KindExpiredCredential))
	assert.Zero(t, f.store.orgCalls.Load(), "expired tokens never reach the store")
}

func TestExpiredTokenRejectedDespiteEarlierCaching(t *testing.T) {
	// Token expiry and cache TTL are independent clocks: a token cached
	// while valid must stop resolving the moment its own expiry passes,
	// even though the cache TTL window has not elapsed.
	f := newFixture(t)
	ctx := context.Background()
	raw := f.issue(t, "o_acme", 30*time.Minute)

	_, err := f.resolver.ResolveAPIKey(ctx, raw)
	require.NoError(t, err)

	f.clock.Advance(31 * time.Minute)

	_, err = f.resolver.ResolveAPIKey(ctx, raw)
	assert.True(t, authn.IsKind(err, authn.KindExpiredCredential),
		"expected expired rejection, got %v", err)
}

func TestRevocationHonoredWithinStalenessBound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raw := f.issue(t, "o_acme", 24*time.Hour)

	_, err := f.resolver.ResolveAPIKey(ctx, raw)
	require.NoError(t, err)

	// Flip the credential inactive in the store.
	require.NoError(t, f.store.SetTokenValid(raw, false))

	// Within the TTL the cached identity is still served (by design).
	f.clock.Advance(30 * time.Minute)
	org, err := f.resolver.ResolveAPIKey(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "o_acme", org.ID)

	// After the TTL the revocation takes effect.
	f.clock.Advance(31 * time.Minute)
	_, err = f.resolver.ResolveAPIKey(ctx, raw)
	assert.True(t, authn.IsKind(err, authn.KindRevokedCredential))
}

func TestBustMakesRevocationImmediate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raw := f.issue(t, "o_acme", 24*time.Hour)

	_, err := f.resolver.ResolveAPIKey(ctx, raw)
	require.NoError(t, err)

	require.NoError(t, f.store.SetTokenValid(raw, false))
	require.NoError(t, f.resolver.Bust(ctx, raw))

	_, err = f.resolver.ResolveAPIKey(ctx, raw)
	assert.True(t, authn.IsKind(err, authn.KindRevokedCredential))
}

func TestResolveWrongSigningKey(t *testing.T) {
	f := newFixture(t)

	other := token.NewCodec("a-different-key")
	raw, err := other.Encode("o_acme", f.clock.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = f.resolver.ResolveAPIKey(context.Background(), raw)
	assert.True(t, authn.IsKind(err, authn.KindInvalidCredential))
}

func TestResolveMalformedAuthorizationHeader(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, header := range []string{"Basic abcdef", "bearer", "Token abc", "Bearer   "} {
		_, err := f.resolver.ResolveBearer(ctx, header)
		assert.True(t, authn.IsKind(err, authn.KindMalformedHeader), "header %q: got %v", header, err)
	}
	assert.Zero(t, f.store.orgCalls.Load(), "malformed headers never reach codec or store")
}

func TestResolveBearerToken(t *testing.T) {
	f := newFixture(t)
	raw := f.issue(t, "o_acme", 24*time.Hour)

	org, err := f.resolver.ResolveBearer(context.Background(), "Bearer "+raw)
	require.NoError(t, err)
	assert.Equal(t, "o_acme", org.ID)

	// Scheme comparison is case-insensitive.
	org, err = f.resolver.ResolveBearer(context.Background(), "bearer "+raw)
	require.NoError(t, err)
	assert.Equal(t, "o_acme", org.ID)
}

func TestResolveUnknownOrganization(t *testing.T) {
	f := newFixture(t)

	raw, err := f.codec.Encode("o_ghost", f.clock.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = f.resolver.ResolveAPIKey(context.Background(), raw)
	assert.True(t, authn.IsKind(err, authn.KindUnknownOrganization))
}

func TestResolveTokenNotRegistered(t *testing.T) {
	f := newFixture(t)

	org, err := models.NewOrganization("o_acme", "Acme", f.clock.Now())
	require.NoError(t, err)
	f.store.PutOrganization(org)

	// Well-signed token for an existing org, but never registered in the
	// token table: indistinguishable from revoked.
	raw, err := f.codec.Encode("o_acme", f.clock.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = f.resolver.ResolveAPIKey(context.Background(), raw)
	assert.True(t, authn.IsKind(err, authn.KindRevokedCredential))
}

func TestStoreOutageFailsClosedAndIsNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raw := f.issue(t, "o_acme", 24*time.Hour)

	f.store.setFailure(fmt.Errorf("connection refused: %w", sentinel.ErrUnavailable))

	_, err := f.resolver.ResolveAPIKey(ctx, raw)
	assert.True(t, authn.IsKind(err, authn.KindResolutionUnavailable))

	// Outage resolved: the next request succeeds because failures were
	// never cached.
	f.store.setFailure(nil)
	org, err := f.resolver.ResolveAPIKey(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "o_acme", org.ID)
}

func TestConfigurationFaultWithoutSigningKey(t *testing.T) {
	clock := newFakeClock()
	st := newCountingStore()
	c, err := cache.NewMemory(128, cache.WithClock(clock.Now))
	require.NoError(t, err)

	res := New(Config{}, st, c,
		WithClock(clock.Now), WithLogger(slog.New(slog.DiscardHandler)))

	_, err = res.ResolveBearer(context.Background(), "Bearer some-token")
	assert.True(t, authn.IsKind(err, authn.KindConfigurationFault))
}

func TestConcurrentFirstResolutionCollapses(t *testing.T) {
	f := newFixture(t)
	raw := f.issue(t, "o_acme", 24*time.Hour)
	f.store.setDelay(30 * time.Millisecond)

	const callers = 20
	var wg sync.WaitGroup
	orgs := make([]*models.Organization, callers)
	errs := make([]error, callers)

	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			orgs[i], errs[i] = f.resolver.ResolveAPIKey(context.Background(), raw)
		}()
	}
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, "o_acme", orgs[i].ID)
	}
	assert.LessOrEqual(t, f.store.orgCalls.Load(), int64(3),
		"concurrent misses for one credential must collapse to a bounded number of store lookups")
}

func TestPublishesIntoRequestSlot(t *testing.T) {
	f := newFixture(t)
	raw := f.issue(t, "o_acme", 24*time.Hour)

	ctx := requestcontext.WithOrganizationSlot(context.Background())
	_, err := f.resolver.ResolveAPIKey(ctx, raw)
	require.NoError(t, err)

	assert.Equal(t, "o_acme", requestcontext.OrganizationID(ctx))
	assert.Equal(t, "Org o_acme", requestcontext.OrganizationName(ctx))
}

func TestPublishIsNoOpWithoutSlot(t *testing.T) {
	f := newFixture(t)
	raw := f.issue(t, "o_acme", 24*time.Hour)

	// Background invocation: no slot installed, resolution still works.
	org, err := f.resolver.ResolveAPIKey(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "o_acme", org.ID)
}

func TestCancelledRequestStillPopulatesCacheButNotContext(t *testing.T) {
	f := newFixture(t)
	raw := f.issue(t, "o_acme", 24*time.Hour)

	ctx := requestcontext.WithOrganizationSlot(context.Background())
	ctx, cancel := context.WithCancel(ctx)
	cancel()

	org, err := f.resolver.ResolveAPIKey(ctx, raw)
	require.NoError(t, err, "store lookup survives request cancellation")
	assert.Equal(t, "o_acme", org.ID)

	assert.Empty(t, requestcontext.OrganizationID(ctx),
		"torn-down request context must not be written to")

	// The result was cached for the next caller.
	_, err = f.resolver.ResolveAPIKey(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.store.orgCalls.Load())
}

func TestAuditTrailRecordsDecisions(t *testing.T) {
	pub := publisher.NewPublisher(auditmemory.NewInMemoryStore())
	defer pub.Close()

	f := newFixture(t, WithAuditPublisher(pub))
	ctx := context.Background()
	raw := f.issue(t, "o_acme", 24*time.Hour)

	_, err := f.resolver.ResolveAPIKey(ctx, raw)
	require.NoError(t, err)
	_, err = f.resolver.Resolve(ctx, systemAPIKey, "")
	require.NoError(t, err)

	events, err := pub.List(ctx, "o_acme")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventAuthResolved), events[0].Action)
	assert.NotContains(t, events[0].CredentialPrefix, raw, "full credential must not be recorded")

	events, err = pub.List(ctx, models.SystemOrganizationID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventAuthSystemBypass), events[0].Action)
}

func TestRejectionErrorsCarryKindNotGuesswork(t *testing.T) {
	assert.Equal(t, authn.KindResolutionUnavailable, authn.KindOf(errors.New("mystery")),
		"unexpected faults must fail closed as server errors")
}
