// Package resolver implements the credential dispatch state machine: classify
// the presented credential material, choose the system-bypass or token path,
// and orchestrate codec, cache, and store into a resolved organization.
package resolver

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"authgate/internal/authn"
	"authgate/internal/authn/cache"
	"authgate/internal/authn/token"
	"authgate/internal/organization/models"
	"authgate/internal/organization/store"
	"authgate/internal/platform/metrics"
	audit "authgate/pkg/platform/audit"
	"authgate/pkg/platform/sentinel"
	"authgate/pkg/requestcontext"
)

const (
	// DefaultCacheTTL bounds how long a resolved identity is served without
	// consulting the store; it is also the revocation staleness bound.
	DefaultCacheTTL = time.Hour

	// DefaultStoreTimeout caps the only blocking point on the resolution
	// path. A timeout surfaces as resolution_unavailable, never as a
	// credential rejection.
	DefaultStoreTimeout = 5 * time.Second
)

// Config is the process-wide immutable configuration for the resolver,
// injected at construction rather than read from ambient globals.
type Config struct {
	// SigningKey verifies org-issued tokens. Empty means the token path is
	// not wired up and resolves to a configuration fault.
	SigningKey string

	// SystemAPIKey, when non-empty, is the deployment-wide override secret.
	// A raw credential equal to it resolves to the reserved system identity
	// without touching codec, store, or cache.
	SystemAPIKey string

	// CacheTTL is the fixed TTL for resolution cache entries.
	CacheTTL time.Duration

	// StoreTimeout bounds each backing-store lookup.
	StoreTimeout time.Duration
}

// AuditPublisher receives auth decision events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Resolver resolves presented credentials to organizations. Safe for
// concurrent use; the cache is the only shared mutable state and in-flight
// misses for the same credential are collapsed via singleflight.
type Resolver struct {
	cfg    Config
	codec  *token.Codec
	store  store.Store
	cache  cache.ResolutionCache
	clock  func() time.Time
	logger *slog.Logger
	meter  *metrics.Metrics
	audit  AuditPublisher
	group  singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock sets the clock used for token expiry comparison.
func WithClock(clock func() time.Time) Option {
	return func(r *Resolver) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.meter = m
	}
}

// WithAuditPublisher attaches an audit sink for auth decisions.
func WithAuditPublisher(p AuditPublisher) Option {
	return func(r *Resolver) {
		r.audit = p
	}
}

// New constructs a Resolver.
func New(cfg Config, st store.Store, c cache.ResolutionCache, opts ...Option) *Resolver {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	r := &Resolver{
		cfg:    cfg,
		store:  st,
		cache:  c,
		clock:  time.Now,
		logger: slog.Default(),
	}
	if cfg.SigningKey != "" {
		r.codec = token.NewCodec(cfg.SigningKey)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve accepts a credential of either kind: the raw X-Api-Key form or the
// Authorization Bearer form. The raw form takes precedence when both are
// present.
func (r *Resolver) Resolve(ctx context.Context, apiKey, authorization string) (*models.Organization, error) {
	switch {
	case apiKey != "":
		return r.resolveAPIKey(ctx, apiKey)
	case authorization != "":
		return r.resolveBearer(ctx, authorization)
	default:
		return nil, r.reject(ctx, "", authn.NewError(authn.KindMissingCredential, "no authentication provided"))
	}
}

// ResolveAPIKey accepts only the raw X-Api-Key credential form.
func (r *Resolver) ResolveAPIKey(ctx context.Context, apiKey string) (*models.Organization, error) {
	if apiKey == "" {
		return nil, r.reject(ctx, "", authn.NewError(authn.KindMissingCredential, "X-Api-Key header missing"))
	}
	return r.resolveAPIKey(ctx, apiKey)
}

// ResolveBearer accepts only the Authorization Bearer credential form.
func (r *Resolver) ResolveBearer(ctx context.Context, authorization string) (*models.Organization, error) {
	if authorization == "" {
		return nil, r.reject(ctx, "", authn.NewError(authn.KindMissingCredential, "Authorization header missing"))
	}
	return r.resolveBearer(ctx, authorization)
}

// Bust removes the cache entry for a credential, for callers that need a
// revocation to take effect before the staleness bound elapses.
func (r *Resolver) Bust(ctx context.Context, credential string) error {
	return r.cache.Bust(ctx, credential)
}

func (r *Resolver) resolveAPIKey(ctx context.Context, apiKey string) (*models.Organization, error) {
	if r.cfg.SystemAPIKey != "" && constantTimeEqual(apiKey, r.cfg.SystemAPIKey) {
		org := models.SystemOrganization(r.clock())
		r.publish(ctx, org)
		r.meter.RecordResolution("system_bypass")
		r.emitAudit(ctx, audit.EventAuthSystemBypass, org.ID, "", apiKey)
		r.logger.InfoContext(ctx, "system api key accepted",
			"request_id", requestcontext.RequestID(ctx),
		)
		return org, nil
	}
	return r.resolveToken(ctx, apiKey)
}

func (r *Resolver) resolveBearer(ctx context.Context, authorization string) (*models.Organization, error) {
	scheme, raw, found := strings.Cut(strings.TrimSpace(authorization), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return nil, r.reject(ctx, authorization, authn.NewError(authn.KindMalformedHeader, "expected 'Bearer <token>'"))
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, r.reject(ctx, authorization, authn.NewError(authn.KindMalformedHeader, "empty bearer token"))
	}
	return r.resolveToken(ctx, raw)
}

// resolveToken is the shared token path: cache check, then decode + store
// confirmation under singleflight on a miss.
func (r *Resolver) resolveToken(ctx context.Context, raw string) (*models.Organization, error) {
	if org, ok, err := r.cache.Get(ctx, raw); err != nil {
		// A cache backend fault is a miss, never a rejection.
		r.logger.WarnContext(ctx, "resolution cache unavailable", "error", err)
	} else if ok {
		r.meter.RecordCacheHit()
		r.publish(ctx, org)
		return org, nil
	}
	r.meter.RecordCacheMiss()

	v, err, _ := r.group.Do(raw, func() (any, error) {
		return r.resolveUncached(ctx, raw)
	})
	if err != nil {
		return nil, r.reject(ctx, raw, err)
	}

	org := v.(*models.Organization)
	r.publish(ctx, org)
	r.meter.RecordResolution("resolved")
	r.emitAudit(ctx, audit.EventAuthResolved, org.ID, "", raw)
	return org, nil
}

func (r *Resolver) resolveUncached(ctx context.Context, raw string) (*models.Organization, error) {
	if r.codec == nil {
		return nil, authn.NewError(authn.KindConfigurationFault, "no signing key configured")
	}

	payload, err := r.codec.Decode(raw)
	if err != nil {
		return nil, authn.WrapError(err, authn.KindInvalidCredential, "could not validate credential")
	}
	if !payload.ExpiresAt.After(r.clock()) {
		return nil, authn.NewError(authn.KindExpiredCredential, "credential is expired")
	}

	// Store lookups survive cancellation of the invoking request: the result
	// is keyed by credential, not request, so peers collapsed into this
	// flight still get an answer and the cache gets populated. The timeout
	// is the bound instead.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.StoreTimeout)
	defer cancel()

	start := r.clock()
	org, err := r.store.GetOrganization(sctx, payload.Subject)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, authn.WrapError(err, authn.KindUnknownOrganization, "organization not found")
		}
		return nil, authn.WrapError(err, authn.KindResolutionUnavailable, "organization lookup failed")
	}

	active, err := r.store.IsTokenActive(sctx, org.ID, models.TokenKindAPI, raw)
	r.meter.ObserveStoreCheck(r.clock().Sub(start))
	if err != nil {
		return nil, authn.WrapError(err, authn.KindResolutionUnavailable, "credential check failed")
	}
	if !active {
		return nil, authn.NewError(authn.KindRevokedCredential, "credential is not registered or has been revoked")
	}

	// Cap the entry lifetime at the token's own expiry so a cache hit can
	// never serve a token past its exp claim; once the token expires the
	// entry misses and the decode path rejects it.
	ttl := r.cfg.CacheTTL
	if remaining := payload.ExpiresAt.Sub(r.clock()); remaining < ttl {
		ttl = remaining
	}
	if err := r.cache.Put(sctx, raw, org, ttl); err != nil {
		r.logger.WarnContext(ctx, "resolution cache put failed", "error", err)
	}

	return org, nil
}

// publish writes the resolved identity into the per-request slot. Skipped
// when the invoking request has already been torn down.
func (r *Resolver) publish(ctx context.Context, org *models.Organization) {
	if ctx.Err() != nil {
		return
	}
	requestcontext.PublishOrganization(ctx, org.ID, org.Name)
}

// reject records the rejection in logs, metrics, and audit, then returns it.
func (r *Resolver) reject(ctx context.Context, credential string, err error) error {
	kind := authn.KindOf(err)
	r.meter.RecordResolution(string(kind))
	r.emitAudit(ctx, audit.EventAuthRejected, "", string(kind), credential)

	logAttrs := []any{
		"kind", string(kind),
		"request_id", requestcontext.RequestID(ctx),
	}
	if credential != "" {
		logAttrs = append(logAttrs, "credential_prefix", CredentialPrefix(credential))
	}
	switch kind {
	case authn.KindResolutionUnavailable, authn.KindConfigurationFault:
		r.logger.ErrorContext(ctx, "credential resolution failed", append(logAttrs, "error", err)...)
	default:
		r.logger.WarnContext(ctx, "credential rejected", logAttrs...)
	}
	return err
}

func (r *Resolver) emitAudit(ctx context.Context, action audit.AuditEvent, orgID, reason, credential string) {
	if r.audit == nil {
		return
	}
	_ = r.audit.Emit(ctx, audit.Event{
		Timestamp:        r.clock(),
		OrganizationID:   orgID,
		Action:           string(action),
		Reason:           reason,
		CredentialPrefix: CredentialPrefix(credential),
		RequestID:        requestcontext.RequestID(ctx),
	})
}

// CredentialPrefix returns a short, non-reversible prefix of a credential for
// diagnostics. Full credential strings must never be logged.
func CredentialPrefix(credential string) string {
	const n = 10
	if credential == "" {
		return ""
	}
	if len(credential) <= n {
		return credential[:1] + "..."
	}
	return credential[:n] + "..."
}

// constantTimeEqual compares two secrets without leaking length or content
// timing. Digest-then-compare handles unequal lengths.
func constantTimeEqual(a, b string) bool {
	ah := sha256.Sum256([]byte(a))
	bh := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ah[:], bh[:]) == 1
}
