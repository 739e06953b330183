// Package authn implements credential resolution for protected endpoints:
// classifying inbound credential material, validating it against the signing
// key and the organization store, and caching resolved identities.
package authn

import (
	"errors"
	"net/http"
)

// Kind classifies why a resolution was rejected. Every rejection carries
// exactly one kind; handlers map kinds to HTTP statuses and log them, but
// response bodies only expose the broad code so probing callers cannot
// enumerate tenants or distinguish revoked from never-issued credentials.
type Kind string

const (
	// KindMissingCredential: neither credential header was present.
	KindMissingCredential Kind = "missing_credential"
	// KindMalformedHeader: an Authorization header with a non-Bearer scheme.
	KindMalformedHeader Kind = "malformed_header"
	// KindInvalidCredential: signature or structural failure decoding a token.
	KindInvalidCredential Kind = "invalid_credential"
	// KindExpiredCredential: token decoded but its expiry is in the past.
	KindExpiredCredential Kind = "expired_credential"
	// KindUnknownOrganization: token subject references no known organization.
	KindUnknownOrganization Kind = "unknown_organization"
	// KindRevokedCredential: the exact presented token is not registered or
	// has been invalidated.
	KindRevokedCredential Kind = "revoked_credential"
	// KindResolutionUnavailable: the store failed or timed out; the request
	// fails closed and callers may retry.
	KindResolutionUnavailable Kind = "resolution_unavailable"
	// KindConfigurationFault: no authentication mechanism is wired up
	// (e.g., missing signing key). A server fault, not a caller error.
	KindConfigurationFault Kind = "configuration_fault"
)

// Error is the domain error for credential rejections.
type Error struct {
	Kind    Kind
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.wrapped.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.wrapped }

// NewError constructs a rejection of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError wraps a lower-level error with a rejection kind.
func WrapError(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, wrapped: err}
}

// KindOf extracts the rejection kind from an error chain.
// Unrecognized errors report KindResolutionUnavailable so unexpected faults
// fail closed as server errors rather than leaking as credential rejections.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindResolutionUnavailable
}

// IsKind reports whether the error chain carries the given rejection kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps a rejection kind to the externally visible status code:
// 403 for credential rejections, 404 for an unknown organization, 500 for
// server-side faults.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnknownOrganization:
		return http.StatusNotFound
	case KindResolutionUnavailable, KindConfigurationFault:
		return http.StatusInternalServerError
	default:
		return http.StatusForbidden
	}
}
