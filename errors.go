package oauth

import (
	"errors"
	"fmt"
)

// OAuth error codes from RFC 6749 that providers commonly return.
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeInvalidClient        = "invalid_client"
	ErrorCodeInvalidScope         = "invalid_scope"
	ErrorCodeUnauthorizedClient   = "unauthorized_client"
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"
	ErrorCodeAccessDenied         = "access_denied"
	ErrorCodeServerError          = "server_error"
)

// Kind classifies a failure of the token lifecycle engine. The taxonomy
// separates user-actionable, transient, and permanent failures so callers can
// decide between retrying, prompting a reconnect, and alerting.
type Kind string

const (
	// KindValidation marks malformed input caught before any network call,
	// including missing required provider configuration.
	KindValidation Kind = "validation"

	// KindOAuth marks a recognized OAuth error returned by the provider
	// (invalid_grant, access_denied, ...). These are routine, expired or
	// reused codes and revoked consent, and are deliberately excluded from
	// exception tracking. The user is prompted to reconnect.
	KindOAuth Kind = "oauth"

	// KindNetwork marks a transport failure (timeout, DNS, reset).
	// Retryable by the caller.
	KindNetwork Kind = "network"

	// KindConnection marks a non-OAuth HTTP failure. The user sees a
	// generic message; the raw status and body are logged server-side only.
	KindConnection Kind = "connection"

	// KindPermanent marks a failure that requires re-authentication, such
	// as an expired token with no refresh token.
	KindPermanent Kind = "permanent"

	// KindCorruptedCredential marks a decryption failure: we cannot read
	// what we stored, as opposed to the provider rejecting us.
	KindCorruptedCredential Kind = "corrupted_credential"

	// KindNotFound marks a missing integration or provider.
	KindNotFound Kind = "not_found"
)

// Error is the typed error produced by every failure path in this package.
// No failure is swallowed: each one propagates as an *Error carrying one of
// the Kind values above.
type Error struct {
	Kind    Kind
	Message string

	// OAuthCode is the provider's OAuth error code. Set only for KindOAuth.
	OAuthCode string

	cause error
}

// Error implements the error interface. The message is safe to surface to
// users; raw provider responses never end up here.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether the caller may reasonably retry the operation.
// Retry policy itself belongs to the caller; this engine performs no
// internal retries.
func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindConnection
}

// KindOf returns the Kind of err, or an empty Kind for nil and foreign
// errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewOAuthError creates an error for a recognized OAuth error response.
func NewOAuthError(code, description string) *Error {
	if description == "" {
		description = "no description"
	}
	return &Error{
		Kind:      KindOAuth,
		OAuthCode: code,
		Message:   fmt.Sprintf("OAuth error: %s - %s", code, description),
	}
}

// NewNetworkError creates a transport failure error.
func NewNetworkError(message string, cause error) *Error {
	return &Error{Kind: KindNetwork, Message: message, cause: cause}
}

// NewConnectionError creates a generic non-OAuth HTTP failure error.
func NewConnectionError(message string, cause error) *Error {
	return &Error{Kind: KindConnection, Message: message, cause: cause}
}

// NewPermanentError creates a non-retryable error requiring
// re-authentication.
func NewPermanentError(message string) *Error {
	return &Error{Kind: KindPermanent, Message: message}
}

// NewCorruptedCredentialError creates a decryption failure error.
func NewCorruptedCredentialError(message string, cause error) *Error {
	return &Error{Kind: KindCorruptedCredential, Message: message, cause: cause}
}

// NewNotFoundError creates a missing-integration error.
func NewNotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}
