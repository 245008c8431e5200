package sessiongate

import (
	goerrors "github.com/goliatone/go-errors"
)

// Text codes carried by gateway errors so embedders can branch on them
// without string-matching messages.
const (
	TextCodeUnauthenticated   = "UNAUTHENTICATED"
	TextCodeTransportFault    = "TRANSPORT_FAULT"
	TextCodeRoleMismatch      = "ROLE_MISMATCH"
	TextCodeInvalidTransition = "INVALID_SESSION_TRANSITION"
	TextCodeStorageKeyMissing = "STORAGE_KEY_NOT_FOUND"
)

// ErrUnauthenticated is returned when the server rejects the stored
// credentials (expired or invalid token). It is the only error that forces
// a local logout.
var ErrUnauthenticated = goerrors.New("credentials rejected by server", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrTransport is returned for network-level faults: unreachable backend,
// timeouts, or responses the parse boundary cannot make sense of. The
// stored credential may still be valid, so callers must not log out.
var ErrTransport = goerrors.New("transport fault reaching backend", goerrors.CategoryOperation).
	WithTextCode(TextCodeTransportFault).
	WithCode(goerrors.CodeInternal)

// ErrInvalidTransition is returned when a requested session state change is
// not allowed by the transition table.
var ErrInvalidTransition = goerrors.New("invalid session state transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrStorageKeyNotFound is returned by Storage implementations for reads of
// keys that were never written or were deleted.
var ErrStorageKeyNotFound = goerrors.New("storage key not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeStorageKeyMissing).
	WithCode(goerrors.CodeNotFound)

// IsUnauthenticatedError reports whether err means the server rejected the
// session credentials, as opposed to a transient transport fault.
func IsUnauthenticatedError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryAuth
	}
	return false
}

// IsTransportError reports whether err is a network-level fault that should
// surface as a retryable condition.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryOperation
	}
	return false
}

// IsStorageKeyNotFound reports whether err is a missing-key read.
func IsStorageKeyNotFound(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == TextCodeStorageKeyMissing
	}
	return false
}

func wrapTransport(err error, msg string) error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, msg).
		WithTextCode(TextCodeTransportFault).
		WithCode(goerrors.CodeInternal)
}
