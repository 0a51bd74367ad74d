package session

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeNetworkError    = "NETWORK_ERROR"
	textCodeServerRejected  = "SERVER_REJECTED"
	textCodeInvalidResponse = "INVALID_RESPONSE"
	textCodeStaleCredential = "STALE_CREDENTIAL"
)

// FailureReason classifies client operation failures for callers that need to
// decide between retrying, surfacing a message, or doing nothing.
type FailureReason string

const (
	// ReasonNetworkError: transport failed before a response was received.
	// Always retryable.
	ReasonNetworkError FailureReason = "network-error"
	// ReasonServerRejected: non-2xx with a machine-usable message. Not
	// retryable without user correction.
	ReasonServerRejected FailureReason = "server-rejected"
	// ReasonInvalidResponse: 2xx but the payload could not be normalized.
	// Should not occur against a conformant server.
	ReasonInvalidResponse FailureReason = "invalid-response"
	// ReasonStaleCredential: the server no longer accepts the bearer token.
	// The client self-heals by clearing the local session.
	ReasonStaleCredential FailureReason = "stale-credential"
	// ReasonUnknown: the error did not originate in this package.
	ReasonUnknown FailureReason = ""
)

// ErrNoCredential is returned by operations that require a bearer token when
// none is held.
var ErrNoCredential = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(textCodeStaleCredential).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidResponse is the base error for 2xx payloads we cannot normalize.
var ErrInvalidResponse = goerrors.New("invalid response from server", goerrors.CategoryInternal).
	WithTextCode(textCodeInvalidResponse)

// NetworkError wraps a transport-level failure (offline, DNS, TLS, timeout).
func NetworkError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, "network error occurred").
		WithTextCode(textCodeNetworkError)
}

// ServerRejected builds the failure for a non-2xx response carrying a
// structured message.
func ServerRejected(status int, message string) error {
	if message == "" {
		message = "request rejected by server"
	}
	return goerrors.New(message, goerrors.CategoryOperation).
		WithTextCode(textCodeServerRejected).
		WithCode(status).
		WithMetadata(map[string]any{"status": status})
}

// StaleCredential marks an unauthorized response for a previously valid
// bearer token.
func StaleCredential(status int) error {
	return goerrors.New("credential no longer valid", goerrors.CategoryAuth).
		WithTextCode(textCodeStaleCredential).
		WithCode(goerrors.CodeUnauthorized).
		WithMetadata(map[string]any{"status": status})
}

// Reason maps any error produced by this package onto the failure taxonomy.
func Reason(err error) FailureReason {
	if err == nil {
		return ReasonUnknown
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return ReasonUnknown
	}

	switch richErr.TextCode {
	case textCodeNetworkError:
		return ReasonNetworkError
	case textCodeServerRejected:
		return ReasonServerRejected
	case textCodeInvalidResponse:
		return ReasonInvalidResponse
	case textCodeStaleCredential:
		return ReasonStaleCredential
	}

	return ReasonUnknown
}

// IsRetryable reports whether the caller may retry the operation unchanged.
// Only transport failures qualify.
func IsRetryable(err error) bool {
	return Reason(err) == ReasonNetworkError
}
