// Package gatewayerr defines the gateway's error taxonomy and the HTTP
// status each kind maps to, so every layer raises the same small set of
// error shapes instead of ad hoc strings.
package gatewayerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a gateway error for status mapping and logging.
type Kind string

const (
	// KindConfig marks a startup configuration problem (missing field,
	// unparsable file). Always fatal.
	KindConfig Kind = "config_error"
	// KindAuth marks a failure to obtain or refresh an upstream bearer
	// token (UAA unreachable, invalid client credentials).
	KindAuth Kind = "auth_error"
	// KindClientAuth marks a request the gateway itself rejects because
	// the caller's API key is missing or does not match any configured key.
	KindClientAuth Kind = "client_auth_error"
	// KindModelNotFound marks a request naming a model with no resolvable
	// deployment in the current registry snapshot.
	KindModelNotFound Kind = "model_not_found"
	// KindUpstreamTransient marks a retryable upstream failure (connection
	// reset, timeout, 5xx).
	KindUpstreamTransient Kind = "upstream_transient"
	// KindUpstreamMalformed marks an upstream response the gateway could
	// not parse for usage extraction, but which is otherwise forwarded
	// to the client unchanged.
	KindUpstreamMalformed Kind = "upstream_malformed"
	// KindClientAborted marks a request whose client disconnected before
	// the upstream response completed.
	KindClientAborted Kind = "client_aborted"
)

// Error is a gateway error carrying a Kind and an HTTP status.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the status code clients should see for this error.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

func newError(kind Kind, status int, msg string, err error) *Error {
	return &Error{Kind: kind, Status: status, Message: msg, Err: err}
}

// Config wraps a startup configuration failure.
func Config(msg string, err error) *Error {
	return newError(KindConfig, 0, msg, err)
}

// Auth wraps an upstream OAuth/token failure. Reported as a 500: the
// caller's own credentials were fine, the gateway's are what failed.
func Auth(msg string, err error) *Error {
	return newError(KindAuth, http.StatusInternalServerError, msg, err)
}

// ClientAuth wraps a caller-facing authentication rejection.
func ClientAuth(msg string) *Error {
	return newError(KindClientAuth, http.StatusUnauthorized, msg, nil)
}

// ModelNotFound wraps an unresolvable model/deployment lookup.
func ModelNotFound(model string) *Error {
	return newError(KindModelNotFound, http.StatusBadRequest, "model not found: "+model, nil)
}

// UpstreamTransient wraps a retryable upstream transport failure.
func UpstreamTransient(msg string, err error) *Error {
	return newError(KindUpstreamTransient, http.StatusBadGateway, msg, err)
}

// UpstreamMalformed wraps an unparsable-but-forwarded upstream response.
func UpstreamMalformed(msg string, err error) *Error {
	return newError(KindUpstreamMalformed, http.StatusInternalServerError, msg, err)
}

// ClientAborted wraps a client-disconnect during an in-flight request.
func ClientAborted(msg string) *Error {
	return newError(KindClientAborted, 499, msg, nil)
}

// As is a thin wrapper over errors.As for the common case of pulling a
// *Error out of a wrapped error chain.
func As(err error) (*Error, bool) {
	var ge *Error
	ok := errors.As(err, &ge)
	return ge, ok
}
