package domain

import "errors"

// ErrorKind classifies failures the way the Proxy Engine and Admin API
// need to react to them: whether to retry across providers, whether to
// touch live state, and which HTTP status to surface.
type ErrorKind string

const (
	ErrConfigInvalid       ErrorKind = "CONFIG_INVALID"
	ErrNoProviderAvailable ErrorKind = "NO_PROVIDER_AVAILABLE"
	ErrUpstreamTransport   ErrorKind = "UPSTREAM_TRANSPORT"
	ErrUpstreamHTTPError   ErrorKind = "UPSTREAM_HTTP_ERROR"
	ErrUpstreamMalformed   ErrorKind = "UPSTREAM_MALFORMED"
	ErrClientDisconnect    ErrorKind = "CLIENT_DISCONNECT"
	ErrInternal            ErrorKind = "INTERNAL"
)

// Retryable reports whether this error kind may drive failover to the
// next candidate provider within the Proxy Engine.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrUpstreamTransport, ErrUpstreamHTTPError, ErrUpstreamMalformed:
		return true
	default:
		return false
	}
}

// KindedError pairs an ErrorKind with the underlying cause, so callers
// can both errors.Is/As the cause and branch on the kind.
type KindedError struct {
	Kind ErrorKind
	Err  error
}

func (e *KindedError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *KindedError) Unwrap() error { return e.Err }

// NewKindedError wraps err with kind.
func NewKindedError(kind ErrorKind, err error) *KindedError {
	return &KindedError{Kind: kind, Err: err}
}

// KindOf extracts the ErrorKind from err if it (or something it wraps) is
// a *KindedError, otherwise returns ErrInternal.
func KindOf(err error) ErrorKind {
	var ke *KindedError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return ErrInternal
}

// ErrTicketNotReserved is returned by a Rate Limiter when commit/rollback
// is called with a ticket that was never issued by reserve, or was
// already consumed - an INTERNAL invariant violation.
var ErrTicketNotReserved = errors.New("ratelimit: ticket was not reserved")
