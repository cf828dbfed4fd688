// errors.go defines the closed failure taxonomy for proxied management API
// calls. Every error surfaced by the gateway or the aggregator carries exactly
// one Kind; handlers translate kinds into HTTP statuses with MapStatus and
// never inspect upstream errors any other way.
package rabbit

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a proxied call failure.
type Kind string

const (
	// KindUnreachable covers connection refusal, DNS failure, and timeout.
	KindUnreachable Kind = "unreachable"
	// KindAuthenticationFailed means the stored cluster credentials were rejected.
	KindAuthenticationFailed Kind = "authentication_failed"
	// KindAuthorizationDenied means the credentials lack permission for the operation.
	KindAuthorizationDenied Kind = "authorization_denied"
	// KindNotFound means the upstream endpoint or resource does not exist.
	KindNotFound Kind = "not_found"
	// KindUpstreamInternal covers upstream 5xx responses.
	KindUpstreamInternal Kind = "upstream_internal"
	// KindInvalidInput covers locally rejected requests (bad page, sort, regex,
	// malformed body). These never reach the upstream.
	KindInvalidInput Kind = "invalid_input"
	// KindUnclassified is everything else.
	KindUnclassified Kind = "unclassified"
)

// ProxyError is the single error type crossing the gateway boundary.
type ProxyError struct {
	Kind Kind
	// StatusCode is the upstream HTTP status, 0 for transport-level failures.
	StatusCode int
	// Reason is the upstream "reason" field when the body was structured JSON,
	// otherwise a short local description.
	Reason string
	Err    error
}

func (e *ProxyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *ProxyError) Unwrap() error {
	return e.Err
}

// NewProxyError creates a ProxyError.
func NewProxyError(kind Kind, statusCode int, reason string, err error) *ProxyError {
	return &ProxyError{Kind: kind, StatusCode: statusCode, Reason: reason, Err: err}
}

// InvalidInput creates a local validation failure.
func InvalidInput(reason string) *ProxyError {
	return &ProxyError{Kind: KindInvalidInput, Reason: reason}
}

// KindOf extracts the Kind from err, or KindUnclassified for foreign errors.
func KindOf(err error) Kind {
	var pe *ProxyError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnclassified
}

// MapStatus translates a classified error into the caller-visible HTTP status.
func MapStatus(err error) int {
	switch KindOf(err) {
	case KindUnreachable:
		return http.StatusServiceUnavailable
	case KindAuthenticationFailed:
		return http.StatusUnauthorized
	case KindAuthorizationDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstreamInternal:
		return http.StatusBadGateway
	case KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
