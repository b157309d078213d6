package catalog

import (
	"errors"
	"fmt"

	"github.com/dukerupert/shoppy/internal/domain"
)

// Failure kinds carried on *domain.Error.Kind.
const (
	KindNetwork = "network"
	KindStatus  = "status"
	KindDecode  = "decode"
)

const opFetch = "catalog.fetch"

// StatusError records a non-2xx catalog response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog responded with status %d", e.StatusCode)
}

func networkError(err error) error {
	return &domain.Error{
		Code:    domain.EUNAVAILABLE,
		Kind:    KindNetwork,
		Op:      opFetch,
		Message: "Could not reach the product catalog.",
		Err:     err,
	}
}

func statusError(code int) error {
	return &domain.Error{
		Code:    domain.EBADGATEWAY,
		Kind:    KindStatus,
		Op:      opFetch,
		Message: "The product catalog returned an error.",
		Err:     &StatusError{StatusCode: code},
	}
}

func decodeError(err error) error {
	return &domain.Error{
		Code:    domain.EBADGATEWAY,
		Kind:    KindDecode,
		Op:      opFetch,
		Message: "The product catalog sent data we could not read.",
		Err:     err,
	}
}

// IsNetworkError reports a transport failure (DNS, refused, timeout).
func IsNetworkError(err error) bool {
	return domain.IsKind(err, KindNetwork)
}

// IsStatusError reports a non-2xx response.
func IsStatusError(err error) bool {
	return domain.IsKind(err, KindStatus)
}

// IsDecodeError reports an unparseable or invalid response body.
func IsDecodeError(err error) bool {
	return domain.IsKind(err, KindDecode)
}

// StatusCode returns the HTTP status behind a status error.
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}
	return 0, false
}
