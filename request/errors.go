package request

import (
	"context"
	"errors"
	"fmt"
)

// Kind categorises the terminal outcome of a network request.
type Kind string

const (
	KindSuccess                   Kind = "Success"
	KindNoInterfacesFound         Kind = "NoInterfacesFound"
	KindAddressAcquisitionTimeout Kind = "AddressAcquisitionTimeout"
	KindAddressAcquisitionFailed  Kind = "AddressAcquisitionFailed"
	KindInvalidURL                Kind = "InvalidUrl"
	KindConnectionFailed          Kind = "ConnectionFailed"
	KindTLSTrustFailure           Kind = "TlsTrustFailure"
	KindProtocolError             Kind = "ProtocolError"
	KindTooManyRedirects          Kind = "TooManyRedirects"
	KindHTTPError                 Kind = "HttpError"
	KindOutOfResources            Kind = "OutOfResources"
	KindNotFound                  Kind = "NotFound"
	KindIOError                   Kind = "IoError"
	KindCanceled                  Kind = "Canceled"
)

var knownKinds = []Kind{
	KindSuccess,
	KindNoInterfacesFound,
	KindAddressAcquisitionTimeout,
	KindAddressAcquisitionFailed,
	KindInvalidURL,
	KindConnectionFailed,
	KindTLSTrustFailure,
	KindProtocolError,
	KindTooManyRedirects,
	KindHTTPError,
	KindOutOfResources,
	KindNotFound,
	KindIOError,
	KindCanceled,
}

// ParseKind resolves the textual name of an outcome kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range knownKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown outcome kind: %q", s)
}

// Retryable reports whether a failure of this kind may succeed when the
// same request is sent again on the same interface.
func (k Kind) Retryable() bool {
	switch k {
	case KindConnectionFailed, KindTLSTrustFailure, KindProtocolError:
		return true
	default:
		return false
	}
}

// PerInterface reports whether a failure of this kind is local to the
// interface it happened on, so another interface may still succeed.
func (k Kind) PerInterface() bool {
	switch k {
	case KindAddressAcquisitionTimeout, KindAddressAcquisitionFailed:
		return true
	default:
		return k.Retryable()
	}
}

// Error is the error type returned by every stage of request processing.
type Error struct {
	Kind       Kind
	Message    string
	HTTPStatus int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an error of the given kind.
func NewError(kind Kind, message string, wrapped error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     wrapped,
	}
}

// NewHTTPError creates an error carrying a server-reported status code.
func NewHTTPError(statusCode int, message string) *Error {
	return &Error{
		Kind:       KindHTTPError,
		Message:    message,
		HTTPStatus: statusCode,
	}
}

// KindOf extracts the outcome kind of err. A nil error is a success and
// context cancellation maps to KindCanceled. Errors that carry no kind
// yield an empty Kind.
func KindOf(err error) Kind {
	if err == nil {
		return KindSuccess
	}
	var reqErr *Error
	if errors.As(err, &reqErr) {
		return reqErr.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return ""
}

// IsKind checks if an error is of a specific kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
