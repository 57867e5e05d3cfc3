// Package apperr provides standardized domain error types for the application.
// Domain services return these typed errors, and the HTTP layer and the tool
// dispatcher map them to status codes and machine-readable result codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindNotFound indicates a resource was not found.
	KindNotFound
	// KindValidation indicates invalid input data.
	KindValidation
	// KindBadRequest indicates a malformed or invalid request.
	KindBadRequest
	// KindUnauthorized indicates authentication is required or failed.
	KindUnauthorized
	// KindInternal indicates an unexpected internal error.
	KindInternal
	// KindParse indicates phone or email text that could not be parsed at all.
	KindParse
	// KindInvalidNumber indicates a parsed phone number that is not valid for its region.
	KindInvalidNumber
	// KindUnsupportedCountry indicates a country hint missing from the calling-code table.
	KindUnsupportedCountry
	// KindAmbiguousMatch indicates several directory records matched one key.
	KindAmbiguousMatch
	// KindNetwork indicates a connection failure or timeout talking to the directory.
	KindNetwork
	// KindBackend indicates a non-success directory response.
	KindBackend
	// KindMalformedResponse indicates a directory response that does not match its schema.
	KindMalformedResponse
	// KindEnrollment indicates the directory rejected a customer creation.
	KindEnrollment
	// KindIllegalHandoff indicates a transition outside the handoff graph.
	KindIllegalHandoff
	// KindConfig indicates missing or invalid startup configuration.
	KindConfig
)

var kindCodes = map[Kind]string{
	KindUnknown:            "error",
	KindNotFound:           "not_found",
	KindValidation:         "validation_error",
	KindBadRequest:         "bad_request",
	KindUnauthorized:       "unauthorized",
	KindInternal:           "internal_error",
	KindParse:              "parse_error",
	KindInvalidNumber:      "invalid_number",
	KindUnsupportedCountry: "unsupported_country",
	KindAmbiguousMatch:     "multiple_matches",
	KindNetwork:            "network_error",
	KindBackend:            "backend_error",
	KindMalformedResponse:  "malformed_response",
	KindEnrollment:         "enrollment_error",
	KindIllegalHandoff:     "illegal_handoff",
	KindConfig:             "config_error",
}

// Code returns the stable machine-readable identifier for the kind.
func (k Kind) Code() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return kindCodes[KindUnknown]
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	return k.Code()
}

// Error is a domain error with a typed Kind for HTTP mapping.
type Error struct {
	Kind    Kind
	Message string
	Op      string      // Operation that failed (optional)
	Err     error       // Underlying error (optional)
	Details interface{} // Additional details for response (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the machine-readable code of the error kind.
func (e *Error) Code() string {
	return e.Kind.Code()
}

// HTTPStatus returns the appropriate HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindBadRequest, KindParse, KindInvalidNumber, KindUnsupportedCountry:
		return http.StatusBadRequest
	case KindAmbiguousMatch:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNetwork:
		return http.StatusServiceUnavailable
	case KindBackend, KindMalformedResponse:
		return http.StatusBadGateway
	case KindEnrollment:
		return http.StatusUnprocessableEntity
	case KindInternal, KindIllegalHandoff, KindConfig:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Recoverable reports whether the conversation can continue after this error.
// Only configuration and handoff-graph defects are fatal.
func (e *Error) Recoverable() bool {
	switch e.Kind {
	case KindIllegalHandoff, KindConfig, KindInternal:
		return false
	default:
		return true
	}
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp returns a copy of the error with the operation set.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails returns a copy of the error with additional details.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// Convenience constructors for common error types.

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// BadRequest creates a bad request error.
func BadRequest(message string) *Error {
	return New(KindBadRequest, message)
}

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

// Internal creates an internal server error.
func Internal(message string) *Error {
	return New(KindInternal, message)
}

// Parse creates a parse error for unreadable phone or email text.
func Parse(message string) *Error {
	return New(KindParse, message)
}

// InvalidNumber creates an invalid phone number error.
func InvalidNumber(message string) *Error {
	return New(KindInvalidNumber, message)
}

// UnsupportedCountry creates an unsupported country error.
func UnsupportedCountry(message string) *Error {
	return New(KindUnsupportedCountry, message)
}

// Network wraps a transport failure.
func Network(message string, err error) *Error {
	return Wrap(KindNetwork, message, err)
}

// Backend creates a backend error for unexpected upstream statuses.
func Backend(message string) *Error {
	return New(KindBackend, message)
}

// MalformedResponse wraps a response decoding or schema failure.
func MalformedResponse(message string, err error) *Error {
	return Wrap(KindMalformedResponse, message, err)
}

// Enrollment creates an enrollment error carrying the backend detail.
func Enrollment(message string) *Error {
	return New(KindEnrollment, message)
}

// IllegalHandoff creates an illegal handoff error.
func IllegalHandoff(message string) *Error {
	return New(KindIllegalHandoff, message)
}

// Config creates a configuration error.
func Config(message string) *Error {
	return New(KindConfig, message)
}

// As extracts an *Error from err, following wrapped errors.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// GetKind extracts the error kind from an error.
// Returns KindUnknown if the error is not an *Error.
func GetKind(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err is an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
