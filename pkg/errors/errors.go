// Package errors defines the typed error carried from services to the HTTP
// layer. The code decides the status and the public message; the message
// given at construction is only surfaced where the code allows details.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"
	CodeIdempotency  Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit    Code = "RATE_LIMIT_EXCEEDED"

	// Assignment outcomes.
	CodeInvalidState Code = "INVALID_STATE"
	CodeInsufficient Code = "INSUFFICIENT_CANDIDATES"
	CodeIneligible   Code = "INELIGIBLE_CANDIDATE"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	retryable    = true
	withDetails  = true
	notRetryable = false
	noDetails    = false
)

var metadataByCode = map[Code]Metadata{
	CodeValidation:   {http.StatusBadRequest, notRetryable, "validation failed", withDetails},
	CodeUnauthorized: {http.StatusUnauthorized, notRetryable, "authentication required", noDetails},
	CodeForbidden:    {http.StatusForbidden, notRetryable, "access denied", noDetails},
	CodeNotFound:     {http.StatusNotFound, notRetryable, "resource not found", noDetails},
	CodeConflict:     {http.StatusConflict, notRetryable, "conflict detected", noDetails},
	CodeInternal:     {http.StatusInternalServerError, retryable, "internal server error", noDetails},
	CodeDependency:   {http.StatusServiceUnavailable, retryable, "dependency unavailable", withDetails},
	CodeIdempotency:  {http.StatusConflict, notRetryable, "idempotency key reused", withDetails},
	CodeRateLimit:    {http.StatusTooManyRequests, notRetryable, "rate limit exceeded", noDetails},
	CodeInvalidState: {http.StatusConflict, notRetryable, "state transition disallowed", withDetails},
	CodeInsufficient: {http.StatusConflict, notRetryable, "not enough eligible candidates", withDetails},
	CodeIneligible:   {http.StatusConflict, notRetryable, "candidate is not eligible", withDetails},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails attaches structured context, such as the ineligibility reasons
// per candidate, and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// As returns the outermost typed error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
