// Package errors defines the typed error that services return and the HTTP
// layer renders. Each Code maps to a status and a public message.
package errors

import (
	stdErrors "errors"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeRateLimit    Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"

	// Cart codes.
	CodeInvalidOwner       Code = "INVALID_OWNER"
	CodeProductNotFound    Code = "PRODUCT_NOT_FOUND"
	CodeProductUnavailable Code = "PRODUCT_UNAVAILABLE"
	CodeInsufficientStock  Code = "INSUFFICIENT_STOCK"
)

// Metadata describes how a Code is rendered. When ExposeMessage is set the
// error's own message replaces PublicMessage in the response.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	ExposeMessage  bool
	DetailsAllowed bool
}

type flag uint8

const (
	retryable flag = 1 << iota
	expose
	details
)

func meta(status int, public string, flags flag) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      flags&retryable != 0,
		ExposeMessage:  flags&expose != 0,
		DetailsAllowed: flags&details != 0,
	}
}

var registry = map[Code]Metadata{
	CodeValidation:   meta(http.StatusBadRequest, "validation failed", expose|details),
	CodeUnauthorized: meta(http.StatusUnauthorized, "authentication required", expose),
	CodeForbidden:    meta(http.StatusForbidden, "access denied", expose),
	CodeNotFound:     meta(http.StatusNotFound, "resource not found", expose),
	CodeConflict:     meta(http.StatusConflict, "conflict detected", expose),
	CodeRateLimit:    meta(http.StatusTooManyRequests, "rate limit exceeded", expose),
	CodeInternal:     meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:   meta(http.StatusServiceUnavailable, "dependency unavailable", retryable|details),

	// An unresolved cart owner is a middleware wiring bug, not bad input.
	CodeInvalidOwner:       meta(http.StatusInternalServerError, "cart owner could not be resolved", 0),
	CodeProductNotFound:    meta(http.StatusBadRequest, "product not found", expose),
	CodeProductUnavailable: meta(http.StatusBadRequest, "product unavailable", expose),
	CodeInsufficientStock:  meta(http.StatusBadRequest, "insufficient stock", expose|details),
}

// MetadataFor falls back to CodeInternal for unregistered codes.
func MetadataFor(code Code) Metadata {
	if m, ok := registry[code]; ok {
		return m
	}
	return registry[CodeInternal]
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

// Wrap keeps err reachable through errors.Is and errors.As.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// WithDetails attaches a JSON-serialisable payload and returns e.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
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

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.code) + ": " + e.message
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
