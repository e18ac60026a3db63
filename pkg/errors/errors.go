package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation           Code = "VALIDATION_ERROR"
	CodeUnauthorized         Code = "UNAUTHORIZED"
	CodeForbidden            Code = "FORBIDDEN"
	CodeNotFound             Code = "NOT_FOUND"
	CodeConflict             Code = "CONFLICT"
	CodeInvalidState         Code = "INVALID_STATE"
	CodeInvalidTransition    Code = "INVALID_TRANSITION"
	CodeInsufficientCapacity Code = "INSUFFICIENT_CAPACITY"
	CodeInsufficientPoints   Code = "INSUFFICIENT_POINTS"
	CodeInvalidAmount        Code = "INVALID_AMOUNT"
	CodeAlreadyUsed          Code = "ALREADY_USED"
	CodeLimitExceeded        Code = "LIMIT_EXCEEDED"
	CodeExpired              Code = "EXPIRED"
	CodeIdempotency          Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit            Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal             Code = "INTERNAL_ERROR"
	CodeDependency           Code = "DEPENDENCY_ERROR"
)

// Metadata is how a Code surfaces over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

func client(status int, msg string) Metadata { return Metadata{HTTPStatus: status, PublicMessage: msg} }

func detailed(status int, msg string) Metadata {
	m := client(status, msg)
	m.DetailsAllowed = true
	return m
}

func retryable(m Metadata) Metadata {
	m.Retryable = true
	return m
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:           detailed(http.StatusBadRequest, "validation failed"),
	CodeUnauthorized:         client(http.StatusUnauthorized, "authentication required"),
	CodeForbidden:            client(http.StatusForbidden, "access denied"),
	CodeNotFound:             client(http.StatusNotFound, "resource not found"),
	CodeConflict:             client(http.StatusConflict, "conflict detected"),
	CodeInvalidState:         detailed(http.StatusConflict, "resource is not in a usable state"),
	CodeInvalidTransition:    detailed(http.StatusConflict, "state transition disallowed"),
	CodeInsufficientCapacity: detailed(http.StatusConflict, "not enough seats available"),
	CodeInsufficientPoints:   detailed(http.StatusConflict, "not enough loyalty points"),
	CodeInvalidAmount:        detailed(http.StatusUnprocessableEntity, "payable amount is invalid"),
	CodeAlreadyUsed:          client(http.StatusConflict, "discount already used"),
	CodeLimitExceeded:        client(http.StatusConflict, "discount usage limit reached"),
	CodeExpired:              detailed(http.StatusGone, "deadline has passed"),
	CodeIdempotency:          detailed(http.StatusConflict, "idempotency key reused"),
	CodeRateLimit:            client(http.StatusTooManyRequests, "rate limit exceeded"),
	CodeInternal:             retryable(client(http.StatusInternalServerError, "internal server error")),
	CodeDependency:           retryable(detailed(http.StatusServiceUnavailable, "dependency unavailable")),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded domain error. Every accessor is safe on a nil receiver.
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
	if err == nil {
		return New(code, message)
	}
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

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether the outermost typed error in the chain carries code.
func HasCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}

// Passthrough keeps typed errors intact and wraps anything else with code.
func Passthrough(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	if As(err) != nil {
		return err
	}
	return Wrap(code, err, message)
}
