// Package errors provides the error taxonomy shared by the synthesis engine,
// the job manager and the HTTP surface.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code classifies an AppError.
type Code int

const (
	CodeUnknown Code = iota
	CodeInvalidRequest
	CodeResourceExhausted
	CodeEncodingFailed
	CodeNotFound
	CodeInternal
)

var codeNames = map[Code]string{
	CodeUnknown:           "UNKNOWN",
	CodeInvalidRequest:    "INVALID_REQUEST",
	CodeResourceExhausted: "RESOURCE_EXHAUSTED",
	CodeEncodingFailed:    "ENCODING_FAILED",
	CodeNotFound:          "NOT_FOUND",
	CodeInternal:          "INTERNAL",
}

// httpCodeMap maps error codes to HTTP status codes.
var httpCodeMap = map[Code]int{
	CodeUnknown:           http.StatusInternalServerError,
	CodeInvalidRequest:    http.StatusBadRequest,
	CodeResourceExhausted: http.StatusRequestEntityTooLarge,
	CodeEncodingFailed:    http.StatusBadGateway,
	CodeNotFound:          http.StatusNotFound,
	CodeInternal:          http.StatusInternalServerError,
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return codeNames[CodeUnknown]
}

// AppError is the base error type with a structured code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// HTTPStatus returns the corresponding HTTP status code.
func (e *AppError) HTTPStatus() int {
	if c, ok := httpCodeMap[e.Code]; ok {
		return c
	}
	return http.StatusInternalServerError
}

// Is matches any AppError carrying the same code, so sentinel values like
// ErrInvalidRequest work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidRequest    = &AppError{Code: CodeInvalidRequest}
	ErrResourceExhausted = &AppError{Code: CodeResourceExhausted}
	ErrEncodingFailed    = &AppError{Code: CodeEncodingFailed}
	ErrNotFound          = &AppError{Code: CodeNotFound}
)

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with a formatted message.
func Newf(code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// CodeOf extracts the code of the first AppError in err's chain.
func CodeOf(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	var ae *AppError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// HTTPStatus returns the HTTP status for any error, defaulting to 500.
func HTTPStatus(err error) int {
	var ae *AppError
	if stderrors.As(err, &ae) {
		return ae.HTTPStatus()
	}
	return http.StatusInternalServerError
}
