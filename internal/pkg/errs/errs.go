/*
Package errs provides custom error types and application-level error code constants.

This file defines the CustomError struct, which implements the standard Go error interface
and carries a business code, a kind, a user-facing message, an optional field-keyed message
map and the HTTP status used when the error reaches a client.
*/
package errs

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"

	"livechat/internal/pkg/logx"
)

// CustomError is the custom error structure used throughout the application.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int `json:"code"`

	// Kind is the taxonomy bucket used for propagation decisions.
	Kind Kind `json:"kind"`

	// Message is the user-friendly error description.
	Message string `json:"message"`

	// Fields maps an input field name to a message describing what is wrong with it.
	Fields map[string]string `json:"fields,omitempty"`

	// Status is the HTTP status code corresponding to this error.
	Status int `json:"-"`

	// cause is the collaborator error behind an upstream failure. Never sent to clients.
	cause error
}

// Error implements the standard Go error interface.
func (e *CustomError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("Error Code %d (%s): %s: %v", e.Code, e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("Error Code %d (%s): %s", e.Code, e.Kind, e.Message)
}

// Unwrap exposes the underlying collaborator error, if any.
func (e *CustomError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a CustomError with the same code.
func (e *CustomError) Is(target error) bool {
	var t *CustomError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// WithField returns a copy of the error with an additional field-keyed message.
func (e *CustomError) WithField(field, message string) *CustomError {
	return e.WithFields(map[string]string{field: message})
}

// WithFields returns a copy of the error with the given field-keyed messages merged in.
func (e *CustomError) WithFields(fields map[string]string) *CustomError {
	clone := *e
	clone.Fields = make(map[string]string, len(e.Fields)+len(fields))
	maps.Copy(clone.Fields, e.Fields)
	maps.Copy(clone.Fields, fields)
	return &clone
}

// NewError constructs a new *CustomError from a predefined error code.
// The optional details are printf arguments for message templates containing a verb.
// Unknown codes fall back to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with an unknown code in errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &unknownErr
	}

	customErr := templateErr

	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	if len(details) > 0 {
		if strings.Contains(customErr.Message, "%") {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else {
			logx.Warn(
				"Details provided for error, but message template has no formatting placeholders. Details ignored.",
				"code", code,
			)
		}
	}

	return &customErr
}

// Upstream wraps a collaborator failure under the given 5xxx code and logs the cause.
// The client only ever sees the template message.
func Upstream(code int, cause error, msg string, fields ...any) *CustomError {
	logx.Error(cause, msg, fields...)

	customErr := NewError(code)
	customErr.cause = cause
	return customErr
}

// As extracts a *CustomError from err's chain.
func As(err error) (*CustomError, bool) {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr, true
	}
	return nil, false
}

// From converts any error into a *CustomError, treating foreign errors as ErrUnknown.
func From(err error) *CustomError {
	if err == nil {
		return nil
	}
	if customErr, ok := As(err); ok {
		return customErr
	}
	return Upstream(ErrUnknown, err, "Unclassified error reached the API boundary")
}

// KindOf returns the Kind of err, or KindUpstream for foreign errors.
func KindOf(err error) Kind {
	if customErr, ok := As(err); ok {
		return customErr.Kind
	}
	return KindUpstream
}

// HasCode reports whether err carries the given business code.
func HasCode(err error, code int) bool {
	customErr, ok := As(err)
	return ok && customErr.Code == code
}
