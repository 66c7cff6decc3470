// Package errs provides structured error types and helpers for simbroker services.
package errs

import (
	"strconv"
	"strings"
)

// Code identifies an error category surfaced by the simulator core.
type Code string

const (
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodeNotFound indicates a missing resource such as an unknown order or checkpoint.
	CodeNotFound Code = "not_found"
	// CodeVersionMismatch indicates a checkpoint whose schema version is incompatible.
	CodeVersionMismatch Code = "version_mismatch"
	// CodeCorrupt indicates a checkpoint record that could not be decoded.
	CodeCorrupt Code = "corrupt_record"
	// CodeStorage indicates a filesystem failure while persisting or loading state.
	CodeStorage Code = "storage"
)

// E captures structured error information produced across the simbroker stack.
type E struct {
	Component string
	Code      Code
	Message   string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the component and error code.
func New(component string, code Code, opts ...Option) *E {
	e := &E{
		Component: strings.TrimSpace(component),
		Code:      code,
		Message:   "",
		cause:     nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	component := strings.TrimSpace(e.Component)
	if component == "" {
		component = "unknown"
	}
	parts = append(parts, "component="+component)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// CodeOf extracts the error code from err when it carries an envelope.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if e, ok := err.(*E); ok {
		return e.Code
	}
	return ""
}

// IsNotFound reports whether err represents a missing resource.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}
