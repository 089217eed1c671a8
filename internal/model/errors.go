package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports a nil or empty required input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrMalformedInput reports task bytes that are neither Base64-wrapped nor well-formed XML.
	ErrMalformedInput = errors.New("malformed task input")
	// ErrSchemaViolation reports a parseable task that breaks a data model invariant.
	ErrSchemaViolation = errors.New("task schema violation")
)

// ValidationError names the field whose invariant failed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrSchemaViolation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrSchemaViolation
}

func violation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// nested prefixes the field path of a validation error raised by a child value.
func nested(prefix string, err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return &ValidationError{Field: prefix + "." + ve.Field, Reason: ve.Reason}
	}
	return err
}
