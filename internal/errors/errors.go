// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrDataNotFound      = errors.New("data not found")
	ErrSourceUnavailable = errors.New("data source unavailable")
	ErrInvalidSymbol     = errors.New("invalid symbol")
	ErrInvalidResolution = errors.New("invalid resolution")
	ErrUnknownIndex      = errors.New("unknown index symbol")
	ErrUnknownEntity     = errors.New("unknown cache entity")
	ErrMissingParam      = errors.New("missing parameter")
	ErrCacheUnavailable  = errors.New("cache store unavailable")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrInputValidation   = errors.New("input validation failed")
)

// SourceError describes a failed upstream call. It always unwraps to either
// ErrDataNotFound or ErrSourceUnavailable so callers can classify absence.
type SourceError struct {
	Source    string
	Operation string
	Symbol    string
	Kind      error
	Err       error
}

func (e *SourceError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Source, e.Operation)
	if e.Symbol != "" {
		msg += " " + e.Symbol
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", msg, e.Kind)
}

// Unwrap exposes both the classification and the underlying cause.
func (e *SourceError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Unavailable builds a SourceError classified as ErrSourceUnavailable.
func Unavailable(source, operation, symbol string, err error) *SourceError {
	return &SourceError{Source: source, Operation: operation, Symbol: symbol, Kind: ErrSourceUnavailable, Err: err}
}

// NotFound builds a SourceError classified as ErrDataNotFound.
func NotFound(source, operation, symbol string) *SourceError {
	return &SourceError{Source: source, Operation: operation, Symbol: symbol, Kind: ErrDataNotFound}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets errors.Is match ErrInputValidation.
func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsAbsence reports whether err only signals missing data rather than a caller mistake.
func IsAbsence(err error) bool {
	return errors.Is(err, ErrDataNotFound) || errors.Is(err, ErrSourceUnavailable)
}

// New returns an error with the given text.
func New(text string) error {
	return errors.New(text)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
