// Package errors holds the error types shared across the journal monitor.
// Every typed error maps onto one of the sentinels, so callers can branch
// with errors.Is without knowing the concrete type.
package errors

import (
	"errors"
	"fmt"
)

// New is errors.New, re-exported so packages importing this one need not
// import both.
var New = errors.New

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicate reports a second registration of a unique key.
	ErrDuplicate = errors.New("duplicate")
	// ErrLimitReached reports an exhausted capacity such as the session limit.
	ErrLimitReached = errors.New("limit reached")
)

// NotFoundError names the missing resource.
type NotFoundError struct {
	Resource string // "session", "entry", "file"
	ID       string
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError rejects one input field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// DuplicateTagError is returned when two event variants declare the same
// tag or enum value.
type DuplicateTagError struct {
	Tag string
}

func (e *DuplicateTagError) Error() string {
	return fmt.Sprintf("event tag %q registered more than once", e.Tag)
}

func (e *DuplicateTagError) Is(target error) bool { return target == ErrDuplicate }

// ParseError wraps a decoding failure of a json, xml or yaml document.
type ParseError struct {
	Format string
	File   string
	Err    error
}

// WrapParse returns nil for a nil err.
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{Format: format, File: file, Err: err}
}

func (e *ParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%s parse error: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("%s parse error in %s: %v", e.Format, e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrInvalidInput }

// IOError records the file operation that failed.
type IOError struct {
	Op   string // read, write, open, stat, mkdir, remove, rename
	Path string
	Err  error
}

// WrapIO returns nil for a nil err.
func WrapIO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidationError reports invalid input, including parse errors.
func IsValidationError(err error) bool { return errors.Is(err, ErrInvalidInput) }
