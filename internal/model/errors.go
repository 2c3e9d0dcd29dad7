package model

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrProvider   = errors.New("embedding provider unavailable")
	ErrStorage    = errors.New("storage unavailable")
)

// ValidationError rejects malformed input before it is persisted.
type ValidationError struct {
	Dimension Dimension
	Field     string
	Reason    string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s: %s", e.Dimension, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s: %s", e.Dimension, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid is shorthand for constructing a ValidationError.
func Invalid(d Dimension, field, format string, args ...any) *ValidationError {
	return &ValidationError{Dimension: d, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError is returned for missing or foreign-owner records.
type NotFoundError struct {
	Dimension Dimension
	ID        string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s memory not found: %s", e.Dimension, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ProviderError wraps an embedding provider failure.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string { return fmt.Sprintf("embedding %s: %v", e.Op, e.Err) }

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// StorageError wraps a persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }
