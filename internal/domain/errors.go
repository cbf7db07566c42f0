package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the root of every lookup miss (user, category, level, name).
	ErrNotFound = errors.New("not found")
	// ErrUserNotFound is returned when a user id does not resolve to a stored user.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	// ErrCategoryNotFound indicates the catalog has no such category.
	ErrCategoryNotFound = fmt.Errorf("category %w", ErrNotFound)
	// ErrLevelNotFound indicates the catalog has no such level (or category-level).
	ErrLevelNotFound = fmt.Errorf("level %w", ErrNotFound)
	// ErrNameNotFound indicates a celebrity name is missing from the catalog.
	ErrNameNotFound = fmt.Errorf("name %w", ErrNotFound)
	// ErrCatalogUnavailable means the catalog content could not be loaded.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ValidationError rejects a request before any storage access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StorageError reports a failed unit of work. Nothing it covered was committed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err carries a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
