package metadata

import (
	"errors"
	"fmt"
)

// ErrorCode represents the type of error that occurred.
type ErrorCode int

const (
	// ErrNotFound indicates the requested file name is unknown.
	ErrNotFound ErrorCode = iota + 1

	// ErrVersionNotFound indicates the file exists but the requested
	// version number does not.
	ErrVersionNotFound

	// ErrFileLocked indicates another principal holds the write lock.
	ErrFileLocked

	// ErrStorageFailure indicates a durable write failed. In-memory state
	// has been rolled back to the last committed snapshot.
	ErrStorageFailure

	// ErrHashFailure indicates the blob could not be read or hashed.
	ErrHashFailure

	// ErrInvalidArgument indicates an invalid argument was provided.
	ErrInvalidArgument

	// ErrPrivilegeRequired indicates the operation needs the admin capability.
	ErrPrivilegeRequired
)

// String returns a human-readable name for the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrNotFound:
		return "NotFound"
	case ErrVersionNotFound:
		return "VersionNotFound"
	case ErrFileLocked:
		return "FileLocked"
	case ErrStorageFailure:
		return "StorageFailure"
	case ErrHashFailure:
		return "HashFailure"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrPrivilegeRequired:
		return "PrivilegeRequired"
	default:
		return fmt.Sprintf("Unknown(%d)", int(e))
	}
}

// StoreError is the tagged error type surfaced by the metadata layer and
// everything built on it. Holder is populated for ErrFileLocked so callers
// can tell users who to contact.
type StoreError struct {
	Code    ErrorCode
	Message string
	Name    string // file name, when the error concerns one
	Holder  string // current lock holder, for ErrFileLocked
	Err     error  // wrapped cause, if any
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	switch {
	case e.Code == ErrFileLocked && e.Holder != "":
		return fmt.Sprintf("%s: %s (file: %s, holder: %s)", e.Code, e.Message, e.Name, e.Holder)
	case e.Name != "":
		return fmt.Sprintf("%s: %s (file: %s)", e.Code, e.Message, e.Name)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap exposes the wrapped cause for errors.Is/As chains.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a NotFound error for a file name.
func NewNotFoundError(name string) *StoreError {
	return &StoreError{
		Code:    ErrNotFound,
		Message: "file not found",
		Name:    name,
	}
}

// NewVersionNotFoundError creates a VersionNotFound error.
func NewVersionNotFoundError(name string, version uint64) *StoreError {
	return &StoreError{
		Code:    ErrVersionNotFound,
		Message: fmt.Sprintf("version %d not found", version),
		Name:    name,
	}
}

// NewFileLockedError creates a FileLocked error carrying the current holder.
func NewFileLockedError(name, holder string) *StoreError {
	return &StoreError{
		Code:    ErrFileLocked,
		Message: "file is locked",
		Name:    name,
		Holder:  holder,
	}
}

// NewStorageFailureError wraps a failed durable write.
func NewStorageFailureError(err error) *StoreError {
	return &StoreError{
		Code:    ErrStorageFailure,
		Message: "durable write failed",
		Err:     err,
	}
}

// NewHashFailureError wraps a failed blob read or digest computation.
func NewHashFailureError(name string, err error) *StoreError {
	return &StoreError{
		Code:    ErrHashFailure,
		Message: "content hash failed",
		Name:    name,
		Err:     err,
	}
}

// NewInvalidArgumentError creates an InvalidArgument error.
func NewInvalidArgumentError(message string) *StoreError {
	return &StoreError{
		Code:    ErrInvalidArgument,
		Message: message,
	}
}

// NewPrivilegeRequiredError creates a PrivilegeRequired error.
func NewPrivilegeRequiredError(message string) *StoreError {
	return &StoreError{
		Code:    ErrPrivilegeRequired,
		Message: message,
	}
}

// CodeOf returns the StoreError code carried by err, or 0 if err is not a
// StoreError.
func CodeOf(err error) ErrorCode {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsNotFound reports whether err is a NotFound or VersionNotFound StoreError.
func IsNotFound(err error) bool {
	code := CodeOf(err)
	return code == ErrNotFound || code == ErrVersionNotFound
}

// IsLocked reports whether err is a FileLocked StoreError.
func IsLocked(err error) bool {
	return CodeOf(err) == ErrFileLocked
}
