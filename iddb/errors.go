package iddb

import (
	"errors"
	"fmt"

	"github.com/joshuapare/addrkit/internal/format"
	"github.com/joshuapare/addrkit/sharedlock"
	"github.com/joshuapare/addrkit/version"
)

var (
	// ErrLibraryNotFound indicates the address library file could not be opened.
	ErrLibraryNotFound = errors.New("iddb: address library not found")
	// ErrIncompatible is matched by lookups that imply the caller was built
	// for a different host version.
	ErrIncompatible = errors.New("iddb: incompatible with the running host")

	// ErrUnexpectedFormat is matched when the library's record format does not
	// belong to the runtime.
	ErrUnexpectedFormat = format.ErrUnexpectedFormat
	// ErrPoisoned is matched when the shared table was left poisoned by a
	// failed decode or writer.
	ErrPoisoned = sharedlock.ErrPoisoned
)

// VersionMismatchError is returned when the library header names a version
// other than the running host's.
type VersionMismatchError struct {
	Expected version.Version
	Actual   version.Version
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("iddb: version mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// NotFoundIDError is returned when an id is absent from the table.
type NotFoundIDError struct {
	ID uint64
}

func (e *NotFoundIDError) Error() string {
	return fmt.Sprintf("iddb: id %d not found in the address library; the caller is incompatible with this host version", e.ID)
}

func (e *NotFoundIDError) Is(target error) bool { return target == ErrIncompatible }

// UnpackError wraps a record decoding failure for the library at Path.
type UnpackError struct {
	Path string
	Err  error
}

func (e *UnpackError) Error() string {
	return fmt.Sprintf("iddb: unpack %s: %v", e.Path, e.Err)
}

func (e *UnpackError) Unwrap() error { return e.Err }
