package format

import (
	"errors"
	"fmt"
)

// Header field sentinels. A *HeaderError always wraps exactly one of them.
var (
	ErrReadFormatVersion   = errors.New("format: read format version")
	ErrReadVersion         = errors.New("format: read version")
	ErrReadNameLength      = errors.New("format: read name length")
	ErrSeekAfterNameLength = errors.New("format: seek after name length")
	ErrReadPointerSize     = errors.New("format: read pointer size")
	ErrReadAddressCount    = errors.New("format: read address count")
)

var (
	// ErrUnexpectedFormat is matched by *UnexpectedFormatError.
	ErrUnexpectedFormat = errors.New("format: unexpected format version")
	// ErrZeroPointerSize indicates a scaled offset in a library declaring a zero pointer size.
	ErrZeroPointerSize = errors.New("format: zero pointer size")
)

// HeaderError reports which header field could not be read.
type HeaderError struct {
	Field error // one of the ErrRead*/ErrSeek* sentinels
	Err   error // underlying I/O error
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("%v: %v", e.Field, e.Err)
}

func (e *HeaderError) Unwrap() []error { return []error{e.Field, e.Err} }

// UnexpectedFormatError is returned when the header's format version differs
// from the one expected for the runtime.
type UnexpectedFormatError struct {
	Expected int32
	Actual   int32
}

func (e *UnexpectedFormatError) Error() string {
	return fmt.Sprintf("format: expected address library format %d, got %d", e.Expected, e.Actual)
}

func (e *UnexpectedFormatError) Is(target error) bool { return target == ErrUnexpectedFormat }

// InvalidIDError is returned for a control byte whose id nibble is outside the encoding table.
type InvalidIDError struct {
	Code  uint8
	Index int
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("format: invalid id encoding %d at record %d", e.Code, e.Index)
}

// InvalidOffsetError is returned when a record's offset cannot be decoded.
type InvalidOffsetError struct {
	Code  uint8
	Index int
	Err   error
}

func (e *InvalidOffsetError) Error() string {
	return fmt.Sprintf("format: invalid offset encoding %d at record %d: %v", e.Code, e.Index, e.Err)
}

func (e *InvalidOffsetError) Unwrap() error { return e.Err }

// RecordError wraps an I/O failure while reading record Index.
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("format: record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
