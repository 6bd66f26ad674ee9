// Package mmfile maps on-disk executable images read-only so their headers
// and resources can be parsed in place.
package mmfile

import "errors"

// ErrTooLarge is returned for files that do not fit in the address space.
var ErrTooLarge = errors.New("mmfile: file too large to map")

// Release is returned alongside every mapping. Calling it more than once is a no-op.
type Release func() error

func noop() error { return nil }
