// Package shm maps named shared memory regions that several processes can
// attach to at once. A region is created at most once per name and lives
// until the last process holding it closes it.
package shm

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
)

var (
	ErrOpenMapping   = errors.New("shm: open mapping")
	ErrCreateMapping = errors.New("shm: create mapping")
	ErrMapView       = errors.New("shm: map view")
	ErrUnmapView     = errors.New("shm: unmap view")
	ErrCloseHandle   = errors.New("shm: close handle")

	// ErrSizeMismatch is wrapped when an existing region's size differs from the requested one.
	ErrSizeMismatch = errors.New("shm: size mismatch")
	// ErrInvalidName is wrapped for empty names.
	ErrInvalidName = errors.New("shm: invalid name")
	// ErrUnsupported is returned on platforms without named shared memory.
	ErrUnsupported = errors.New("shm: unsupported platform")
)

// maxAttempts bounds the open/create retry loop when regions are being
// created and removed concurrently under the same name.
const maxAttempts = 16

// Error describes a failed region operation. Op is one of the Err*Mapping,
// ErrMapView, ErrUnmapView or ErrCloseHandle sentinels. Both Op and Err
// match with errors.Is.
type Error struct {
	Op   error
	Name string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v %q: %v", e.Op, e.Name, e.Err)
}

func (e *Error) Unwrap() []error { return []error{e.Op, e.Err} }

// InitFunc fills a newly created region before any other process can see it.
type InitFunc func(data []byte) error

// Region is one process's view of a named shared memory region.
type Region struct {
	name    string
	data    []byte
	created bool

	mu     sync.Mutex
	closed bool
	sys    sysRegion
}

// Bytes returns the mapped memory. It must not be used after Close.
func (r *Region) Bytes() []byte { return r.data }

// Size returns the mapped length in bytes.
func (r *Region) Size() int { return len(r.data) }

// Name returns the name the region was opened with.
func (r *Region) Name() string { return r.name }

// Created reports whether this process created the region (and ran its InitFunc).
func (r *Region) Created() bool { return r.created }

// Close unmaps the region and releases the OS handle. It is safe to call more than once.
func (r *Region) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.sys.close(r.name, r.data)
	r.data = nil
	return err
}

// Open attaches to an existing region. A missing region yields an error
// matching fs.ErrNotExist.
func Open(name string, size int) (*Region, error) {
	if err := validate(name, size); err != nil {
		return nil, &Error{Op: ErrOpenMapping, Name: name, Err: err}
	}
	return openRegion(name, size)
}

// Create creates the region, running init on its bytes before publishing it.
// If the region already exists it is opened instead and Created reports false.
func Create(name string, size int, init InitFunc) (*Region, error) {
	if err := validate(name, size); err != nil {
		return nil, &Error{Op: ErrCreateMapping, Name: name, Err: err}
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		r, err := createRegion(name, size, init)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		r, err = openRegion(name, size)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		// Removed between our create and open. Try again.
		lastErr = err
	}
	return nil, lastErr
}

// OpenOrCreate opens the region if it exists and creates it otherwise.
func OpenOrCreate(name string, size int, init InitFunc) (*Region, error) {
	r, err := Open(name, size)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return Create(name, size, init)
}

func validate(name string, size int) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	if size <= 0 {
		return fmt.Errorf("%w: %d bytes", ErrSizeMismatch, size)
	}
	return nil
}
