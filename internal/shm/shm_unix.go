//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package shm

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// Regions are regular files in Dir. Every process mapping one holds a shared
// flock on it; a file nobody holds locked is stale and gets replaced.
//
// Creation writes and initializes a private temporary file, takes the shared
// lock, then publishes it with link(2), which fails if the name exists. No
// other process can observe a partially initialized region.

// Dir is where region files live. It defaults to /dev/shm when present.
var Dir = defaultDir()

func defaultDir() string {
	if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

type sysRegion struct {
	f *os.File
}

// Path returns the file backing the region called name.
func Path(name string) string {
	clean := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, name)
	return filepath.Join(Dir, clean)
}

func openRegion(name string, size int) (*Region, error) {
	path := Path(name)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			return nil, &Error{Op: ErrOpenMapping, Name: name, Err: err}
		}
		fd := int(f.Fd())

		if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err == nil {
			// Nobody holds it: left behind by a process that died.
			if same, _ := sameFile(fd, path); same {
				_ = os.Remove(path)
			}
			f.Close()
			return nil, &Error{Op: ErrOpenMapping, Name: name, Err: fs.ErrNotExist}
		}
		if err := unix.Flock(fd, unix.LOCK_SH); err != nil {
			f.Close()
			return nil, &Error{Op: ErrOpenMapping, Name: name, Err: err}
		}
		same, err := sameFile(fd, path)
		if err != nil || !same {
			// Replaced or removed while we waited for the lock.
			f.Close()
			continue
		}

		var st unix.Stat_t
		if err := unix.Fstat(fd, &st); err != nil {
			f.Close()
			return nil, &Error{Op: ErrOpenMapping, Name: name, Err: err}
		}
		if st.Size != int64(size) {
			f.Close()
			return nil, &Error{Op: ErrOpenMapping, Name: name,
				Err: fmt.Errorf("%w: have %d bytes, want %d", ErrSizeMismatch, st.Size, size)}
		}

		data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			f.Close()
			return nil, &Error{Op: ErrMapView, Name: name, Err: err}
		}
		return &Region{name: name, data: data, sys: sysRegion{f: f}}, nil
	}
	return nil, &Error{Op: ErrOpenMapping, Name: name, Err: fs.ErrNotExist}
}

func createRegion(name string, size int, init InitFunc) (*Region, error) {
	path := Path(name)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".shm-*")
	if err != nil {
		return nil, &Error{Op: ErrCreateMapping, Name: name, Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	fail := func(op error, err error) (*Region, error) {
		tmp.Close()
		return nil, &Error{Op: op, Name: name, Err: err}
	}

	if err := tmp.Truncate(int64(size)); err != nil {
		return fail(ErrCreateMapping, err)
	}
	fd := int(tmp.Fd())
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fail(ErrMapView, err)
	}
	if init != nil {
		if err := init(data); err != nil {
			_ = unix.Munmap(data)
			return fail(ErrCreateMapping, err)
		}
	}
	if err := unix.Flock(fd, unix.LOCK_SH); err != nil {
		_ = unix.Munmap(data)
		return fail(ErrCreateMapping, err)
	}
	if err := unix.Link(tmpPath, path); err != nil {
		_ = unix.Munmap(data)
		if errors.Is(err, unix.EEXIST) {
			return fail(ErrCreateMapping, fs.ErrExist)
		}
		return fail(ErrCreateMapping, err)
	}
	return &Region{name: name, data: data, created: true, sys: sysRegion{f: tmp}}, nil
}

func (s *sysRegion) close(name string, data []byte) error {
	var errs []error
	if data != nil {
		if err := unix.Munmap(data); err != nil {
			errs = append(errs, &Error{Op: ErrUnmapView, Name: name, Err: err})
		}
	}
	fd := int(s.f.Fd())
	// Upgrading only succeeds when no other process holds the region.
	if unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB) == nil {
		path := Path(name)
		if same, _ := sameFile(fd, path); same {
			_ = os.Remove(path)
		}
	}
	if err := s.f.Close(); err != nil {
		errs = append(errs, &Error{Op: ErrCloseHandle, Name: name, Err: err})
	}
	return errors.Join(errs...)
}

func sameFile(fd int, path string) (bool, error) {
	var a, b unix.Stat_t
	if err := unix.Fstat(fd, &a); err != nil {
		return false, err
	}
	if err := unix.Stat(path, &b); err != nil {
		return false, err
	}
	return a.Dev == b.Dev && a.Ino == b.Ino, nil
}
