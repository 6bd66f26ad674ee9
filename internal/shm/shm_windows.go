//go:build windows

package shm

import (
	"errors"
	"fmt"
	"io/fs"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Regions are pagefile-backed named file mappings. Creation and opening are
// serialized per name by a named mutex so an opener never observes a mapping
// whose InitFunc has not finished.

var (
	modkernel32          = windows.NewLazySystemDLL("kernel32.dll")
	procOpenFileMappingW = modkernel32.NewProc("OpenFileMappingW")
)

type sysRegion struct {
	handle windows.Handle
	addr   uintptr
}

// Path returns the kernel object name used for the region.
func Path(name string) string { return name }

func withNameLock(name string, fn func() (*Region, error)) (*Region, error) {
	lockName, err := windows.UTF16PtrFromString(name + ".lock")
	if err != nil {
		return nil, err
	}
	mu, err := windows.CreateMutex(nil, false, lockName)
	if mu == 0 {
		return nil, err
	}
	defer windows.CloseHandle(mu)
	ev, err := windows.WaitForSingleObject(mu, windows.INFINITE)
	if ev == windows.WAIT_FAILED {
		return nil, err
	}
	// WAIT_ABANDONED still grants ownership. The holder died, but the
	// mapping is either complete or was never created.
	defer windows.ReleaseMutex(mu)
	return fn()
}

func openRegion(name string, size int) (*Region, error) {
	r, err := withNameLock(name, func() (*Region, error) {
		namep, err := windows.UTF16PtrFromString(name)
		if err != nil {
			return nil, &Error{Op: ErrOpenMapping, Name: name, Err: err}
		}
		h, _, callErr := procOpenFileMappingW.Call(
			uintptr(windows.FILE_MAP_READ|windows.FILE_MAP_WRITE), 0, uintptr(unsafe.Pointer(namep)))
		if h == 0 {
			if errors.Is(callErr, windows.ERROR_FILE_NOT_FOUND) {
				callErr = fs.ErrNotExist
			}
			return nil, &Error{Op: ErrOpenMapping, Name: name, Err: callErr}
		}
		return mapView(name, windows.Handle(h), size, false, nil)
	})
	if err != nil {
		return nil, wrapLockErr(ErrOpenMapping, name, err)
	}
	return r, nil
}

func createRegion(name string, size int, init InitFunc) (*Region, error) {
	r, err := withNameLock(name, func() (*Region, error) {
		namep, err := windows.UTF16PtrFromString(name)
		if err != nil {
			return nil, &Error{Op: ErrCreateMapping, Name: name, Err: err}
		}
		h, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE,
			uint32(uint64(size)>>32), uint32(size), namep)
		if h == 0 {
			return nil, &Error{Op: ErrCreateMapping, Name: name, Err: err}
		}
		if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
			windows.CloseHandle(h)
			return nil, &Error{Op: ErrCreateMapping, Name: name, Err: fs.ErrExist}
		}
		return mapView(name, h, size, true, init)
	})
	if err != nil {
		return nil, wrapLockErr(ErrCreateMapping, name, err)
	}
	return r, nil
}

func mapView(name string, h windows.Handle, size int, created bool, init InitFunc) (*Region, error) {
	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(h)
		return nil, &Error{Op: ErrMapView, Name: name, Err: err}
	}
	if !created {
		// Views are page granular, so only a too-small mapping is detectable.
		var mbi windows.MemoryBasicInformation
		if err := windows.VirtualQuery(addr, &mbi, unsafe.Sizeof(mbi)); err == nil && mbi.RegionSize < uintptr(size) {
			windows.UnmapViewOfFile(addr)
			windows.CloseHandle(h)
			return nil, &Error{Op: ErrOpenMapping, Name: name,
				Err: fmt.Errorf("%w: have %d bytes, want %d", ErrSizeMismatch, mbi.RegionSize, size)}
		}
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	if init != nil {
		if err := init(data); err != nil {
			windows.UnmapViewOfFile(addr)
			windows.CloseHandle(h)
			return nil, &Error{Op: ErrCreateMapping, Name: name, Err: err}
		}
	}
	return &Region{name: name, data: data, created: created, sys: sysRegion{handle: h, addr: addr}}, nil
}

func wrapLockErr(op error, name string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Name: name, Err: err}
}

func (s *sysRegion) close(name string, _ []byte) error {
	var errs []error
	if s.addr != 0 {
		if err := windows.UnmapViewOfFile(s.addr); err != nil {
			errs = append(errs, &Error{Op: ErrUnmapView, Name: name, Err: err})
		}
		s.addr = 0
	}
	if s.handle != 0 {
		if err := windows.CloseHandle(s.handle); err != nil {
			errs = append(errs, &Error{Op: ErrCloseHandle, Name: name, Err: err})
		}
		s.handle = 0
	}
	return errors.Join(errs...)
}
