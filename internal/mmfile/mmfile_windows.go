//go:build windows

package mmfile

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Map maps the file at path read-only and returns its contents.
func Map(path string) ([]byte, Release, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, noop, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, noop, err
	}
	size := info.Size()
	if size == 0 {
		return []byte{}, noop, nil
	}
	if size > int64(^uint(0)>>1) {
		return nil, noop, fmt.Errorf("%w (%d bytes)", ErrTooLarge, size)
	}

	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READONLY, 0, 0, nil)
	if err != nil {
		return nil, noop, fmt.Errorf("mmfile: CreateFileMapping %s: %w", path, err)
	}
	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ, 0, 0, uintptr(size))
	if err != nil {
		_ = windows.CloseHandle(h)
		return nil, noop, fmt.Errorf("mmfile: MapViewOfFile %s: %w", path, err)
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))

	var once sync.Once
	release := func() error {
		var err error
		once.Do(func() {
			err = windows.UnmapViewOfFile(addr)
			if cerr := windows.CloseHandle(h); err == nil {
				err = cerr
			}
		})
		return err
	}
	return data, release, nil
}
