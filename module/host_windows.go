//go:build windows

package module

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/joshuapare/addrkit/internal/buf"
	"github.com/joshuapare/addrkit/version"
)

// headerPage is always mapped at a module's base.
const headerPage = 0x1000

// WindowsHost inspects modules loaded in the current process.
type WindowsHost struct{}

var _ Host = WindowsHost{}

func (WindowsHost) Getenv(key string) (string, bool) {
	return windows.Getenv(key)
}

func (WindowsHost) Image(name string) (*Image, error) {
	namep, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, err
	}
	var h windows.Handle
	if err := windows.GetModuleHandleEx(windows.GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT, namep, &h); err != nil {
		return nil, fmt.Errorf("module: GetModuleHandleEx %s: %w", name, err)
	}

	path := make([]uint16, windows.MAX_LONG_PATH)
	n, err := windows.GetModuleFileName(h, &path[0], uint32(len(path)))
	if err != nil {
		return nil, fmt.Errorf("module: GetModuleFileName %s: %w", name, err)
	}

	base := uintptr(h)
	mem := unsafe.Slice((*byte)(unsafe.Pointer(base)), headerPage)
	if lfanew, err := checkHeaders(mem); err == nil {
		// OptionalHeader.SizeOfImage: NT signature (4) + file header (20) + 56.
		if field, ok := buf.Slice(mem, lfanew+24+56, 4); ok {
			if size := buf.U32LE(field); size > headerPage {
				mem = unsafe.Slice((*byte)(unsafe.Pointer(base)), size)
			}
		}
	}
	return &Image{
		Name:   name,
		Path:   windows.UTF16ToString(path[:n]),
		Base:   base,
		Mem:    mem,
		Mapped: true,
	}, nil
}

func (WindowsHost) FileVersion(path string) (version.Version, error) {
	var zero windows.Handle
	size, err := windows.GetFileVersionInfoSize(path, &zero)
	if err != nil {
		return version.Version{}, fmt.Errorf("module: GetFileVersionInfoSize: %w", err)
	}
	block := make([]byte, size)
	if err := windows.GetFileVersionInfo(path, 0, size, unsafe.Pointer(&block[0])); err != nil {
		return version.Version{}, fmt.Errorf("module: GetFileVersionInfo: %w", err)
	}
	return ProductVersion(block)
}

func defaultHost() Host { return WindowsHost{} }
