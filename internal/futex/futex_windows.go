//go:build windows

package futex

import (
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// CrossProcess reports whether Wake reaches waiters in other processes.
// WaitOnAddress only sees wakes from the same process.
const CrossProcess = false

var (
	modsynch                = windows.NewLazySystemDLL("api-ms-win-core-synch-l1-2-0.dll")
	procWaitOnAddress       = modsynch.NewProc("WaitOnAddress")
	procWakeByAddressSingle = modsynch.NewProc("WakeByAddressSingle")
	procWakeByAddressAll    = modsynch.NewProc("WakeByAddressAll")
)

// Wait blocks while *addr == expected for at most min(timeout, PollInterval).
// It returns false only when timeout itself has elapsed.
func Wait(addr *uint32, expected uint32, timeout time.Duration) bool {
	if atomic.LoadUint32(addr) != expected {
		return true
	}
	slice := PollInterval
	if timeout > 0 && timeout < slice {
		slice = timeout
	}
	ms := uint32(slice / time.Millisecond)
	if ms == 0 {
		ms = 1
	}
	cmp := expected
	procWaitOnAddress.Call(
		uintptr(unsafe.Pointer(addr)),
		uintptr(unsafe.Pointer(&cmp)),
		unsafe.Sizeof(cmp),
		uintptr(ms))
	return timeout <= 0 || slice < timeout || atomic.LoadUint32(addr) != expected
}

// Wake wakes one in-process waiter. The result is always false since the
// API does not report whether anyone was blocked.
func Wake(addr *uint32) bool {
	procWakeByAddressSingle.Call(uintptr(unsafe.Pointer(addr)))
	return false
}

// WakeAll wakes every in-process waiter.
func WakeAll(addr *uint32) {
	procWakeByAddressAll.Call(uintptr(unsafe.Pointer(addr)))
}
