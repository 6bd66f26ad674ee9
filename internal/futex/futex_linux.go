//go:build linux

package futex

import (
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// CrossProcess reports whether Wake reaches waiters in other processes.
const CrossProcess = true

// The shared (non-private) variants, so waiters in other processes mapping
// the same page are found by the kernel.
const (
	futexWait = 0
	futexWake = 1
)

// Wait blocks while *addr == expected, until woken or timeout elapses. A
// non-positive timeout waits indefinitely. It returns false only on timeout.
func Wait(addr *uint32, expected uint32, timeout time.Duration) bool {
	var ts *unix.Timespec
	if timeout > 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}
	for {
		if atomic.LoadUint32(addr) != expected {
			return true
		}
		_, _, errno := unix.Syscall6(unix.SYS_FUTEX,
			uintptr(unsafe.Pointer(addr)), futexWait, uintptr(expected),
			uintptr(unsafe.Pointer(ts)), 0, 0)
		switch errno {
		case unix.EINTR:
			continue
		case unix.ETIMEDOUT:
			return false
		default:
			// 0 or EAGAIN (value already changed).
			return true
		}
	}
}

// Wake wakes one waiter and reports whether one was blocked.
func Wake(addr *uint32) bool {
	n, _, errno := unix.Syscall(unix.SYS_FUTEX, uintptr(unsafe.Pointer(addr)), futexWake, 1)
	return errno == 0 && n > 0
}

// WakeAll wakes every waiter.
func WakeAll(addr *uint32) {
	unix.Syscall(unix.SYS_FUTEX, uintptr(unsafe.Pointer(addr)), futexWake, uintptr(int32(^uint32(0)>>1)))
}
