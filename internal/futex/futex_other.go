//go:build !linux && !windows

package futex

import (
	"sync/atomic"
	"time"
)

// CrossProcess reports whether Wake reaches waiters in other processes.
const CrossProcess = false

// Wait sleeps for one poll interval (or timeout if shorter) while
// *addr == expected. It returns false only when timeout itself has elapsed.
func Wait(addr *uint32, expected uint32, timeout time.Duration) bool {
	if atomic.LoadUint32(addr) != expected {
		return true
	}
	slice := PollInterval
	if timeout > 0 && timeout < slice {
		slice = timeout
	}
	time.Sleep(slice)
	return timeout <= 0 || slice < timeout || atomic.LoadUint32(addr) != expected
}

// Wake is a no-op; waiters notice changes on their next poll.
func Wake(*uint32) bool { return false }

// WakeAll is a no-op; waiters notice changes on their next poll.
func WakeAll(*uint32) {}
