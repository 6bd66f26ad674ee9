// Package futex blocks on and wakes waiters of a 32-bit word that may live
// in memory shared between processes.
//
// Wait may return spuriously. Callers must re-check the word in a loop.
package futex

import "time"

// PollInterval bounds each wait on platforms where a waiter in one process
// cannot be woken from another. The caller's loop turns this into polling.
const PollInterval = 2 * time.Millisecond
