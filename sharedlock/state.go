package sharedlock

import (
	"sync/atomic"

	"github.com/joshuapare/addrkit/internal/futex"
)

// The state word holds the reader count in its low 30 bits (MASK meaning
// write locked) plus two flags for sleeping readers and writers. Writers
// sleep on a separate notification counter so a wake can target them.
const (
	readLocked     uint32 = 1
	mask           uint32 = 1<<30 - 1
	writeLocked           = mask
	downgrade             = readLocked + ^writeLocked + 1 // readLocked - writeLocked, wrapped
	maxReaders            = mask - 1
	readersWaiting uint32 = 1 << 30
	writersWaiting uint32 = 1 << 31

	spinLimit = 100
)

func isUnlocked(s uint32) bool { return s&mask == 0 }
func isWriteLocked(s uint32) bool { return s&mask == writeLocked }
func hasReadersWaiting(s uint32) bool { return s&readersWaiting != 0 }
func hasWritersWaiting(s uint32) bool { return s&writersWaiting != 0 }
func hasReachedMaxReaders(s uint32) bool { return s&mask == maxReaders }

// Readers do not jump ahead of sleeping writers or readers.
func isReadLockable(s uint32) bool {
	return s&mask < maxReaders && !hasReadersWaiting(s) && !hasWritersWaiting(s)
}

// After a downgrade wakes them, readers may join even with writers waiting.
func isReadLockableAfterWakeup(s uint32) bool {
	return s&mask < maxReaders && !hasReadersWaiting(s) && !isWriteLocked(s) && !isUnlocked(s)
}

// rawLock is the lock algorithm over two words in shared memory.
type rawLock struct {
	state  *uint32
	notify *uint32
}

func (l rawLock) tryRead() bool {
	for {
		s := atomic.LoadUint32(l.state)
		if !isReadLockable(s) {
			return false
		}
		if atomic.CompareAndSwapUint32(l.state, s, s+readLocked) {
			return true
		}
	}
}

func (l rawLock) read() {
	s := atomic.LoadUint32(l.state)
	if !isReadLockable(s) || !atomic.CompareAndSwapUint32(l.state, s, s+readLocked) {
		l.readContended()
	}
}

func (l rawLock) readUnlock() {
	s := atomic.AddUint32(l.state, ^(readLocked - 1))
	// Wake a writer if we were the last reader and one is waiting.
	if isUnlocked(s) && hasWritersWaiting(s) {
		l.wakeWriterOrReaders(s)
	}
}

func (l rawLock) readContended() {
	slept := false
	s := l.spinRead()
	for {
		if (slept && isReadLockableAfterWakeup(s)) || isReadLockable(s) {
			if atomic.CompareAndSwapUint32(l.state, s, s+readLocked) {
				return
			}
			s = atomic.LoadUint32(l.state)
			continue
		}
		if hasReachedMaxReaders(s) {
			panic("sharedlock: too many active read locks")
		}
		if !hasReadersWaiting(s) {
			if !atomic.CompareAndSwapUint32(l.state, s, s|readersWaiting) {
				s = atomic.LoadUint32(l.state)
				continue
			}
		}
		futex.Wait(l.state, s|readersWaiting, 0)
		slept = true
		s = l.spinRead()
	}
}

func (l rawLock) tryWrite() bool {
	for {
		s := atomic.LoadUint32(l.state)
		if !isUnlocked(s) {
			return false
		}
		if atomic.CompareAndSwapUint32(l.state, s, s+writeLocked) {
			return true
		}
	}
}

func (l rawLock) write() {
	if !atomic.CompareAndSwapUint32(l.state, 0, writeLocked) {
		l.writeContended()
	}
}

func (l rawLock) writeUnlock() {
	s := atomic.AddUint32(l.state, ^(writeLocked - 1))
	if hasWritersWaiting(s) || hasReadersWaiting(s) {
		l.wakeWriterOrReaders(s)
	}
}

// downgradeLock turns a held write lock into a read lock.
func (l rawLock) downgradeLock() {
	s := atomic.AddUint32(l.state, downgrade) - downgrade
	if hasReadersWaiting(s) {
		// Only the writer can clear this bit while it holds the lock.
		atomic.AddUint32(l.state, ^(readersWaiting - 1))
		futex.WakeAll(l.state)
	}
}

func (l rawLock) writeContended() {
	s := l.spinWrite()
	var otherWriters uint32
	for {
		if isUnlocked(s) {
			if atomic.CompareAndSwapUint32(l.state, s, s|writeLocked|otherWriters) {
				return
			}
			s = atomic.LoadUint32(l.state)
			continue
		}
		if !hasWritersWaiting(s) {
			if !atomic.CompareAndSwapUint32(l.state, s, s|writersWaiting) {
				s = atomic.LoadUint32(l.state)
				continue
			}
		}
		// Other writers may be asleep too; keep the bit once we get the lock.
		otherWriters = writersWaiting

		// Read the counter before re-checking state so no wake is missed.
		seq := atomic.LoadUint32(l.notify)
		s = atomic.LoadUint32(l.state)
		if isUnlocked(s) || !hasWritersWaiting(s) {
			continue
		}
		futex.Wait(l.notify, seq, 0)
		s = l.spinWrite()
	}
}

func (l rawLock) wakeWriterOrReaders(s uint32) {
	// If only writers are waiting, wake one of them.
	if s == writersWaiting {
		if atomic.CompareAndSwapUint32(l.state, s, 0) {
			l.wakeWriter()
			return
		}
		s = atomic.LoadUint32(l.state)
	}

	// Both waiting: leave readers asleep and wake one writer.
	if s == readersWaiting|writersWaiting {
		if !atomic.CompareAndSwapUint32(l.state, s, readersWaiting) {
			// Someone took the lock; their unlock handles the waiters.
			return
		}
		if l.wakeWriter() {
			return
		}
		// No writer was actually asleep, so wake the readers instead.
		s = readersWaiting
	}

	if s == readersWaiting {
		if atomic.CompareAndSwapUint32(l.state, s, 0) {
			futex.WakeAll(l.state)
		}
	}
}

func (l rawLock) wakeWriter() bool {
	atomic.AddUint32(l.notify, 1)
	return futex.Wake(l.notify)
}

func (l rawLock) spinUntil(f func(uint32) bool) uint32 {
	for spin := spinLimit; ; spin-- {
		s := atomic.LoadUint32(l.state)
		if f(s) || spin == 0 {
			return s
		}
	}
}

func (l rawLock) spinWrite() uint32 {
	return l.spinUntil(func(s uint32) bool { return isUnlocked(s) || hasWritersWaiting(s) })
}

func (l rawLock) spinRead() uint32 {
	return l.spinUntil(func(s uint32) bool {
		return !isWriteLocked(s) || hasReadersWaiting(s) || hasWritersWaiting(s)
	})
}
