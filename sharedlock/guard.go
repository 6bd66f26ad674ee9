package sharedlock

import "fmt"

// ReadGuard grants shared access until Unlock.
type ReadGuard[T any] struct {
	l        *Lock[T]
	released bool
}

// Len returns the number of elements.
func (g *ReadGuard[T]) Len() int { return len(g.l.data) }

// At returns element i. It panics if i is out of range.
func (g *ReadGuard[T]) At(i int) T {
	g.check()
	return g.l.data[i]
}

// Slice returns the elements. The slice must not be retained after Unlock
// or modified.
func (g *ReadGuard[T]) Slice() []T {
	g.check()
	return g.l.data
}

// Unlock releases the read lock. It panics if called twice.
func (g *ReadGuard[T]) Unlock() {
	g.check()
	g.released = true
	g.l.raw.readUnlock()
	g.l.unpin()
}

func (g *ReadGuard[T]) check() {
	if g.released {
		panic(fmt.Sprintf("sharedlock: use of released read guard on %q", g.l.Name()))
	}
}

// WriteGuard grants exclusive access until Unlock or Downgrade.
type WriteGuard[T any] struct {
	l        *Lock[T]
	failed   bool
	released bool
}

// Len returns the number of elements.
func (g *WriteGuard[T]) Len() int { return len(g.l.data) }

// At returns element i. It panics if i is out of range.
func (g *WriteGuard[T]) At(i int) T {
	g.check()
	return g.l.data[i]
}

// Set stores v at i. It panics if i is out of range.
func (g *WriteGuard[T]) Set(i int, v T) {
	g.check()
	g.l.data[i] = v
}

// Slice returns the elements for in-place modification. The slice must not
// be retained after Unlock.
func (g *WriteGuard[T]) Slice() []T {
	g.check()
	return g.l.data
}

// Fail marks the critical section as failed. The lock is poisoned when the
// guard is released.
func (g *WriteGuard[T]) Fail() {
	g.check()
	g.failed = true
}

// Unlock releases the write lock, poisoning it first if Fail was called.
func (g *WriteGuard[T]) Unlock() {
	g.release()
	g.l.raw.writeUnlock()
	g.l.unpin()
}

// Downgrade atomically turns the write lock into a read lock; no other
// writer can run in between. Readers blocked behind the writer are woken.
func (g *WriteGuard[T]) Downgrade() *ReadGuard[T] {
	g.release()
	g.l.raw.downgradeLock()
	// The mapping reference moves to the read guard.
	return &ReadGuard[T]{l: g.l}
}

func (g *WriteGuard[T]) release() {
	g.check()
	g.released = true
	if g.failed {
		g.l.setPoison()
	}
}

func (g *WriteGuard[T]) check() {
	if g.released {
		panic(fmt.Sprintf("sharedlock: use of released write guard on %q", g.l.Name()))
	}
}
