// Package sharedlock provides a reader-writer lock whose state lives in a
// named shared memory region next to the data it protects, so independent
// processes mapping the same name exclude each other.
//
// Region layout:
//
//	0x00  u32  lock state
//	0x04  u32  writer notification counter
//	0x08  u32  poison flag
//	0x0C  ...  padding up to HeaderSize
//	0x40  T[n]
//
// A writer that fails (WriteGuard.Fail, an error or panic inside WithWrite)
// poisons the lock. Later acquisitions still succeed but report a
// *PoisonError until ClearPoison is called.
//
// Every guard pins the mapping. Close stops new acquisitions and the region
// is unmapped once the last outstanding guard is unlocked.
package sharedlock

import (
	"fmt"
	"reflect"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"

	"github.com/joshuapare/addrkit/internal/buf"
	"github.com/joshuapare/addrkit/internal/shm"
)

// HeaderSize is the byte size of the lock header preceding the data. It is
// a full cache line so lock traffic does not share a line with the data.
const HeaderSize = 64

const (
	stateOffset  = 0
	notifyOffset = 4
	poisonOffset = 8
)

// Lock is one process's handle on a shared lock and its n elements of T.
type Lock[T any] struct {
	region *shm.Region
	raw    rawLock
	poison *uint32
	data   []T
	closed atomic.Bool
	// refs counts the handle plus every live guard.
	refs atomic.Int64
}

// Open attaches to an existing lock. A missing region yields an error
// matching fs.ErrNotExist.
func Open[T any](name string, n int) (*Lock[T], error) {
	size, err := regionSize[T](n)
	if err != nil {
		return nil, err
	}
	region, err := shm.Open(name, size)
	if err != nil {
		return nil, err
	}
	return attach[T](region, n), nil
}

// OpenOrCreate attaches to the lock called name, creating it if needed.
// The creator receives the write guard, already held, and must populate the
// data and Unlock (or Fail) it; every other caller gets a nil guard and
// blocks in Read until the creator is done.
func OpenOrCreate[T any](name string, n int) (*Lock[T], *WriteGuard[T], error) {
	size, err := regionSize[T](n)
	if err != nil {
		return nil, nil, err
	}
	region, err := shm.OpenOrCreate(name, size, func(b []byte) error {
		// Published write locked, so attachers wait for the data.
		buf.PutU32LE(b[stateOffset:], writeLocked)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	l := attach[T](region, n)
	if !region.Created() {
		Logger().Debug("attached shared lock", zap.String("name", name), zap.Int("len", n))
		return l, nil, nil
	}
	Logger().Debug("created shared lock", zap.String("name", name), zap.Int("len", n))
	return l, &WriteGuard[T]{l: l}, nil
}

// New attaches to or creates the lock called name. A newly created lock
// holds zeroed elements and is released immediately.
func New[T any](name string, n int) (*Lock[T], error) {
	l, g, err := OpenOrCreate[T](name, n)
	if err != nil {
		return nil, err
	}
	if g != nil {
		g.Unlock()
	}
	return l, nil
}

func attach[T any](region *shm.Region, n int) *Lock[T] {
	b := region.Bytes()
	base := unsafe.Pointer(unsafe.SliceData(b))
	l := &Lock[T]{
		region: region,
		raw: rawLock{
			state:  (*uint32)(unsafe.Add(base, stateOffset)),
			notify: (*uint32)(unsafe.Add(base, notifyOffset)),
		},
		poison: (*uint32)(unsafe.Add(base, poisonOffset)),
		data:   unsafe.Slice((*T)(unsafe.Add(base, HeaderSize)), n),
	}
	l.refs.Store(1)
	return l
}

func regionSize[T any](n int) (int, error) {
	if err := validateElement(reflect.TypeFor[T]()); err != nil {
		return 0, err
	}
	var zero T
	size, err := buf.RegionSize(HeaderSize, n, int(unsafe.Sizeof(zero)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidElement, err)
	}
	return size, nil
}

// validateElement rejects types holding pointers, which are meaningless in
// another process, and types the data offset cannot align.
func validateElement(t reflect.Type) error {
	if t.Size() == 0 {
		return invalidElement(t.String(), "has zero size")
	}
	if HeaderSize%t.Align() != 0 {
		return invalidElement(t.String(), fmt.Sprintf("alignment %d does not divide %d", t.Align(), HeaderSize))
	}
	if hasPointers(t) {
		return invalidElement(t.String(), "contains pointers")
	}
	return nil
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return hasPointers(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// Name returns the shared region name.
func (l *Lock[T]) Name() string { return l.region.Name() }

// Len returns the number of elements.
func (l *Lock[T]) Len() int { return len(l.data) }

// Created reports whether this process created the region.
func (l *Lock[T]) Created() bool { return l.region.Created() }

// Read blocks until a read lock is held. If the lock is poisoned the guard
// is returned both directly and inside the *PoisonError.
func (l *Lock[T]) Read() (*ReadGuard[T], error) {
	if err := l.pin(); err != nil {
		return nil, err
	}
	l.raw.read()
	return l.readGuard()
}

// TryRead is Read without blocking. It returns ErrWouldBlock if a writer
// holds or is waiting for the lock.
func (l *Lock[T]) TryRead() (*ReadGuard[T], error) {
	if err := l.pin(); err != nil {
		return nil, err
	}
	if !l.raw.tryRead() {
		l.unpin()
		return nil, ErrWouldBlock
	}
	return l.readGuard()
}

// Write blocks until the write lock is held. Poisoning is reported as in Read.
func (l *Lock[T]) Write() (*WriteGuard[T], error) {
	if err := l.pin(); err != nil {
		return nil, err
	}
	l.raw.write()
	return l.writeGuard()
}

// TryWrite is Write without blocking. It returns ErrWouldBlock if the lock is held.
func (l *Lock[T]) TryWrite() (*WriteGuard[T], error) {
	if err := l.pin(); err != nil {
		return nil, err
	}
	if !l.raw.tryWrite() {
		l.unpin()
		return nil, ErrWouldBlock
	}
	return l.writeGuard()
}

func (l *Lock[T]) readGuard() (*ReadGuard[T], error) {
	g := &ReadGuard[T]{l: l}
	if l.poisoned() {
		return g, &PoisonError[*ReadGuard[T]]{Guard: g}
	}
	return g, nil
}

func (l *Lock[T]) writeGuard() (*WriteGuard[T], error) {
	g := &WriteGuard[T]{l: l}
	if l.poisoned() {
		return g, &PoisonError[*WriteGuard[T]]{Guard: g}
	}
	return g, nil
}

// IsPoisoned reports whether a writer failed while holding the lock. It
// reports false once the region is unmapped.
func (l *Lock[T]) IsPoisoned() bool {
	if !l.retain() {
		return false
	}
	defer l.unpin()
	return l.poisoned()
}

func (l *Lock[T]) poisoned() bool { return atomic.LoadUint32(l.poison) != 0 }

// ClearPoison resets the poison flag for every process sharing the lock.
func (l *Lock[T]) ClearPoison() {
	if !l.retain() {
		return
	}
	defer l.unpin()
	if atomic.SwapUint32(l.poison, 0) != 0 {
		Logger().Info("cleared shared lock poison", zap.String("name", l.Name()))
	}
}

// Close releases the handle. Acquisitions after Close return ErrClosed.
// Guards still held stay valid and the region is unmapped when the last of
// them is unlocked.
func (l *Lock[T]) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	n := l.refs.Add(-1)
	if n == 0 {
		return l.region.Close()
	}
	Logger().Debug("shared lock unmap deferred",
		zap.String("name", l.Name()), zap.Int64("guards", n))
	return nil
}

// pin takes a mapping reference for a new guard.
func (l *Lock[T]) pin() error {
	if l.closed.Load() || !l.retain() {
		return ErrClosed
	}
	return nil
}

func (l *Lock[T]) retain() bool {
	for {
		n := l.refs.Load()
		if n == 0 {
			return false
		}
		if l.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// unpin drops a reference taken by pin or retain, unmapping the region if
// it was the last.
func (l *Lock[T]) unpin() {
	if l.refs.Add(-1) != 0 {
		return
	}
	if err := l.region.Close(); err != nil {
		Logger().Warn("unmap shared lock", zap.String("name", l.Name()), zap.Error(err))
	}
}

func (l *Lock[T]) setPoison() {
	if atomic.SwapUint32(l.poison, 1) == 0 {
		Logger().Warn("shared lock poisoned", zap.String("name", l.Name()))
	}
}
