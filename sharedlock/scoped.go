package sharedlock

// WithRead runs fn with the elements under a read lock. A poisoned lock is
// reported without calling fn.
func (l *Lock[T]) WithRead(fn func([]T) error) error {
	g, err := l.Read()
	if err != nil {
		if g != nil {
			g.Unlock()
		}
		return err
	}
	defer g.Unlock()
	return fn(g.Slice())
}

// WithWrite runs fn with the elements under the write lock. If fn returns
// an error or panics, the lock is poisoned before it is released and the
// error (or panic) is passed on. A poisoned lock is reported without
// calling fn.
func (l *Lock[T]) WithWrite(fn func([]T) error) (err error) {
	g, err := l.Write()
	if err != nil {
		if g != nil {
			g.Unlock()
		}
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			g.Fail()
			g.Unlock()
			panic(r)
		}
		if err != nil {
			g.Fail()
		}
		g.Unlock()
	}()
	return fn(g.Slice())
}
