//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly && !windows

package shm

type sysRegion struct{}

// Path returns name unchanged; regions are unsupported here.
func Path(name string) string { return name }

func openRegion(name string, _ int) (*Region, error) {
	return nil, &Error{Op: ErrOpenMapping, Name: name, Err: ErrUnsupported}
}

func createRegion(name string, _ int, _ InitFunc) (*Region, error) {
	return nil, &Error{Op: ErrCreateMapping, Name: name, Err: ErrUnsupported}
}

func (*sysRegion) close(string, []byte) error { return nil }
