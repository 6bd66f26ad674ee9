package rel

// Relocation is a resolved absolute address in the host.
type Relocation struct {
	addr uintptr
}

// NewRelocation wraps an absolute address.
func NewRelocation(addr uintptr) Relocation { return Relocation{addr: addr} }

// RelocationFrom returns the address of base plus the offset of delta, as
// for a member at a fixed offset inside an id-resolved object.
func RelocationFrom(ctx *Context, base, delta Resolvable) (Relocation, error) {
	addr, err := ctx.Address(base)
	if err != nil {
		return Relocation{}, err
	}
	off, err := delta.ResolveOffset(ctx)
	if err != nil {
		return Relocation{}, err
	}
	return Relocation{addr: addr + off}, nil
}

// Address returns the absolute address.
func (r Relocation) Address() uintptr { return r.addr }

// Offset returns the address relative to the module base.
func (r Relocation) Offset(ctx *Context) (uintptr, error) {
	base, err := ctx.Base()
	if err != nil {
		return 0, err
	}
	return r.addr - base, nil
}

// Relocate returns ae on AE hosts and seAndVR otherwise.
func Relocate[T any](ctx *Context, seAndVR, ae T) (T, error) {
	rt, err := ctx.Runtime()
	if err != nil {
		var zero T
		return zero, err
	}
	if rt.IsAE() {
		return ae, nil
	}
	return seAndVR, nil
}
