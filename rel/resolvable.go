package rel

import "github.com/joshuapare/addrkit/version"

// Resolvable yields an offset from the module base.
type Resolvable interface {
	ResolveOffset(ctx *Context) (uintptr, error)
}

// Offset is a fixed offset from the module base.
type Offset uintptr

func (o Offset) ResolveOffset(*Context) (uintptr, error) { return uintptr(o), nil }

// ID is an address library id.
type ID uint64

func (id ID) ResolveOffset(ctx *Context) (uintptr, error) {
	db, err := ctx.Database()
	if err != nil {
		return 0, err
	}
	off, err := db.IDToOffset(uint64(id))
	return uintptr(off), err
}

// Variant holds one value per runtime.
type Variant[T Resolvable] struct {
	SE, AE, VR T
}

// Select returns the value for rt.
func (v Variant[T]) Select(rt version.Runtime) (T, error) {
	switch rt {
	case version.SE:
		return v.SE, nil
	case version.AE:
		return v.AE, nil
	case version.VR:
		return v.VR, nil
	default:
		var zero T
		return zero, ErrUnknownRuntime
	}
}

// Current returns the value for the context's runtime.
func (v Variant[T]) Current(ctx *Context) (T, error) {
	rt, err := ctx.Runtime()
	if err != nil {
		var zero T
		return zero, err
	}
	return v.Select(rt)
}

func (v Variant[T]) ResolveOffset(ctx *Context) (uintptr, error) {
	sel, err := v.Current(ctx)
	if err != nil {
		return 0, err
	}
	return sel.ResolveOffset(ctx)
}

type (
	// RelocationID is an address library id per runtime.
	RelocationID = Variant[ID]
	// VariantOffset is a fixed offset per runtime.
	VariantOffset = Variant[Offset]
)

// VariantID holds ids for SE and AE and a fixed offset for VR, which ships
// without an address library.
type VariantID struct {
	SE, AE ID
	VR     Offset
}

// Select returns the value for rt.
func (v VariantID) Select(rt version.Runtime) (Resolvable, error) {
	switch rt {
	case version.SE:
		return v.SE, nil
	case version.AE:
		return v.AE, nil
	case version.VR:
		return v.VR, nil
	default:
		return nil, ErrUnknownRuntime
	}
}

func (v VariantID) ResolveOffset(ctx *Context) (uintptr, error) {
	rt, err := ctx.Runtime()
	if err != nil {
		return 0, err
	}
	sel, err := v.Select(rt)
	if err != nil {
		return 0, err
	}
	return sel.ResolveOffset(ctx)
}

func NewRelocationID(se, ae, vr uint64) RelocationID {
	return RelocationID{SE: ID(se), AE: ID(ae), VR: ID(vr)}
}

func NewVariantOffset(se, ae, vr uintptr) VariantOffset {
	return VariantOffset{SE: Offset(se), AE: Offset(ae), VR: Offset(vr)}
}

func NewVariantID(se, ae uint64, vr uintptr) VariantID {
	return VariantID{SE: ID(se), AE: ID(ae), VR: Offset(vr)}
}
