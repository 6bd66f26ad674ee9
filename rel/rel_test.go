package rel

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/addrkit/iddb"
	"github.com/joshuapare/addrkit/internal/format"
	"github.com/joshuapare/addrkit/module"
	"github.com/joshuapare/addrkit/version"
)

const testBase = 0x7FF612340000

type stubHost struct {
	v version.Version
}

func (h *stubHost) Getenv(string) (string, bool) { return "", false }

func (h *stubHost) Image(name string) (*module.Image, error) {
	return &module.Image{Name: name, Path: name, Base: testBase}, nil
}

func (h *stubHost) FileVersion(string) (version.Version, error) { return h.v, nil }

var testTable = []iddb.Mapping{
	{ID: 100, Offset: 0x1000},
	{ID: 200, Offset: 0x2000},
	{ID: 300, Offset: 0x3000},
	{ID: 400, Offset: 0x4000},
}

// newContext writes an address library for v into a temp dir and returns a
// context whose host reports v.
func newContext(t *testing.T, host *stubHost, strict bool) *Context {
	t.Helper()
	dir := t.TempDir()
	for _, v := range []version.Version{version.SE_1_5_97, version.AE_1_6_1170, version.VR_1_4_15} {
		rt := version.ClassifyRuntime(v)
		var b bytes.Buffer
		h := format.Header{FormatVersion: rt.FormatVersion(), Version: v, PointerSize: 8, AddressCount: uint32(len(testTable))}
		require.NoError(t, format.EncodeHeader(&b, h, "SkyrimSE.exe"))
		enc := format.NewEncoder(&b, 8)
		for _, m := range testTable {
			require.NoError(t, enc.AppendCompact(m))
		}
		require.NoError(t, os.WriteFile(iddb.LibraryPath(dir, v, rt), b.Bytes(), 0o644))
	}

	r := module.NewResolver(&module.Options{Host: host, StrictRuntime: strict})
	ctx := New(r, &iddb.Options{
		DataDir:    dir,
		NamePrefix: fmt.Sprintf("addrkit-rel-test-%d-%s-", os.Getpid(), filepath.Base(t.Name())),
	})
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx
}

func TestOffsetAddress(t *testing.T) {
	ctx := newContext(t, &stubHost{v: version.SE_1_5_97}, false)

	addr, err := ctx.Address(Offset(0x1234))
	require.NoError(t, err)
	assert.Equal(t, uintptr(testBase+0x1234), addr)

	addr, err = ctx.Address(Offset(0))
	require.NoError(t, err)
	assert.Zero(t, addr)
}

func TestIDAddress(t *testing.T) {
	ctx := newContext(t, &stubHost{v: version.SE_1_5_97}, false)

	addr, err := ctx.Address(ID(300))
	require.NoError(t, err)
	assert.Equal(t, uintptr(testBase+0x3000), addr)

	_, err = ctx.Address(ID(301))
	require.ErrorIs(t, err, iddb.ErrIncompatible)
}

func TestVariantsSelectByRuntime(t *testing.T) {
	cases := []struct {
		v          version.Version
		relID      uintptr
		varOffset  uintptr
		variantID  uintptr
		relocateAE bool
	}{
		{version.SE_1_5_97, 0x1000, 0x10, 0x1000, false},
		{version.AE_1_6_1170, 0x2000, 0x20, 0x2000, true},
		{version.VR_1_4_15, 0x3000, 0x30, 0x4444, false},
	}
	for _, tc := range cases {
		t.Run(tc.v.String(), func(t *testing.T) {
			ctx := newContext(t, &stubHost{v: tc.v}, false)

			off, err := NewRelocationID(100, 200, 300).ResolveOffset(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.relID, off)

			off, err = NewVariantOffset(0x10, 0x20, 0x30).ResolveOffset(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.varOffset, off)

			addr, err := ctx.Address(NewVariantID(100, 200, 0x4444))
			require.NoError(t, err)
			assert.Equal(t, testBase+tc.variantID, addr)

			got, err := Relocate(ctx, "se-vr", "ae")
			require.NoError(t, err)
			assert.Equal(t, tc.relocateAE, got == "ae")
		})
	}
}

func TestVariantIDPartialLiteral(t *testing.T) {
	vr := newContext(t, &stubHost{v: version.VR_1_4_15}, false)
	addr, err := vr.Address(VariantID{SE: 100, AE: 200})
	require.NoError(t, err)
	assert.Zero(t, addr, "an unset VR offset is the zero offset")

	se := newContext(t, &stubHost{v: version.SE_1_5_97}, false)
	_, err = se.Address(VariantID{VR: 0x4444})
	require.ErrorIs(t, err, iddb.ErrIncompatible, "an unset id is looked up like any other")

	_, err = VariantID{SE: 1}.Select(version.Unknown)
	require.ErrorIs(t, err, ErrUnknownRuntime)
}

func TestVariantUnknownRuntime(t *testing.T) {
	ctx := newContext(t, &stubHost{v: version.New(1, 6, 9999, 0)}, true)

	_, err := ctx.Address(NewRelocationID(100, 200, 300))
	require.ErrorIs(t, err, ErrUnknownRuntime)

	_, err = NewVariantOffset(1, 2, 3).Select(version.Unknown)
	require.ErrorIs(t, err, ErrUnknownRuntime)

	got, err := Relocate(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestRelocation(t *testing.T) {
	ctx := newContext(t, &stubHost{v: version.AE_1_6_1170}, false)

	r, err := ctx.Relocation(ID(400))
	require.NoError(t, err)
	assert.Equal(t, uintptr(testBase+0x4000), r.Address())
	off, err := r.Offset(ctx)
	require.NoError(t, err)
	assert.Equal(t, uintptr(0x4000), off)

	r, err = RelocationFrom(ctx, NewRelocationID(100, 200, 300), Offset(0x18))
	require.NoError(t, err)
	assert.Equal(t, uintptr(testBase+0x2018), r.Address())

	assert.Equal(t, uintptr(0xDEAD), NewRelocation(0xDEAD).Address())
}

func TestOffsetToID(t *testing.T) {
	ctx := newContext(t, &stubHost{v: version.SE_1_5_97}, false)

	id, ok, err := ctx.OffsetToID(0x2000)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(200), id)

	_, ok, err = ctx.OffsetToID(0x2001)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResetReloads(t *testing.T) {
	host := &stubHost{v: version.SE_1_5_97}
	ctx := newContext(t, host, false)

	db, err := ctx.Database()
	require.NoError(t, err)
	assert.Equal(t, version.SE_1_5_97, db.Header().Version)

	host.v = version.AE_1_6_1170
	same, err := ctx.Database()
	require.NoError(t, err)
	assert.Same(t, db, same)

	require.NoError(t, ctx.Reset())
	db, err = ctx.Database()
	require.NoError(t, err)
	assert.Equal(t, version.AE_1_6_1170, db.Header().Version)
	rt, err := ctx.Runtime()
	require.NoError(t, err)
	assert.Equal(t, version.AE, rt)
}

func TestMissingLibrary(t *testing.T) {
	r := module.NewResolver(&module.Options{Host: &stubHost{v: version.SE_1_5_97}})
	ctx := New(r, &iddb.Options{DataDir: t.TempDir()})
	_, err := ctx.Address(ID(1))
	require.ErrorIs(t, err, iddb.ErrLibraryNotFound)

	addr, err := ctx.Address(Offset(8))
	require.NoError(t, err, "plain offsets need no library")
	assert.Equal(t, uintptr(testBase+8), addr)
}
