package iddb

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/addrkit/internal/format"
	"github.com/joshuapare/addrkit/module"
	"github.com/joshuapare/addrkit/sharedlock"
	"github.com/joshuapare/addrkit/version"
)

func testOptions(t *testing.T, dir string) *Options {
	t.Helper()
	return &Options{
		DataDir:    dir,
		NamePrefix: fmt.Sprintf("addrkit-test-%d-%s-", os.Getpid(), t.Name()),
	}
}

// sampleTable returns n mappings with increasing ids and pointer aligned
// offsets in no particular order.
func sampleTable(n int) []Mapping {
	rng := rand.New(rand.NewPCG(1, 2))
	out := make([]Mapping, n)
	id := uint64(0)
	for i := range out {
		id += 1 + uint64(rng.IntN(300))
		out[i] = Mapping{ID: id, Offset: 0x1000 + uint64(rng.IntN(1<<24))*8}
	}
	return out
}

func encodeLibrary(t *testing.T, v version.Version, formatVersion int32, table []Mapping) []byte {
	t.Helper()
	var b bytes.Buffer
	h := format.Header{FormatVersion: formatVersion, Version: v, PointerSize: 8, AddressCount: uint32(len(table))}
	require.NoError(t, format.EncodeHeader(&b, h, "SkyrimSE.exe"))

	shuffled := append([]Mapping(nil), table...)
	rand.New(rand.NewPCG(3, 4)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	enc := format.NewEncoder(&b, 8)
	for _, m := range shuffled {
		require.NoError(t, enc.AppendCompact(m))
	}
	return b.Bytes()
}

// countDecodes wraps the table decoder for the rest of the test and returns
// the number of decodes run so far.
func countDecodes(t *testing.T) *atomic.Int32 {
	t.Helper()
	var n atomic.Int32
	orig := unpack
	unpack = func(r io.Reader, dst []Mapping, pointerSize uint64) error {
		n.Add(1)
		return orig(r, dst, pointerSize)
	}
	t.Cleanup(func() { unpack = orig })
	return &n
}

func writeLibrary(t *testing.T, path string, data []byte) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLibraryPath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("Data/SKSE/Plugins", "versionlib-1.6.1170.0.bin"),
		LibraryPath(DefaultDataDir, version.AE_1_6_1170, version.AE))
	assert.Equal(t,
		filepath.Join("x", "version-1.5.97.0.bin"),
		LibraryPath("x", version.SE_1_5_97, version.SE))
	assert.Equal(t,
		filepath.Join("x", "version-1.4.15.0.bin"),
		LibraryPath("x", version.VR_1_4_15, version.VR))
	assert.Equal(t, "CommonLibSSEOffsets-v2-1.6.1170.0", RegionName(DefaultNamePrefix, version.AE_1_6_1170))
}

func TestLoadFileLookups(t *testing.T) {
	dir := t.TempDir()
	table := sampleTable(500)
	path := writeLibrary(t, filepath.Join(dir, "version-1.5.97.0.bin"),
		encodeLibrary(t, version.SE_1_5_97, format.FormatSE, table))

	db, err := LoadFile(path, version.SE_1_5_97, format.FormatSE, testOptions(t, dir))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.True(t, db.Created())
	assert.Equal(t, path, db.Path())
	assert.Equal(t, 500, db.Len())
	assert.Equal(t, uint32(8), db.Header().PointerSize)
	assert.Equal(t, version.SE_1_5_97, db.Header().Version)

	for _, m := range table {
		off, err := db.IDToOffset(m.ID)
		require.NoError(t, err)
		require.Equal(t, m.Offset, off, "id %d", m.ID)
	}

	_, err = db.IDToOffset(table[len(table)-1].ID + 1)
	var nf *NotFoundIDError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, table[len(table)-1].ID+1, nf.ID)
	require.ErrorIs(t, err, ErrIncompatible)

	got, err := db.Mappings()
	require.NoError(t, err)
	assert.Equal(t, table, got)
}

func TestOffsetIndex(t *testing.T) {
	dir := t.TempDir()
	table := []Mapping{{ID: 1, Offset: 0x300}, {ID: 2, Offset: 0x100}, {ID: 5, Offset: 0x200}}
	path := writeLibrary(t, filepath.Join(dir, "lib.bin"), encodeLibrary(t, version.SE_1_5_97, format.FormatSE, table))

	db, err := LoadFile(path, version.SE_1_5_97, format.FormatSE, testOptions(t, dir))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	idx, err := db.OffsetIndex()
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
	for _, m := range table {
		id, ok := idx.ID(m.Offset)
		require.True(t, ok)
		assert.Equal(t, m.ID, id)
	}
	_, ok := idx.ID(0x150)
	assert.False(t, ok)

	got, err := db.Mappings()
	require.NoError(t, err)
	assert.Equal(t, table, got, "shared table stays sorted by id")
}

func TestLoadFileAttachSkipsDecode(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(t, dir)
	table := sampleTable(64)
	data := encodeLibrary(t, version.AE_1_6_640, format.FormatAE, table)
	path := writeLibrary(t, filepath.Join(dir, "lib.bin"), data)
	decodes := countDecodes(t)

	first, err := LoadFile(path, version.AE_1_6_640, format.FormatAE, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close() })
	require.True(t, first.Created())

	// Records the second load would fail to decode.
	headerLen := format.FixedHeaderSize + len("SkyrimSE.exe")
	writeLibrary(t, path, append(data[:headerLen:headerLen], 0xFF))

	second, err := LoadFile(path, version.AE_1_6_640, format.FormatAE, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })
	assert.False(t, second.Created())
	assert.Equal(t, first.Name(), second.Name())
	assert.Equal(t, int32(1), decodes.Load())

	off, err := second.IDToOffset(table[10].ID)
	require.NoError(t, err)
	assert.Equal(t, table[10].Offset, off)
}

func TestLoadFileConcurrentSingleDecode(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(t, dir)
	table := sampleTable(2000)
	path := writeLibrary(t, filepath.Join(dir, "lib.bin"), encodeLibrary(t, version.SE_1_5_97, format.FormatSE, table))
	decodes := countDecodes(t)

	const loaders = 8
	dbs := make([]*Database, loaders)
	var wg sync.WaitGroup
	for i := range loaders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			db, err := LoadFile(path, version.SE_1_5_97, format.FormatSE, opts)
			if !assert.NoError(t, err) {
				return
			}
			dbs[i] = db
			off, err := db.IDToOffset(table[i].ID)
			assert.NoError(t, err)
			assert.Equal(t, table[i].Offset, off)
		}()
	}
	wg.Wait()

	created := 0
	for _, db := range dbs {
		require.NotNil(t, db)
		if db.Created() {
			created++
		}
		require.NoError(t, db.Close())
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, int32(1), decodes.Load(), "the table is decoded once")
}

func TestLoadFileVersionMismatchLeavesNoRegion(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(t, dir)
	path := writeLibrary(t, filepath.Join(dir, "lib.bin"), encodeLibrary(t, version.SE_1_5_80, format.FormatSE, sampleTable(4)))

	_, err := LoadFile(path, version.SE_1_5_97, format.FormatSE, opts)
	var mismatch *VersionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, version.SE_1_5_97, mismatch.Expected)
	assert.Equal(t, version.SE_1_5_80, mismatch.Actual)

	_, err = sharedlock.Open[Mapping](RegionName(opts.NamePrefix, version.SE_1_5_97), 4)
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "nope.bin"), version.SE_1_5_97, format.FormatSE, testOptions(t, dir))
		require.ErrorIs(t, err, ErrLibraryNotFound)
		require.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("wrong format", func(t *testing.T) {
		path := writeLibrary(t, filepath.Join(dir, "ae.bin"), encodeLibrary(t, version.AE_1_6_1170, format.FormatAE, sampleTable(4)))
		_, err := LoadFile(path, version.AE_1_6_1170, format.FormatSE, testOptions(t, dir))
		require.ErrorIs(t, err, ErrUnexpectedFormat)
	})

	t.Run("truncated header", func(t *testing.T) {
		path := writeLibrary(t, filepath.Join(dir, "short.bin"), []byte{1, 0, 0, 0, 1, 0})
		_, err := LoadFile(path, version.SE_1_5_97, format.FormatSE, testOptions(t, dir))
		require.ErrorIs(t, err, format.ErrReadVersion)
	})

	t.Run("truncated records", func(t *testing.T) {
		data := encodeLibrary(t, version.SE_1_5_97, format.FormatSE, sampleTable(32))
		path := writeLibrary(t, filepath.Join(dir, "records.bin"), data[:len(data)-3])
		opts := testOptions(t, dir)
		_, err := LoadFile(path, version.SE_1_5_97, format.FormatSE, opts)
		var unpack *UnpackError
		require.ErrorAs(t, err, &unpack)
		assert.Equal(t, path, unpack.Path)
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})
}

func TestLookupOnPoisonedTable(t *testing.T) {
	dir := t.TempDir()
	table := sampleTable(8)
	path := writeLibrary(t, filepath.Join(dir, "lib.bin"), encodeLibrary(t, version.SE_1_5_97, format.FormatSE, table))
	db, err := LoadFile(path, version.SE_1_5_97, format.FormatSE, testOptions(t, dir))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	other, err := sharedlock.Open[Mapping](db.Name(), db.Len())
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Close() })
	err = other.WithWrite(func([]Mapping) error { return io.ErrShortWrite })
	require.ErrorIs(t, err, io.ErrShortWrite)

	_, err = db.IDToOffset(table[0].ID)
	require.ErrorIs(t, err, ErrPoisoned)
	_, err = db.Mappings()
	require.ErrorIs(t, err, ErrPoisoned)

	other.ClearPoison()
	off, err := db.IDToOffset(table[0].ID)
	require.NoError(t, err)
	assert.Equal(t, table[0].Offset, off)
}

type stubHost struct {
	v version.Version
}

func (h stubHost) Getenv(string) (string, bool) { return "", false }

func (h stubHost) Image(name string) (*module.Image, error) {
	return &module.Image{Name: name, Path: name, Base: 0x140000000}, nil
}

func (h stubHost) FileVersion(string) (version.Version, error) { return h.v, nil }

func TestLoadThroughResolver(t *testing.T) {
	for _, tc := range []struct {
		v    version.Version
		file string
	}{
		{version.SE_1_5_97, "version-1.5.97.0.bin"},
		{version.AE_1_6_1170, "versionlib-1.6.1170.0.bin"},
		{version.VR_1_4_15, "version-1.4.15.0.bin"},
	} {
		v := tc.v
		t.Run(v.String(), func(t *testing.T) {
			dir := t.TempDir()
			rt := version.ClassifyRuntime(v)
			table := sampleTable(16)
			writeLibrary(t, filepath.Join(dir, tc.file), encodeLibrary(t, v, rt.FormatVersion(), table))

			r := module.NewResolver(&module.Options{Host: stubHost{v: v}})
			db, err := Load(r, testOptions(t, dir))
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close() })

			assert.Equal(t, rt.FormatVersion(), db.Header().FormatVersion)
			off, err := db.IDToOffset(table[3].ID)
			require.NoError(t, err)
			assert.Equal(t, table[3].Offset, off)
		})
	}
}

func TestLoadResolverFailure(t *testing.T) {
	r := module.NewResolver(&module.Options{Host: &module.FileHost{Dir: t.TempDir(), Env: map[string]string{}}})
	_, err := Load(r, nil)
	require.ErrorIs(t, err, module.ErrModuleNotFound)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	table := sampleTable(40)
	path := writeLibrary(t, filepath.Join(dir, "lib.bin"), encodeLibrary(t, version.AE_1_6_1170, format.FormatAE, table))

	h, got, err := ReadFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(format.FormatAE), h.FormatVersion)
	assert.Equal(t, table, got)

	_, _, err = ReadFile(path, format.FormatSE)
	require.ErrorIs(t, err, ErrUnexpectedFormat)

	_, err = sharedlock.Open[Mapping](RegionName(DefaultNamePrefix, version.AE_1_6_1170), len(table))
	require.ErrorIs(t, err, fs.ErrNotExist, "ReadFile must not publish a shared table")
}
