// Package iddb loads address libraries into a table shared by every process
// running the same host version and answers id and offset lookups on it.
//
// The first process to load a version decodes the library into a named
// shared region; later loads, in this or any other process, attach to the
// decoded table without reading the records again.
package iddb

import (
	"cmp"
	"fmt"
	"os"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/joshuapare/addrkit/internal/format"
	"github.com/joshuapare/addrkit/module"
	"github.com/joshuapare/addrkit/sharedlock"
	"github.com/joshuapare/addrkit/version"
)

// Mapping is one id to offset entry.
type Mapping = format.Mapping

// Header is the decoded address library header.
type Header = format.Header

// Database is an attached id table.
type Database struct {
	header Header
	path   string
	lock   *sharedlock.Lock[Mapping]
}

// Load resolves the running host through r and loads its address library.
// opts may be nil.
func Load(r *module.Resolver, opts *Options) (*Database, error) {
	type target struct {
		v  version.Version
		rt version.Runtime
	}
	t, err := module.MapOrInit(r, func(m module.Module) target {
		return target{m.Version, m.Runtime}
	})
	if err != nil {
		return nil, err
	}
	o := opts.withDefaults()
	path := LibraryPath(o.DataDir, t.v, t.rt)
	return LoadFile(path, t.v, t.rt.FormatVersion(), &o)
}

// unpack fills a newly created shared table. Tests replace it to count
// decodes.
var unpack = format.Unpack

// LoadFile loads the library at path, which must declare version v in
// record format formatVersion. opts may be nil.
func LoadFile(path string, v version.Version, formatVersion int32, opts *Options) (*Database, error) {
	o := opts.withDefaults()
	log := Logger().With(zap.String("path", path), zap.Stringer("version", v))

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLibraryNotFound, err)
	}
	defer f.Close()

	h, err := format.DecodeHeader(f, formatVersion)
	if err != nil {
		return nil, fmt.Errorf("iddb: %s: %w", path, err)
	}
	if h.Version != v {
		return nil, &VersionMismatchError{Expected: v, Actual: h.Version}
	}

	name := RegionName(o.NamePrefix, v)
	lock, guard, err := sharedlock.OpenOrCreate[Mapping](name, int(h.AddressCount))
	if err != nil {
		return nil, fmt.Errorf("iddb: attach %s: %w", name, err)
	}
	db := &Database{header: h, path: path, lock: lock}
	if guard == nil {
		log.Debug("attached decoded address library", zap.String("region", name))
		return db, nil
	}

	start := time.Now()
	if err := unpack(f, guard.Slice(), uint64(h.PointerSize)); err != nil {
		guard.Fail()
		guard.Unlock()
		if cerr := lock.Close(); cerr != nil {
			log.Warn("close shared table", zap.Error(cerr))
		}
		log.Error("decode address library", zap.Error(err))
		return nil, &UnpackError{Path: path, Err: err}
	}
	guard.Unlock()
	log.Info("decoded address library",
		zap.String("region", name),
		zap.Uint32("records", h.AddressCount),
		zap.Duration("elapsed", time.Since(start)))
	return db, nil
}

// IDToOffset returns the offset recorded for id.
func (db *Database) IDToOffset(id uint64) (uint64, error) {
	var off uint64
	err := db.lock.WithRead(func(table []Mapping) error {
		i, ok := slices.BinarySearchFunc(table, id, func(m Mapping, id uint64) int {
			return cmp.Compare(m.ID, id)
		})
		if !ok {
			return &NotFoundIDError{ID: id}
		}
		off = table[i].Offset
		return nil
	})
	return off, err
}

// Mappings returns a copy of the table, sorted by id.
func (db *Database) Mappings() ([]Mapping, error) {
	var out []Mapping
	err := db.lock.WithRead(func(table []Mapping) error {
		out = slices.Clone(table)
		return nil
	})
	return out, err
}

// OffsetIndex builds a reverse index from a copy of the table. The shared
// table is not modified.
func (db *Database) OffsetIndex() (*OffsetIndex, error) {
	table, err := db.Mappings()
	if err != nil {
		return nil, err
	}
	return NewOffsetIndex(table), nil
}

// Header returns the decoded library header.
func (db *Database) Header() Header { return db.header }

// Path returns the library file the database was loaded from.
func (db *Database) Path() string { return db.path }

// Name returns the shared region name.
func (db *Database) Name() string { return db.lock.Name() }

// Len returns the number of entries.
func (db *Database) Len() int { return db.lock.Len() }

// Created reports whether this handle decoded the table.
func (db *Database) Created() bool { return db.lock.Created() }

// Close detaches from the shared table.
func (db *Database) Close() error { return db.lock.Close() }
