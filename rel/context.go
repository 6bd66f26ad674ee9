// Package rel turns offsets and address library ids into addresses inside
// the running host.
//
// A Context ties a module.Resolver (base address and runtime) to the
// address library of the resolved version, loaded on first use:
//
//	ctx := rel.New(module.NewResolver(nil), nil)
//	defer ctx.Close()
//	addr, err := ctx.Address(rel.NewRelocationID(11045, 11164, 11045))
package rel

import (
	"errors"
	"sync"

	"github.com/joshuapare/addrkit/iddb"
	"github.com/joshuapare/addrkit/module"
	"github.com/joshuapare/addrkit/version"
)

// ErrUnknownRuntime is returned when a variant is selected for a host whose
// runtime could not be classified.
var ErrUnknownRuntime = errors.New("rel: unknown runtime")

// Context resolves addresses against one host module.
type Context struct {
	Module *module.Resolver

	opts *iddb.Options

	mu    sync.Mutex
	db    *iddb.Database
	index *iddb.OffsetIndex
}

// New returns a Context over r. A nil r resolves the host with default
// options; opts configures the address library and may be nil.
func New(r *module.Resolver, opts *iddb.Options) *Context {
	if r == nil {
		r = module.NewResolver(nil)
	}
	return &Context{Module: r, opts: opts}
}

// Database returns the address library of the resolved host, loading it on
// first use. A failed load is retried on the next call.
func (c *Context) Database() (*iddb.Database, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return c.db, nil
	}
	db, err := iddb.Load(c.Module, c.opts)
	if err != nil {
		return nil, err
	}
	c.db = db
	return db, nil
}

// Base returns the module base address.
func (c *Context) Base() (uintptr, error) { return c.Module.Base() }

// Runtime returns the module runtime.
func (c *Context) Runtime() (version.Runtime, error) { return c.Module.Runtime() }

// Address resolves r and adds the module base. A zero offset yields 0.
func (c *Context) Address(r Resolvable) (uintptr, error) {
	off, err := r.ResolveOffset(c)
	if err != nil || off == 0 {
		return 0, err
	}
	base, err := c.Base()
	if err != nil {
		return 0, err
	}
	return base + off, nil
}

// Relocation resolves r to a Relocation.
func (c *Context) Relocation(r Resolvable) (Relocation, error) {
	addr, err := c.Address(r)
	if err != nil {
		return Relocation{}, err
	}
	return Relocation{addr: addr}, nil
}

// OffsetToID returns the id recorded at off. The reverse index is built on
// first use.
func (c *Context) OffsetToID(off uint64) (uint64, bool, error) {
	db, err := c.Database()
	if err != nil {
		return 0, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index == nil {
		idx, err := db.OffsetIndex()
		if err != nil {
			return 0, false, err
		}
		c.index = idx
	}
	id, ok := c.index.ID(off)
	return id, ok, nil
}

// Reset clears the module state and drops the loaded address library. The
// next lookup resolves the host and loads its library again.
func (c *Context) Reset() error {
	c.Module.Reset()
	return c.dropDatabase()
}

// Close detaches from the address library.
func (c *Context) Close() error { return c.dropDatabase() }

func (c *Context) dropDatabase() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	db := c.db
	c.db, c.index = nil, nil
	if db == nil {
		return nil
	}
	return db.Close()
}
