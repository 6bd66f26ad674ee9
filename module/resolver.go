package module

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/joshuapare/addrkit/version"
)

const (
	// DefaultEnvVar names the environment variable overriding the executable name.
	DefaultEnvVar = "SKSE_RUNTIME"
)

// DefaultCandidates are probed in order when the override is unset or unresolvable.
var DefaultCandidates = []string{"SkyrimSE.exe", "SkyrimVR.exe"}

// Options configures a Resolver. The zero value uses the defaults.
type Options struct {
	// Host supplies images, versions and the environment.
	// Default: the loaded process on Windows, the working directory elsewhere.
	Host Host

	// EnvVar overrides the executable name when set. Default: DefaultEnvVar.
	EnvVar string

	// Candidates are executable names tried in order. Default: DefaultCandidates.
	Candidates []string

	// StrictRuntime classifies with the table of released versions instead of
	// the minor version, yielding Unknown for unreleased builds.
	StrictRuntime bool
}

func (o *Options) withDefaults() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.Host == nil {
		out.Host = defaultHost()
	}
	if out.EnvVar == "" {
		out.EnvVar = DefaultEnvVar
	}
	if len(out.Candidates) == 0 {
		out.Candidates = DefaultCandidates
	}
	return out
}

type state uint8

const (
	stateUninitialized state = iota
	stateActive
	stateCleared
	stateFailed
)

// Resolver owns the per-process Module state. The module is resolved
// lazily on first use; Reset clears it so the next use resolves again. A
// failed resolution is remembered until Reset.
type Resolver struct {
	opts Options

	mu    sync.RWMutex
	state state
	mod   Module
	err   error
}

// NewResolver returns a resolver. opts may be nil.
func NewResolver(opts *Options) *Resolver {
	return &Resolver{opts: opts.withDefaults()}
}

// Init resolves the module now, replacing any previous state.
func (r *Resolver) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initLocked()
	return r.err
}

// Reset drops the resolved module. The next MapOrInit resolves it again.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = stateCleared
	r.mod = Module{}
	r.err = nil
	Logger().Debug("module state cleared")
}

// MapActive applies fn to the resolved module under the read lock. It never
// initializes.
func MapActive[R any](r *Resolver, fn func(Module) R) (R, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var zero R
	switch r.state {
	case stateActive:
		return fn(r.mod), nil
	case stateFailed:
		return zero, r.err
	case stateCleared:
		return zero, ErrCleared
	default:
		return zero, ErrNotInitialized
	}
}

// MapOrInit is MapActive that first resolves the module when it is
// uninitialized or cleared. A failed resolution is returned as is.
func MapOrInit[R any](r *Resolver, fn func(Module) R) (R, error) {
	for {
		res, err := MapActive(r, fn)
		if !errors.Is(err, ErrNotInitialized) && !errors.Is(err, ErrCleared) {
			return res, err
		}
		r.mu.Lock()
		if r.state == stateUninitialized || r.state == stateCleared {
			r.initLocked()
		}
		r.mu.Unlock()
	}
}

// Snapshot returns a copy of the resolved module, resolving it if needed.
func (r *Resolver) Snapshot() (Module, error) {
	return MapOrInit(r, func(m Module) Module { return m })
}

// Base returns the module base address.
func (r *Resolver) Base() (uintptr, error) {
	return MapOrInit(r, func(m Module) uintptr { return m.Base })
}

// Version returns the module product version.
func (r *Resolver) Version() (version.Version, error) {
	return MapOrInit(r, func(m Module) version.Version { return m.Version })
}

// Runtime returns the module runtime flavor.
func (r *Resolver) Runtime() (version.Runtime, error) {
	return MapOrInit(r, func(m Module) version.Runtime { return m.Runtime })
}

func (r *Resolver) initLocked() {
	mod, err := r.resolve()
	if err != nil {
		r.state, r.mod, r.err = stateFailed, Module{}, err
		Logger().Error("module init failed", zap.Error(err))
		return
	}
	r.state, r.mod, r.err = stateActive, mod, nil
	Logger().Info("module resolved",
		zap.String("name", mod.Name),
		zap.String("path", mod.FilePath),
		zap.Stringer("version", mod.Version),
		zap.Stringer("runtime", mod.Runtime),
		zap.Uintptr("base", mod.Base))
}

func (r *Resolver) resolve() (Module, error) {
	img, err := r.findImage()
	if err != nil {
		return Module{}, err
	}
	defer func() {
		if err := img.Close(); err != nil {
			Logger().Warn("release image", zap.String("path", img.Path), zap.Error(err))
		}
	}()

	mod := Module{Name: img.Name, FilePath: img.Path, Base: img.Base}
	mod.segments, mod.SegmentErr = LoadSegments(img)
	if mod.SegmentErr != nil {
		Logger().Warn("segment headers unreadable", zap.String("path", img.Path), zap.Error(mod.SegmentErr))
	}

	v, err := r.opts.Host.FileVersion(img.Path)
	if err != nil {
		return Module{}, &InitError{Path: img.Path, Err: err}
	}
	mod.Version = v
	if r.opts.StrictRuntime {
		mod.Runtime = version.ClassifyRuntimeStrict(v)
	} else {
		mod.Runtime = version.ClassifyRuntime(v)
	}
	return mod, nil
}

func (r *Resolver) findImage() (*Image, error) {
	host := r.opts.Host
	if name, ok := host.Getenv(r.opts.EnvVar); ok && name != "" {
		img, err := host.Image(name)
		if err == nil {
			return img, nil
		}
		Logger().Info("override executable not resolvable, probing candidates",
			zap.String("env", r.opts.EnvVar), zap.String("name", name), zap.Error(err))
	} else {
		Logger().Debug("override not set, probing candidates", zap.String("env", r.opts.EnvVar))
	}

	var errs []error
	for _, name := range r.opts.Candidates {
		img, err := host.Image(name)
		if err == nil {
			return img, nil
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("%w (tried %v): %w", ErrModuleNotFound, r.opts.Candidates, errors.Join(errs...))
}
