package iddb

import (
	"fmt"
	"path/filepath"

	"github.com/joshuapare/addrkit/version"
)

const (
	// DefaultDataDir is where address libraries are installed, relative to
	// the host's working directory.
	DefaultDataDir = "Data/SKSE/Plugins"
	// DefaultNamePrefix prefixes the shared region name. Processes using the
	// same prefix and version share one decoded table.
	DefaultNamePrefix = "CommonLibSSEOffsets-v2-"
)

// Options configures loading. The zero value uses the defaults.
type Options struct {
	// DataDir holds the address library files. Default: DefaultDataDir.
	DataDir string

	// NamePrefix is prepended to the version to name the shared table.
	// Default: DefaultNamePrefix.
	NamePrefix string
}

func (o *Options) withDefaults() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.DataDir == "" {
		out.DataDir = DefaultDataDir
	}
	if out.NamePrefix == "" {
		out.NamePrefix = DefaultNamePrefix
	}
	return out
}

// LibraryPath returns the address library file for v, e.g.
// "Data/SKSE/Plugins/versionlib-1.6.1170.0.bin" for AE.
func LibraryPath(dir string, v version.Version, rt version.Runtime) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.bin", rt.LibraryPrefix(), v.String()))
}

// RegionName returns the shared table name for v.
func RegionName(prefix string, v version.Version) string {
	return prefix + v.String()
}
