package module

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joshuapare/addrkit/internal/mmfile"
	"github.com/joshuapare/addrkit/version"
)

// FileHost resolves executables as PE files in Dir instead of loaded
// modules. Base is the image's preferred load address. It serves tooling and
// tests on machines that are not running the host process.
type FileHost struct {
	Dir string
	// Env replaces the process environment when non-nil.
	Env map[string]string
}

var _ Host = (*FileHost)(nil)

func (h *FileHost) Getenv(key string) (string, bool) {
	if h.Env != nil {
		v, ok := h.Env[key]
		return v, ok
	}
	return os.LookupEnv(key)
}

func (h *FileHost) Image(name string) (*Image, error) {
	path := filepath.Join(h.Dir, name)
	mem, release, err := mmfile.Map(path)
	if err != nil {
		return nil, fmt.Errorf("module: map %s: %w", path, err)
	}
	img := &Image{Name: name, Path: path, Mem: mem, release: release}
	// An unparsable image still resolves; segment loading reports the error.
	if base, err := PreferredBase(mem); err == nil {
		img.Base = base
	}
	return img, nil
}

func (h *FileHost) FileVersion(path string) (version.Version, error) {
	mem, release, err := mmfile.Map(path)
	if err != nil {
		return version.Version{}, err
	}
	defer release()
	block, err := VersionResource(mem, false)
	if err != nil {
		return version.Version{}, err
	}
	return ProductVersion(block)
}
