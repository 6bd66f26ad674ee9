package module

import "github.com/joshuapare/addrkit/version"

// Image is a view of an executable image located by a Host.
type Image struct {
	Name string
	Path string
	// Base is the address the image is loaded at (or would be, for files).
	Base uintptr
	// Mem holds the image bytes: the loaded layout when Mapped, else the file.
	Mem    []byte
	Mapped bool

	release func() error
}

// Close releases resources held by the image view.
func (img *Image) Close() error {
	if img == nil || img.release == nil {
		return nil
	}
	r := img.release
	img.release = nil
	return r()
}

// Host abstracts the process the module resolver inspects.
type Host interface {
	// Getenv reads an environment variable.
	Getenv(key string) (string, bool)
	// Image locates the executable called name.
	Image(name string) (*Image, error)
	// FileVersion reads the product version resource of the file at path.
	FileVersion(path string) (version.Version, error)
}
