package module

import (
	"fmt"

	"github.com/joshuapare/addrkit/internal/buf"
)

const (
	rtVersion          = 16
	resDirHeaderSize   = 16
	resDirEntrySize    = 8
	resDataEntrySize   = 16
	resSubdirectoryBit = 0x80000000
	resMaxDepth        = 3 // type, name, language
)

// VersionResource returns the raw VS_VERSIONINFO block of a PE image. mem is
// either a loaded image (mapped) or the file contents.
func VersionResource(mem []byte, mapped bool) ([]byte, error) {
	p, err := parseImage(mem, mapped)
	if err != nil {
		return nil, err
	}
	return p.versionResource()
}

func (p *peImage) versionResource() ([]byte, error) {
	dir, ok := p.dataDirectory(resourceDirectory)
	if !ok || dir.VirtualAddress == 0 || dir.Size == 0 {
		return nil, ErrNoVersionResource
	}
	rsrc, ok := p.rva(dir.VirtualAddress, dir.Size)
	if !ok {
		return nil, fmt.Errorf("%w: resource directory", ErrTruncatedImage)
	}

	// Level 0 selects the RT_VERSION type; below it take the first name and
	// the first language.
	off := uint32(0)
	for depth := 0; depth < resMaxDepth; depth++ {
		entry, ok := findResourceEntry(rsrc, off, depth == 0)
		if !ok {
			return nil, ErrNoVersionResource
		}
		next := buf.U32LE(entry[4:])
		if depth < resMaxDepth-1 {
			if next&resSubdirectoryBit == 0 {
				return nil, fmt.Errorf("%w: expected subdirectory at level %d", ErrMalformedVersionInfo, depth)
			}
			off = next &^ resSubdirectoryBit
			continue
		}
		if next&resSubdirectoryBit != 0 {
			return nil, fmt.Errorf("%w: expected data entry", ErrMalformedVersionInfo)
		}
		data, ok := buf.Slice(rsrc, int(next), resDataEntrySize)
		if !ok {
			return nil, fmt.Errorf("%w: resource data entry", ErrTruncatedImage)
		}
		block, ok := p.rva(buf.U32LE(data[0:]), buf.U32LE(data[4:]))
		if !ok {
			return nil, fmt.Errorf("%w: version resource data", ErrTruncatedImage)
		}
		return block, nil
	}
	return nil, ErrNoVersionResource
}

// findResourceEntry returns the directory entry at off matching RT_VERSION
// (byType) or the first entry of any kind.
func findResourceEntry(rsrc []byte, off uint32, byType bool) ([]byte, bool) {
	hdr, ok := buf.Slice(rsrc, int(off), resDirHeaderSize)
	if !ok {
		return nil, false
	}
	count := int(buf.U16LE(hdr[12:])) + int(buf.U16LE(hdr[14:]))
	for i := 0; i < count; i++ {
		entry, ok := buf.Slice(rsrc, int(off)+resDirHeaderSize+i*resDirEntrySize, resDirEntrySize)
		if !ok {
			return nil, false
		}
		if !byType || buf.U32LE(entry) == rtVersion {
			return entry, true
		}
	}
	return nil, false
}
