package module

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Binject/debug/pe"

	"github.com/joshuapare/addrkit/internal/buf"
)

const (
	dosSignature = 0x5A4D     // "MZ"
	ntSignature  = 0x00004550 // "PE\0\0"
	lfanewOffset = 0x3C

	scnMemExecute = 0x20000000
	scnMemWrite   = 0x80000000

	resourceDirectory = 2
)

// segmentRules maps sections to segments. A section matches when its name is
// equal and it carries every required characteristic bit.
var segmentRules = [SegmentCount]struct {
	name  string
	flags uint32
}{
	Textx: {".text", scnMemExecute},
	Idata: {".idata", 0},
	Rdata: {".rdata", 0},
	Data:  {".data", 0},
	Pdata: {".pdata", 0},
	Tls:   {".tls", 0},
	Textw: {".text", scnMemWrite},
	Gfids: {".gfids", 0},
}

// peImage is a parsed PE header over either a loaded (mapped) image, where
// RVAs index memory directly, or a raw file.
type peImage struct {
	file   *pe.File
	mem    []byte
	mapped bool
}

// checkHeaders validates the DOS and NT signatures and returns the NT header offset.
func checkHeaders(mem []byte) (int, error) {
	if len(mem) < lfanewOffset+4 {
		return 0, &InvalidDosHeaderSignatureError{Actual: buf.U16LE(mem)}
	}
	if sig := buf.U16LE(mem); sig != dosSignature {
		return 0, &InvalidDosHeaderSignatureError{Actual: sig}
	}
	lfanew := int(buf.U32LE(mem[lfanewOffset:]))
	nt, ok := buf.Slice(mem, lfanew, 4)
	if !ok {
		return 0, fmt.Errorf("%w: NT header at 0x%X", ErrTruncatedImage, lfanew)
	}
	if sig := buf.U32LE(nt); sig != ntSignature {
		return 0, &InvalidNtHeader64SignatureError{Actual: sig}
	}
	return lfanew, nil
}

func parseImage(mem []byte, mapped bool) (*peImage, error) {
	if _, err := checkHeaders(mem); err != nil {
		return nil, err
	}
	var (
		f   *pe.File
		err error
	)
	if mapped {
		f, err = pe.NewFileFromMemory(bytes.NewReader(mem))
	} else {
		f, err = pe.NewFile(bytes.NewReader(mem))
	}
	if err != nil {
		return nil, fmt.Errorf("module: parse PE headers: %w", err)
	}
	return &peImage{file: f, mem: mem, mapped: mapped}, nil
}

// segments records each section under the first rule it matches, relative
// to base.
func (p *peImage) segments(base uintptr) [SegmentCount]Segment {
	var out [SegmentCount]Segment
	for _, s := range p.file.Sections {
		name := strings.TrimRight(s.Name, "\x00")
		for i, rule := range segmentRules {
			if name != rule.name || s.Characteristics&rule.flags != rule.flags {
				continue
			}
			out[i] = Segment{
				ProxyBase: base,
				Address:   base + uintptr(s.VirtualAddress),
				Size:      s.Size,
			}
			break
		}
	}
	return out
}

// imageBase returns the preferred load address from the optional header.
func (p *peImage) imageBase() uintptr {
	switch oh := p.file.OptionalHeader.(type) {
	case *pe.OptionalHeader64:
		return uintptr(oh.ImageBase)
	case *pe.OptionalHeader32:
		return uintptr(oh.ImageBase)
	}
	return 0
}

func (p *peImage) dataDirectory(idx int) (pe.DataDirectory, bool) {
	switch oh := p.file.OptionalHeader.(type) {
	case *pe.OptionalHeader64:
		if uint32(idx) < oh.NumberOfRvaAndSizes {
			return oh.DataDirectory[idx], true
		}
	case *pe.OptionalHeader32:
		if uint32(idx) < oh.NumberOfRvaAndSizes {
			return oh.DataDirectory[idx], true
		}
	}
	return pe.DataDirectory{}, false
}

// rva returns size bytes at the relative virtual address rva.
func (p *peImage) rva(rva, size uint32) ([]byte, bool) {
	if p.mapped {
		return buf.Slice(p.mem, int(rva), int(size))
	}
	for _, s := range p.file.Sections {
		span := max(s.VirtualSize, s.Size)
		if rva >= s.VirtualAddress && rva-s.VirtualAddress < span {
			return buf.Slice(p.mem, int(rva-s.VirtualAddress+s.Offset), int(size))
		}
	}
	return nil, false
}

// LoadSegments parses img's headers and returns its segments. Header errors
// are *InvalidDosHeaderSignatureError or *InvalidNtHeader64SignatureError.
func LoadSegments(img *Image) ([SegmentCount]Segment, error) {
	p, err := parseImage(img.Mem, img.Mapped)
	if err != nil {
		return [SegmentCount]Segment{}, err
	}
	return p.segments(img.Base), nil
}

// PreferredBase returns the ImageBase recorded in a PE file's optional header.
func PreferredBase(mem []byte) (uintptr, error) {
	p, err := parseImage(mem, false)
	if err != nil {
		return 0, err
	}
	return p.imageBase(), nil
}
