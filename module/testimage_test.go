package module

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/joshuapare/addrkit/version"
)

const (
	testImageBase  = 0x140000000
	testHeaderSize = 0x400
	testFileAlign  = 0x200
	testSectAlign  = 0x1000
	testOptHdrSize = 240
	testNtOffset   = 0x40
)

type testSection struct {
	name  string
	chars uint32
	data  []byte
	// rsrc marks the section whose data is built by resourceSection.
	rsrc bool
}

type testImage struct {
	sections []testSection
	// versionBlock, when set, is embedded as an RT_VERSION resource.
	versionBlock []byte
}

func alignUp(n, a int) int { return (n + a - 1) &^ (a - 1) }

// build returns the file layout and the loaded (mapped) layout.
func (ti testImage) build() (file, mapped []byte) {
	secs := ti.sections
	if ti.versionBlock != nil {
		secs = append(secs, testSection{name: ".rsrc", chars: 0x40000040, rsrc: true})
	}

	type placed struct {
		testSection
		va, raw, rawSize int
	}
	var (
		layout  []placed
		rawOff  = testHeaderSize
		va      = testSectAlign
		rsrcDir [2]uint32
	)
	for _, s := range secs {
		if s.rsrc {
			s.data = resourceSection(uint32(va), ti.versionBlock)
			rsrcDir = [2]uint32{uint32(va), uint32(len(s.data))}
		}
		rawSize := alignUp(max(len(s.data), 1), testFileAlign)
		layout = append(layout, placed{s, va, rawOff, rawSize})
		rawOff += rawSize
		va += alignUp(max(len(s.data), 1), testSectAlign)
	}
	sizeOfImage := va

	file = make([]byte, rawOff)
	le := binary.LittleEndian
	file[0], file[1] = 'M', 'Z'
	le.PutUint32(file[0x3C:], testNtOffset)
	copy(file[testNtOffset:], "PE\x00\x00")

	fh := file[testNtOffset+4:]
	le.PutUint16(fh[0:], 0x8664)
	le.PutUint16(fh[2:], uint16(len(layout)))
	le.PutUint16(fh[16:], testOptHdrSize)
	le.PutUint16(fh[18:], 0x22)

	oh := fh[20:]
	le.PutUint16(oh[0:], 0x20b)
	le.PutUint64(oh[24:], testImageBase)
	le.PutUint32(oh[32:], testSectAlign)
	le.PutUint32(oh[36:], testFileAlign)
	le.PutUint32(oh[56:], uint32(sizeOfImage))
	le.PutUint32(oh[60:], testHeaderSize)
	le.PutUint16(oh[68:], 3)
	le.PutUint32(oh[108:], 16)
	le.PutUint32(oh[112+8*resourceDirectory:], rsrcDir[0])
	le.PutUint32(oh[112+8*resourceDirectory+4:], rsrcDir[1])

	sh := oh[testOptHdrSize:]
	for i, p := range layout {
		h := sh[i*40:]
		copy(h[0:8], p.name)
		le.PutUint32(h[8:], uint32(len(p.data)))
		le.PutUint32(h[12:], uint32(p.va))
		le.PutUint32(h[16:], uint32(p.rawSize))
		le.PutUint32(h[20:], uint32(p.raw))
		le.PutUint32(h[36:], p.chars)
		copy(file[p.raw:], p.data)
	}

	mapped = make([]byte, sizeOfImage)
	copy(mapped, file[:testHeaderSize])
	for _, p := range layout {
		copy(mapped[p.va:], p.data)
	}
	return file, mapped
}

// resourceSection lays out type -> name -> language -> data for a single
// RT_VERSION resource at section address va.
func resourceSection(va uint32, block []byte) []byte {
	le := binary.LittleEndian
	out := make([]byte, 0x58+len(block))
	dir := func(off int, id, target uint32) {
		le.PutUint16(out[off+14:], 1)
		le.PutUint32(out[off+16:], id)
		le.PutUint32(out[off+20:], target)
	}
	dir(0x00, rtVersion, resSubdirectoryBit|0x18)
	dir(0x18, 1, resSubdirectoryBit|0x30)
	dir(0x30, 0x409, 0x48)
	le.PutUint32(out[0x48:], va+0x58)
	le.PutUint32(out[0x4C:], uint32(len(block)))
	copy(out[0x58:], block)
	return out
}

func utf16z(s string) []byte {
	u := append(utf16.Encode([]rune(s)), 0)
	out := make([]byte, len(u)*2)
	for i, c := range u {
		binary.LittleEndian.PutUint16(out[i*2:], c)
	}
	return out
}

func pad4(b []byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

// viNodeBytes encodes one VS_VERSIONINFO node.
func viNodeBytes(key string, typ uint16, value []byte, valueLen uint16, children ...[]byte) []byte {
	b := make([]byte, 6)
	b = append(b, utf16z(key)...)
	b = pad4(b)
	b = append(b, value...)
	for _, c := range children {
		b = pad4(b)
		b = append(b, c...)
	}
	le := binary.LittleEndian
	le.PutUint16(b[0:], uint16(len(b)))
	le.PutUint16(b[2:], valueLen)
	le.PutUint16(b[4:], typ)
	return b
}

func stringNode(key, value string) []byte {
	v := utf16z(value)
	return viNodeBytes(key, viTypeText, v, uint16(len(v)/2))
}

func fixedInfo(file, product version.Version) []byte {
	le := binary.LittleEndian
	b := make([]byte, fixedFileInfoSize)
	le.PutUint32(b[0:], fixedFileInfoSignature)
	le.PutUint32(b[4:], 0x10000)
	le.PutUint32(b[8:], uint32(file[0])<<16|uint32(file[1]))
	le.PutUint32(b[12:], uint32(file[2])<<16|uint32(file[3]))
	le.PutUint32(b[16:], uint32(product[0])<<16|uint32(product[1]))
	le.PutUint32(b[20:], uint32(product[2])<<16|uint32(product[3]))
	return b
}

// versionBlock builds a VS_VERSIONINFO with the given fixed product version
// and, per table key, a string table.
func versionBlock(fixed version.Version, tables map[string]map[string]string, order ...string) []byte {
	var tableNodes [][]byte
	for _, key := range order {
		var strs [][]byte
		for k, v := range tables[key] {
			strs = append(strs, stringNode(k, v))
		}
		tableNodes = append(tableNodes, viNodeBytes(key, viTypeText, nil, 0, strs...))
	}
	var children [][]byte
	if len(tableNodes) > 0 {
		children = append(children, viNodeBytes(keyStringFileInfo, viTypeText, nil, 0, tableNodes...))
	}
	children = append(children, viNodeBytes("VarFileInfo", viTypeText, nil, 0,
		viNodeBytes("Translation", 0, []byte{0x09, 0x04, 0xB0, 0x04}, 4)))
	return viNodeBytes(keyVersionInfo, 0, fixedInfo(fixed, fixed), fixedFileInfoSize, children...)
}

func standardSections() []testSection {
	return []testSection{
		{name: ".text", chars: 0x60000020, data: make([]byte, 0x1234)},
		{name: ".rdata", chars: 0x40000040, data: make([]byte, 0x300)},
		{name: ".data", chars: 0xC0000040, data: make([]byte, 0x80)},
		{name: ".pdata", chars: 0x40000040, data: make([]byte, 0x40)},
		{name: ".tls", chars: 0xC0000040, data: make([]byte, 0x10)},
		{name: ".gfids", chars: 0x40000040, data: make([]byte, 0x20)},
	}
}
