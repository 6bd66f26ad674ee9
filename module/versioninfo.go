package module

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/joshuapare/addrkit/internal/buf"
	"github.com/joshuapare/addrkit/version"
)

const (
	fixedFileInfoSignature = 0xFEEF04BD
	fixedFileInfoSize      = 52
	viNodeHeaderSize       = 6
	viTypeText             = 1

	keyVersionInfo    = "VS_VERSION_INFO"
	keyStringFileInfo = "StringFileInfo"
	keyProductVersion = "ProductVersion"

	// US English, Unicode. Preferred when a block carries several tables.
	preferredStringTable = "040904B0"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// FixedFileInfo holds the numeric versions of VS_FIXEDFILEINFO.
type FixedFileInfo struct {
	FileVersion    version.Version
	ProductVersion version.Version
}

// VersionInfo is a decoded VS_VERSIONINFO block.
type VersionInfo struct {
	Fixed *FixedFileInfo
	// Strings holds the preferred string table (or the first one present).
	Strings map[string]string
	// Table is the key of the table in Strings, e.g. "040904B0".
	Table string
}

type viNode struct {
	key      string
	typ      uint16
	value    []byte
	children []byte
	length   int
}

func align4(n int) int { return (n + 3) &^ 3 }

func parseVINode(b []byte) (viNode, error) {
	if len(b) < viNodeHeaderSize {
		return viNode{}, fmt.Errorf("%w: node header", ErrMalformedVersionInfo)
	}
	length := int(buf.U16LE(b[0:]))
	valueLen := int(buf.U16LE(b[2:]))
	typ := buf.U16LE(b[4:])
	if length < viNodeHeaderSize || length > len(b) {
		return viNode{}, fmt.Errorf("%w: node length %d", ErrMalformedVersionInfo, length)
	}
	b = b[:length]

	keyEnd := viNodeHeaderSize
	for keyEnd+1 < len(b) && (b[keyEnd] != 0 || b[keyEnd+1] != 0) {
		keyEnd += 2
	}
	key, err := decodeUTF16(b[viNodeHeaderSize:keyEnd])
	if err != nil {
		return viNode{}, err
	}

	off := min(align4(keyEnd+2), len(b))
	if typ == viTypeText {
		valueLen *= 2
	}
	end := min(off+valueLen, len(b))
	n := viNode{key: key, typ: typ, value: b[off:end], length: length}
	n.children = b[min(align4(end), len(b)):]
	return n, nil
}

// eachChild calls fn for every node packed in b.
func eachChild(b []byte, fn func(viNode) error) error {
	for len(b) >= viNodeHeaderSize {
		n, err := parseVINode(b)
		if err != nil {
			return err
		}
		if err := fn(n); err != nil {
			return err
		}
		b = b[min(align4(n.length), len(b)):]
	}
	return nil
}

func decodeUTF16(b []byte) (string, error) {
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedVersionInfo, err)
	}
	return strings.TrimRight(string(out), "\x00"), nil
}

// ParseVersionInfo decodes a VS_VERSIONINFO block as returned by
// GetFileVersionInfo or VersionResource.
func ParseVersionInfo(block []byte) (*VersionInfo, error) {
	root, err := parseVINode(block)
	if err != nil {
		return nil, err
	}
	if root.key != keyVersionInfo {
		return nil, fmt.Errorf("%w: root key %q", ErrMalformedVersionInfo, root.key)
	}

	info := &VersionInfo{}
	if v := root.value; len(v) >= fixedFileInfoSize && buf.U32LE(v) == fixedFileInfoSignature {
		info.Fixed = &FixedFileInfo{
			FileVersion:    versionFromMSLS(buf.U32LE(v[8:]), buf.U32LE(v[12:])),
			ProductVersion: versionFromMSLS(buf.U32LE(v[16:]), buf.U32LE(v[20:])),
		}
	}

	err = eachChild(root.children, func(sfi viNode) error {
		if sfi.key != keyStringFileInfo {
			return nil
		}
		return eachChild(sfi.children, func(table viNode) error {
			if info.Strings != nil && !strings.EqualFold(table.key, preferredStringTable) {
				return nil
			}
			strs := make(map[string]string)
			err := eachChild(table.children, func(s viNode) error {
				val, err := decodeUTF16(s.value)
				if err != nil {
					return err
				}
				strs[s.key] = val
				return nil
			})
			if err != nil {
				return err
			}
			info.Strings, info.Table = strs, table.key
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func versionFromMSLS(ms, ls uint32) version.Version {
	return version.New(uint16(ms>>16), uint16(ms), uint16(ls>>16), uint16(ls))
}

// ProductVersion returns the product version of a VS_VERSIONINFO block:
// the ProductVersion string when present, else the fixed file info.
func ProductVersion(block []byte) (version.Version, error) {
	info, err := ParseVersionInfo(block)
	if err != nil {
		return version.Version{}, err
	}
	if s, ok := info.Strings[keyProductVersion]; ok && s != "" {
		return version.ParseLoose(s), nil
	}
	if info.Fixed != nil {
		return info.Fixed.ProductVersion, nil
	}
	return version.Version{}, ErrNoVersionResource
}
