// Package format houses the decoder for the address library file format: a
// fixed header followed by variable-length (id, offset) records. Records are
// delta encoded against the previous entry, so the whole stream must be read
// in order and the result re-sorted by id afterwards.
package format

const (
	// FormatSE is the record format version used by SE and VR libraries.
	FormatSE = 1
	// FormatAE is the record format version used by AE libraries.
	FormatAE = 2

	// FixedHeaderSize is the header size when the product name is empty:
	//   0x00  i32  format version
	//   0x04  u32  major, minor, patch, build
	//   0x14  i32  name length (followed by that many bytes)
	//   ....  u32  pointer size
	//   ....  u32  record count
	FixedHeaderSize = 4 + 16 + 4 + 4 + 4

	// MappingSize is the in-memory size of one Mapping.
	MappingSize = 16
)

// Control byte layout.
//
// The low nibble selects the id encoding. Bits 4-6 select the offset
// encoding using the same table. Bit 7 marks the offset as scaled by the
// pointer size.
const (
	idMask      = 0x0F
	offsetShift = 4
	offsetMask  = 0x07
	divideFlag  = 0x08
)

// Encoding is one entry of the shared id/offset encoding table.
type Encoding uint8

const (
	EncLiteral64 Encoding = iota // literal u64
	EncNext                      // prev + 1
	EncAddU8                     // prev + u8
	EncSubU8                     // prev - u8
	EncAddU16                    // prev + u16
	EncSubU16                    // prev - u16
	EncLiteral16                 // literal u16
	EncLiteral32                 // literal u32
)

// Control builds a control byte from an id encoding, an offset encoding and
// the divide flag.
func Control(id, offset Encoding, divide bool) byte {
	b := byte(id)&idMask | (byte(offset)&offsetMask)<<offsetShift
	if divide {
		b |= divideFlag << offsetShift
	}
	return b
}
