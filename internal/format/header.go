package format

import (
	"fmt"
	"io"

	"github.com/joshuapare/addrkit/internal/buf"
	"github.com/joshuapare/addrkit/version"
)

// Header is the decoded address library header. The product name that
// follows NameLength is skipped, not retained.
type Header struct {
	FormatVersion int32
	Version       version.Version
	NameLength    int32
	PointerSize   uint32
	AddressCount  uint32
}

// DecodeHeader reads the header from r and leaves r positioned at the first
// record. expected is the format version required for the runtime (FormatSE
// or FormatAE).
func DecodeHeader(r io.ReadSeeker, expected int32) (Header, error) {
	var (
		h       Header
		scratch [16]byte
	)

	if _, err := io.ReadFull(r, scratch[:4]); err != nil {
		return Header{}, &HeaderError{Field: ErrReadFormatVersion, Err: err}
	}
	h.FormatVersion = buf.I32LE(scratch[:4])
	if h.FormatVersion != expected {
		return Header{}, &UnexpectedFormatError{Expected: expected, Actual: h.FormatVersion}
	}

	if _, err := io.ReadFull(r, scratch[:16]); err != nil {
		return Header{}, &HeaderError{Field: ErrReadVersion, Err: err}
	}
	for i := range h.Version {
		// Components are stored as u32 but only the low 16 bits are meaningful.
		h.Version[i] = uint16(buf.U32LE(scratch[i*4:]))
	}

	if _, err := io.ReadFull(r, scratch[:4]); err != nil {
		return Header{}, &HeaderError{Field: ErrReadNameLength, Err: err}
	}
	h.NameLength = buf.I32LE(scratch[:4])
	if _, err := r.Seek(int64(h.NameLength), io.SeekCurrent); err != nil {
		return Header{}, &HeaderError{Field: ErrSeekAfterNameLength, Err: err}
	}

	if _, err := io.ReadFull(r, scratch[:4]); err != nil {
		return Header{}, &HeaderError{Field: ErrReadPointerSize, Err: err}
	}
	h.PointerSize = buf.U32LE(scratch[:4])

	if _, err := io.ReadFull(r, scratch[:4]); err != nil {
		return Header{}, &HeaderError{Field: ErrReadAddressCount, Err: err}
	}
	h.AddressCount = buf.U32LE(scratch[:4])

	return h, nil
}

// EncodeHeader writes h followed by name. NameLength is taken from name.
func EncodeHeader(w io.Writer, h Header, name string) error {
	out := make([]byte, FixedHeaderSize+len(name))
	buf.PutU32LE(out[0:], uint32(h.FormatVersion))
	for i, c := range h.Version {
		buf.PutU32LE(out[4+i*4:], uint32(c))
	}
	buf.PutU32LE(out[20:], uint32(len(name)))
	copy(out[24:], name)
	tail := out[24+len(name):]
	buf.PutU32LE(tail[0:], h.PointerSize)
	buf.PutU32LE(tail[4:], h.AddressCount)

	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("format: write header: %w", err)
	}
	return nil
}
