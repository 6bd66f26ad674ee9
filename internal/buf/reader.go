package buf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

// defaultReaderSize is the bufio window used when wrapping a raw reader.
const defaultReaderSize = 64 * 1024

// Reader decodes little-endian integers from a byte stream. Short reads
// surface as io.ErrUnexpectedEOF (io.EOF only when nothing at all was read
// for a U8).
type Reader struct {
	r       *bufio.Reader
	scratch [8]byte
	n       int64
}

// NewReader wraps r. If r is already a *bufio.Reader it is reused.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, defaultReaderSize)
	}
	return &Reader{r: br}
}

// Consumed returns the number of bytes read so far.
func (r *Reader) Consumed() int64 { return r.n }

// U8 reads one byte.
func (r *Reader) U8() (uint8, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, err
	}
	r.n++
	return b, nil
}

// U16LE reads a little-endian uint16.
func (r *Reader) U16LE() (uint16, error) {
	if err := r.fill(2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(r.scratch[:2]), nil
}

// U32LE reads a little-endian uint32.
func (r *Reader) U32LE() (uint32, error) {
	if err := r.fill(4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(r.scratch[:4]), nil
}

// U64LE reads a little-endian uint64.
func (r *Reader) U64LE() (uint64, error) {
	if err := r.fill(8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(r.scratch[:8]), nil
}

// Skip discards n bytes.
func (r *Reader) Skip(n int) error {
	if n < 0 {
		return errors.New("buf: negative skip")
	}
	d, err := r.r.Discard(n)
	r.n += int64(d)
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (r *Reader) fill(n int) error {
	got, err := io.ReadFull(r.r, r.scratch[:n])
	r.n += int64(got)
	if err == io.EOF {
		// A multi-byte field that reads nothing is still truncated.
		return io.ErrUnexpectedEOF
	}
	return err
}
