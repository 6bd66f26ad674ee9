package format

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/joshuapare/addrkit/internal/buf"
)

// Mapping is one table entry. Its layout is shared memory ABI: two
// little-endian u64 fields, no padding.
type Mapping struct {
	ID     uint64
	Offset uint64
}

// Unpack decodes len(dst) records from r into dst and sorts dst by ID.
// pointerSize scales offsets whose control byte carries the divide flag.
// All arithmetic wraps modulo 2^64.
func Unpack(r io.Reader, dst []Mapping, pointerSize uint64) error {
	br := buf.NewReader(r)
	var prevID, prevOffset uint64

	for i := range dst {
		ctrl, err := br.U8()
		if err != nil {
			return &RecordError{Index: i, Err: unexpectedEOF(err)}
		}

		idCode := ctrl & idMask
		if idCode > byte(EncLiteral32) {
			return &InvalidIDError{Code: idCode, Index: i}
		}
		id, err := decodeValue(br, Encoding(idCode), prevID)
		if err != nil {
			return &RecordError{Index: i, Err: err}
		}

		high := ctrl >> offsetShift
		divide := high&divideFlag != 0
		tmp := prevOffset
		if divide {
			if pointerSize == 0 {
				return &InvalidOffsetError{Code: high, Index: i, Err: ErrZeroPointerSize}
			}
			tmp = prevOffset / pointerSize
		}
		offset, err := decodeValue(br, Encoding(high&offsetMask), tmp)
		if err != nil {
			return &RecordError{Index: i, Err: err}
		}
		if divide {
			offset *= pointerSize
		}

		dst[i] = Mapping{ID: id, Offset: offset}
		prevID, prevOffset = id, offset
	}

	// Deltas may step backwards, so decode order is not id order.
	slices.SortStableFunc(dst, func(a, b Mapping) int { return cmp.Compare(a.ID, b.ID) })
	return nil
}

// Decode reads a header and all of its records from r.
func Decode(r io.ReadSeeker, expected int32) (Header, []Mapping, error) {
	h, err := DecodeHeader(r, expected)
	if err != nil {
		return Header{}, nil, err
	}
	table := make([]Mapping, h.AddressCount)
	if err := Unpack(r, table, uint64(h.PointerSize)); err != nil {
		return h, nil, err
	}
	return h, table, nil
}

func decodeValue(br *buf.Reader, enc Encoding, prev uint64) (uint64, error) {
	switch enc {
	case EncLiteral64:
		return br.U64LE()
	case EncNext:
		return prev + 1, nil
	case EncAddU8:
		v, err := br.U8()
		return prev + uint64(v), unexpectedEOF(err)
	case EncSubU8:
		v, err := br.U8()
		return prev - uint64(v), unexpectedEOF(err)
	case EncAddU16:
		v, err := br.U16LE()
		return prev + uint64(v), err
	case EncSubU16:
		v, err := br.U16LE()
		return prev - uint64(v), err
	case EncLiteral16:
		v, err := br.U16LE()
		return uint64(v), err
	case EncLiteral32:
		v, err := br.U32LE()
		return uint64(v), err
	default:
		return 0, fmt.Errorf("format: encoding %d out of range", enc)
	}
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
