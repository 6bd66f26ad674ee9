package format

import (
	"errors"
	"fmt"
	"io"

	"github.com/joshuapare/addrkit/internal/buf"
)

// ErrNotEncodable is returned when a record cannot be expressed with the
// requested control byte.
var ErrNotEncodable = errors.New("format: record not encodable")

// Encoder writes records in the same delta scheme Unpack reads. It keeps the
// previous id and offset so callers append records in stream order.
type Encoder struct {
	w           io.Writer
	pointerSize uint64
	prevID      uint64
	prevOffset  uint64
	scratch     [17]byte
}

// NewEncoder returns an Encoder writing to w. pointerSize is used by records
// carrying the divide flag.
func NewEncoder(w io.Writer, pointerSize uint64) *Encoder {
	return &Encoder{w: w, pointerSize: pointerSize}
}

// Append writes m using the given control byte.
func (e *Encoder) Append(ctrl byte, m Mapping) error {
	idCode := ctrl & idMask
	if idCode > byte(EncLiteral32) {
		return &InvalidIDError{Code: idCode}
	}
	high := ctrl >> offsetShift
	divide := high&divideFlag != 0

	out := e.scratch[:1]
	out[0] = ctrl

	out, err := appendValue(out, Encoding(idCode), e.prevID, m.ID)
	if err != nil {
		return fmt.Errorf("id %d: %w", m.ID, err)
	}

	tmp, target := e.prevOffset, m.Offset
	if divide {
		if e.pointerSize == 0 {
			return &InvalidOffsetError{Code: high, Err: ErrZeroPointerSize}
		}
		if m.Offset%e.pointerSize != 0 {
			return fmt.Errorf("offset 0x%x not a multiple of %d: %w", m.Offset, e.pointerSize, ErrNotEncodable)
		}
		tmp, target = e.prevOffset/e.pointerSize, m.Offset/e.pointerSize
	}
	out, err = appendValue(out, Encoding(high&offsetMask), tmp, target)
	if err != nil {
		return fmt.Errorf("offset 0x%x: %w", m.Offset, err)
	}

	if _, err := e.w.Write(out); err != nil {
		return fmt.Errorf("format: write record: %w", err)
	}
	e.prevID, e.prevOffset = m.ID, m.Offset
	return nil
}

// AppendCompact writes m with the shortest encoding available.
func (e *Encoder) AppendCompact(m Mapping) error {
	idEnc := pickEncoding(e.prevID, m.ID)
	offEnc := pickEncoding(e.prevOffset, m.Offset)
	divide := false
	if e.pointerSize > 1 && m.Offset%e.pointerSize == 0 {
		scaled := pickEncoding(e.prevOffset/e.pointerSize, m.Offset/e.pointerSize)
		if operandSize(scaled) < operandSize(offEnc) {
			offEnc, divide = scaled, true
		}
	}
	return e.Append(Control(idEnc, offEnc, divide), m)
}

func appendValue(out []byte, enc Encoding, prev, v uint64) ([]byte, error) {
	var tmp [8]byte
	switch enc {
	case EncLiteral64:
		buf.PutU64LE(tmp[:], v)
		return append(out, tmp[:8]...), nil
	case EncNext:
		if v != prev+1 {
			return nil, ErrNotEncodable
		}
		return out, nil
	case EncAddU8, EncSubU8:
		d := v - prev
		if enc == EncSubU8 {
			d = prev - v
		}
		if d > 0xFF {
			return nil, ErrNotEncodable
		}
		return append(out, byte(d)), nil
	case EncAddU16, EncSubU16:
		d := v - prev
		if enc == EncSubU16 {
			d = prev - v
		}
		if d > 0xFFFF {
			return nil, ErrNotEncodable
		}
		buf.PutU16LE(tmp[:], uint16(d))
		return append(out, tmp[:2]...), nil
	case EncLiteral16:
		if v > 0xFFFF {
			return nil, ErrNotEncodable
		}
		buf.PutU16LE(tmp[:], uint16(v))
		return append(out, tmp[:2]...), nil
	case EncLiteral32:
		if v > 0xFFFFFFFF {
			return nil, ErrNotEncodable
		}
		buf.PutU32LE(tmp[:], uint32(v))
		return append(out, tmp[:4]...), nil
	default:
		return nil, ErrNotEncodable
	}
}

func pickEncoding(prev, v uint64) Encoding {
	switch {
	case v == prev+1:
		return EncNext
	case v-prev <= 0xFF:
		return EncAddU8
	case prev-v <= 0xFF:
		return EncSubU8
	case v-prev <= 0xFFFF:
		return EncAddU16
	case prev-v <= 0xFFFF:
		return EncSubU16
	case v <= 0xFFFF:
		return EncLiteral16
	case v <= 0xFFFFFFFF:
		return EncLiteral32
	default:
		return EncLiteral64
	}
}

func operandSize(enc Encoding) int {
	switch enc {
	case EncNext:
		return 0
	case EncAddU8, EncSubU8:
		return 1
	case EncAddU16, EncSubU16, EncLiteral16:
		return 2
	case EncLiteral32:
		return 4
	default:
		return 8
	}
}
