// Package version models host product versions and the runtime flavor they
// belong to.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrTooManyParts is returned by Parse for more than four components.
	ErrTooManyParts = errors.New("version: too many parts")
	// ErrInvalidCharacter is returned by Parse for anything but digits and dots.
	ErrInvalidCharacter = errors.New("version: invalid character")
	// ErrMissingNumber is returned by Parse when the last component is empty.
	ErrMissingNumber = errors.New("version: missing number")
	// ErrOutOfRange is returned by Parse when a component exceeds 65535.
	ErrOutOfRange = errors.New("version: component out of range")
)

// Version is a (major, minor, patch, build) quad. The zero value is 0.0.0.0.
type Version [4]uint16

// New builds a Version from its components.
func New(major, minor, patch, build uint16) Version {
	return Version{major, minor, patch, build}
}

func (v Version) Major() uint16 { return v[0] }
func (v Version) Minor() uint16 { return v[1] }
func (v Version) Patch() uint16 { return v[2] }
func (v Version) Build() uint16 { return v[3] }

// IsZero reports whether every component is zero.
func (v Version) IsZero() bool { return v == Version{} }

// String returns "major.minor.patch.build".
func (v Version) String() string { return v.Join(".") }

// Join returns the components separated by sep, e.g. "1-6-1170-0".
func (v Version) Join(sep string) string {
	var sb strings.Builder
	sb.Grow(20)
	for i, c := range v {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(strconv.FormatUint(uint64(c), 10))
	}
	return sb.String()
}

// Compare returns -1, 0 or +1 comparing components left to right.
func (v Version) Compare(o Version) int {
	for i := range v {
		switch {
		case v[i] < o[i]:
			return -1
		case v[i] > o[i]:
			return 1
		}
	}
	return 0
}

// Less reports whether v orders before o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

// Pack encodes v as major:8|minor:8|patch:12|build:4. Wider components are truncated.
func (v Version) Pack() uint32 {
	return uint32(v[0]&0xFF)<<24 |
		uint32(v[1]&0xFF)<<16 |
		uint32(v[2]&0xFFF)<<4 |
		uint32(v[3]&0xF)
}

// Unpack reverses Pack.
func Unpack(packed uint32) Version {
	return Version{
		uint16(packed >> 24 & 0xFF),
		uint16(packed >> 16 & 0xFF),
		uint16(packed >> 4 & 0xFFF),
		uint16(packed & 0xF),
	}
}

// Parse reads one to four dot separated decimal components. Missing trailing
// components are zero, so "1.5" is 1.5.0.0.
func Parse(s string) (Version, error) {
	var v Version
	idx := 0
	num := 0
	hasDigit := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '.':
			if !hasDigit {
				return Version{}, fmt.Errorf("%w: part %d of %q", ErrMissingNumber, idx, s)
			}
			if idx >= len(v) {
				return Version{}, fmt.Errorf("%w: %q", ErrTooManyParts, s)
			}
			v[idx] = uint16(num)
			idx++
			num = 0
			hasDigit = false
		case c >= '0' && c <= '9':
			num = num*10 + int(c-'0')
			if num > 0xFFFF {
				return Version{}, fmt.Errorf("%w: %q", ErrOutOfRange, s)
			}
			hasDigit = true
		default:
			return Version{}, fmt.Errorf("%w %q in %q", ErrInvalidCharacter, c, s)
		}
	}
	if !hasDigit {
		return Version{}, fmt.Errorf("%w: part %d of %q", ErrMissingNumber, idx, s)
	}
	if idx >= len(v) {
		return Version{}, fmt.Errorf("%w: %q", ErrTooManyParts, s)
	}
	v[idx] = uint16(num)
	return v, nil
}

// MustParse is Parse that panics on error. Intended for tables and tests.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// ParseLoose reads the version strings found in executable resources. The
// first four dot separated tokens are parsed independently and tokens that are
// not a number are left at zero.
func ParseLoose(s string) Version {
	var v Version
	for i, tok := range strings.SplitN(s, ".", 5) {
		if i >= len(v) {
			break
		}
		n, err := strconv.ParseUint(strings.TrimSpace(tok), 10, 16)
		if err == nil {
			v[i] = uint16(n)
		}
	}
	return v
}
