package iddb

import (
	"fmt"
	"io"
	"os"

	"github.com/joshuapare/addrkit/internal/buf"
	"github.com/joshuapare/addrkit/internal/format"
)

// ReadFile decodes the library at path into process memory without
// attaching to a shared table. A zero formatVersion accepts whichever
// format the file declares.
func ReadFile(path string, formatVersion int32) (Header, []Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, fmt.Errorf("%w: %w", ErrLibraryNotFound, err)
	}
	defer f.Close()

	if formatVersion == 0 {
		if formatVersion, err = peekFormat(f); err != nil {
			return Header{}, nil, fmt.Errorf("iddb: %s: %w", path, err)
		}
	}
	h, table, err := format.Decode(f, formatVersion)
	if err != nil {
		return h, nil, fmt.Errorf("iddb: %s: %w", path, err)
	}
	return h, table, nil
}

func peekFormat(r io.ReadSeeker) (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, &format.HeaderError{Field: format.ErrReadFormatVersion, Err: err}
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return buf.I32LE(b[:]), nil
}
