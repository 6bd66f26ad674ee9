package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/addrkit/iddb"
	"github.com/joshuapare/addrkit/internal/format"
	hostversion "github.com/joshuapare/addrkit/version"
)

var fixtureTable = []iddb.Mapping{
	{ID: 10, Offset: 0x1000},
	{ID: 11, Offset: 0x1008},
	{ID: 12, Offset: 0x800},
	{ID: 500, Offset: 0x2A0000},
}

// writeFixture writes an AE address library holding fixtureTable.
func writeFixture(t *testing.T) string {
	t.Helper()
	var b bytes.Buffer
	h := format.Header{
		FormatVersion: format.FormatAE,
		Version:       hostversion.AE_1_6_1170,
		PointerSize:   8,
		AddressCount:  uint32(len(fixtureTable)),
	}
	require.NoError(t, format.EncodeHeader(&b, h, "SkyrimSE.exe"))
	enc := format.NewEncoder(&b, 8)
	for _, m := range fixtureTable {
		require.NoError(t, enc.AppendCompact(m))
	}
	path := filepath.Join(t.TempDir(), "versionlib-1.6.1170.0.bin")
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))
	return path
}

// resetFlags restores global and per-command flags to their defaults.
func resetFlags() {
	verbose, quiet, jsonOut = false, false, false
	libFormat = 0
	dumpLimit, dumpByOffset = 0, false
	moduleStrict, resolveStrict, resolveDataDir = false, false, ""
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	return buf.String(), fnErr
}

// decodeJSON unmarshals captured output into v
func decodeJSON(t *testing.T, output string, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(output), v), "output: %s", output)
}
