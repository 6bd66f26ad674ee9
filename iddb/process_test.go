//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly || windows

package iddb

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/addrkit/internal/format"
	"github.com/joshuapare/addrkit/version"
)

const (
	envAttachPath   = "ADDRKIT_ATTACH_PATH"
	envAttachPrefix = "ADDRKIT_ATTACH_PREFIX"
	envAttachID     = "ADDRKIT_ATTACH_ID"
	envAttachOffset = "ADDRKIT_ATTACH_OFFSET"
)

// TestLoadFileSharedAcrossProcesses decodes a library here, makes the file
// undecodable, and checks that a separate process still reads the table
// through the shared region.
func TestLoadFileSharedAcrossProcesses(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a subprocess")
	}
	dir := t.TempDir()
	opts := testOptions(t, dir)
	table := sampleTable(300)
	data := encodeLibrary(t, version.SE_1_5_97, format.FormatSE, table)
	path := writeLibrary(t, filepath.Join(dir, "version-1.5.97.0.bin"), data)
	decodes := countDecodes(t)

	db, err := LoadFile(path, version.SE_1_5_97, format.FormatSE, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.True(t, db.Created())
	require.Equal(t, int32(1), decodes.Load())

	headerLen := format.FixedHeaderSize + len("SkyrimSE.exe")
	writeLibrary(t, path, append(data[:headerLen:headerLen], 0xFF))

	want := table[123]
	cmd := exec.Command(os.Args[0], "-test.run=^TestAttachChildProcess$", "-test.v")
	cmd.Env = append(os.Environ(),
		envAttachPath+"="+path,
		envAttachPrefix+"="+opts.NamePrefix,
		envAttachID+"="+strconv.FormatUint(want.ID, 10),
		envAttachOffset+"="+strconv.FormatUint(want.Offset, 10),
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "child process:\n%s", out)
	assert.Contains(t, string(out), "--- PASS: TestAttachChildProcess")
	assert.NotContains(t, string(out), "--- SKIP", "child must run, not skip")
}

// TestAttachChildProcess is the child half of
// TestLoadFileSharedAcrossProcesses and skips when run directly.
func TestAttachChildProcess(t *testing.T) {
	path := os.Getenv(envAttachPath)
	if path == "" {
		t.Skip("run by TestLoadFileSharedAcrossProcesses")
	}
	id, err := strconv.ParseUint(os.Getenv(envAttachID), 10, 64)
	require.NoError(t, err)
	wantOff, err := strconv.ParseUint(os.Getenv(envAttachOffset), 10, 64)
	require.NoError(t, err)

	db, err := LoadFile(path, version.SE_1_5_97, format.FormatSE, &Options{
		DataDir:    filepath.Dir(path),
		NamePrefix: os.Getenv(envAttachPrefix),
	})
	require.NoError(t, err)
	defer db.Close()
	assert.False(t, db.Created(), "the parent process owns the table")

	off, err := db.IDToOffset(id)
	require.NoError(t, err)
	assert.Equal(t, wantOff, off)
}
