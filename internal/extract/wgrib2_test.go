package extract

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWgrib2Subprocess exercises the real exec wiring against a stub script
// standing in for wgrib2.
func TestWgrib2Subprocess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub script requires a POSIX shell")
	}

	dir := t.TempDir()

	invText := "1:0:d=2023060600:PRMSL:mean sea level:anl:\n" +
		"2:200:d=2023060600:TMP:2 m above ground:anl:\n"
	invPath := filepath.Join(dir, "inventory.txt")
	require.NoError(t, os.WriteFile(invPath, []byte(invText), 0o644))

	payload := &bytes.Buffer{}
	require.NoError(t, binary.Write(payload, binary.NativeEndian, []float32{1.5, -2, 3.25}))
	subsetPath := filepath.Join(dir, "canned.bin")
	require.NoError(t, os.WriteFile(subsetPath, payload.Bytes(), 0o644))

	// The stub answers `-s <file>` with the canned inventory and
	// `<file> -i -no_header -bin <dst>` by draining stdin and copying the
	// canned subset to <dst>.
	script := "#!/bin/sh\n" +
		"if [ \"$1\" = \"-s\" ]; then cat \"" + invPath + "\"; exit 0; fi\n" +
		"cat >/dev/null\n" +
		"cp \"" + subsetPath + "\" \"$5\"\n"
	stubPath := filepath.Join(dir, "wgrib2")
	require.NoError(t, os.WriteFile(stubPath, []byte(script), 0o755))

	w := &Wgrib2{Path: stubPath}

	recs, err := w.Inventory(context.Background(), "ignored.grib2")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "PRMSL", recs[0].Var)
	assert.Equal(t, "2 m above ground", recs[1].Layer)

	dst := filepath.Join(dir, "out.bin")
	require.NoError(t, w.Extract(context.Background(), "ignored.grib2", recs, dst))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, payload.Bytes(), got)
}

func TestWgrib2ReportsStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub script requires a POSIX shell")
	}

	dir := t.TempDir()
	script := "#!/bin/sh\necho 'boom: not a grib file' >&2\nexit 8\n"
	stubPath := filepath.Join(dir, "wgrib2")
	require.NoError(t, os.WriteFile(stubPath, []byte(script), 0o755))

	w := &Wgrib2{Path: stubPath}

	_, err := w.Inventory(context.Background(), "nope.grib2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	err = w.Extract(context.Background(), "nope.grib2", nil, filepath.Join(dir, "out.bin"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestWgrib2DefaultCommand(t *testing.T) {
	w := &Wgrib2{}
	assert.Equal(t, "wgrib2", w.command())

	w.Path = "/opt/wgrib2/bin/wgrib2"
	assert.Equal(t, "/opt/wgrib2/bin/wgrib2", w.command())
}
