package retain

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwpio/gdasprep/internal/cycle"
	"github.com/nwpio/gdasprep/internal/fetch"
	"github.com/nwpio/gdasprep/internal/fsutil"
	"github.com/nwpio/gdasprep/internal/source"
)

// stageRaw lays out <staging>/<day>/<hour>/<name> with placeholder bytes and
// returns the fetch result a successful download would have produced.
func stageRaw(t *testing.T, staging string) *fetch.RawGridFile {
	t.Helper()
	c, err := cycle.Parse("2023060606")
	require.NoError(t, err)

	hourDir := filepath.Join(staging, c.DateDir(), c.HourDir())
	require.NoError(t, os.MkdirAll(hourDir, 0o755))
	path := filepath.Join(hourDir, "gdas.t06z.pgrb2.0p25.f000")
	require.NoError(t, os.WriteFile(path, []byte("GRIB data"), 0o644))

	return &fetch.RawGridFile{Cycle: c, Path: path, Grid: source.Grid0p25}
}

func TestCleanUpRemovesRawAndPrunesStaging(t *testing.T) {
	// Arrange
	staging := t.TempDir()
	raw := stageRaw(t, staging)
	leftover := fsutil.TempFor(raw.Path)
	require.NoError(t, os.WriteFile(leftover, []byte("partial"), 0o644))

	// Act
	err := New(false).CleanUp(context.Background(), raw)

	// Assert
	require.NoError(t, err)
	assert.NoFileExists(t, raw.Path)
	assert.NoFileExists(t, leftover)
	assert.NoDirExists(t, filepath.Dir(raw.Path))
	assert.NoDirExists(t, filepath.Dir(filepath.Dir(raw.Path)))
	assert.DirExists(t, staging)
}

func TestCleanUpKeepsEverythingWhenAsked(t *testing.T) {
	staging := t.TempDir()
	raw := stageRaw(t, staging)

	err := New(true).CleanUp(context.Background(), raw)

	require.NoError(t, err)
	assert.FileExists(t, raw.Path)
	assert.DirExists(t, filepath.Dir(raw.Path))
}

func TestCleanUpLeavesOccupiedDirsAlone(t *testing.T) {
	staging := t.TempDir()
	raw := stageRaw(t, staging)
	sibling := filepath.Join(filepath.Dir(raw.Path), "gdas.t06z.pgrb2.1p00.f000")
	require.NoError(t, os.WriteFile(sibling, []byte("GRIB data"), 0o644))

	err := New(false).CleanUp(context.Background(), raw)

	require.NoError(t, err)
	assert.NoFileExists(t, raw.Path)
	assert.FileExists(t, sibling)
	assert.DirExists(t, filepath.Dir(raw.Path))
}

func TestCleanUpToleratesAlreadyRemovedRaw(t *testing.T) {
	staging := t.TempDir()
	raw := stageRaw(t, staging)
	require.NoError(t, os.Remove(raw.Path))

	err := New(false).CleanUp(context.Background(), raw)

	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Dir(raw.Path))
	assert.DirExists(t, staging)
}
