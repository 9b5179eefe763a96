// Package retain applies the raw-artifact retention policy. Raw grid files
// are working state, not a product: once a cycle's dataset is safely on disk
// the raw file goes away, unless the operator asked to keep it. Cycles that
// did not finish keep everything they staged so the failure can be inspected
// and the next run can resume the download.
package retain

import (
	"context"
	"os"
	"path/filepath"

	"github.com/nwpio/gdasprep/internal/ctxlog"
	"github.com/nwpio/gdasprep/internal/fetch"
	"github.com/nwpio/gdasprep/internal/fsutil"
)

// Manager removes raw grid files for completed cycles.
type Manager struct {
	keep bool
}

// New returns a Manager. With keep set, CleanUp leaves all artifacts in
// place.
func New(keep bool) *Manager {
	return &Manager{keep: keep}
}

// CleanUp removes the cycle's raw grid file and any leftover partial
// download, then prunes staging directories that ended up empty. Callers
// invoke it only after the cycle's dataset has been written.
func (m *Manager) CleanUp(ctx context.Context, raw *fetch.RawGridFile) error {
	logger := ctxlog.FromContext(ctx).With("cycle", raw.Cycle.String())

	if m.keep {
		logger.Debug("Keeping raw grid file.", "path", raw.Path)
		return nil
	}

	if err := os.Remove(raw.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(fsutil.TempFor(raw.Path)); err != nil && !os.IsNotExist(err) {
		return err
	}

	// The staging tree nests hour under day; drop both when they empty out.
	hourDir := filepath.Dir(raw.Path)
	if err := fsutil.RemoveIfEmpty(hourDir); err != nil {
		return err
	}
	if err := fsutil.RemoveIfEmpty(filepath.Dir(hourDir)); err != nil {
		return err
	}

	logger.Debug("Raw grid file removed.", "path", raw.Path)
	return nil
}
