// Package assemble turns extracted field sets into NetCDF datasets. Files are
// written classic-format via a temporary name and renamed into place, so a
// dataset path either holds a complete file or nothing.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/nwpio/gdasprep/internal/catalog"
	"github.com/nwpio/gdasprep/internal/ctxlog"
	"github.com/nwpio/gdasprep/internal/cycle"
	"github.com/nwpio/gdasprep/internal/extract"
	"github.com/nwpio/gdasprep/internal/fsutil"
	"github.com/nwpio/gdasprep/internal/source"
)

var (
	// ErrIncompleteAssembly reports an extract set that does not line up with
	// the dataset being written: missing fields, wrong shapes, mixed grids or
	// out-of-order cycles.
	ErrIncompleteAssembly = errors.New("incomplete assembly")

	// ErrOutputWrite reports a failure to materialize the dataset on disk.
	ErrOutputWrite = errors.New("output write")
)

// Dimension and coordinate names of the output datasets. Time is the record
// dimension, counted in hours since the Unix epoch.
const (
	dimTime  = "time"
	dimLevel = "level"
	dimLat   = "latitude"
	dimLon   = "longitude"

	timeUnits = "hours since 1970-01-01 00:00:00"
)

// FileName is the deterministic dataset name for a single cycle.
func FileName(c cycle.Cycle, p catalog.Profile) string {
	return fmt.Sprintf("gdas.%s.%s.nc", c, p.Tag())
}

// RangeFileName is the deterministic dataset name for a combined run covering
// first through last inclusive.
func RangeFileName(first, last cycle.Cycle, p catalog.Profile) string {
	return fmt.Sprintf("gdas.%s-%s.%s.nc", first, last, p.Tag())
}

// Assembler writes datasets into a fixed output directory.
type Assembler struct {
	outputDir string
	profile   catalog.Profile
}

// New returns an Assembler writing profile-shaped datasets under outputDir.
func New(outputDir string, profile catalog.Profile) *Assembler {
	return &Assembler{outputDir: outputDir, profile: profile}
}

// WriteCycle materializes one cycle as its own single-record dataset and
// returns the final path.
func (a *Assembler) WriteCycle(ctx context.Context, ext *extract.Extract) (string, error) {
	exts := []*extract.Extract{ext}
	if err := a.validate(exts); err != nil {
		return "", err
	}
	return a.write(ctx, FileName(ext.Cycle, a.profile), exts)
}

// WriteRange materializes several cycles as one dataset with a record per
// cycle. The extracts must arrive in ascending cycle order.
func (a *Assembler) WriteRange(ctx context.Context, exts []*extract.Extract) (string, error) {
	if err := a.validate(exts); err != nil {
		return "", err
	}
	first, last := exts[0].Cycle, exts[len(exts)-1].Cycle
	return a.write(ctx, RangeFileName(first, last, a.profile), exts)
}

// validate rejects extract sets the dataset layout cannot hold. All checks
// run before any file is touched.
func (a *Assembler) validate(exts []*extract.Extract) error {
	if len(exts) == 0 {
		return fmt.Errorf("%w: no cycles to write", ErrIncompleteAssembly)
	}
	var grid source.Grid
	nlev := len(a.profile.Levels())
	for i, ext := range exts {
		if ext == nil {
			return fmt.Errorf("%w: missing extract at position %d", ErrIncompleteAssembly, i)
		}
		if i == 0 {
			grid = ext.Grid
		}
		if ext.Grid != grid {
			return fmt.Errorf("%w: cycle %s is on grid %s, dataset is on %s",
				ErrIncompleteAssembly, ext.Cycle, ext.Grid.Res, grid.Res)
		}
		if ext.Profile != a.profile {
			return fmt.Errorf("%w: cycle %s carries %s levels, dataset wants %s",
				ErrIncompleteAssembly, ext.Cycle, ext.Profile, a.profile)
		}
		if i > 0 && !exts[i-1].Cycle.Before(ext.Cycle) {
			return fmt.Errorf("%w: cycles out of order (%s then %s)",
				ErrIncompleteAssembly, exts[i-1].Cycle, ext.Cycle)
		}
		if err := checkFields(ext.Cycle, ext.Surface, catalog.Surface(), []int{grid.NLat, grid.NLon}); err != nil {
			return err
		}
		if err := checkFields(ext.Cycle, ext.Upper, catalog.Upper(), []int{nlev, grid.NLat, grid.NLon}); err != nil {
			return err
		}
	}
	return nil
}

func checkFields(c cycle.Cycle, arrays []*sparse.DenseArray, fields []catalog.Field, shape []int) error {
	if len(arrays) != len(fields) {
		return fmt.Errorf("%w: cycle %s holds %d of %d fields",
			ErrIncompleteAssembly, c, len(arrays), len(fields))
	}
	for i, arr := range arrays {
		if arr == nil {
			return fmt.Errorf("%w: cycle %s field %s is empty", ErrIncompleteAssembly, c, fields[i].Name)
		}
		if !slices.Equal(arr.Shape, shape) {
			return fmt.Errorf("%w: cycle %s field %s has shape %v, want %v",
				ErrIncompleteAssembly, c, fields[i].Name, arr.Shape, shape)
		}
	}
	return nil
}

func (a *Assembler) write(ctx context.Context, name string, exts []*extract.Extract) (_ string, err error) {
	logger := ctxlog.FromContext(ctx).With("dataset", name)
	grid := exts[0].Grid

	h := a.buildHeader(grid)
	for _, herr := range h.Check() {
		if herr != nil {
			return "", fmt.Errorf("%w: netcdf header: %v", ErrOutputWrite, herr)
		}
	}

	if derr := fsutil.EnsureDir(a.outputDir); derr != nil {
		return "", fmt.Errorf("%w: %v", ErrOutputWrite, derr)
	}
	final := filepath.Join(a.outputDir, name)
	tmp := fsutil.TempFor(final)

	osf, cerr := os.Create(tmp)
	if cerr != nil {
		return "", fmt.Errorf("%w: %v", ErrOutputWrite, cerr)
	}
	defer func() {
		if err != nil {
			osf.Close()
			os.Remove(tmp)
		}
	}()

	f, cerr := cdf.Create(osf, h)
	if cerr != nil {
		return "", fmt.Errorf("%w: %v", ErrOutputWrite, cerr)
	}
	if werr := a.writeCoords(f, grid); werr != nil {
		return "", fmt.Errorf("%w: %v", ErrOutputWrite, werr)
	}
	for i, ext := range exts {
		if cancel := ctx.Err(); cancel != nil {
			return "", cancel
		}
		if werr := writeRecord(f, i, ext); werr != nil {
			return "", fmt.Errorf("%w: cycle %s: %v", ErrOutputWrite, ext.Cycle, werr)
		}
		logger.Debug("Record written.", "record", i, "cycle", ext.Cycle.String())
	}
	if uerr := cdf.UpdateNumRecs(osf); uerr != nil {
		return "", fmt.Errorf("%w: %v", ErrOutputWrite, uerr)
	}
	if cerr := osf.Close(); cerr != nil {
		return "", fmt.Errorf("%w: %v", ErrOutputWrite, cerr)
	}
	if rerr := os.Rename(tmp, final); rerr != nil {
		return "", fmt.Errorf("%w: %v", ErrOutputWrite, rerr)
	}

	logger.Info("Dataset written. 💾", "cycles", len(exts), "path", final)
	return final, nil
}

// buildHeader defines the dataset layout: a time record dimension plus fixed
// level, latitude and longitude dimensions, coordinate variables for each,
// and one float32 data variable per catalog field.
func (a *Assembler) buildHeader(grid source.Grid) *cdf.Header {
	levels := a.profile.Levels()
	h := cdf.NewHeader(
		[]string{dimTime, dimLevel, dimLat, dimLon},
		[]int{0, len(levels), grid.NLat, grid.NLon},
	)
	h.AddAttribute("", "title", "GDAS analysis fields")
	h.AddAttribute("", "source", "NCEP GDAS/FNL")
	h.AddAttribute("", "resolution", grid.Res)
	h.AddAttribute("", "profile", a.profile.Tag())

	h.AddVariable(dimTime, []string{dimTime}, []int32{0})
	h.AddAttribute(dimTime, "units", timeUnits)
	h.AddAttribute(dimTime, "calendar", "standard")

	h.AddVariable(dimLevel, []string{dimLevel}, []float32{0.})
	h.AddAttribute(dimLevel, "units", "mb")
	h.AddAttribute(dimLevel, "positive", "down")

	h.AddVariable(dimLat, []string{dimLat}, []float32{0.})
	h.AddAttribute(dimLat, "units", "degrees_north")

	h.AddVariable(dimLon, []string{dimLon}, []float32{0.})
	h.AddAttribute(dimLon, "units", "degrees_east")

	for _, fld := range catalog.Surface() {
		h.AddVariable(fld.Name, []string{dimTime, dimLat, dimLon}, []float32{0.})
		h.AddAttribute(fld.Name, "units", fld.Units)
		h.AddAttribute(fld.Name, "long_name", fld.Long)
	}
	for _, fld := range catalog.Upper() {
		h.AddVariable(fld.Name, []string{dimTime, dimLevel, dimLat, dimLon}, []float32{0.})
		h.AddAttribute(fld.Name, "units", fld.Units)
		h.AddAttribute(fld.Name, "long_name", fld.Long)
	}

	h.Define()
	return h
}

func (a *Assembler) writeCoords(f *cdf.File, grid source.Grid) error {
	levels := a.profile.Levels()
	lev := make([]float32, len(levels))
	for i, mb := range levels {
		lev[i] = float32(mb)
	}
	coords := []struct {
		name string
		data []float32
	}{
		{dimLevel, lev},
		{dimLat, grid.Latitudes()},
		{dimLon, grid.Longitudes()},
	}
	for _, c := range coords {
		if _, err := f.Writer(c.name, []int{0}, []int{len(c.data)}).Write(c.data); err != nil {
			return fmt.Errorf("writing %s: %v", c.name, err)
		}
	}
	return nil
}

// writeRecord fills record i with one cycle: its timestamp plus every surface
// and upper-air field, in catalog order.
func writeRecord(f *cdf.File, i int, ext *extract.Extract) error {
	hours := []int32{int32(ext.Cycle.Time().Unix() / 3600)}
	if _, err := f.Writer(dimTime, []int{i}, []int{i + 1}).Write(hours); err != nil {
		return fmt.Errorf("writing time: %v", err)
	}
	for j, fld := range catalog.Surface() {
		w := f.Writer(fld.Name, []int{i, 0, 0}, []int{i + 1, 0, 0})
		if _, err := w.Write(dense32(ext.Surface[j])); err != nil {
			return fmt.Errorf("writing %s: %v", fld.Name, err)
		}
	}
	for j, fld := range catalog.Upper() {
		w := f.Writer(fld.Name, []int{i, 0, 0, 0}, []int{i + 1, 0, 0, 0})
		if _, err := w.Write(dense32(ext.Upper[j])); err != nil {
			return fmt.Errorf("writing %s: %v", fld.Name, err)
		}
	}
	return nil
}

func dense32(arr *sparse.DenseArray) []float32 {
	out := make([]float32, len(arr.Elements))
	for i, v := range arr.Elements {
		out[i] = float32(v)
	}
	return out
}
