// Package extract pulls the catalog's variables and levels out of a raw
// GRIB2 file into in-memory grids. Selection is all-or-nothing: either every
// catalog entry is found and decoded, or the cycle fails extraction and
// nothing is handed to the assembler.
package extract

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/ctessum/sparse"

	"github.com/nwpio/gdasprep/internal/catalog"
	"github.com/nwpio/gdasprep/internal/ctxlog"
	"github.com/nwpio/gdasprep/internal/cycle"
	"github.com/nwpio/gdasprep/internal/fetch"
	"github.com/nwpio/gdasprep/internal/source"
)

// ErrExtractionFailed reports that a cycle's raw file could not supply the
// full catalog. Cycle-scoped: the run continues with other cycles.
var ErrExtractionFailed = errors.New("extraction failed")

// Extract holds one cycle's decoded fields. Latitude runs north to south
// ([90 .. -90]), upper-air levels follow the catalog ladder (1000 mb first),
// and geopotential height has already been rescaled to geopotential.
type Extract struct {
	Cycle   cycle.Cycle
	Grid    source.Grid
	Profile catalog.Profile
	// Surface carries one (lat, lon) array per catalog.Surface() entry, in
	// catalog order. Upper carries one (level, lat, lon) array per
	// catalog.Upper() entry.
	Surface []*sparse.DenseArray
	Upper   []*sparse.DenseArray
}

// Extractor drives a Subsetter to produce Extracts.
type Extractor struct {
	sub     Subsetter
	profile catalog.Profile
}

// NewExtractor builds an Extractor for one resolution profile.
func NewExtractor(sub Subsetter, profile catalog.Profile) *Extractor {
	return &Extractor{sub: sub, profile: profile}
}

// selection pairs an inventory record with its destination slot.
type selection struct {
	rec   InvRecord
	dest  *sparse.DenseArray
	level int // level index within dest, -1 for surface fields
	scale float64
}

// Extract produces the cycle's Extract from its raw file.
func (e *Extractor) Extract(ctx context.Context, raw *fetch.RawGridFile) (*Extract, error) {
	logger := ctxlog.FromContext(ctx).With("cycle", raw.Cycle.String())

	inv, err := e.sub.Inventory(ctx, raw.Path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: inventory of %s: %v", ErrExtractionFailed, raw.Path, err)
	}
	logger.Debug("Inventory read.", "records", len(inv))

	ext := &Extract{Cycle: raw.Cycle, Grid: raw.Grid, Profile: e.profile}
	sels, err := e.buildSelections(inv, raw.Grid, ext)
	if err != nil {
		return nil, err
	}

	// The tool emits fields in file order, so request them that way and
	// remember which slot each position belongs to.
	sort.Slice(sels, func(i, j int) bool { return sels[i].rec.before(sels[j].rec) })

	recs := make([]InvRecord, len(sels))
	for i, s := range sels {
		recs[i] = s.rec
	}

	dst := raw.Path + ".subset.bin"
	defer os.Remove(dst)
	if err := e.sub.Extract(ctx, raw.Path, recs, dst); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	if err := decodeFields(dst, sels, raw.Grid); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	logger.Debug("Extraction complete.", "fields", len(sels))
	return ext, nil
}

// buildSelections matches every catalog entry against the inventory and
// allocates the destination arrays. A missing or ambiguous entry fails the
// whole cycle.
func (e *Extractor) buildSelections(inv []InvRecord, g source.Grid, ext *Extract) ([]selection, error) {
	find := func(variable, layer string) (InvRecord, error) {
		var (
			match InvRecord
			n     int
		)
		for _, r := range inv {
			if r.Var == variable && r.Layer == layer {
				match = r
				n++
			}
		}
		switch n {
		case 1:
			return match, nil
		case 0:
			return InvRecord{}, fmt.Errorf("%w: %s at %q not present in source", ErrExtractionFailed, variable, layer)
		default:
			return InvRecord{}, fmt.Errorf("%w: %s at %q matches %d records", ErrExtractionFailed, variable, layer, n)
		}
	}

	levels := e.profile.Levels()
	var sels []selection

	for _, f := range catalog.Surface() {
		rec, err := find(f.GRIB, f.Layer)
		if err != nil {
			return nil, err
		}
		arr := sparse.ZerosDense(g.NLat, g.NLon)
		ext.Surface = append(ext.Surface, arr)
		sels = append(sels, selection{rec: rec, dest: arr, level: -1, scale: f.Scale})
	}

	for _, f := range catalog.Upper() {
		arr := sparse.ZerosDense(len(levels), g.NLat, g.NLon)
		ext.Upper = append(ext.Upper, arr)
		for li, mb := range levels {
			rec, err := find(f.GRIB, catalog.Layer(mb))
			if err != nil {
				return nil, err
			}
			sels = append(sels, selection{rec: rec, dest: arr, level: li, scale: f.Scale})
		}
	}
	return sels, nil
}

// decodeFields reads the packed output and fills each selection's slot,
// flipping rows from the tool's south-first order to north-first.
func decodeFields(path string, sels []selection, g source.Grid) error {
	cells := g.Cells()
	want := int64(len(sels)) * int64(cells) * 4

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if fi, err := f.Stat(); err != nil {
		return err
	} else if fi.Size() != want {
		return fmt.Errorf("subset holds %d bytes, want %d (%d fields of %d cells)",
			fi.Size(), want, len(sels), cells)
	}

	buf := make([]float32, cells)
	for _, sel := range sels {
		if err := binary.Read(f, binary.NativeEndian, buf); err != nil {
			return fmt.Errorf("read field: %w", err)
		}
		placeField(sel, buf, g)
	}
	return nil
}

// placeField copies one packed field into its destination slot. The packed
// rows run south to north; destinations store north first.
func placeField(sel selection, field []float32, g source.Grid) {
	for row := 0; row < g.NLat; row++ {
		src := (g.NLat - 1 - row) * g.NLon
		base := row * g.NLon
		if sel.level >= 0 {
			base += sel.level * g.NLat * g.NLon
		}
		for col := 0; col < g.NLon; col++ {
			sel.dest.Elements[base+col] = float64(field[src+col]) * sel.scale
		}
	}
}
