// Package source maps a forecast cycle onto the concrete remote locations
// that may hold its raw GRIB2 file, and onto the local staging path the
// download lands at. Resolvers are pure: all I/O belongs to the fetcher.
package source

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/nwpio/gdasprep/internal/catalog"
	"github.com/nwpio/gdasprep/internal/cycle"
)

// Base locations of the two supported providers.
const (
	DefaultObjectStoreBase = "https://noaa-gfs-bdp-pds.s3.amazonaws.com"
	DefaultArchiveBase     = "https://nomads.ncep.noaa.gov/cgi-bin/filter_fnl.pl"
)

// ErrUnsupportedProfile reports a (provider, profile) pairing the provider
// does not offer. It is a pre-flight failure: no resolver is constructed.
var ErrUnsupportedProfile = errors.New("unsupported resolution profile")

// Provider names a remote source kind.
type Provider string

const (
	ObjectStore Provider = "object-store"
	Archive     Provider = "archive"
)

// ParseProvider reads the CLI/config form of a provider.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ObjectStore, Archive:
		return Provider(s), nil
	default:
		return "", fmt.Errorf("invalid source %q: must be 'object-store' or 'archive'", s)
	}
}

// Grid describes the native horizontal grid of a provider's product.
type Grid struct {
	// Res is the resolution token used in remote and local filenames.
	Res string
	// NLat and NLon are the grid dimensions. Latitude runs pole to pole
	// inclusive, longitude wraps without repeating 0/360.
	NLat int
	NLon int
}

// Grids offered by the providers.
var (
	Grid0p25 = Grid{Res: "0p25", NLat: 721, NLon: 1440}
	Grid1p00 = Grid{Res: "1p00", NLat: 181, NLon: 360}
)

// Cells returns the number of points in one horizontal field.
func (g Grid) Cells() int { return g.NLat * g.NLon }

// Latitudes returns the grid's latitude coordinate, north first: [90 .. -90].
func (g Grid) Latitudes() []float32 {
	step := 180.0 / float64(g.NLat-1)
	lats := make([]float32, g.NLat)
	for i := range lats {
		lats[i] = float32(90.0 - float64(i)*step)
	}
	return lats
}

// Longitudes returns the grid's longitude coordinate: [0 .. 360).
func (g Grid) Longitudes() []float32 {
	step := 360.0 / float64(g.NLon)
	lons := make([]float32, g.NLon)
	for i := range lons {
		lons[i] = float32(float64(i) * step)
	}
	return lons
}

// RemoteArtifact is one resolved (cycle, location) candidate. Immutable once
// produced.
type RemoteArtifact struct {
	Cycle     cycle.Cycle
	URL       string
	LocalPath string
	Grid      Grid
}

// Spec selects and parameterizes a resolver.
type Spec struct {
	Provider   Provider
	Profile    catalog.Profile
	StagingDir string

	// ObjectStoreBase and ArchiveBase override the default remote bases,
	// mainly for tests and mirrored archives.
	ObjectStoreBase string
	ArchiveBase     string
}

// Resolver turns a cycle into its ordered list of remote candidates. The
// first candidate is the canonical current-day location; later entries cover
// historical naming layouts.
type Resolver interface {
	Resolve(c cycle.Cycle) []RemoteArtifact
}

// New validates the spec and constructs the matching resolver. The archive
// filter only serves the 13-level ladder, so (archive, 37) fails here with
// ErrUnsupportedProfile before any network activity.
func New(spec Spec) (Resolver, error) {
	switch spec.Provider {
	case ObjectStore:
		base := spec.ObjectStoreBase
		if base == "" {
			base = DefaultObjectStoreBase
		}
		return &objectStoreResolver{base: base, staging: spec.StagingDir}, nil
	case Archive:
		if spec.Profile != catalog.Profile13 {
			return nil, fmt.Errorf("%w: archive source offers only the 13-level profile, not %s levels", ErrUnsupportedProfile, spec.Profile)
		}
		base := spec.ArchiveBase
		if base == "" {
			base = DefaultArchiveBase
		}
		return &archiveResolver{base: base, staging: spec.StagingDir}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", spec.Provider)
	}
}

// fileName is the product file name for one cycle on one grid, shared by the
// remote layouts and the staging tree.
func fileName(c cycle.Cycle, g Grid) string {
	return fmt.Sprintf("gdas.t%sz.pgrb2.%s.f000", c.HourDir(), g.Res)
}

// localPath places a cycle's download under <staging>/<YYYYMMDD>/<HH>/.
func localPath(staging string, c cycle.Cycle, g Grid) string {
	return filepath.Join(staging, c.DateDir(), c.HourDir(), fileName(c, g))
}
