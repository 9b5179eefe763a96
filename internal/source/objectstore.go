package source

import (
	"fmt"

	"github.com/nwpio/gdasprep/internal/cycle"
)

// objectStoreResolver targets the public NOAA bucket over plain HTTPS at its
// native 0.25-degree resolution.
type objectStoreResolver struct {
	base    string
	staging string
}

// Resolve returns the bucket candidates for one cycle: the current layout
// with the atmos subdirectory first, then the pre-2021 layout without it.
// Both map to the same staging path.
func (r *objectStoreResolver) Resolve(c cycle.Cycle) []RemoteArtifact {
	g := Grid0p25
	local := localPath(r.staging, c, g)
	name := fileName(c, g)
	return []RemoteArtifact{
		{
			Cycle:     c,
			Grid:      g,
			LocalPath: local,
			URL:       fmt.Sprintf("%s/gdas.%s/%s/atmos/%s", r.base, c.DateDir(), c.HourDir(), name),
		},
		{
			Cycle:     c,
			Grid:      g,
			LocalPath: local,
			URL:       fmt.Sprintf("%s/gdas.%s/%s/%s", r.base, c.DateDir(), c.HourDir(), name),
		},
	}
}
