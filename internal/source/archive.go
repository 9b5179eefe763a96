package source

import (
	"fmt"
	"strings"

	"github.com/nwpio/gdasprep/internal/catalog"
	"github.com/nwpio/gdasprep/internal/cycle"
)

// archiveResolver targets the NOMADS grib-filter CGI, which subsets the
// 1-degree product server side to just the catalog's variables and layers.
type archiveResolver struct {
	base    string
	staging string
}

// Resolve returns the single filter candidate for one cycle. The filter has
// no alternate naming layouts; old cycles simply age out of NOMADS.
func (r *archiveResolver) Resolve(c cycle.Cycle) []RemoteArtifact {
	g := Grid1p00
	var u strings.Builder
	fmt.Fprintf(&u, "%s?dir=%%2Fgdas.%s%%2F%s%%2Fatmos", r.base, c.DateDir(), c.HourDir())
	fmt.Fprintf(&u, "&file=%s", fileName(c, g))
	for _, v := range catalog.GRIBVariables() {
		fmt.Fprintf(&u, "&var_%s=on", v)
	}
	for _, layer := range filterLayers() {
		fmt.Fprintf(&u, "&lev_%s=on", strings.ReplaceAll(layer, " ", "_"))
	}
	return []RemoteArtifact{{
		Cycle:     c,
		Grid:      g,
		LocalPath: localPath(r.staging, c, g),
		URL:       u.String(),
	}}
}

// filterLayers lists the layer tokens the filter must keep, in the order the
// upstream service documents them.
func filterLayers() []string {
	layers := []string{"2 m above ground", "10 m above ground"}
	for _, mb := range catalog.Profile13.Levels() {
		layers = append(layers, catalog.Layer(mb))
	}
	return append(layers, "mean sea level")
}
