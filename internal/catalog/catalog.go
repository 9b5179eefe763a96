// Package catalog fixes the set of GDAS fields the pipeline extracts: which
// GRIB variables, at which layers or pressure levels, under which canonical
// output names. The catalog depends only on the resolution profile, never on
// the cycle being processed.
package catalog

import "fmt"

// Gravity converts geopotential height (gpm) into geopotential (m^2/s^2).
const Gravity = 9.80665

// Profile selects how many pressure levels the upper-air fields carry.
type Profile int

const (
	Profile13 Profile = 13
	Profile37 Profile = 37
)

// ParseProfile reads the CLI/config form of a profile ("13" or "37").
func ParseProfile(s string) (Profile, error) {
	switch s {
	case "13":
		return Profile13, nil
	case "37":
		return Profile37, nil
	default:
		return 0, fmt.Errorf("invalid levels %q: must be '13' or '37'", s)
	}
}

// String returns the numeric form of the profile.
func (p Profile) String() string { return fmt.Sprintf("%d", int(p)) }

// Tag returns the short form used in output filenames, e.g. "l13".
func (p Profile) Tag() string { return fmt.Sprintf("l%d", int(p)) }

// levels13 is the classic 13-level ladder, highest pressure first.
var levels13 = []int{1000, 925, 850, 700, 600, 500, 400, 300, 250, 200, 150, 100, 50}

// levels37 is the full 37-level ladder, highest pressure first.
var levels37 = []int{
	1000, 975, 950, 925, 900, 875, 850, 825, 800, 775,
	750, 700, 650, 600, 550, 500, 450, 400, 350, 300,
	250, 225, 200, 175, 150, 125, 100, 70, 50, 30,
	20, 10, 7, 5, 3, 2, 1,
}

// Levels returns the profile's pressure levels in millibars, ordered
// high-to-low pressure (1000 first). Callers must not mutate the result.
func (p Profile) Levels() []int {
	if p == Profile37 {
		return levels37
	}
	return levels13
}

// Field describes one extractable quantity.
type Field struct {
	// Name is the canonical output variable name.
	Name string
	// GRIB is the variable token as it appears in a wgrib2 short inventory.
	GRIB string
	// Layer is the fixed inventory layer token for surface fields; empty for
	// upper-air fields, whose layers come from the profile's level ladder.
	Layer string
	// Units after Scale has been applied.
	Units string
	// Long is the descriptive name recorded in output metadata.
	Long string
	// Scale is a multiplicative unit conversion, 1 when none applies.
	Scale float64
}

// surface lists the single-layer fields, in output order.
var surface = []Field{
	{Name: "prmsl", GRIB: "PRMSL", Layer: "mean sea level", Units: "Pa", Long: "pressure reduced to mean sea level", Scale: 1},
	{Name: "u10", GRIB: "UGRD", Layer: "10 m above ground", Units: "m/s", Long: "10 m u-component of wind", Scale: 1},
	{Name: "v10", GRIB: "VGRD", Layer: "10 m above ground", Units: "m/s", Long: "10 m v-component of wind", Scale: 1},
	{Name: "t2m", GRIB: "TMP", Layer: "2 m above ground", Units: "K", Long: "2 m temperature", Scale: 1},
}

// upper lists the per-level fields, in output order. Geopotential height is
// rescaled to geopotential on extraction.
var upper = []Field{
	{Name: "z", GRIB: "HGT", Units: "m^2/s^2", Long: "geopotential", Scale: Gravity},
	{Name: "q", GRIB: "SPFH", Units: "kg/kg", Long: "specific humidity", Scale: 1},
	{Name: "t", GRIB: "TMP", Units: "K", Long: "temperature", Scale: 1},
	{Name: "u", GRIB: "UGRD", Units: "m/s", Long: "u-component of wind", Scale: 1},
	{Name: "v", GRIB: "VGRD", Units: "m/s", Long: "v-component of wind", Scale: 1},
}

// Surface returns the surface fields in their fixed output order.
func Surface() []Field { return surface }

// Upper returns the upper-air fields in their fixed output order.
func Upper() []Field { return upper }

// Layer formats a pressure level as its inventory layer token, e.g. "850 mb".
func Layer(mb int) string { return fmt.Sprintf("%d mb", mb) }

// GRIBVariables returns the distinct GRIB variable tokens the catalog draws
// on, in the order the archive filter expects them.
func GRIBVariables() []string {
	return []string{"HGT", "PRMSL", "SPFH", "TMP", "UGRD", "VGRD"}
}
