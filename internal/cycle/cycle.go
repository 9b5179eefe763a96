// Package cycle expands a requested time range into the discrete GDAS
// forecast cycles it covers.
package cycle

import (
	"errors"
	"fmt"
	"time"
)

// Interval is the native spacing between consecutive GDAS cycles.
const Interval = 6 * time.Hour

// layout is the wire form of a cycle timestamp.
const layout = "2006010215"

// ErrInvalidTimeRange reports a range whose endpoints are misordered or not
// aligned to a synoptic hour.
var ErrInvalidTimeRange = errors.New("invalid time range")

// Cycle is a single analysis initialization instant (UTC) at one of the
// synoptic hours 00, 06, 12 or 18.
type Cycle struct {
	t time.Time
}

// Parse reads a YYYYMMDDHH timestamp into a Cycle. Synoptic-hour alignment
// is checked by Range, not here, so callers can report malformed input and
// misaligned ranges as distinct failures.
func Parse(s string) (Cycle, error) {
	if len(s) != len(layout) {
		return Cycle{}, fmt.Errorf("timestamp %q: want YYYYMMDDHH", s)
	}
	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return Cycle{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return Cycle{t: t}, nil
}

// At builds a Cycle directly from a time, truncated to the hour in UTC.
func At(t time.Time) Cycle {
	return Cycle{t: t.UTC().Truncate(time.Hour)}
}

// Synoptic reports whether the cycle lies on a valid synoptic hour.
func (c Cycle) Synoptic() bool {
	return c.t.Hour()%6 == 0
}

// Time returns the cycle instant.
func (c Cycle) Time() time.Time { return c.t }

// String formats the cycle as YYYYMMDDHH.
func (c Cycle) String() string { return c.t.Format(layout) }

// DateDir returns the YYYYMMDD path segment shared by the remote layouts and
// the local staging tree.
func (c Cycle) DateDir() string { return c.t.Format("20060102") }

// HourDir returns the zero-padded HH path segment.
func (c Cycle) HourDir() string { return c.t.Format("15") }

// Before reports whether c precedes o.
func (c Cycle) Before(o Cycle) bool { return c.t.Before(o.t) }

// Equal reports whether c and o name the same instant.
func (c Cycle) Equal(o Cycle) bool { return c.t.Equal(o.t) }

// Range expands [start, end] into the ordered cycles between them, spaced by
// Interval. Both endpoints must be synoptic and start must not follow end.
// The result is a pure function of its inputs; callers may re-enumerate it
// freely.
func Range(start, end Cycle) ([]Cycle, error) {
	if !start.Synoptic() || !end.Synoptic() {
		return nil, fmt.Errorf("%w: hours must be one of 00, 06, 12, 18", ErrInvalidTimeRange)
	}
	if start.t.After(end.t) {
		return nil, fmt.Errorf("%w: start %s is after end %s", ErrInvalidTimeRange, start, end)
	}
	var cycles []Cycle
	for t := start.t; !t.After(end.t); t = t.Add(Interval) {
		cycles = append(cycles, Cycle{t: t})
	}
	return cycles, nil
}
