package extract

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// InvRecord is one line of a wgrib2 short inventory, e.g.
//
//	591.1:401234567:d=2023060600:UGRD:850 mb:anl:
//
// Submessages (the ".1") share their parent's byte offset, so ordering uses
// the record and submessage numbers, which follow file order exactly.
type InvRecord struct {
	Record int
	Sub    int // 0 when the line carries no submessage index
	Offset int64
	Var    string
	Layer  string
	// Raw is the line as wgrib2 printed it; selection feeds it back through
	// the tool's -i flag untouched.
	Raw string
}

// before reports whether r precedes o in the GRIB file.
func (r InvRecord) before(o InvRecord) bool {
	if r.Record != o.Record {
		return r.Record < o.Record
	}
	return r.Sub < o.Sub
}

// ParseInventory reads a short inventory. Blank lines are skipped; anything
// else that does not look like an inventory line is an error, since a
// selection built from a misread inventory would extract the wrong fields.
func ParseInventory(r io.Reader) ([]InvRecord, error) {
	var recs []InvRecord

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, ":")
		if len(fields) < 6 {
			return nil, fmt.Errorf("inventory line %q: too few fields", line)
		}

		rec := InvRecord{Raw: line, Var: fields[3], Layer: fields[4]}

		ids := strings.SplitN(fields[0], ".", 2)
		n, err := strconv.Atoi(ids[0])
		if err != nil {
			return nil, fmt.Errorf("inventory line %q: record number: %w", line, err)
		}
		rec.Record = n
		if len(ids) == 2 {
			sub, err := strconv.Atoi(ids[1])
			if err != nil {
				return nil, fmt.Errorf("inventory line %q: submessage number: %w", line, err)
			}
			rec.Sub = sub
		}

		rec.Offset, err = strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("inventory line %q: offset: %w", line, err)
		}
		if !strings.HasPrefix(fields[2], "d=") {
			return nil, fmt.Errorf("inventory line %q: missing datestamp field", line)
		}

		recs = append(recs, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}
