package assemble

import (
	"fmt"
	"os"

	"github.com/ctessum/cdf"
)

// Dataset reads back a written dataset. It exists for verification and for
// downstream tooling that consumes the pipeline's output.
type Dataset struct {
	f   *cdf.File
	osf *os.File
}

// Open opens a dataset file written by an Assembler.
func Open(path string) (*Dataset, error) {
	osf, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	f, err := cdf.Open(osf)
	if err != nil {
		osf.Close()
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	return &Dataset{f: f, osf: osf}, nil
}

// Close releases the underlying file.
func (d *Dataset) Close() error {
	return d.osf.Close()
}

// Attribute returns a string attribute of the named variable, or of the
// dataset itself when variable is empty. Missing attributes read as "".
func (d *Dataset) Attribute(variable, name string) string {
	if v, ok := d.f.Header.GetAttribute(variable, name).(string); ok {
		return v
	}
	return ""
}

// Dims returns the dimension lengths of a variable, record dimension first.
func (d *Dataset) Dims(variable string) []int {
	return d.f.Header.Lengths(variable)
}

// Floats reads an entire float32 variable, row-major, records outermost.
func (d *Dataset) Floats(variable string) ([]float32, error) {
	r := d.f.Reader(variable, nil, nil)
	buf, ok := r.Zero(-1).([]float32)
	if !ok {
		return nil, fmt.Errorf("variable %s does not hold float32 data", variable)
	}
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading %s: %w", variable, err)
	}
	return buf, nil
}

// Times reads the time coordinate: hours since the Unix epoch, one per record.
func (d *Dataset) Times() ([]int32, error) {
	r := d.f.Reader(dimTime, nil, nil)
	buf, ok := r.Zero(-1).([]int32)
	if !ok {
		return nil, fmt.Errorf("variable %s does not hold int32 data", dimTime)
	}
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading %s: %w", dimTime, err)
	}
	return buf, nil
}
