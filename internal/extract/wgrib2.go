package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Subsetter is the external binary-grid subsetting capability. The
// production implementation shells out to wgrib2; tests substitute fakes.
//
// Extract writes one packed field per requested record into dst, in the
// order of recs. Callers must pass recs ordered by file position: the real
// tool scans the GRIB sequentially and emits matches as it meets them.
type Subsetter interface {
	Inventory(ctx context.Context, gribPath string) ([]InvRecord, error)
	Extract(ctx context.Context, gribPath string, recs []InvRecord, dst string) error
}

// Wgrib2 runs the wgrib2 tool. The zero value looks the command up on PATH.
type Wgrib2 struct {
	// Path optionally pins the executable location.
	Path string
}

func (w *Wgrib2) command() string {
	if w.Path != "" {
		return w.Path
	}
	return "wgrib2"
}

// Inventory runs `wgrib2 -s` and parses the short inventory it prints.
func (w *Wgrib2) Inventory(ctx context.Context, gribPath string) ([]InvRecord, error) {
	cmd := exec.CommandContext(ctx, w.command(), "-s", gribPath)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("wgrib2 -s: %w (stderr: %q)", err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("wgrib2 -s: %w", err)
	}
	return ParseInventory(bytes.NewReader(out))
}

// Extract feeds the selected inventory lines back through `wgrib2 -i` and
// has the tool write the packed fields to dst: native float32s, no headers,
// west-to-east and south-to-north within each field.
func (w *Wgrib2) Extract(ctx context.Context, gribPath string, recs []InvRecord, dst string) error {
	var stdin strings.Builder
	for _, r := range recs {
		stdin.WriteString(r.Raw)
		stdin.WriteByte('\n')
	}

	cmd := exec.CommandContext(ctx, w.command(), gribPath, "-i", "-no_header", "-bin", dst)
	cmd.Stdin = strings.NewReader(stdin.String())
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("wgrib2 -bin: %w (stderr: %q)", err, stderr.String())
	}
	return nil
}
