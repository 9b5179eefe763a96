// Package config loads the optional HCL configuration file. The file carries
// the slow-moving operational knobs; anything it sets can still be overridden
// by a command-line flag. Values may reference the process environment
// through the `env` object, e.g. `staging_dir = "${env.TMPDIR}/gdas"`.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/nwpio/gdasprep/internal/ctxlog"
)

// fileRoot mirrors the top-level layout of a config file. Unknown top-level
// attributes land in Remain and are ignored; unknown names inside a block are
// decode errors.
type fileRoot struct {
	ObjectStoreBase string        `hcl:"object_store_base,optional"`
	ArchiveBase     string        `hcl:"archive_base,optional"`
	Fetch           *fetchBlock   `hcl:"fetch,block"`
	Extract         *extractBlock `hcl:"extract,block"`
	Output          *outputBlock  `hcl:"output,block"`
	Remain          hcl.Body      `hcl:",remain"`
}

type fetchBlock struct {
	MaxAttempts  *int   `hcl:"max_attempts,optional"`
	RetryBackoff string `hcl:"retry_backoff,optional"`
	Timeout      string `hcl:"timeout,optional"`
}

type extractBlock struct {
	Wgrib2  string `hcl:"wgrib2,optional"`
	Workers *int   `hcl:"workers,optional"`
}

type outputBlock struct {
	Dir        string `hcl:"dir,optional"`
	StagingDir string `hcl:"staging_dir,optional"`
	Combine    *bool  `hcl:"combine,optional"`
}

// File holds the settings a config file provided. Nil or empty fields were
// absent and leave the compiled defaults in force. Range validation happens
// later, in one place, together with the flag values.
type File struct {
	ObjectStoreBase string
	ArchiveBase     string

	MaxAttempts  *int
	RetryBackoff *time.Duration
	Timeout      *time.Duration

	Wgrib2  string
	Workers *int

	OutputDir  string
	StagingDir string
	Combine    *bool
}

// Load parses and decodes the config file at path.
func Load(ctx context.Context, path string) (*File, error) {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(hclFile.Body, evalContext(os.Environ()), &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, diags)
	}

	f := &File{
		ObjectStoreBase: root.ObjectStoreBase,
		ArchiveBase:     root.ArchiveBase,
	}
	if root.Fetch != nil {
		f.MaxAttempts = root.Fetch.MaxAttempts
		var err error
		if f.RetryBackoff, err = parseDuration(root.Fetch.RetryBackoff, "retry_backoff", path); err != nil {
			return nil, err
		}
		if f.Timeout, err = parseDuration(root.Fetch.Timeout, "timeout", path); err != nil {
			return nil, err
		}
	}
	if root.Extract != nil {
		f.Wgrib2 = root.Extract.Wgrib2
		f.Workers = root.Extract.Workers
	}
	if root.Output != nil {
		f.OutputDir = root.Output.Dir
		f.StagingDir = root.Output.StagingDir
		f.Combine = root.Output.Combine
	}

	logger.Debug("Config file loaded.", "path", path)
	return f, nil
}

func parseDuration(s, attr, path string) (*time.Duration, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s in %s: %w", attr, path, err)
	}
	return &d, nil
}

// evalContext exposes the process environment as the `env` object.
func evalContext(environ []string) *hcl.EvalContext {
	vals := make(map[string]cty.Value)
	for _, e := range environ {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 {
			vals[pair[0]] = cty.StringVal(pair[1])
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(vals)},
	}
}
