package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/nwpio/gdasprep/internal/catalog"
	"github.com/nwpio/gdasprep/internal/cycle"
	"github.com/nwpio/gdasprep/internal/fetch"
	"github.com/nwpio/gdasprep/internal/source"
)

// Defaults for the flag surface.
const (
	DefaultLevels    = "13"
	DefaultSource    = "object-store"
	DefaultOutput    = "."
	DefaultStaging   = "./gdas-staging"
	DefaultWorkers   = 2
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Config holds everything one acquisition run needs. cli.Parse assembles it
// from flags and the optional config file; NewConfig is the single place
// where it is validated.
type Config struct {
	// Start and End bound the inclusive cycle range, as YYYYMMDDHH.
	Start string
	End   string

	Levels  string
	Source  string
	Output  string
	Staging string

	Keep    bool
	Combine bool
	Workers int

	// Wgrib2 optionally pins the subsetting binary; empty means PATH lookup.
	Wgrib2       string
	MaxAttempts  int
	RetryBackoff time.Duration
	Timeout      time.Duration

	ObjectStoreBase string
	ArchiveBase     string

	LogLevel  string
	LogFormat string

	// Derived by NewConfig.
	profile  catalog.Profile
	provider source.Provider
	cycles   []cycle.Cycle
}

// NewConfig validates cfg, fills unset fetch-policy values from the default
// policy, and derives the typed fields Run consumes. Everything here is
// pre-flight: no network or filesystem activity.
func NewConfig(cfg Config) (*Config, error) {
	start, err := cycle.Parse(cfg.Start)
	if err != nil {
		return nil, err
	}
	end, err := cycle.Parse(cfg.End)
	if err != nil {
		return nil, err
	}
	cycles, err := cycle.Range(start, end)
	if err != nil {
		return nil, err
	}

	profile, err := catalog.ParseProfile(cfg.Levels)
	if err != nil {
		return nil, err
	}
	provider, err := source.ParseProvider(cfg.Source)
	if err != nil {
		return nil, err
	}
	// Surface provider/profile combinations the resolver refuses, like the
	// archive with the 37-level ladder.
	if _, err := source.New(source.Spec{Provider: provider, Profile: profile, StagingDir: cfg.Staging}); err != nil {
		return nil, err
	}

	if cfg.Output == "" {
		return nil, errors.New("output directory cannot be empty")
	}
	if cfg.Staging == "" {
		return nil, errors.New("staging directory cannot be empty")
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}

	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = fetch.DefaultPolicy.MaxAttempts
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = fetch.DefaultPolicy.RetryBackoff
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = fetch.DefaultPolicy.Timeout
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be at least 1, got %d", cfg.MaxAttempts)
	}
	if cfg.RetryBackoff < 0 {
		return nil, fmt.Errorf("retry backoff cannot be negative, got %s", cfg.RetryBackoff)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}

	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		return nil, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}

	cfg.profile = profile
	cfg.provider = provider
	cfg.cycles = cycles
	return &cfg, nil
}
