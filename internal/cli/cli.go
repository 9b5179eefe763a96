package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/nwpio/gdasprep/internal/app"
	"github.com/nwpio/gdasprep/internal/config"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments and the optional config file. It
// returns a validated app config, a boolean indicating if the program should
// exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("gdasprep", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
GDASPrep - batch acquisition of GDAS analysis fields into NetCDF.

Usage:
  gdasprep [options] START END

Arguments:
  START, END
    Inclusive cycle range as YYYYMMDDHH timestamps on the 00/06/12/18
    synoptic grid, e.g. 2023060100 2023060218.

Options:
`)
		flagSet.PrintDefaults()
	}

	levelsFlag := flagSet.String("levels", app.DefaultLevels, "Vertical level profile. Options: '13' or '37'.")
	sourceFlag := flagSet.String("source", app.DefaultSource, "Remote source. Options: 'object-store' or 'archive'.")
	outputFlag := flagSet.String("output", app.DefaultOutput, "Directory for assembled NetCDF datasets.")
	stagingFlag := flagSet.String("staging", app.DefaultStaging, "Directory for downloaded raw grid files.")
	keepFlag := flagSet.Bool("keep", false, "Keep raw grid files after assembly instead of deleting them.")
	combineFlag := flagSet.Bool("combine", false, "Write one dataset covering the whole range instead of one per cycle.")
	workersFlag := flagSet.Int("workers", app.DefaultWorkers, "Number of cycles processed concurrently.")
	configFlag := flagSet.String("config", "", "Path to an optional HCL config file.")
	logFormatFlag := flagSet.String("log-format", app.DefaultLogFormat, "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", app.DefaultLogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() == 0 {
		slog.Debug("No cycle range provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}
	if flagSet.NArg() != 2 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("expected exactly two arguments, START and END, got %d", flagSet.NArg())}
	}

	cfg := app.Config{
		Start:     flagSet.Arg(0),
		End:       flagSet.Arg(1),
		Levels:    *levelsFlag,
		Source:    strings.ToLower(*sourceFlag),
		Output:    *outputFlag,
		Staging:   *stagingFlag,
		Keep:      *keepFlag,
		Combine:   *combineFlag,
		Workers:   *workersFlag,
		LogFormat: strings.ToLower(*logFormatFlag),
		LogLevel:  strings.ToLower(*logLevelFlag),
	}

	if *configFlag != "" {
		file, err := config.Load(context.Background(), *configFlag)
		if err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		explicit := map[string]bool{}
		flagSet.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
		applyFile(&cfg, file, explicit)
		slog.Debug("Config file merged.", "path", *configFlag)
	}

	appConfig, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", appConfig)
	return appConfig, false, nil
}

// applyFile folds file values into cfg. A flag passed explicitly on the
// command line beats the file; flag defaults do not. Knobs without a flag
// equivalent always come from the file.
func applyFile(cfg *app.Config, file *config.File, explicit map[string]bool) {
	if file.ObjectStoreBase != "" {
		cfg.ObjectStoreBase = file.ObjectStoreBase
	}
	if file.ArchiveBase != "" {
		cfg.ArchiveBase = file.ArchiveBase
	}
	if file.Wgrib2 != "" {
		cfg.Wgrib2 = file.Wgrib2
	}
	if file.MaxAttempts != nil {
		cfg.MaxAttempts = *file.MaxAttempts
	}
	if file.RetryBackoff != nil {
		cfg.RetryBackoff = *file.RetryBackoff
	}
	if file.Timeout != nil {
		cfg.Timeout = *file.Timeout
	}

	if file.OutputDir != "" && !explicit["output"] {
		cfg.Output = file.OutputDir
	}
	if file.StagingDir != "" && !explicit["staging"] {
		cfg.Staging = file.StagingDir
	}
	if file.Combine != nil && !explicit["combine"] {
		cfg.Combine = *file.Combine
	}
	if file.Workers != nil && !explicit["workers"] {
		cfg.Workers = *file.Workers
	}
}
