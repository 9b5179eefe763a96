package app

import (
	"context"
	"fmt"

	"github.com/nwpio/gdasprep/internal/assemble"
	"github.com/nwpio/gdasprep/internal/ctxlog"
	"github.com/nwpio/gdasprep/internal/extract"
	"github.com/nwpio/gdasprep/internal/fetch"
	"github.com/nwpio/gdasprep/internal/pipeline"
	"github.com/nwpio/gdasprep/internal/retain"
	"github.com/nwpio/gdasprep/internal/source"
)

// Run executes the acquisition pipeline for the configured cycle range.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	cfg := a.config

	resolver, err := source.New(source.Spec{
		Provider:        cfg.provider,
		Profile:         cfg.profile,
		StagingDir:      cfg.Staging,
		ObjectStoreBase: cfg.ObjectStoreBase,
		ArchiveBase:     cfg.ArchiveBase,
	})
	if err != nil {
		return fmt.Errorf("failed to set up source resolver: %w", err)
	}

	fetcher := fetch.New(fetch.Policy{
		MaxAttempts:  cfg.MaxAttempts,
		RetryBackoff: cfg.RetryBackoff,
		Timeout:      cfg.Timeout,
	})
	extractor := extract.NewExtractor(&extract.Wgrib2{Path: cfg.Wgrib2}, cfg.profile)
	assembler := assemble.New(cfg.Output, cfg.profile)
	retainer := retain.New(cfg.Keep)

	p := pipeline.New(resolver, fetcher, extractor, assembler, retainer, pipeline.Options{
		Workers: cfg.Workers,
		Combine: cfg.Combine,
	})

	a.logger.Info("🚀 Starting GDAS acquisition.",
		"start", cfg.cycles[0].String(),
		"end", cfg.cycles[len(cfg.cycles)-1].String(),
		"cycles", len(cfg.cycles),
		"levels", cfg.profile.String(),
		"source", string(cfg.provider),
	)

	report := p.Run(ctx, cfg.cycles)

	for _, run := range report.Runs {
		attrs := []any{"cycle", run.Cycle.String(), "state", run.State.String()}
		if run.Err != nil {
			attrs = append(attrs, "detail", run.Err.Error())
		}
		if run.Dataset != "" {
			attrs = append(attrs, "dataset", run.Dataset)
		}
		a.logger.Info("Cycle summary:", attrs...)
	}

	done, skipped, failed := report.Counts()
	if !report.Succeeded() {
		return fmt.Errorf("no cycle completed: %d skipped, %d failed", skipped, failed)
	}

	a.logger.Info("🏁 Acquisition finished.", "done", done, "skipped", skipped, "failed", failed)
	a.logger.Debug("App.Run method finished.")
	return nil
}
