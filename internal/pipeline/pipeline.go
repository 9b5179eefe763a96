// Package pipeline drives cycles through fetch, extraction, assembly and
// retention with a bounded worker pool. Cycles are independent: one cycle
// failing or missing upstream never stops its siblings, only context
// cancellation does.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nwpio/gdasprep/internal/ctxlog"
	"github.com/nwpio/gdasprep/internal/cycle"
	"github.com/nwpio/gdasprep/internal/extract"
	"github.com/nwpio/gdasprep/internal/fetch"
	"github.com/nwpio/gdasprep/internal/source"
)

// State tracks a cycle's progress through the pipeline.
type State int

const (
	Pending State = iota
	Fetching
	Extracting
	Assembling
	// Done means the cycle's fields are in a written dataset.
	Done
	// Skipped means no provider had the cycle's raw file. Not a failure:
	// the run carries on and reports the gap.
	Skipped
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fetching:
		return "fetching"
	case Extracting:
		return "extracting"
	case Assembling:
		return "assembling"
	case Done:
		return "done"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Resolver yields the ordered remote candidates for a cycle.
type Resolver interface {
	Resolve(c cycle.Cycle) []source.RemoteArtifact
}

// Fetcher materializes a cycle's raw grid file from its candidates.
type Fetcher interface {
	Fetch(ctx context.Context, candidates []source.RemoteArtifact) (*fetch.RawGridFile, error)
}

// Extractor pulls the catalog fields out of a raw grid file.
type Extractor interface {
	Extract(ctx context.Context, raw *fetch.RawGridFile) (*extract.Extract, error)
}

// Assembler writes extracted cycles into datasets.
type Assembler interface {
	WriteCycle(ctx context.Context, ext *extract.Extract) (string, error)
	WriteRange(ctx context.Context, exts []*extract.Extract) (string, error)
}

// Retainer disposes of a cycle's raw artifacts once its dataset is safe.
type Retainer interface {
	CleanUp(ctx context.Context, raw *fetch.RawGridFile) error
}

// Options tune a run.
type Options struct {
	// Workers bounds how many cycles are in flight at once. Values below 1
	// are raised to 1.
	Workers int
	// Combine writes one dataset covering every successful cycle instead of
	// one dataset per cycle.
	Combine bool
}

// Pipeline wires the stages together.
type Pipeline struct {
	resolver  Resolver
	fetcher   Fetcher
	extractor Extractor
	assembler Assembler
	retainer  Retainer
	opts      Options
}

// New assembles a Pipeline from its stages.
func New(resolver Resolver, fetcher Fetcher, extractor Extractor, assembler Assembler, retainer Retainer, opts Options) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Pipeline{
		resolver:  resolver,
		fetcher:   fetcher,
		extractor: extractor,
		assembler: assembler,
		retainer:  retainer,
		opts:      opts,
	}
}

// CycleRun is the per-cycle outcome. Each run is owned by exactly one worker
// until Run returns, so its fields need no locking.
type CycleRun struct {
	Cycle   cycle.Cycle
	State   State
	Err     error
	Dataset string

	raw *fetch.RawGridFile
	ext *extract.Extract
}

// Report sums up one pipeline run.
type Report struct {
	// Runs holds every cycle in ascending order, each in a terminal state.
	Runs []*CycleRun
	// Datasets lists the files written: one per done cycle, or a single
	// combined file.
	Datasets []string
}

// Succeeded reports whether at least one cycle reached Done.
func (r *Report) Succeeded() bool {
	for _, run := range r.Runs {
		if run.State == Done {
			return true
		}
	}
	return false
}

// Counts tallies the terminal states.
func (r *Report) Counts() (done, skipped, failed int) {
	for _, run := range r.Runs {
		switch run.State {
		case Done:
			done++
		case Skipped:
			skipped++
		case Failed:
			failed++
		}
	}
	return done, skipped, failed
}

// Run drives every cycle to a terminal state and reports the outcome.
func (p *Pipeline) Run(ctx context.Context, cycles []cycle.Cycle) *Report {
	logger := ctxlog.FromContext(ctx)

	report := &Report{}
	for _, c := range cycles {
		report.Runs = append(report.Runs, &CycleRun{Cycle: c, State: Pending})
	}

	jobs := make(chan *CycleRun, len(report.Runs))
	for _, run := range report.Runs {
		jobs <- run
	}
	close(jobs)

	logger.Debug("Starting worker pool.", "workers", p.opts.Workers, "cycles", len(report.Runs))
	var wg sync.WaitGroup
	wg.Add(p.opts.Workers)
	for i := 0; i < p.opts.Workers; i++ {
		go func(workerID int) {
			defer wg.Done()
			p.worker(ctx, jobs, workerID)
		}(i)
	}
	wg.Wait()

	if p.opts.Combine {
		if path, ok := p.assembleCombined(ctx, report); ok {
			report.Datasets = append(report.Datasets, path)
		}
	} else {
		for _, run := range report.Runs {
			if run.State == Done {
				report.Datasets = append(report.Datasets, run.Dataset)
			}
		}
	}

	done, skipped, failed := report.Counts()
	logger.Info("Pipeline finished.", "done", done, "skipped", skipped, "failed", failed, "datasets", len(report.Datasets))
	return report
}

// worker is the processing loop for a single concurrent worker.
func (p *Pipeline) worker(ctx context.Context, jobs <-chan *CycleRun, workerID int) {
	logger := ctxlog.FromContext(ctx).With("workerID", workerID)
	logger.Debug("Worker started.")

	for run := range jobs {
		runLogger := logger.With("cycle", run.Cycle.String())

		if ctx.Err() != nil {
			runLogger.Warn("Context canceled, abandoning cycle.")
			run.State = Failed
			run.Err = ctx.Err()
			continue
		}

		runLogger.Debug("Worker picked up cycle.")
		p.process(ctx, run, runLogger)
	}
	logger.Debug("Worker finished.")
}

// process advances one cycle as far as it can go. In combined mode it stops
// after extraction; assembly then happens once, on the main goroutine.
func (p *Pipeline) process(ctx context.Context, run *CycleRun, logger *slog.Logger) {
	run.State = Fetching
	raw, err := p.fetcher.Fetch(ctx, p.resolver.Resolve(run.Cycle))
	if err != nil {
		if errors.Is(err, fetch.ErrMissingRemote) {
			logger.Warn("No remote artifact for cycle, skipping.", "error", err)
			run.State = Skipped
			run.Err = err
			return
		}
		logger.Error("Fetch failed.", "error", err)
		run.State = Failed
		run.Err = err
		return
	}
	run.raw = raw

	run.State = Extracting
	ext, err := p.extractor.Extract(ctx, raw)
	if err != nil {
		logger.Error("Extraction failed, raw file kept for inspection.", "error", err, "path", raw.Path)
		run.State = Failed
		run.Err = err
		return
	}
	run.ext = ext

	if p.opts.Combine {
		return
	}

	run.State = Assembling
	path, err := p.assembler.WriteCycle(ctx, ext)
	if err != nil {
		logger.Error("Assembly failed, raw file kept for inspection.", "error", err, "path", raw.Path)
		run.State = Failed
		run.Err = err
		return
	}
	run.Dataset = path
	run.ext = nil

	p.finish(ctx, run, logger)
}

// assembleCombined writes the single multi-record dataset covering every
// extracted cycle. Runs that skipped or failed are simply absent from it.
func (p *Pipeline) assembleCombined(ctx context.Context, report *Report) (string, bool) {
	logger := ctxlog.FromContext(ctx)

	var exts []*extract.Extract
	var runs []*CycleRun
	for _, run := range report.Runs {
		if run.ext != nil {
			exts = append(exts, run.ext)
			runs = append(runs, run)
		}
	}
	if len(exts) == 0 {
		logger.Warn("No cycles extracted, nothing to combine.")
		return "", false
	}

	for _, run := range runs {
		run.State = Assembling
	}
	path, err := p.assembler.WriteRange(ctx, exts)
	if err != nil {
		logger.Error("Combined assembly failed, raw files kept for inspection.", "error", err)
		for _, run := range runs {
			run.State = Failed
			run.Err = err
		}
		return "", false
	}
	for _, run := range runs {
		run.Dataset = path
		run.ext = nil
		p.finish(ctx, run, logger.With("cycle", run.Cycle.String()))
	}
	return path, true
}

// finish marks a run done and applies retention. The dataset is already on
// disk, so a retention hiccup downgrades to a warning.
func (p *Pipeline) finish(ctx context.Context, run *CycleRun, logger *slog.Logger) {
	run.State = Done
	if err := p.retainer.CleanUp(ctx, run.raw); err != nil {
		logger.Warn("Raw cleanup failed.", "error", err)
	}
	logger.Info("Cycle complete. ✅", "dataset", run.Dataset)
}
