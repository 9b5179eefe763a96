// Package fetch retrieves raw GRIB2 files into the local staging tree. It
// walks a resolver's candidate list in order, retries transient transport
// failures with backoff, validates what it wrote, and reuses complete
// downloads from earlier runs.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/nwpio/gdasprep/internal/ctxlog"
	"github.com/nwpio/gdasprep/internal/cycle"
	"github.com/nwpio/gdasprep/internal/fsutil"
	"github.com/nwpio/gdasprep/internal/source"
)

// ErrMissingRemote reports that every candidate location for a cycle was
// exhausted without producing a valid file. The orchestrator records the
// cycle as skipped and moves on; a missing cycle never aborts the run.
var ErrMissingRemote = errors.New("remote artifact missing")

// errAbsent marks a candidate the remote definitively does not have (404 or
// 403 from the bucket). No point retrying; try the next naming layout.
var errAbsent = errors.New("not present at remote")

// Policy bounds the retry behavior for a single candidate. Values come from
// configuration, not constants.
type Policy struct {
	// MaxAttempts is the number of tries per candidate, minimum 1.
	MaxAttempts int
	// RetryBackoff is the delay before the first retry; it doubles after
	// each failed attempt.
	RetryBackoff time.Duration
	// Timeout caps one download attempt.
	Timeout time.Duration
}

// DefaultPolicy is the compiled-in fallback, overridable via flags or the
// config file.
var DefaultPolicy = Policy{MaxAttempts: 3, RetryBackoff: 5 * time.Second, Timeout: 60 * time.Second}

// RawGridFile is a complete, validated download for one cycle.
type RawGridFile struct {
	Cycle cycle.Cycle
	Path  string
	Grid  source.Grid
	// Reused is true when a prior run's complete file was found and no
	// network I/O happened.
	Reused bool
}

// Fetcher downloads remote artifacts. Safe for concurrent use.
type Fetcher struct {
	client *http.Client
	policy Policy
}

// New builds a Fetcher with a pooled transport.
func New(policy Policy) *Fetcher {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Fetcher{
		policy: policy,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Fetch produces the RawGridFile for one cycle from the first candidate that
// yields a valid download. An existing complete file at the shared staging
// path short-circuits the network entirely.
func (f *Fetcher) Fetch(ctx context.Context, candidates []source.RemoteArtifact) (*RawGridFile, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates resolved", ErrMissingRemote)
	}
	logger := ctxlog.FromContext(ctx).With("cycle", candidates[0].Cycle.String())

	target := candidates[0].LocalPath
	if wellFormed(target) {
		logger.Info("Reusing existing download.", "path", target)
		return &RawGridFile{Cycle: candidates[0].Cycle, Path: target, Grid: candidates[0].Grid, Reused: true}, nil
	}

	if err := fsutil.EnsureDir(filepath.Dir(target)); err != nil {
		return nil, fmt.Errorf("staging dir: %w", err)
	}

	var lastErr error
	for _, cand := range candidates {
		err := f.fetchCandidate(ctx, logger, cand)
		if err == nil {
			return &RawGridFile{Cycle: cand.Cycle, Path: cand.LocalPath, Grid: cand.Grid}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if errors.Is(err, errAbsent) {
			logger.Debug("Candidate absent at remote, trying next layout.", "url", cand.URL)
			continue
		}
		logger.Warn("Candidate exhausted.", "url", cand.URL, "error", err)
	}
	return nil, fmt.Errorf("%w: %v", ErrMissingRemote, lastErr)
}

// fetchCandidate retries one candidate up to the policy bound, backing off
// between attempts. Absent candidates fail immediately.
func (f *Fetcher) fetchCandidate(ctx context.Context, logger *slog.Logger, cand source.RemoteArtifact) error {
	backoff := f.policy.RetryBackoff
	var lastErr error

	for attempt := 1; attempt <= f.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err := f.download(ctx, cand)
		if err == nil {
			logger.Info("Download complete.", "url", cand.URL, "path", cand.LocalPath, "attempt", attempt)
			return nil
		}
		if errors.Is(err, errAbsent) || ctx.Err() != nil {
			return err
		}
		lastErr = err
		logger.Warn("Download attempt failed.", "url", cand.URL, "attempt", attempt, "error", err)
	}
	return lastErr
}

// download performs a single attempt: GET into the temporary sibling, verify
// size and container magic, then rename into place. Any failure removes the
// temporary file.
func (f *Fetcher) download(ctx context.Context, cand source.RemoteArtifact) (err error) {
	attemptCtx := ctx
	if f.policy.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, f.policy.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, cand.URL, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// proceed
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %s", errAbsent, resp.Status)
	default:
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp := fsutil.TempFor(cand.LocalPath)
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	written, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("copy body: %w", err)
	}
	if resp.ContentLength >= 0 && written != resp.ContentLength {
		return fmt.Errorf("short download: %d of %d bytes", written, resp.ContentLength)
	}
	if !wellFormed(tmp) {
		return fmt.Errorf("downloaded file is not a GRIB container")
	}

	if err = os.Rename(tmp, cand.LocalPath); err != nil {
		return fmt.Errorf("finalize download: %w", err)
	}
	return nil
}

// gribMagic opens every GRIB edition's files.
var gribMagic = []byte("GRIB")

// wellFormed reports whether path exists, is non-empty, and begins with the
// GRIB container magic.
func wellFormed(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, len(gribMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return string(head) == string(gribMagic)
}
