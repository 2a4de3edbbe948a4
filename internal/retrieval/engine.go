// Package retrieval drives chunked bulk downloads from SnowPilot: it
// splits a date range into chunks, fetches and extracts each one through
// the session, parses every extracted CAAML document in isolation, and
// checkpoints progress after every chunk so an interrupted run resumes
// where it stopped.
//
// Everything is strictly sequential. The remote rate-limits and serves
// stale cached archives for near-simultaneous similar queries, so chunks
// are never fetched concurrently.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/snowpit-etl-service/internal/adapter/snowpilot"
	"github.com/couchcryptid/snowpit-etl-service/internal/archive"
	"github.com/couchcryptid/snowpit-etl-service/internal/caaml"
	"github.com/couchcryptid/snowpit-etl-service/internal/checkpoint"
	"github.com/couchcryptid/snowpit-etl-service/internal/domain"
	"github.com/couchcryptid/snowpit-etl-service/internal/observability"
	"github.com/couchcryptid/snowpit-etl-service/internal/query"
)

const defaultChunkDays = 7

// Downloader is the transport the engine drives. *snowpilot.Session
// implements it.
type Downloader interface {
	Download(ctx context.Context, queryString string) (*snowpilot.Download, error)
	EstimatePitCount(ctx context.Context, queryString string) (int, error)
}

// Config tunes a retrieval run.
type Config struct {
	// DestDir receives the extracted CAAML documents.
	DestDir string
	// ChunkDays is the span of each chunk. Defaults to 7.
	ChunkDays int
	// ChunkDelay is the pause between chunks, on top of the session's
	// own inter-request interval.
	ChunkDelay time.Duration
	// DayFallback retries a failed multi-day chunk day by day before
	// recording the range failed.
	DayFallback bool
}

// Engine downloads a date range chunk by chunk.
type Engine struct {
	downloader Downloader
	store      *checkpoint.Store
	cfg        Config
	logger     *slog.Logger
	metrics    *observability.Metrics
	clock      clockwork.Clock
	ready      atomic.Bool
}

// New creates an Engine. A nil store disables checkpointing; a nil clock
// selects the real clock.
func New(d Downloader, store *checkpoint.Store, cfg Config, logger *slog.Logger, metrics *observability.Metrics, clk clockwork.Clock) *Engine {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if cfg.ChunkDays < 1 {
		cfg.ChunkDays = defaultChunkDays
	}
	if cfg.DestDir == "" {
		cfg.DestDir = "snowpits"
	}
	return &Engine{
		downloader: d,
		store:      store,
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		clock:      clk,
	}
}

// CheckReadiness returns nil once at least one chunk has completed, or an
// error describing why the service is not yet ready.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if !e.ready.Load() {
		return errors.New("no retrieval chunk has completed yet")
	}
	return nil
}

// Estimate describes what a run would do without downloading anything
// beyond one counting query for the whole range.
type Estimate struct {
	Chunks   []Chunk
	PitCount int
}

// Estimate returns the chunk breakdown for the filter and a pit-count
// estimate for the full range.
func (e *Engine) Estimate(ctx context.Context, f query.Filter) (*Estimate, error) {
	f = f.Normalized()
	if err := f.Validate(); err != nil {
		return nil, err
	}

	chunks := GenerateChunks(dateOnly(f.DateMin), dateOnly(f.DateMax), e.cfg.ChunkDays)
	count, err := e.downloader.EstimatePitCount(ctx, query.Build(f))
	if err != nil {
		return nil, fmt.Errorf("estimate pit count: %w", err)
	}
	return &Estimate{Chunks: chunks, PitCount: count}, nil
}

// Run retrieves the filter's date range chunk by chunk. Chunks already
// completed in the checkpoint are skipped; every processed chunk is
// checkpointed before the next one starts. The returned Result covers
// what this run actually did, including the partial work done before a
// cancellation or checkpoint write failure.
func (e *Engine) Run(ctx context.Context, f query.Filter) (*Result, error) {
	f = f.Normalized()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	chunks := GenerateChunks(dateOnly(f.DateMin), dateOnly(f.DateMax), e.cfg.ChunkDays)
	return e.runChunks(ctx, f, chunks)
}

// RunChunks retrieves a caller-supplied chunk breakdown, for callers that
// size chunks themselves (seasonal plans). The filter's own date range is
// ignored; each chunk queries its own bounds.
func (e *Engine) RunChunks(ctx context.Context, f query.Filter, chunks []Chunk) (*Result, error) {
	f = f.Normalized()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return e.runChunks(ctx, f, chunks)
}

func (e *Engine) runChunks(ctx context.Context, f query.Filter, chunks []Chunk) (*Result, error) {
	progress, err := e.loadProgress()
	if err != nil {
		return nil, err
	}

	e.logger.Info("retrieval started",
		"chunks", len(chunks),
		"dest", e.cfg.DestDir,
	)
	e.metrics.RetrievalRunning.Set(1)
	defer e.metrics.RetrievalRunning.Set(0)

	result := &Result{}
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			e.logger.Info("retrieval stopping", "reason", err)
			return result, err
		}
		if progress.IsCompleted(chunk.ID()) {
			result.SkippedChunks++
			e.logger.Debug("skipping completed chunk", "chunk", chunk.ID())
			continue
		}

		outcome := e.runChunk(ctx, f, chunk)
		e.recordOutcome(progress, result, outcome)

		if err := e.saveProgress(progress); err != nil {
			return result, err
		}

		if i < len(chunks)-1 {
			if !sleepWithContext(ctx, e.clock, e.cfg.ChunkDelay) {
				e.logger.Info("retrieval stopping", "reason", ctx.Err())
				return result, ctx.Err()
			}
		}
	}

	e.logger.Info("retrieval finished",
		"pits", len(result.Pits),
		"completed", result.CompletedChunks,
		"failed", result.FailedChunks,
		"skipped", result.SkippedChunks,
		"file_failures", len(result.FileFailures),
	)
	return result, nil
}

// runChunk fetches one chunk, falling back to single days when a
// multi-day chunk fails and the fallback is enabled.
func (e *Engine) runChunk(ctx context.Context, f query.Filter, chunk Chunk) ChunkOutcome {
	start := e.clock.Now()
	outcome := e.fetchChunk(ctx, f, chunk)

	if outcome.Err != nil && e.cfg.DayFallback && !chunk.SingleDay() && ctx.Err() == nil {
		e.logger.Warn("chunk failed, falling back to single days",
			"chunk", chunk.ID(), "error", outcome.Err)
		outcome = e.fetchByDays(ctx, f, chunk)
	}
	if outcome.Err == nil {
		e.metrics.ChunkDuration.Observe(e.clock.Since(start).Seconds())
	}
	return outcome
}

// fetchByDays attempts every day of a failed chunk individually. Any day
// failure leaves the whole range failed; pits from days that did succeed
// stay on disk but are not counted, since the range will be retried on
// the next run.
func (e *Engine) fetchByDays(ctx context.Context, f query.Filter, chunk Chunk) ChunkOutcome {
	outcome := ChunkOutcome{Chunk: chunk}
	var dayErrs []error
	for _, day := range chunk.Days() {
		if err := ctx.Err(); err != nil {
			dayErrs = append(dayErrs, err)
			break
		}
		dayOut := e.fetchChunk(ctx, f, day)
		if dayOut.Err != nil {
			dayErrs = append(dayErrs, dayOut.Err)
			continue
		}
		outcome.Pits = append(outcome.Pits, dayOut.Pits...)
		outcome.Failures = append(outcome.Failures, dayOut.Failures...)
		outcome.SkippedTests += dayOut.SkippedTests
	}
	outcome.Err = errors.Join(dayErrs...)
	return outcome
}

// fetchChunk downloads, extracts, and parses one date range.
func (e *Engine) fetchChunk(ctx context.Context, f query.Filter, chunk Chunk) ChunkOutcome {
	outcome := ChunkOutcome{Chunk: chunk}

	chunkFilter := f
	chunkFilter.DateMin, chunkFilter.DateMax = chunk.Start, chunk.End

	d, err := e.downloader.Download(ctx, query.Build(chunkFilter))
	if err != nil {
		outcome.Err = fmt.Errorf("download chunk %s: %w", chunk.ID(), err)
		return outcome
	}
	if d == nil {
		e.logger.Info("chunk matched no pits", "chunk", chunk.ID())
		return outcome
	}

	paths, err := e.extract(d)
	if err != nil {
		outcome.Err = fmt.Errorf("extract chunk %s: %w", chunk.ID(), err)
		return outcome
	}

	paths, err = e.followOverflow(ctx, chunkFilter, chunk, paths)
	if err != nil {
		// Completing the chunk on the first page alone would freeze the
		// truncation into the checkpoint, so the whole chunk fails and
		// gets retried next run.
		outcome.Err = fmt.Errorf("re-query overflowing chunk %s: %w", chunk.ID(), err)
		return outcome
	}

	e.metrics.ArchiveFiles.Observe(float64(len(paths)))
	outcome.Pits, outcome.Failures, outcome.SkippedTests = e.parseFiles(paths)
	return outcome
}

// extract writes the downloaded archive into the destination directory
// and unpacks it there. The archive itself is removed by the extraction.
func (e *Engine) extract(d *snowpilot.Download) ([]string, error) {
	if err := os.MkdirAll(e.cfg.DestDir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}
	archivePath := filepath.Join(e.cfg.DestDir, d.Filename)
	if err := os.WriteFile(archivePath, d.Data, 0o644); err != nil {
		return nil, fmt.Errorf("write archive: %w", err)
	}
	return archive.Extract(archivePath, e.cfg.DestDir)
}

// followOverflow re-issues a chunk query at the maximum page size when
// the first response filled the requested page, and merges the pits the
// first page missed (matched by the id embedded in the filename). The
// remote cannot page past its maximum, so filling the maximum page only
// warns. Single-day chunks cannot be subdivided further and are left
// alone.
func (e *Engine) followOverflow(ctx context.Context, f query.Filter, chunk Chunk, paths []string) ([]string, error) {
	if len(paths) < f.PerPage || chunk.SingleDay() {
		return paths, nil
	}
	if f.PerPage >= query.MaxPerPage {
		e.logger.Warn("chunk filled the maximum page, results may be truncated",
			"chunk", chunk.ID(), "files", len(paths))
		return paths, nil
	}

	e.logger.Info("chunk filled its page, re-querying at maximum page size",
		"chunk", chunk.ID(), "page_size", f.PerPage)

	wide := f
	wide.PerPage = query.MaxPerPage
	d, err := e.downloader.Download(ctx, query.Build(wide))
	if err != nil {
		return nil, err
	}
	if d == nil {
		return paths, nil
	}
	widePaths, err := e.extract(d)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		seen[pitIDFromFilename(p)] = true
	}
	merged := paths
	for _, p := range widePaths {
		if !seen[pitIDFromFilename(p)] {
			merged = append(merged, p)
		}
	}
	if len(merged) >= query.MaxPerPage {
		e.logger.Warn("chunk filled the maximum page, results may be truncated",
			"chunk", chunk.ID(), "files", len(merged))
	}
	return merged, nil
}

// parseFiles parses every extracted document independently. A document
// that fails to parse is recorded and skipped; it never fails the chunk.
func (e *Engine) parseFiles(paths []string) ([]*domain.SnowPit, []FileFailure, int) {
	var (
		pits     []*domain.SnowPit
		failures []FileFailure
		skipped  int
	)
	for _, path := range paths {
		pit, diag, err := caaml.ParseFile(path)
		if err != nil {
			e.logger.Warn("parse failed, skipping document", "path", path, "error", err)
			e.metrics.ParseFailures.Inc()
			failures = append(failures, FileFailure{Path: path, Err: err})
			continue
		}
		skipped += diag.SkippedTests
		pits = append(pits, pit)
	}
	return pits, failures, skipped
}

func (e *Engine) recordOutcome(progress *checkpoint.Progress, result *Result, out ChunkOutcome) {
	if out.Err != nil {
		result.FailedChunks++
		e.metrics.ChunksFailed.Inc()
		progress.MarkFailed(out.Chunk.ID(), out.Err, e.clock.Now().UTC())
		e.logger.Error("chunk failed", "chunk", out.Chunk.ID(), "error", out.Err)
		return
	}

	result.Pits = append(result.Pits, out.Pits...)
	result.FileFailures = append(result.FileFailures, out.Failures...)
	result.SkippedTests += out.SkippedTests
	result.CompletedChunks++
	if len(out.Pits) == 0 && len(out.Failures) == 0 {
		result.EmptyChunks++
	}

	e.metrics.ChunksCompleted.Inc()
	e.metrics.PitsRetrieved.Add(float64(len(out.Pits)))
	progress.MarkCompleted(out.Chunk.ID(), checkpoint.ChunkSummary{
		Pits:         len(out.Pits),
		FileFailures: len(out.Failures),
	})
	e.ready.Store(true)
	e.logger.Info("chunk completed",
		"chunk", out.Chunk.ID(),
		"pits", len(out.Pits),
		"file_failures", len(out.Failures),
	)
}

func (e *Engine) loadProgress() (*checkpoint.Progress, error) {
	if e.store == nil {
		return checkpoint.NewProgress(e.clock.Now().UTC()), nil
	}
	p, err := e.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return p, nil
}

func (e *Engine) saveProgress(p *checkpoint.Progress) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.Save(p); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// sleepWithContext waits out d on the clock. Returns false if the
// context was cancelled first.
func sleepWithContext(ctx context.Context, clk clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-clk.After(d):
		return true
	}
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
