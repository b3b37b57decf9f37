package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"ContractGraph/internal/document"
	"ContractGraph/internal/domain"
	"ContractGraph/internal/extraction"
	"ContractGraph/internal/ports"
	"ContractGraph/pkg/logger"
)

const defaultProgressEvery = 5

// RunCache is the cache handle a pipeline owns for one run.
type RunCache interface {
	ports.ContractCache
	AcquireLock() error
	ReleaseLock() error
	Load() error
	Corruption() error
}

// TextNormalizer turns raw bytes into bounded plain text.
type TextNormalizer interface {
	Normalize(raw []byte, format domain.Format) (document.Document, error)
}

// ContractExtractor yields a record for every text; failures surface as fallback records.
type ContractExtractor interface {
	Extract(ctx context.Context, text string) extraction.Result
}

// RecordWriter persists one record into the graph.
type RecordWriter interface {
	Upsert(ctx context.Context, record domain.ContractRecord) (domain.WriteStats, error)
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source        ports.DocumentSource
	Cache         RunCache
	Normalizer    TextNormalizer
	Extractor     ContractExtractor
	Writer        RecordWriter
	Graph         ports.Graph
	Notifier      ports.Notifier
	Progress      ports.ProgressReporter
	ProgressEvery int
	ReportDir     string
	Logger        *slog.Logger
	Now           func() time.Time
}

// RunOptions adjusts a single run.
type RunOptions struct {
	// Force ignores cache hits and re-extracts every file.
	Force bool
	// MaxFiles caps how many discovered files are processed; zero means no cap.
	MaxFiles int
}

// Pipeline implements the contract-ingestion workflow. Files are processed sequentially.
type Pipeline struct {
	source        ports.DocumentSource
	cache         RunCache
	normalizer    TextNormalizer
	extractor     ContractExtractor
	writer        RecordWriter
	graph         ports.Graph
	notifier      ports.Notifier
	progress      ports.ProgressReporter
	progressEvery int
	reportDir     string
	logger        *slog.Logger
	now           func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.ProgressEvery <= 0 {
		deps.ProgressEvery = defaultProgressEvery
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Normalizer == nil {
		deps.Normalizer = document.NewNormalizer(document.DefaultOptions())
	}
	return &Pipeline{
		source:        deps.Source,
		cache:         deps.Cache,
		normalizer:    deps.Normalizer,
		extractor:     deps.Extractor,
		writer:        deps.Writer,
		graph:         deps.Graph,
		notifier:      deps.Notifier,
		progress:      deps.Progress,
		progressEvery: deps.ProgressEvery,
		reportDir:     deps.ReportDir,
		logger:        deps.Logger,
		now:           deps.Now,
	}
}

// Run processes every discovered file once. Only startup failures (cache lock or load,
// graph stats, discovery) return an error without a report; a cancelled run returns
// its partial report together with domain.ErrRunCancelled.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (domain.BatchReport, error) {
	if p.source == nil || p.cache == nil || p.extractor == nil || p.writer == nil || p.graph == nil {
		return domain.BatchReport{}, fmt.Errorf("pipeline is not fully configured")
	}

	report := domain.BatchReport{RunID: uuid.NewString(), StartedAt: p.now()}
	ctx = logger.WithRunID(ctx, report.RunID)
	log := logger.From(ctx, p.logger)

	if err := p.cache.AcquireLock(); err != nil {
		return domain.BatchReport{}, fmt.Errorf("lock cache: %w", err)
	}
	defer func() {
		if err := p.cache.ReleaseLock(); err != nil {
			log.Warn("release cache lock", "error", err)
		}
	}()

	if err := p.cache.Load(); err != nil {
		return domain.BatchReport{}, fmt.Errorf("load cache: %w", err)
	}
	if err := p.cache.Corruption(); err != nil {
		report.CacheRecovered = true
		report.Warnings = append(report.Warnings, err.Error())
	}

	before, err := p.graph.Stats(ctx)
	if err != nil {
		return domain.BatchReport{}, fmt.Errorf("graph stats: %w", err)
	}
	report.GraphBefore = before

	discovery, err := p.source.Discover(ctx)
	if err != nil {
		return domain.BatchReport{}, fmt.Errorf("discover: %w", err)
	}
	files := discovery.Files
	report.Discovered = len(files)
	report.Duplicates = discovery.Duplicates
	if opts.MaxFiles > 0 && len(files) > opts.MaxFiles {
		files = files[:opts.MaxFiles]
	}

	log.Info("run started", "files", len(files), "discovered", report.Discovered, "duplicates", len(report.Duplicates), "cached", p.cache.Len(), "force", opts.Force)

	// per-file work is detached so a file is always completed or never started
	work := context.WithoutCancel(ctx)
	for i, file := range files {
		if ctx.Err() != nil {
			report.Cancelled = true
			log.Warn("run cancelled between files", "processed", report.Processed, "remaining", len(files)-i)
			break
		}

		outcome, aiCalls := p.processFile(work, log, file, opts.Force)
		report.Processed++
		report.AICalls += aiCalls
		report.Writes.Add(outcome.Writes)
		if outcome.FromCache {
			report.CacheHits++
		} else if outcome.Method != "" {
			report.Extracted++
		}
		if outcome.State == domain.StateFailed {
			report.Failed++
			log.Warn("file failed", "path", outcome.Path, "reason", outcome.Reason)
		} else {
			report.Succeeded++
		}
		report.Files = append(report.Files, outcome)

		if report.Processed%p.progressEvery == 0 {
			p.checkpoint(work, log, &report, len(files), file.Path)
		}
	}

	if err := p.cache.Flush(); err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("final cache flush: %v", err))
		log.Error("final cache flush failed", "error", err)
	}

	after, err := p.graph.Stats(work)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("graph stats after run: %v", err))
		after = before
	}
	report.GraphAfter = after

	report.FinishedAt = p.now()
	report.Elapsed = report.FinishedAt.Sub(report.StartedAt)
	if minutes := report.Elapsed.Minutes(); minutes > 0 {
		report.FilesPerMinute = float64(report.Processed) / minutes
	}

	p.persistReport(log, &report)
	p.notify(work, log, report)

	log.Info("run finished",
		"processed", report.Processed,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"cache_hits", report.CacheHits,
		"ai_calls", report.AICalls,
		"writes", report.Writes.Total(),
		"elapsed", report.Elapsed)

	if report.Cancelled {
		return report, domain.ErrRunCancelled
	}
	return report, nil
}

// processFile runs one file through the state machine and never returns an error:
// failures are recorded on the outcome.
func (p *Pipeline) processFile(ctx context.Context, log *slog.Logger, file domain.SourceFile, force bool) (domain.FileOutcome, int) {
	outcome := domain.FileOutcome{Path: file.Path, ContractID: file.ContractID(), State: domain.StateDiscovered}
	advance := func(state domain.FileState) {
		outcome.State = state
		log.Debug("file state", "path", file.Path, "state", state)
	}
	fail := func(reason string) (domain.FileOutcome, int) {
		outcome.Reason = reason
		advance(domain.StateFailed)
		return outcome, 0
	}

	raw, err := p.source.Read(ctx, file)
	if err != nil {
		return fail(err.Error())
	}
	fp := domain.NewFingerprint(raw, file.ModTime)

	var (
		record  domain.ContractRecord
		aiCalls int
	)
	entry, hit := domain.CacheEntry{}, false
	if !force {
		entry, hit = p.cache.Lookup(fp)
	}

	if hit {
		advance(domain.StateCacheHit)
		outcome.FromCache = true
		record = entry.Record
		record.ContractID = outcome.ContractID
		record.Source = file.Metadata()
	} else {
		advance(domain.StateCacheMiss)
		advance(domain.StateExtracting)
		doc, err := p.normalizer.Normalize(raw, file.Format)
		if err != nil {
			return fail(fmt.Sprintf("normalize: %v", err))
		}

		res := p.extractor.Extract(ctx, doc.Text)
		aiCalls = res.AICalls
		if res.AIErr != nil {
			log.Debug("ai extraction unavailable", "path", file.Path, "error", res.AIErr)
		}

		record = res.Record
		record.ContractID = outcome.ContractID
		record.SourceFingerprint = fp
		record.Source = file.Metadata()
		advance(domain.StateExtracted)

		// fallback records are not memoized so the next run retries extraction
		if record.ExtractionMethod != domain.MethodFallback {
			p.cache.Put(fp, domain.CacheEntry{
				Fingerprint: fp,
				SourcePath:  file.Path,
				Record:      record,
			})
		}
	}
	outcome.Method = record.ExtractionMethod
	outcome.Title = record.Title

	stats, err := p.writer.Upsert(ctx, record)
	if err != nil {
		outcome.Reason = err.Error()
		advance(domain.StateFailed)
		return outcome, aiCalls
	}
	outcome.Writes = stats
	advance(domain.StatePersisted)
	return outcome, aiCalls
}

func (p *Pipeline) checkpoint(ctx context.Context, log *slog.Logger, report *domain.BatchReport, total int, current string) {
	if err := p.cache.Flush(); err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("cache flush after %d files: %v", report.Processed, err))
		log.Warn("periodic cache flush failed", "error", err)
	}

	progress := domain.Progress{
		RunID:       report.RunID,
		Processed:   report.Processed,
		Total:       total,
		CurrentFile: current,
		Elapsed:     p.now().Sub(report.StartedAt),
		Succeeded:   report.Succeeded,
	}
	if p.progress != nil {
		p.progress.Progress(ctx, progress)
		return
	}
	log.Info("progress",
		"processed", progress.Processed,
		"total", progress.Total,
		"current_file", progress.CurrentFile,
		"elapsed", progress.Elapsed)
}

func (p *Pipeline) persistReport(log *slog.Logger, report *domain.BatchReport) {
	if p.reportDir == "" {
		return
	}
	path, err := writeReport(p.reportDir, *report)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("persist report: %v", err))
		log.Warn("persist report failed", "error", err)
		return
	}
	log.Info("report written", "path", path)
}

func (p *Pipeline) notify(ctx context.Context, log *slog.Logger, report domain.BatchReport) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.PublishReport(ctx, report.Text()); err != nil {
		log.Warn("publish report failed", "error", err)
	}
}

func writeReport(dir string, report domain.BatchReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	name := fmt.Sprintf("report-%s-%s.json", report.StartedAt.UTC().Format("20060102T150405"), shortID(report.RunID))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// IsCancelled reports whether err marks a run stopped between files.
func IsCancelled(err error) bool {
	return errors.Is(err, domain.ErrRunCancelled)
}
