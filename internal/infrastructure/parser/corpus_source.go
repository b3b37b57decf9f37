package parser

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"ContractGraph/internal/config"
	"ContractGraph/internal/domain"
	"ContractGraph/internal/ports"
	"ContractGraph/internal/scanner"
)

// CorpusSource implements DocumentSource via registered scanner strategies.
type CorpusSource struct {
	registry *scanner.Registry
	corpora  []config.CorpusConfig
	logger   *slog.Logger
}

var _ ports.DocumentSource = (*CorpusSource)(nil)

// NewCorpusSource wires scanner registry with config-defined corpora.
func NewCorpusSource(reg *scanner.Registry, corpora []config.CorpusConfig, log *slog.Logger) *CorpusSource {
	return &CorpusSource{
		registry: reg,
		corpora:  corpora,
		logger:   log,
	}
}

// Discover scans every corpus, orders files by year then path and skips (basename, size) duplicates.
// A corpus whose root does not exist is skipped with a warning.
func (s *CorpusSource) Discover(ctx context.Context) (domain.Discovery, error) {
	if s.registry == nil {
		return domain.Discovery{}, fmt.Errorf("scanner registry is not configured")
	}

	s.debug("discover", "corpora", len(s.corpora))

	var aggregated []domain.SourceFile
	for _, corpus := range s.corpora {
		s.debug("scan corpus", "corpus", corpus.Name, "scanner", corpus.Scanner, "path", corpus.Path)
		strategy, err := s.registry.Resolve(corpus.Scanner)
		if err != nil {
			return domain.Discovery{}, fmt.Errorf("corpus %s: %w", corpus.Name, err)
		}

		if _, err := os.Stat(corpus.Path); errors.Is(err, fs.ErrNotExist) {
			if s.logger != nil {
				s.logger.Warn("corpus root missing, skipping", "corpus", corpus.Name, "path", corpus.Path)
			}
			continue
		}

		results, err := strategy.Scan(ctx, scanner.Request{
			Corpus:  corpus.Name,
			Root:    corpus.Path,
			Options: corpus.Options,
		})
		if err != nil {
			return domain.Discovery{}, fmt.Errorf("scan corpus %s: %w", corpus.Name, err)
		}
		s.debug("corpus produced files", "corpus", corpus.Name, "count", len(results))
		aggregated = append(aggregated, results...)
	}

	unique, duplicates := dedupe(orderFiles(aggregated))
	for _, d := range duplicates {
		if s.logger != nil {
			s.logger.Info("skipping duplicate file", "path", d.Path, "duplicate_of", d.DuplicateOf)
		}
	}
	s.debug("corpus source done", "total_files", len(unique), "duplicates", len(duplicates))
	return domain.Discovery{Files: unique, Duplicates: duplicates}, nil
}

// Read loads raw file bytes.
func (s *CorpusSource) Read(ctx context.Context, file domain.SourceFile) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(file.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file.Path, err)
	}
	return raw, nil
}

// orderFiles sorts by year path component (files without one last), then path.
func orderFiles(files []domain.SourceFile) []domain.SourceFile {
	type keyed struct {
		file domain.SourceFile
		year string
	}
	items := make([]keyed, len(files))
	for i, f := range files {
		items[i] = keyed{file: f, year: f.Metadata().Year}
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.year != b.year {
			if a.year == "" || b.year == "" {
				return b.year == ""
			}
			return a.year < b.year
		}
		return a.file.Path < b.file.Path
	})

	out := make([]domain.SourceFile, len(items))
	for i, item := range items {
		out[i] = item.file
	}
	return out
}

// dedupe keeps the first file per (basename, size) in the given order.
func dedupe(files []domain.SourceFile) ([]domain.SourceFile, []domain.Duplicate) {
	type key struct {
		base string
		size int64
	}
	seen := make(map[key]string, len(files))
	out := make([]domain.SourceFile, 0, len(files))
	var duplicates []domain.Duplicate
	for _, f := range files {
		k := key{base: filepath.Base(f.Path), size: f.Size}
		if first, ok := seen[k]; ok {
			duplicates = append(duplicates, domain.Duplicate{Path: f.Path, DuplicateOf: first})
			continue
		}
		seen[k] = f.Path
		out = append(out, f)
	}
	return out, duplicates
}

func (s *CorpusSource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
