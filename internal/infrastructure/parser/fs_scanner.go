package parser

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"ContractGraph/internal/domain"
	"ContractGraph/internal/scanner"
)

// Scanner names used in corpus configuration.
const (
	TreeScannerName = "tree"
	FlatScannerName = "flat"
)

// TreeScanner walks a corpus root recursively (EDGAR-style year/filing/accession trees).
type TreeScanner struct{}

// NewTreeScanner returns the recursive discovery strategy.
func NewTreeScanner() *TreeScanner {
	return &TreeScanner{}
}

// Name identifies the strategy inside the registry.
func (s *TreeScanner) Name() string {
	return TreeScannerName
}

// Scan lists every supported file below req.Root. Hidden entries are skipped.
func (s *TreeScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.SourceFile, error) {
	var files []domain.SourceFile
	err := filepath.WalkDir(req.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path != req.Root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		file, ok, err := sourceFile(req, path, d)
		if err != nil {
			return err
		}
		if ok {
			files = append(files, file)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", req.Root, err)
	}
	return files, nil
}

// FlatScanner lists a single directory (upload folders); subdirectories are ignored.
type FlatScanner struct{}

// NewFlatScanner returns the non-recursive discovery strategy.
func NewFlatScanner() *FlatScanner {
	return &FlatScanner{}
}

// Name identifies the strategy inside the registry.
func (s *FlatScanner) Name() string {
	return FlatScannerName
}

// Scan lists supported files directly inside req.Root.
func (s *FlatScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.SourceFile, error) {
	entries, err := os.ReadDir(req.Root)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", req.Root, err)
	}

	var files []domain.SourceFile
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		file, ok, err := sourceFile(req, filepath.Join(req.Root, entry.Name()), entry)
		if err != nil {
			return nil, err
		}
		if ok {
			files = append(files, file)
		}
	}
	return files, nil
}

func sourceFile(req scanner.Request, path string, entry fs.DirEntry) (domain.SourceFile, bool, error) {
	format, err := domain.FormatFromPath(path)
	if errors.Is(err, domain.ErrUnsupportedFormat) {
		return domain.SourceFile{}, false, nil
	}
	if err != nil {
		return domain.SourceFile{}, false, err
	}

	info, err := entry.Info()
	if err != nil {
		return domain.SourceFile{}, false, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return domain.SourceFile{}, false, nil
	}

	rel, err := filepath.Rel(req.Root, path)
	if err != nil {
		return domain.SourceFile{}, false, fmt.Errorf("relative path %s: %w", path, err)
	}

	return domain.SourceFile{
		Corpus:  req.Corpus,
		Path:    path,
		RelPath: filepath.ToSlash(rel),
		Format:  format,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, true, nil
}
