package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Format is the declared document format.
type Format string

const (
	FormatHTML Format = "html"
	FormatText Format = "txt"
)

// FormatFromPath derives the declared format from a file extension.
func FormatFromPath(p string) (Format, error) {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".html", ".htm":
		return FormatHTML, nil
	case ".txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(p))
	}
}

// SourceFile is a discovered corpus file.
type SourceFile struct {
	Corpus  string
	Path    string
	RelPath string
	Format  Format
	Size    int64
	ModTime time.Time
}

// ContractID is stable for a file: corpus name plus slash-separated relative path.
func (f SourceFile) ContractID() string {
	rel := filepath.ToSlash(f.RelPath)
	if rel == "" {
		rel = filepath.ToSlash(f.Path)
	}
	if f.Corpus == "" {
		return rel
	}
	return f.Corpus + ":" + rel
}

// Metadata parses informative path components (year, filing type, accession, exhibit).
func (f SourceFile) Metadata() SourceMetadata {
	meta := SourceMetadata{Corpus: f.Corpus, Path: f.Path, Format: f.Format}
	parts := strings.Split(filepath.ToSlash(f.RelPath), "/")
	dirs := parts[:len(parts)-1]
	for _, part := range dirs {
		if meta.Year == "" && isYear(part) {
			meta.Year = part
			continue
		}
		if meta.FilingType == "" && isFilingType(part) {
			meta.FilingType = part
			continue
		}
		if meta.Accession == "" && strings.Count(part, "-") >= 2 && len(part) > 10 {
			meta.Accession = part
		}
	}
	base := path.Base(filepath.ToSlash(f.RelPath))
	upper := strings.ToUpper(base)
	if strings.HasPrefix(upper, "10.") || strings.HasPrefix(upper, "EX-") {
		meta.Exhibit = strings.TrimSuffix(base, path.Ext(base))
	}
	return meta
}

func isYear(part string) bool {
	if len(part) != 4 {
		return false
	}
	for _, r := range part {
		if r < '0' || r > '9' {
			return false
		}
	}
	return part >= "1900" && part <= "2999"
}

func isFilingType(part string) bool {
	upper := strings.ToUpper(part)
	for _, kind := range []string{"10-K", "10-Q", "8-K", "S-1", "S-3"} {
		if strings.Contains(upper, kind) {
			return true
		}
	}
	return false
}

// Duplicate is a file skipped because an earlier file had the same basename and size.
type Duplicate struct {
	Path        string `json:"path"`
	DuplicateOf string `json:"duplicate_of"`
}

// Discovery is the ordered work list plus the duplicates left out of it.
type Discovery struct {
	Files      []SourceFile
	Duplicates []Duplicate
}

// Fingerprint identifies file content. ModTime is informational; identity is hash+size.
type Fingerprint struct {
	Hash    string    `json:"hash"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// NewFingerprint hashes content bytes.
func NewFingerprint(content []byte, modTime time.Time) Fingerprint {
	sum := sha256.Sum256(content)
	return Fingerprint{
		Hash:    hex.EncodeToString(sum[:]),
		Size:    int64(len(content)),
		ModTime: modTime.UTC(),
	}
}

// Key is the cache key: content hash plus declared length.
func (f Fingerprint) Key() string {
	return fmt.Sprintf("%s:%d", f.Hash, f.Size)
}

// CacheEntry maps a fingerprint to a previously computed record.
type CacheEntry struct {
	Fingerprint     Fingerprint    `json:"fingerprint"`
	SourcePath      string         `json:"source_path"`
	Record          ContractRecord `json:"record"`
	LastProcessedAt time.Time      `json:"last_processed_at"`
}
