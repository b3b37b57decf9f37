package domain

import "errors"

var (
	// ErrUnsupportedFormat is fatal to the affected file only.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrExtractionFailed is recovered by the merger's fallback record.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrCacheCorrupted is recovered by treating the cache as empty.
	ErrCacheCorrupted = errors.New("cache corrupted")

	// ErrCacheLocked is returned when another run holds the cache lock.
	ErrCacheLocked = errors.New("cache is locked by another run")

	// ErrGraphWriteFailed marks a file as failed after the write retry is spent.
	ErrGraphWriteFailed = errors.New("graph write failed")

	// ErrRunCancelled reports a graceful stop between files.
	ErrRunCancelled = errors.New("run cancelled")
)
