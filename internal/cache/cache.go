// Package cache memoizes extracted contract records by content fingerprint.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"ContractGraph/internal/domain"
	"ContractGraph/internal/ports"
)

const (
	snapshotVersion   = 1
	backupTimeLayout  = "20060102T150405.000000000"
	defaultMaxBackups = 5
)

// Options configures a cache handle.
type Options struct {
	Path       string
	MaxBackups int
	Logger     *slog.Logger
	Now        func() time.Time
}

type snapshot struct {
	Version   int                          `json:"version"`
	UpdatedAt time.Time                    `json:"updated_at"`
	Entries   map[string]domain.CacheEntry `json:"entries"`
}

// Cache is an explicit handle over one snapshot file. It is not shared between pipelines.
type Cache struct {
	path       string
	maxBackups int
	logger     *slog.Logger
	now        func() time.Time

	mu         sync.Mutex
	entries    map[string]domain.CacheEntry
	dirty      bool
	locked     bool
	corruption error
}

var _ ports.ContractCache = (*Cache)(nil)

// New returns an empty, unloaded cache.
func New(opts Options) *Cache {
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = defaultMaxBackups
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		path:       opts.Path,
		maxBackups: opts.MaxBackups,
		logger:     opts.Logger,
		now:        opts.Now,
		entries:    map[string]domain.CacheEntry{},
	}
}

// Path is the snapshot location.
func (c *Cache) Path() string {
	return c.path
}

// AcquireLock creates the run lock next to the snapshot. A lock left by a crashed run must be removed by hand.
func (c *Cache) AcquireLock() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	f, err := os.OpenFile(c.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", domain.ErrCacheLocked, c.lockPath())
		}
		return fmt.Errorf("create cache lock: %w", err)
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("write cache lock: %w", werr)
	}

	c.mu.Lock()
	c.locked = true
	c.mu.Unlock()
	return nil
}

// ReleaseLock removes the run lock if this handle holds it.
func (c *Cache) ReleaseLock() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.locked {
		return nil
	}
	c.locked = false
	if err := os.Remove(c.lockPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cache lock: %w", err)
	}
	return nil
}

// Load reads the snapshot. A missing file is an empty cache; an unreadable or
// partial file is recorded as corruption and also yields an empty cache.
func (c *Cache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = map[string]domain.CacheEntry{}
	c.corruption = nil
	c.dirty = false

	raw, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		c.recover(fmt.Errorf("%w: read %s: %v", domain.ErrCacheCorrupted, c.path, err))
		return nil
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		c.recover(fmt.Errorf("%w: decode %s: %v", domain.ErrCacheCorrupted, c.path, err))
		return nil
	}
	if snap.Version != snapshotVersion {
		c.recover(fmt.Errorf("%w: unsupported snapshot version %d", domain.ErrCacheCorrupted, snap.Version))
		return nil
	}

	for key, entry := range snap.Entries {
		if key != entry.Fingerprint.Key() {
			c.logger.Warn("cache entry key mismatch, dropping", "key", key)
			c.dirty = true
			continue
		}
		c.entries[key] = entry
	}
	c.logger.Debug("cache loaded", "path", c.path, "entries", len(c.entries))
	return nil
}

func (c *Cache) recover(err error) {
	c.logger.Warn("cache unusable, starting empty", "error", err)
	c.corruption = err
	c.entries = map[string]domain.CacheEntry{}
	// rewrite a valid snapshot on the next flush even if nothing is added
	c.dirty = true
}

// Corruption returns the ErrCacheCorrupted cause from the last Load, if any.
func (c *Cache) Corruption() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.corruption
}

// Lookup reports a hit only for an identical fingerprint key (content hash and length).
func (c *Cache) Lookup(fp domain.Fingerprint) (domain.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[fp.Key()]
	return entry, ok
}

// Put stores or replaces the entry for fp.
func (c *Cache) Put(fp domain.Fingerprint, entry domain.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry.Fingerprint = fp
	if entry.LastProcessedAt.IsZero() {
		entry.LastProcessedAt = c.now().UTC()
	}
	c.entries[fp.Key()] = entry
	c.dirty = true
}

// Len is the number of cached records.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Flush writes a full snapshot atomically after backing up the previous one. No-op when clean.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}

	snap := snapshot{Version: snapshotVersion, UpdatedAt: c.now().UTC(), Entries: c.entries}
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache snapshot: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	if err := c.backupCurrent(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}

	c.dirty = false
	c.logger.Debug("cache flushed", "path", c.path, "entries", len(c.entries))
	c.pruneBackups()
	return nil
}

// Reset drops every entry and flushes an empty snapshot; the previous one is kept as a backup.
func (c *Cache) Reset() error {
	c.mu.Lock()
	c.entries = map[string]domain.CacheEntry{}
	c.dirty = true
	c.mu.Unlock()
	return c.Flush()
}

// Close flushes pending entries and releases the run lock.
func (c *Cache) Close() error {
	flushErr := c.Flush()
	lockErr := c.ReleaseLock()
	return errors.Join(flushErr, lockErr)
}

// Backups lists backup snapshots, oldest first.
func (c *Cache) Backups() ([]string, error) {
	matches, err := filepath.Glob(c.backupPrefix() + "*.json")
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

func (c *Cache) backupCurrent() error {
	current, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot for backup: %w", err)
	}
	// a taken name is bumped by a nanosecond so names stay unique and sort by age
	stamp := c.now().UTC()
	name := c.backupPrefix() + stamp.Format(backupTimeLayout) + ".json"
	for {
		if _, err := os.Stat(name); errors.Is(err, fs.ErrNotExist) {
			break
		}
		stamp = stamp.Add(time.Nanosecond)
		name = c.backupPrefix() + stamp.Format(backupTimeLayout) + ".json"
	}
	if err := os.WriteFile(name, current, 0o644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}

func (c *Cache) pruneBackups() {
	backups, err := c.Backups()
	if err != nil {
		c.logger.Warn("list cache backups", "error", err)
		return
	}
	for len(backups) > c.maxBackups {
		if err := os.Remove(backups[0]); err != nil {
			c.logger.Warn("remove old cache backup", "path", backups[0], "error", err)
		}
		backups = backups[1:]
	}
}

func (c *Cache) backupPrefix() string {
	return strings.TrimSuffix(c.path, filepath.Ext(c.path)) + ".backup-"
}

func (c *Cache) lockPath() string {
	return c.path + ".lock"
}
