package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ContractGraph/internal/domain"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestCache(t *testing.T, maxBackups int) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contracts.json")
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(Options{Path: path, MaxBackups: maxBackups, Now: clk.now}), path
}

func entryFor(content string, id string) (domain.Fingerprint, domain.CacheEntry) {
	fp := domain.NewFingerprint([]byte(content), time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC))
	return fp, domain.CacheEntry{
		SourcePath: id,
		Record: domain.ContractRecord{
			ContractID:       id,
			Title:            "Stock Purchase Agreement",
			ContractType:     domain.ContractSecuritiesPurchase,
			ExtractionMethod: domain.MethodRuleOnly,
		},
	}
}

func TestCacheRoundTripThroughSnapshot(t *testing.T) {
	t.Parallel()

	c, path := newTestCache(t, 5)
	if err := c.Load(); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.Len() != 0 || c.Corruption() != nil {
		t.Fatalf("missing file must load as a clean empty cache")
	}

	fp, entry := entryFor("contract body", "corpus:a.htm")
	c.Put(fp, entry)
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}

	reopened := New(Options{Path: path})
	if err := reopened.Load(); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	got, ok := reopened.Lookup(fp)
	if !ok {
		t.Fatalf("expected hit after reload")
	}
	if got.Record.ContractID != "corpus:a.htm" || got.LastProcessedAt.IsZero() {
		t.Fatalf("unexpected entry: %+v", got)
	}

	changed := domain.NewFingerprint([]byte("contract body, amended"), fp.ModTime)
	if _, ok := reopened.Lookup(changed); ok {
		t.Fatalf("changed content must miss")
	}
	retimed := domain.NewFingerprint([]byte("contract body"), fp.ModTime.Add(48*time.Hour))
	if _, ok := reopened.Lookup(retimed); !ok {
		t.Fatalf("a new modification time with identical content must still hit")
	}
}

func TestCacheFlushIsNoOpWhenClean(t *testing.T) {
	t.Parallel()

	c, path := newTestCache(t, 5)
	fp, entry := entryFor("x", "corpus:x.txt")
	c.Put(fp, entry)
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	before, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat snapshot: %v", err)
	}

	if err := c.Flush(); err != nil {
		t.Fatalf("second Flush returned error: %v", err)
	}
	backups, _ := c.Backups()
	if len(backups) != 0 {
		t.Fatalf("clean flush must not rotate backups, got %v", backups)
	}
	after, _ := os.Stat(path)
	if !after.ModTime().Equal(before.ModTime()) {
		t.Fatalf("clean flush rewrote the snapshot")
	}
}

func TestCacheRotatesAndPrunesBackups(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, 2)
	for i, body := range []string{"a", "b", "c", "d"} {
		fp, entry := entryFor(body, "corpus:"+body)
		c.Put(fp, entry)
		if err := c.Flush(); err != nil {
			t.Fatalf("flush %d: %v", i, err)
		}
	}

	backups, err := c.Backups()
	if err != nil {
		t.Fatalf("Backups returned error: %v", err)
	}
	if len(backups) != 2 {
		t.Fatalf("expected 2 retained backups, got %v", backups)
	}

	// the newest backup is the snapshot before the last flush: three entries
	raw, err := os.ReadFile(backups[1])
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("backup is not a valid snapshot: %v", err)
	}
	if len(snap.Entries) != 3 {
		t.Fatalf("expected 3 entries in newest backup, got %d", len(snap.Entries))
	}
}

func TestCacheKeepsBackupsFromTheSameInstant(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "contracts.json")
	frozen := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := New(Options{Path: path, MaxBackups: 5, Now: func() time.Time { return frozen }})

	for i, body := range []string{"a", "b", "c"} {
		fp, entry := entryFor(body, "corpus:"+body)
		c.Put(fp, entry)
		if err := c.Flush(); err != nil {
			t.Fatalf("flush %d: %v", i, err)
		}
	}

	backups, err := c.Backups()
	if err != nil {
		t.Fatalf("Backups returned error: %v", err)
	}
	if len(backups) != 2 {
		t.Fatalf("expected 2 distinct backups, got %v", backups)
	}
	for i, want := range []int{1, 2} {
		raw, err := os.ReadFile(backups[i])
		if err != nil {
			t.Fatalf("read backup: %v", err)
		}
		var snap snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			t.Fatalf("backup is not a valid snapshot: %v", err)
		}
		if len(snap.Entries) != want {
			t.Fatalf("backup %d: expected %d entries, got %d", i, want, len(snap.Entries))
		}
	}
}

func TestCacheRecoversFromCorruption(t *testing.T) {
	t.Parallel()

	c, path := newTestCache(t, 5)
	if err := os.WriteFile(path, []byte(`{"version":1,"entries":{"abc`), 0o644); err != nil {
		t.Fatalf("write corrupt snapshot: %v", err)
	}

	if err := c.Load(); err != nil {
		t.Fatalf("corruption must not be fatal: %v", err)
	}
	if !errors.Is(c.Corruption(), domain.ErrCacheCorrupted) {
		t.Fatalf("expected ErrCacheCorrupted, got %v", c.Corruption())
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache")
	}

	if err := c.Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	reopened := New(Options{Path: path})
	if err := reopened.Load(); err != nil || reopened.Corruption() != nil {
		t.Fatalf("expected a fresh valid snapshot, got %v / %v", err, reopened.Corruption())
	}
}

func TestCacheLockPreventsConcurrentRuns(t *testing.T) {
	t.Parallel()

	first, path := newTestCache(t, 5)
	if err := first.AcquireLock(); err != nil {
		t.Fatalf("AcquireLock returned error: %v", err)
	}

	second := New(Options{Path: path})
	if err := second.AcquireLock(); !errors.Is(err, domain.ErrCacheLocked) {
		t.Fatalf("expected ErrCacheLocked, got %v", err)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := second.AcquireLock(); err != nil {
		t.Fatalf("lock should be free after Close: %v", err)
	}
	_ = second.ReleaseLock()
}

func TestCacheReset(t *testing.T) {
	t.Parallel()

	c, path := newTestCache(t, 5)
	fp, entry := entryFor("x", "corpus:x.txt")
	c.Put(fp, entry)
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}

	if err := c.Reset(); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}
	reopened := New(Options{Path: path})
	if err := reopened.Load(); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if reopened.Len() != 0 {
		t.Fatalf("expected empty cache after reset")
	}
	if backups, _ := c.Backups(); len(backups) != 1 {
		t.Fatalf("reset must keep the previous snapshot as a backup, got %v", backups)
	}
}
