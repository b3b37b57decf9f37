package domain

import (
	"fmt"
	"strings"
	"time"
)

// FileState enumerates per-file pipeline milestones.
type FileState string

const (
	StateDiscovered FileState = "discovered"
	StateCacheHit   FileState = "cache_hit"
	StateCacheMiss  FileState = "cache_miss"
	StateExtracting FileState = "extracting"
	StateExtracted  FileState = "extracted"
	StateFailed     FileState = "failed"
	StatePersisted  FileState = "persisted"
)

// FileOutcome is the terminal accounting for one file.
type FileOutcome struct {
	Path       string           `json:"path"`
	ContractID string           `json:"contract_id"`
	State      FileState        `json:"state"`
	FromCache  bool             `json:"from_cache"`
	Method     ExtractionMethod `json:"extraction_method,omitempty"`
	Title      string           `json:"title,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	Writes     WriteStats       `json:"writes"`
}

// WriteStats counts graph mutations caused by one upsert.
type WriteStats struct {
	NodesCreated int `json:"nodes_created"`
	NodesUpdated int `json:"nodes_updated"`
	EdgesCreated int `json:"edges_created"`
	EdgesUpdated int `json:"edges_updated"`
}

// Add accumulates other into s.
func (s *WriteStats) Add(other WriteStats) {
	s.NodesCreated += other.NodesCreated
	s.NodesUpdated += other.NodesUpdated
	s.EdgesCreated += other.EdgesCreated
	s.EdgesUpdated += other.EdgesUpdated
}

// Total is the number of mutated rows.
func (s WriteStats) Total() int {
	return s.NodesCreated + s.NodesUpdated + s.EdgesCreated + s.EdgesUpdated
}

// GraphStats holds node counts per label and edge counts per type.
type GraphStats struct {
	Nodes map[string]int `json:"nodes"`
	Edges map[string]int `json:"edges"`
}

// NodeTotal sums node counts.
func (g GraphStats) NodeTotal() int {
	total := 0
	for _, n := range g.Nodes {
		total += n
	}
	return total
}

// EdgeTotal sums edge counts.
func (g GraphStats) EdgeTotal() int {
	total := 0
	for _, n := range g.Edges {
		total += n
	}
	return total
}

// Progress is emitted every K processed files.
type Progress struct {
	RunID       string
	Processed   int
	Total       int
	CurrentFile string
	Elapsed     time.Duration
	Succeeded   int
}

// BatchReport is the terminal summary of a run.
type BatchReport struct {
	RunID          string        `json:"run_id"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	Discovered     int           `json:"discovered"`
	Processed      int           `json:"processed"`
	Succeeded      int           `json:"succeeded"`
	Failed         int           `json:"failed"`
	CacheHits      int           `json:"cache_hits"`
	Extracted      int           `json:"extracted"`
	AICalls        int           `json:"ai_calls"`
	Cancelled      bool          `json:"cancelled"`
	CacheRecovered bool          `json:"cache_recovered"`
	Elapsed        time.Duration `json:"elapsed"`
	FilesPerMinute float64       `json:"files_per_minute"`
	Writes         WriteStats    `json:"writes"`
	GraphBefore    GraphStats    `json:"graph_before"`
	GraphAfter     GraphStats    `json:"graph_after"`
	Duplicates     []Duplicate   `json:"duplicates,omitempty"`
	Files          []FileOutcome `json:"files"`
	Warnings       []string      `json:"warnings,omitempty"`
}

// Failures returns the failed outcomes in processing order.
func (r BatchReport) Failures() []FileOutcome {
	var failed []FileOutcome
	for _, f := range r.Files {
		if f.State == StateFailed {
			failed = append(failed, f)
		}
	}
	return failed
}

// NodeGrowth is the difference in node count across the run.
func (r BatchReport) NodeGrowth() int {
	return r.GraphAfter.NodeTotal() - r.GraphBefore.NodeTotal()
}

// EdgeGrowth is the difference in edge count across the run.
func (r BatchReport) EdgeGrowth() int {
	return r.GraphAfter.EdgeTotal() - r.GraphBefore.EdgeTotal()
}

// Text renders a human-readable summary, listing every failure with its reason.
func (r BatchReport) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n", r.RunID)
	fmt.Fprintf(&b, "Processed: %d/%d (succeeded %d, failed %d)\n", r.Processed, r.Discovered, r.Succeeded, r.Failed)
	fmt.Fprintf(&b, "Cache hits: %d, extracted: %d, AI calls: %d\n", r.CacheHits, r.Extracted, r.AICalls)
	fmt.Fprintf(&b, "Elapsed: %s (%.1f files/minute)\n", r.Elapsed.Round(time.Millisecond), r.FilesPerMinute)
	fmt.Fprintf(&b, "Graph: %d nodes (%+d), %d edges (%+d), %d writes\n",
		r.GraphAfter.NodeTotal(), r.NodeGrowth(), r.GraphAfter.EdgeTotal(), r.EdgeGrowth(), r.Writes.Total())
	if len(r.Duplicates) > 0 {
		fmt.Fprintf(&b, "Skipped duplicates: %d\n", len(r.Duplicates))
	}
	if r.Cancelled {
		b.WriteString("Run was cancelled before all files were processed\n")
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "Warning: %s\n", w)
	}
	for _, f := range r.Failures() {
		fmt.Fprintf(&b, "- FAILED %s: %s\n", f.Path, f.Reason)
	}
	return b.String()
}
