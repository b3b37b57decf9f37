package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSourceFileMetadata(t *testing.T) {
	t.Parallel()

	f := SourceFile{
		Corpus:  "edgar",
		Path:    "/data/edgar/2021/8-K/0001193125-21-000123/EX-10.1.htm",
		RelPath: "2021/8-K/0001193125-21-000123/EX-10.1.htm",
		Format:  FormatHTML,
	}
	if got := f.ContractID(); got != "edgar:2021/8-K/0001193125-21-000123/EX-10.1.htm" {
		t.Fatalf("unexpected contract id %q", got)
	}

	meta := f.Metadata()
	if meta.Year != "2021" || meta.FilingType != "8-K" || meta.Accession != "0001193125-21-000123" || meta.Exhibit != "EX-10.1" {
		t.Fatalf("unexpected metadata %+v", meta)
	}

	flat := SourceFile{Path: "uploads/deal.txt", RelPath: "deal.txt"}
	if got := flat.ContractID(); got != "deal.txt" {
		t.Fatalf("unexpected contract id without corpus %q", got)
	}
	if meta := flat.Metadata(); meta.Year != "" || meta.Exhibit != "" {
		t.Fatalf("expected empty metadata, got %+v", meta)
	}
}

func TestFormatFromPath(t *testing.T) {
	t.Parallel()

	for path, want := range map[string]Format{"a.HTM": FormatHTML, "b.html": FormatHTML, "c.txt": FormatText} {
		got, err := FormatFromPath(path)
		if err != nil || got != want {
			t.Fatalf("%s: got %q, %v", path, got, err)
		}
	}
	if _, err := FormatFromPath("scan.pdf"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestFingerprintKeyIgnoresModTime(t *testing.T) {
	t.Parallel()

	a := NewFingerprint([]byte("agreement"), time.Unix(0, 0))
	b := NewFingerprint([]byte("agreement"), time.Now())
	if a.Key() != b.Key() {
		t.Fatalf("keys differ for identical content: %s vs %s", a.Key(), b.Key())
	}
	if !strings.HasSuffix(a.Key(), ":9") {
		t.Fatalf("key must carry the size: %s", a.Key())
	}
	if c := NewFingerprint([]byte("agreement."), time.Unix(0, 0)); c.Key() == a.Key() {
		t.Fatalf("different content produced the same key")
	}
}

func TestParseEnums(t *testing.T) {
	t.Parallel()

	if got, ok := ParseContractType("stock_purchase_agreement"); !ok || got != ContractSecuritiesPurchase {
		t.Fatalf("got %q, %v", got, ok)
	}
	if got, ok := ParseContractType("lease"); ok || got != ContractOther {
		t.Fatalf("got %q, %v", got, ok)
	}
	if got := ParseSecurityType("Series A Preferred"); got != SecurityPreferredStock {
		t.Fatalf("got %q", got)
	}
	if got := ParsePartyRole("Buyer"); got != RolePurchaser {
		t.Fatalf("got %q", got)
	}
	if got := NormalizeName("  Acme   Robotics, Inc. "); got != "acme robotics, inc" {
		t.Fatalf("got %q", got)
	}
}

func TestBatchReportText(t *testing.T) {
	t.Parallel()

	r := BatchReport{
		RunID:       "run-1",
		Discovered:  3,
		Processed:   2,
		Succeeded:   1,
		Failed:      1,
		Cancelled:   true,
		GraphBefore: GraphStats{Nodes: map[string]int{LabelContract: 1}},
		GraphAfter:  GraphStats{Nodes: map[string]int{LabelContract: 2, LabelParty: 2}, Edges: map[string]int{EdgePartyTo: 2}},
		Files: []FileOutcome{
			{Path: "ok.htm", State: StatePersisted},
			{Path: "bad.htm", State: StateFailed, Reason: "graph write failed"},
		},
		Warnings: []string{"cache flush failed"},
	}

	if r.NodeGrowth() != 3 || r.EdgeGrowth() != 2 {
		t.Fatalf("unexpected growth %d/%d", r.NodeGrowth(), r.EdgeGrowth())
	}
	text := r.Text()
	for _, want := range []string{"Processed: 2/3", "cancelled", "Warning: cache flush failed", "- FAILED bad.htm: graph write failed"} {
		if !strings.Contains(text, want) {
			t.Fatalf("report text missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "ok.htm") {
		t.Fatalf("successful files must not be listed:\n%s", text)
	}
}
