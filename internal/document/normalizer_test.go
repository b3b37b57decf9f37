package document

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"ContractGraph/internal/domain"
)

func TestNormalizeHTML(t *testing.T) {
	t.Parallel()

	raw := `<html><head><title>EX-10.1</title><style>p { color: red; }</style></head>
	<body>
	  <p align="center"><b>SECURITIES PURCHASE AGREEMENT</b></p>
	  <script>var x = 1;</script>
	  <p>This Agreement is dated as of
	     January 5, 2022, by and between Acme&nbsp;Corp.</p>
	  <div>- 2 -</div>
	  <table><tr><td>Purchaser</td><td>Shares</td></tr></table>
	</body></html>`

	doc, err := NewNormalizer(DefaultOptions()).Normalize([]byte(raw), domain.FormatHTML)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	lines := strings.Split(doc.Text, "\n")
	if lines[0] != "SECURITIES PURCHASE AGREEMENT" {
		t.Fatalf("unexpected first line: %q", lines[0])
	}
	if !strings.Contains(doc.Text, "This Agreement is dated as of January 5, 2022, by and between Acme Corp.") {
		t.Fatalf("paragraph not collapsed: %q", doc.Text)
	}
	for _, unwanted := range []string{"color: red", "var x", "EX-10.1", "- 2 -"} {
		if strings.Contains(doc.Text, unwanted) {
			t.Fatalf("expected %q to be stripped: %q", unwanted, doc.Text)
		}
	}
	if !strings.Contains(doc.Text, "Purchaser\nShares") {
		t.Fatalf("table cells should be separate lines: %q", doc.Text)
	}
	if doc.Truncated {
		t.Fatalf("short document must not be truncated")
	}
}

func TestNormalizeTextStripsEnvelope(t *testing.T) {
	t.Parallel()

	raw := "<DOCUMENT>\n<TYPE>EX-10.1\n<SEQUENCE>2\n<TEXT>\nLICENSE   AGREEMENT\n\n\nPage 1 of 9\nTable of Contents\nThe Licensor grants\ta license.\n</TEXT>\n"
	doc, err := NewNormalizer(DefaultOptions()).Normalize([]byte(raw), domain.FormatText)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	want := "LICENSE AGREEMENT\nThe Licensor grants a license."
	if doc.Text != want {
		t.Fatalf("unexpected text:\n%q\nwant\n%q", doc.Text, want)
	}
}

func TestNormalizeDecodesWindows1252(t *testing.T) {
	t.Parallel()

	// 0x93/0x94 are curly quotes in Windows-1252 and invalid UTF-8 on their own.
	raw := []byte("the \x93Company\x94 agrees")
	doc, err := NewNormalizer(DefaultOptions()).Normalize(raw, domain.FormatText)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if !utf8.ValidString(doc.Text) {
		t.Fatalf("output is not valid UTF-8: %q", doc.Text)
	}
	if doc.Text != "the “Company” agrees" {
		t.Fatalf("unexpected decode: %q", doc.Text)
	}
}

func TestNormalizeUnsupportedFormat(t *testing.T) {
	t.Parallel()

	_, err := NewNormalizer(DefaultOptions()).Normalize([]byte("%PDF-1.4"), domain.Format("pdf"))
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestNormalizeBoundsLength(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("MASTER LICENSE AGREEMENT\n")
	for i := 0; i < 400; i++ {
		b.WriteString("filler clause text that carries no key information\n")
		if i == 200 {
			b.WriteString("IN WITNESS WHEREOF the parties have executed this agreement\n")
		}
	}
	b.WriteString("Date: March 3, 2021")

	opts := Options{MaxChars: 2000, HeadChars: 1000, SalvageChars: 200}
	doc, err := NewNormalizer(opts).Normalize([]byte(b.String()), domain.FormatText)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if !doc.Truncated {
		t.Fatalf("expected truncation")
	}
	if got := utf8.RuneCountInString(doc.Text); got > opts.MaxChars {
		t.Fatalf("output exceeds MaxChars: %d > %d", got, opts.MaxChars)
	}
	if !strings.HasPrefix(doc.Text, "MASTER LICENSE AGREEMENT") {
		t.Fatalf("head not preserved")
	}
	if !strings.HasSuffix(doc.Text, "Date: March 3, 2021") {
		t.Fatalf("tail not preserved")
	}
	if !strings.Contains(doc.Text, TruncationMarker) {
		t.Fatalf("marker missing")
	}
	if !strings.Contains(doc.Text, "IN WITNESS WHEREOF the parties have executed this agreement") {
		t.Fatalf("key line from the middle was not salvaged")
	}
}
