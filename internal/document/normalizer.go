// Package document turns raw contract files into bounded plain text.
package document

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"ContractGraph/internal/domain"
)

// TruncationMarker replaces the dropped middle of oversized documents.
const TruncationMarker = "\n...[MIDDLE CONTENT TRUNCATED]...\n"

var (
	boilerplateExprs = []*regexp.Regexp{
		regexp.MustCompile(`^</?(?:SEC-DOCUMENT|SEC-HEADER|IMS-HEADER|DOCUMENT|TYPE|SEQUENCE|FILENAME|DESCRIPTION|TEXT|PAGE|ACCEPTANCE-DATETIME)>`),
		regexp.MustCompile(`(?i)^(?:page\s+)?-?\s*\d{1,3}\s*-?$`),
		regexp.MustCompile(`(?i)^page\s+\d+\s+of\s+\d+$`),
		regexp.MustCompile(`(?i)^table\s+of\s+contents$`),
	}
	keyLineExpr  = regexp.MustCompile(`(?i)(in witness whereof|dated as of|entered into as of|effective as of|made and entered|/s/|^by:\s|^name:\s|^title:\s|^date:\s)`)
	embeddedHTML = regexp.MustCompile(`(?i)<html[\s>]`)
)

var blockTags = map[string]bool{
	"address": true, "article": true, "blockquote": true, "br": true, "center": true,
	"dd": true, "div": true, "dl": true, "dt": true, "footer": true, "h1": true,
	"h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// Options bounds the normalized output.
type Options struct {
	MaxChars     int
	HeadChars    int
	SalvageChars int
}

// DefaultOptions keeps 50k runes: a large head, a salvage window and the tail.
func DefaultOptions() Options {
	return Options{MaxChars: 50000, HeadChars: 36000, SalvageChars: 2000}
}

// Document is normalized contract text.
type Document struct {
	Text          string
	Truncated     bool
	OriginalChars int
}

// Normalizer is a pure text cleaner.
type Normalizer struct {
	opts Options
}

// NewNormalizer clamps options so head, salvage, marker and tail fit MaxChars.
func NewNormalizer(opts Options) *Normalizer {
	def := DefaultOptions()
	if opts.MaxChars <= 0 {
		opts.MaxChars = def.MaxChars
	}
	marker := utf8.RuneCountInString(TruncationMarker)
	room := opts.MaxChars - marker
	if room < 0 {
		room = 0
	}
	if opts.HeadChars <= 0 || opts.HeadChars > room {
		opts.HeadChars = room * 3 / 4
	}
	if opts.SalvageChars < 0 {
		opts.SalvageChars = 0
	}
	if opts.HeadChars+opts.SalvageChars > room {
		opts.SalvageChars = room - opts.HeadChars
	}
	return &Normalizer{opts: opts}
}

// Normalize strips markup and boilerplate, normalizes encoding and whitespace, and bounds the length.
func (n *Normalizer) Normalize(raw []byte, format domain.Format) (Document, error) {
	text := decode(raw)

	switch format {
	case domain.FormatHTML:
		extracted, err := htmlText(text)
		if err != nil {
			return Document{}, err
		}
		text = extracted
	case domain.FormatText:
		if embeddedHTML.MatchString(text) {
			extracted, err := htmlText(text)
			if err != nil {
				return Document{}, err
			}
			text = extracted
		}
	default:
		return Document{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
	}

	text = cleanLines(norm.NFKC.String(text))
	return n.bound(text), nil
}

func decode(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), " ")
	}
	return string(decoded)
}

func htmlText(source string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, head, template").Remove()

	var b strings.Builder
	for _, node := range doc.Nodes {
		writeText(&b, node)
	}
	return b.String(), nil
}

func writeText(b *strings.Builder, node *html.Node) {
	switch node.Type {
	case html.TextNode:
		b.WriteString(strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' || r == '\t' {
				return ' '
			}
			return r
		}, node.Data))
		return
	case html.CommentNode:
		return
	}

	block := node.Type == html.ElementNode && blockTags[node.Data]
	if block {
		b.WriteByte('\n')
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		writeText(b, child)
	}
	if block {
		b.WriteByte('\n')
	}
}

func cleanLines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" || isBoilerplate(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isBoilerplate(line string) bool {
	for _, expr := range boilerplateExprs {
		if expr.MatchString(line) {
			return true
		}
	}
	return false
}

// bound keeps the head and tail verbatim and salvages key lines from the dropped middle.
func (n *Normalizer) bound(text string) Document {
	runes := []rune(text)
	doc := Document{Text: text, OriginalChars: len(runes)}
	if len(runes) <= n.opts.MaxChars {
		return doc
	}

	marker := utf8.RuneCountInString(TruncationMarker)
	tailChars := n.opts.MaxChars - n.opts.HeadChars - marker - n.opts.SalvageChars
	if tailChars < 0 {
		tailChars = 0
	}

	head := runes[:n.opts.HeadChars]
	middle := runes[n.opts.HeadChars : len(runes)-tailChars]
	tail := runes[len(runes)-tailChars:]

	var salvaged strings.Builder
	room := n.opts.SalvageChars
	for _, line := range strings.Split(string(middle), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !keyLineExpr.MatchString(line) {
			continue
		}
		size := utf8.RuneCountInString(line) + 1
		if size > room {
			break
		}
		salvaged.WriteString(line)
		salvaged.WriteByte('\n')
		room -= size
	}

	doc.Text = string(head) + TruncationMarker + salvaged.String() + string(tail)
	doc.Truncated = true
	return doc
}
