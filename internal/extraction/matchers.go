package extraction

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ContractGraph/internal/domain"
)

// DateCandidate is a parsed date with its source offset.
type DateCandidate struct {
	Value   domain.Date
	Offset  int
	Matcher string
}

// AmountCandidate is a currency amount with its source offset.
type AmountCandidate struct {
	Value      decimal.Decimal
	Offset     int
	PerShare   bool
	Contextual bool
}

// ShareCandidate is a share count attributed to a security type.
type ShareCandidate struct {
	SecurityType domain.SecurityType
	Quantity     int64
	Offset       int
	End          int
}

// PriceCandidate is a per-share price.
type PriceCandidate struct {
	Value  decimal.Decimal
	Offset int
}

// PartyCandidate is a party found through a defined-term parenthetical.
type PartyCandidate struct {
	Party  domain.Party
	Offset int
}

// ConditionCandidate is a closing condition phrase.
type ConditionCandidate struct {
	Text   string
	Offset int
}

// TitleCandidate is the document title line.
type TitleCandidate struct {
	Text   string
	Offset int
}

const (
	monthNames  = `January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sept|Sep|Oct|Nov|Dec`
	numberGroup = `(\d{1,3}(?:,\d{3})+|\d+)`
)

var (
	numericUSDateExpr  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	numericISODateExpr = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	monthDayYearExpr   = regexp.MustCompile(`(?i)\b(` + monthNames + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\s*,?\s+(\d{4})\b`)
	dayMonthYearExpr   = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(` + monthNames + `)\.?\s*,?\s+(\d{4})\b`)
	ordinalDateExpr    = regexp.MustCompile(`(?i)\b(\d{1,2}(?:st|nd|rd|th)?|` + ordinalWordsPattern() + `)\s+day\s+of\s+(` + monthNames + `)\.?\s*,?\s+(\d{4})\b`)

	amountExpr     = regexp.MustCompile(`(?i)(?:US)?\$\s*(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d+))?(?:\s+(thousand|million|billion)\b)?`)
	perShareAfter  = regexp.MustCompile(`(?i)^\s*(?:per\s+(?:share|warrant|unit)|/\s*share|a\s+share)`)
	perShareBefore = regexp.MustCompile(`(?i)(?:(?:exercise|conversion)\s+price|price\s+per\s+share|per\s+share\s+(?:purchase\s+)?price)\s*(?:of|equal\s+to|is|:)?\s*$`)
	totalContext   = regexp.MustCompile(`(?i)(aggregate|total|purchase\s+price|offering|consideration|gross\s+proceeds|subscription\s+amount)`)

	stockSharesExpr   = regexp.MustCompile(`(?i)\b` + numberGroup + `\s+shares?\s+of\s+(?:the\s+company['’]?s\s+)?((?:series\s+[a-z0-9-]+\s+)?(?:convertible\s+)?(?:common|preferred)\s+stock)`)
	warrantSharesExpr = regexp.MustCompile(`(?i)\bwarrants?\s+to\s+(?:purchase|acquire)\s+(?:up\s+to\s+)?(?:an\s+aggregate\s+of\s+)?` + numberGroup + `\s+shares`)
	warrantCountExpr  = regexp.MustCompile(`(?i)\b` + numberGroup + `\s+warrants\b`)
	optionSharesExpr  = regexp.MustCompile(`(?i)\boptions?\s+to\s+(?:purchase|acquire)\s+(?:up\s+to\s+)?` + numberGroup + `\s+shares`)
	bareSharesExpr    = regexp.MustCompile(`(?i)\b` + numberGroup + `\s+shares\b`)

	pricePerShareExpr = regexp.MustCompile(`(?i)\$\s*(\d+(?:,\d{3})*(?:\.\d+)?)\s*(?:per\s+share|/\s*share)`)
	priceOfExpr       = regexp.MustCompile(`(?i)(?:exercise|purchase|conversion)\s+price\s+(?:per\s+share\s+)?(?:of|equal\s+to|is)?\s*\$\s*(\d+(?:,\d{3})*(?:\.\d+)?)`)

	definedTermExpr   = regexp.MustCompile(`\((?:the\s+|each\s+a\s+|each,\s+a\s+|collectively,?\s+the\s+)?["“']([A-Za-z][A-Za-z ]{1,30})["”']\)`)
	descriptorExpr    = regexp.MustCompile(`(?i),?\s+an?\s+([^,()]{2,80})$`)
	partyBoundaryExpr = regexp.MustCompile(`(?i)(?:by\s+and\s+(?:between|among)|between|among|\band\b|;|\n|\))\s*`)

	conditionHeadingExpr = regexp.MustCompile(`(?i)(conditions?\s+precedent|closing\s+conditions?|conditions\s+to\s+(?:the\s+)?(?:closing|obligations))`)
	conditionSplitExpr   = regexp.MustCompile(`(?i)\(\s*(?:[a-h]|i{1,3}|iv|v|vi{0,3})\s*\)|;`)
	enumeratedLineExpr   = regexp.MustCompile(`(?i)^\s*\(\s*(?:[a-h]|i{1,3}|iv|v|vi{0,3})\s*\)`)
)

var monthIndex = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

var ordinalWords = []string{
	"first", "second", "third", "fourth", "fifth", "sixth", "seventh", "eighth", "ninth", "tenth",
	"eleventh", "twelfth", "thirteenth", "fourteenth", "fifteenth", "sixteenth", "seventeenth",
	"eighteenth", "nineteenth", "twentieth", "twenty-first", "twenty-second", "twenty-third",
	"twenty-fourth", "twenty-fifth", "twenty-sixth", "twenty-seventh", "twenty-eighth",
	"twenty-ninth", "thirtieth", "thirty-first",
}

func ordinalWordsPattern() string {
	// longest first so "twenty-first" wins over "twentieth"-style prefixes
	words := append([]string(nil), ordinalWords...)
	sort.Slice(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	return strings.Join(words, "|")
}

var knownConditions = []struct {
	keyword     string
	description string
}{
	{"due diligence", "completion of due diligence"},
	{"board approval", "board of directors approval"},
	{"approval of the board", "board of directors approval"},
	{"stockholder approval", "stockholder approval"},
	{"shareholder approval", "stockholder approval"},
	{"regulatory approval", "regulatory approval"},
	{"legal opinion", "delivery of legal opinion"},
	{"opinion of counsel", "delivery of legal opinion"},
	{"material adverse effect", "absence of material adverse effect"},
}

var partyTerms = map[string]bool{
	"company": true, "issuer": true, "seller": true, "purchaser": true, "purchasers": true,
	"buyer": true, "buyers": true, "subscriber": true, "investor": true, "investors": true,
	"holder": true, "holders": true, "licensor": true, "licensee": true, "employer": true,
	"employee": true, "executive": true, "consultant": true, "placement agent": true,
	"agent": true, "lender": true, "borrower": true, "parent": true, "bank": true,
}

// MatchNumericDates finds M/D/YYYY and YYYY-MM-DD dates.
func MatchNumericDates(text string) []DateCandidate {
	var out []DateCandidate
	for _, m := range numericUSDateExpr.FindAllStringSubmatchIndex(text, -1) {
		month, _ := strconv.Atoi(text[m[2]:m[3]])
		day, _ := strconv.Atoi(text[m[4]:m[5]])
		year, _ := strconv.Atoi(text[m[6]:m[7]])
		if d, ok := makeDate(year, time.Month(month), day); ok {
			out = append(out, DateCandidate{Value: d, Offset: m[0], Matcher: "numeric"})
		}
	}
	for _, m := range numericISODateExpr.FindAllStringSubmatchIndex(text, -1) {
		year, _ := strconv.Atoi(text[m[2]:m[3]])
		month, _ := strconv.Atoi(text[m[4]:m[5]])
		day, _ := strconv.Atoi(text[m[6]:m[7]])
		if d, ok := makeDate(year, time.Month(month), day); ok {
			out = append(out, DateCandidate{Value: d, Offset: m[0], Matcher: "numeric"})
		}
	}
	return sortDates(out)
}

// MatchSpelledDates finds "January 5, 2022" and "5 January 2022".
func MatchSpelledDates(text string) []DateCandidate {
	var out []DateCandidate
	for _, m := range monthDayYearExpr.FindAllStringSubmatchIndex(text, -1) {
		day, _ := strconv.Atoi(text[m[4]:m[5]])
		year, _ := strconv.Atoi(text[m[6]:m[7]])
		if d, ok := makeDate(year, monthFromName(text[m[2]:m[3]]), day); ok {
			out = append(out, DateCandidate{Value: d, Offset: m[0], Matcher: "spelled"})
		}
	}
	for _, m := range dayMonthYearExpr.FindAllStringSubmatchIndex(text, -1) {
		day, _ := strconv.Atoi(text[m[2]:m[3]])
		year, _ := strconv.Atoi(text[m[6]:m[7]])
		if d, ok := makeDate(year, monthFromName(text[m[4]:m[5]]), day); ok {
			out = append(out, DateCandidate{Value: d, Offset: m[0], Matcher: "spelled"})
		}
	}
	return sortDates(out)
}

// MatchOrdinalDates finds "this 5th day of January, 2022" and "the fifth day of January 2022".
func MatchOrdinalDates(text string) []DateCandidate {
	var out []DateCandidate
	for _, m := range ordinalDateExpr.FindAllStringSubmatchIndex(text, -1) {
		day := ordinalDay(text[m[2]:m[3]])
		year, _ := strconv.Atoi(text[m[6]:m[7]])
		if d, ok := makeDate(year, monthFromName(text[m[4]:m[5]]), day); ok {
			out = append(out, DateCandidate{Value: d, Offset: m[0], Matcher: "ordinal"})
		}
	}
	return sortDates(out)
}

// MatchAmounts finds dollar amounts, scaling thousand/million/billion suffixes.
func MatchAmounts(text string) []AmountCandidate {
	var out []AmountCandidate
	for _, m := range amountExpr.FindAllStringSubmatchIndex(text, -1) {
		digits := strings.ReplaceAll(text[m[2]:m[3]], ",", "")
		if m[4] >= 0 {
			digits += "." + text[m[4]:m[5]]
		}
		value, err := decimal.NewFromString(digits)
		if err != nil {
			continue
		}
		if m[6] >= 0 {
			switch strings.ToLower(text[m[6]:m[7]]) {
			case "thousand":
				value = value.Mul(decimal.NewFromInt(1_000))
			case "million":
				value = value.Mul(decimal.NewFromInt(1_000_000))
			case "billion":
				value = value.Mul(decimal.NewFromInt(1_000_000_000))
			}
		}

		before := text[max(0, m[0]-80):m[0]]
		after := text[m[1]:min(len(text), m[1]+24)]
		out = append(out, AmountCandidate{
			Value:      value,
			Offset:     m[0],
			PerShare:   perShareAfter.MatchString(after) || perShareBefore.MatchString(before),
			Contextual: totalContext.MatchString(before),
		})
	}
	return out
}

// MatchShareCounts finds share, warrant and option quantities.
func MatchShareCounts(text string) []ShareCandidate {
	var out []ShareCandidate
	add := func(t domain.SecurityType, qtyText string, start, end int) {
		qty, err := strconv.ParseInt(strings.ReplaceAll(qtyText, ",", ""), 10, 64)
		if err != nil || qty <= 0 {
			return
		}
		out = append(out, ShareCandidate{SecurityType: t, Quantity: qty, Offset: start, End: end})
	}

	for _, m := range stockSharesExpr.FindAllStringSubmatchIndex(text, -1) {
		add(domain.ParseSecurityType(text[m[4]:m[5]]), text[m[2]:m[3]], m[0], m[1])
	}
	for _, m := range warrantSharesExpr.FindAllStringSubmatchIndex(text, -1) {
		add(domain.SecurityWarrant, text[m[2]:m[3]], m[0], m[1])
	}
	for _, m := range warrantCountExpr.FindAllStringSubmatchIndex(text, -1) {
		add(domain.SecurityWarrant, text[m[2]:m[3]], m[0], m[1])
	}
	for _, m := range optionSharesExpr.FindAllStringSubmatchIndex(text, -1) {
		add(domain.SecurityOption, text[m[2]:m[3]], m[0], m[1])
	}

	specific := append([]ShareCandidate(nil), out...)
	for _, m := range bareSharesExpr.FindAllStringSubmatchIndex(text, -1) {
		if covered(specific, m[0]) {
			continue
		}
		add(domain.SecurityCommonStock, text[m[2]:m[3]], m[0], m[1])
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// MatchSharePrices finds "$X.XX per share" and "exercise price of $X" prices.
func MatchSharePrices(text string) []PriceCandidate {
	seen := map[int]bool{}
	var out []PriceCandidate
	collect := func(expr *regexp.Regexp) {
		for _, m := range expr.FindAllStringSubmatchIndex(text, -1) {
			value, err := decimal.NewFromString(strings.ReplaceAll(text[m[2]:m[3]], ",", ""))
			if err != nil || value.IsNegative() {
				continue
			}
			// key on the number offset so both expressions agree on one price
			if seen[m[2]] {
				continue
			}
			seen[m[2]] = true
			out = append(out, PriceCandidate{Value: value, Offset: m[2]})
		}
	}
	collect(pricePerShareExpr)
	collect(priceOfExpr)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// MatchParties finds parties introduced with a defined-term parenthetical, e.g. Acme Corp. (the "Company").
func MatchParties(text string) []PartyCandidate {
	var out []PartyCandidate
	for _, m := range definedTermExpr.FindAllStringSubmatchIndex(text, -1) {
		term := strings.ToLower(strings.TrimSpace(text[m[2]:m[3]]))
		if !partyTerms[term] {
			continue
		}

		prefix := text[max(0, m[0]-200):m[0]]
		if locs := partyBoundaryExpr.FindAllStringIndex(prefix, -1); len(locs) > 0 {
			prefix = prefix[locs[len(locs)-1][1]:]
		}

		name, entityType := splitDescriptor(prefix)
		if name == "" || len(name) > 100 || !startsUpper(name) {
			continue
		}
		out = append(out, PartyCandidate{
			Party: domain.Party{
				Name:       name,
				Role:       domain.ParsePartyRole(strings.TrimSuffix(term, "s")),
				EntityType: entityType,
			},
			Offset: m[0],
		})
	}
	return out
}

// MatchClosingConditions finds enumerated conditions precedent and well-known condition phrases.
func MatchClosingConditions(text string) []ConditionCandidate {
	var out []ConditionCandidate
	for _, m := range conditionHeadingExpr.FindAllStringIndex(text, -1) {
		window := conditionWindow(text[m[1]:min(len(text), m[1]+1500)])
		seps := conditionSplitExpr.FindAllStringIndex(window, -1)
		// the lead-in before the first separator is the heading sentence, not a condition
		for i, sep := range seps {
			end := len(window)
			if i+1 < len(seps) {
				end = seps[i+1][0]
			}
			item := strings.TrimSpace(strings.Trim(window[sep[1]:end], " :;,."))
			if dot := strings.Index(item, ". "); dot > 0 {
				item = item[:dot]
			}
			if len(item) <= 10 || len(item) >= 200 {
				continue
			}
			out = append(out, ConditionCandidate{Text: item, Offset: m[1] + sep[1]})
		}
	}

	lower := strings.ToLower(text)
	for _, kc := range knownConditions {
		if idx := strings.Index(lower, kc.keyword); idx >= 0 {
			out = append(out, ConditionCandidate{Text: kc.description, Offset: idx})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// conditionWindow keeps the heading line and the enumerated lines that directly follow it.
func conditionWindow(s string) string {
	lines := strings.Split(s, "\n")
	end := len(lines[0])
	for _, line := range lines[1:] {
		if !enumeratedLineExpr.MatchString(line) {
			break
		}
		end += 1 + len(line)
	}
	return s[:end]
}

// MatchTitle picks the first short line naming an agreement, else the first short line.
func MatchTitle(text string) (TitleCandidate, bool) {
	var fallback *TitleCandidate
	offset := 0
	for i, line := range strings.Split(text, "\n") {
		if i >= 25 {
			break
		}
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && len(trimmed) <= 150 {
			if strings.Contains(strings.ToLower(trimmed), "agreement") {
				return TitleCandidate{Text: trimmed, Offset: offset}, true
			}
			if fallback == nil {
				fallback = &TitleCandidate{Text: trimmed, Offset: offset}
			}
		}
		offset += len(line) + 1
	}
	if fallback != nil {
		return *fallback, true
	}
	return TitleCandidate{}, false
}

func makeDate(year int, month time.Month, day int) (domain.Date, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return domain.Date{}, false
	}
	d := domain.NewDate(year, month, day)
	if d.Day() != day || d.Month() != month {
		return domain.Date{}, false
	}
	return d, true
}

func monthFromName(name string) time.Month {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	if len(name) < 3 {
		return 0
	}
	return monthIndex[name[:3]]
}

func ordinalDay(token string) int {
	token = strings.ToLower(token)
	for i, w := range ordinalWords {
		if token == w {
			return i + 1
		}
	}
	token = strings.TrimRight(token, "stndrh")
	day, _ := strconv.Atoi(token)
	return day
}

func sortDates(dates []DateCandidate) []DateCandidate {
	sort.SliceStable(dates, func(i, j int) bool { return dates[i].Offset < dates[j].Offset })
	return dates
}

func covered(spans []ShareCandidate, offset int) bool {
	for _, s := range spans {
		if offset >= s.Offset && offset < s.End {
			return true
		}
	}
	return false
}

func splitDescriptor(segment string) (string, *string) {
	segment = strings.TrimSpace(segment)
	var entityType *string
	if m := descriptorExpr.FindStringSubmatchIndex(segment); m != nil {
		entityType = entityTypeFrom(segment[m[2]:m[3]])
		segment = segment[:m[0]]
	}
	name := strings.Trim(strings.TrimSpace(segment), ",;:\"“”' ")
	return name, entityType
}

func entityTypeFrom(descriptor string) *string {
	lower := strings.ToLower(descriptor)
	var kind string
	switch {
	case strings.Contains(lower, "limited liability company"), strings.Contains(lower, "llc"):
		kind = "LLC"
	case strings.Contains(lower, "limited partnership"):
		kind = "Limited Partnership"
	case strings.Contains(lower, "corporation"):
		kind = "Corporation"
	case strings.Contains(lower, "trust"):
		kind = "Trust"
	case strings.Contains(lower, "individual"):
		kind = "Individual"
	default:
		return nil
	}
	return &kind
}

func startsUpper(s string) bool {
	for _, r := range s {
		return r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
	}
	return false
}
