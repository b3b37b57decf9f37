// Package query answers natural-language questions over persisted contracts.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ContractGraph/internal/domain"
	"ContractGraph/internal/extraction"
	"ContractGraph/internal/ports"
)

// Planner turns a question into a structured contract filter.
type Planner interface {
	Plan(ctx context.Context, question string) (domain.ContractFilter, error)
}

var typeKeywords = []struct {
	contractType domain.ContractType
	words        []string
}{
	{domain.ContractSecuritiesPurchase, []string{"securities purchase", "stock purchase", "share purchase", "purchase agreement", "subscription agreement"}},
	{domain.ContractLicense, []string{"license", "licence", "licensing"}},
	{domain.ContractEmployment, []string{"employment", "employee agreement"}},
	{domain.ContractSettlement, []string{"settlement"}},
	{domain.ContractRights, []string{"rights agreement", "registration rights", "rights plan"}},
}

var securityKeywords = []struct {
	securityType domain.SecurityType
	words        []string
}{
	{domain.SecurityWarrant, []string{"warrant"}},
	{domain.SecurityPreferredStock, []string{"preferred"}},
	{domain.SecurityOption, []string{"stock option", "options"}},
	{domain.SecurityCommonStock, []string{"common stock", "common shares"}},
}

var (
	yearInExpr     = regexp.MustCompile(`(?i)\b(?:in|during)\s+((?:19|20)\d{2})\b`)
	yearAfterExpr  = regexp.MustCompile(`(?i)\b(?:after|since|from)\s+((?:19|20)\d{2})\b`)
	yearBeforeExpr = regexp.MustCompile(`(?i)\b(?:before|prior\s+to|until)\s+((?:19|20)\d{2})\b`)
	thresholdExpr  = regexp.MustCompile(`(?i)(?:over|above|more\s+than|at\s+least|exceeding|greater\s+than|>=?)\s*$`)
	limitExpr      = regexp.MustCompile(`(?i)\b(?:top|first|latest|last)\s+(\d{1,3})\b`)
	entityNameExpr = regexp.MustCompile(`\b([A-Z][A-Za-z0-9&'-]*(?:\s+[A-Z][A-Za-z0-9&'-]*)*),?\s+(?:Inc|Corp|Corporation|LLC|Ltd|LP|L\.P|Holdings|Co)\b\.?`)
	prepNameExpr   = regexp.MustCompile(`\b(?:with|by|involving|between|for|from|of)\s+([A-Z][A-Za-z0-9&'-]*(?:\s+[A-Z][A-Za-z0-9&'-]*)*)`)
	investorExpr   = regexp.MustCompile(`(?i)\b(?:invest(?:or|ors|ed|ing)?|purchas(?:er|ers|ed)|bought|subscrib\w*)\b`)
)

// HeuristicPlanner maps keywords, years, amounts and capitalized names onto a filter.
type HeuristicPlanner struct{}

// NewHeuristicPlanner returns the keyword planner used when no chat model is configured.
func NewHeuristicPlanner() *HeuristicPlanner {
	return &HeuristicPlanner{}
}

// Plan never fails; an unrecognized question yields an empty filter (latest contracts).
func (h *HeuristicPlanner) Plan(_ context.Context, question string) (domain.ContractFilter, error) {
	var filter domain.ContractFilter
	lower := strings.ToLower(question)

	for _, entry := range typeKeywords {
		if containsAny(lower, entry.words) {
			filter.ContractType = entry.contractType
			break
		}
	}
	for _, entry := range securityKeywords {
		if containsAny(lower, entry.words) {
			filter.SecurityType = entry.securityType
			break
		}
	}

	if m := yearInExpr.FindStringSubmatch(question); m != nil {
		from, to := yearBounds(m[1])
		filter.ExecutedAfter, filter.ExecutedBefore = &from, &to
	}
	if m := yearAfterExpr.FindStringSubmatch(question); m != nil {
		from, _ := yearBounds(m[1])
		filter.ExecutedAfter = &from
	}
	if m := yearBeforeExpr.FindStringSubmatch(question); m != nil {
		from, _ := yearBounds(m[1])
		before := domain.Date{Time: from.AddDate(0, 0, -1)}
		filter.ExecutedBefore = &before
	}

	for _, amount := range extraction.MatchAmounts(question) {
		if thresholdExpr.MatchString(question[max(0, amount.Offset-24):amount.Offset]) {
			value := amount.Value
			filter.MinAmount = &value
			break
		}
	}

	if m := limitExpr.FindStringSubmatch(question); m != nil {
		fmt.Sscanf(m[1], "%d", &filter.Limit)
	}

	if name := partyName(question); name != "" {
		if investorExpr.MatchString(question) {
			filter.Investor = name
		} else {
			filter.Company = name
		}
	}
	return filter, nil
}

func partyName(question string) string {
	if m := entityNameExpr.FindStringSubmatch(question); m != nil {
		return strings.TrimSpace(m[1])
	}
	for _, m := range prepNameExpr.FindAllStringSubmatch(question, -1) {
		name := strings.TrimSpace(m[1])
		if !isTypeWord(name) {
			return name
		}
	}
	return ""
}

// isTypeWord rejects capitalized contract vocabulary ("Securities Purchase Agreement").
func isTypeWord(name string) bool {
	lower := strings.ToLower(name)
	for _, entry := range typeKeywords {
		if containsAny(lower, entry.words) {
			return true
		}
	}
	return strings.Contains(lower, "agreement") || strings.Contains(lower, "contract")
}

func yearBounds(year string) (domain.Date, domain.Date) {
	t, _ := time.Parse("2006", year)
	return domain.NewDate(t.Year(), time.January, 1), domain.NewDate(t.Year(), time.December, 31)
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

const plannerPrompt = `You translate questions about securities contracts into a JSON search filter.
Reply with one JSON object using only these optional keys:
company, investor, contract_type (SecuritiesPurchase|License|Employment|Settlement|Rights|Other),
security_type (CommonStock|Warrant|PreferredStock|Option|Other), title_contains,
executed_after (YYYY-MM-DD), executed_before (YYYY-MM-DD), min_amount (number), limit (integer).
Omit keys the question does not constrain.`

// LLMPlanner asks a chat model for the filter.
type LLMPlanner struct {
	chat ports.ChatClient
}

// NewLLMPlanner wraps a chat client.
func NewLLMPlanner(chat ports.ChatClient) *LLMPlanner {
	return &LLMPlanner{chat: chat}
}

type planPayload struct {
	Company        string          `json:"company"`
	Investor       string          `json:"investor"`
	ContractType   string          `json:"contract_type"`
	SecurityType   string          `json:"security_type"`
	TitleContains  string          `json:"title_contains"`
	ExecutedAfter  string          `json:"executed_after"`
	ExecutedBefore string          `json:"executed_before"`
	MinAmount      json.RawMessage `json:"min_amount"`
	Limit          int             `json:"limit"`
}

// Plan calls the model once; a malformed reply is an error so the caller can fall back.
func (l *LLMPlanner) Plan(ctx context.Context, question string) (domain.ContractFilter, error) {
	reply, err := l.chat.Complete(ctx, plannerPrompt, question)
	if err != nil {
		return domain.ContractFilter{}, fmt.Errorf("plan question: %w", err)
	}
	return parsePlan(reply)
}

func parsePlan(reply string) (domain.ContractFilter, error) {
	reply = strings.TrimSpace(reply)
	if start, end := strings.Index(reply, "{"), strings.LastIndex(reply, "}"); start >= 0 && end > start {
		reply = reply[start : end+1]
	}

	var p planPayload
	if err := json.Unmarshal([]byte(reply), &p); err != nil {
		return domain.ContractFilter{}, fmt.Errorf("decode plan: %w", err)
	}

	filter := domain.ContractFilter{
		Company:       strings.TrimSpace(p.Company),
		Investor:      strings.TrimSpace(p.Investor),
		TitleContains: strings.TrimSpace(p.TitleContains),
		Limit:         p.Limit,
	}
	if p.ContractType != "" {
		if t, ok := domain.ParseContractType(p.ContractType); ok {
			filter.ContractType = t
		}
	}
	if p.SecurityType != "" {
		filter.SecurityType = domain.ParseSecurityType(p.SecurityType)
	}
	if d, err := domain.ParseDate(p.ExecutedAfter); err == nil {
		filter.ExecutedAfter = &d
	}
	if d, err := domain.ParseDate(p.ExecutedBefore); err == nil {
		filter.ExecutedBefore = &d
	}
	if amount := strings.Trim(string(p.MinAmount), `" `); amount != "" && amount != "null" {
		if v, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimPrefix(amount, "$"), ",", "")); err == nil && v.IsPositive() {
			filter.MinAmount = &v
		}
	}
	return filter, nil
}
