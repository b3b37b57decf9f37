package extraction

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ContractGraph/internal/domain"
)

// UntitledContract is used when no extractor found a title.
const UntitledContract = "Untitled Contract"

// MergeInput is everything the merger resolves.
type MergeInput struct {
	Rules        RuleExtraction
	AI           AIOutcome
	ContractType domain.ContractType
}

// Merger is the only place rule and AI output are reconciled.
type Merger struct {
	now func() time.Time
}

// NewMerger uses time.Now when now is nil. The clock bounds plausible dates.
func NewMerger(now func() time.Time) *Merger {
	if now == nil {
		now = time.Now
	}
	return &Merger{now: now}
}

// Merge builds the canonical record. Identity and source fields are left to the caller.
func (m *Merger) Merge(in MergeInput) domain.ContractRecord {
	ai := in.AI.Fields
	if ai == nil && in.Rules.Empty() {
		return Fallback(in.Rules.Title)
	}
	if ai == nil {
		ai = &AIFields{}
	}

	record := domain.ContractRecord{
		Title:             firstNonEmpty(ai.Title, in.Rules.Title, UntitledContract),
		ContractType:      in.ContractType,
		Parties:           mergeParties(ai.Parties, in.Rules.Parties),
		Securities:        mergeSecurities(in.Rules.Securities, ai.Securities),
		ClosingConditions: mergeConditions(ai.ClosingConditions, in.Rules.ClosingConditions),
	}
	if record.ContractType == "" || record.ContractType == domain.ContractOther {
		if ai.ContractType != "" {
			record.ContractType = ai.ContractType
		} else {
			record.ContractType = domain.ContractOther
		}
	}

	now := m.now()
	switch {
	case in.Rules.ExecutionDate != nil && in.Rules.ExecutionDate.Plausible(now):
		record.ExecutionDate = in.Rules.ExecutionDate
	case ai.ExecutionDate != nil && ai.ExecutionDate.Plausible(now):
		record.ExecutionDate = ai.ExecutionDate
	}

	switch {
	case positive(in.Rules.TotalOfferingAmount):
		record.TotalOfferingAmount = in.Rules.TotalOfferingAmount
	case positive(ai.TotalOfferingAmount):
		record.TotalOfferingAmount = ai.TotalOfferingAmount
	}

	record.Summary = ai.Summary
	if record.Summary == "" {
		record.Summary = synthesizeSummary(record)
	}

	switch {
	case in.AI.OK() && !in.Rules.Empty():
		record.ExtractionMethod = domain.MethodHybrid
	case in.AI.OK():
		record.ExtractionMethod = domain.MethodAIOnly
	default:
		record.ExtractionMethod = domain.MethodRuleOnly
	}
	return record
}

// Fallback is the minimal record emitted when every extractor failed.
func Fallback(title string) domain.ContractRecord {
	return domain.ContractRecord{
		Title:             firstNonEmpty(title, UntitledContract),
		ContractType:      domain.ContractOther,
		Summary:           domain.FallbackSummary,
		Parties:           []domain.Party{},
		Securities:        []domain.Security{},
		ClosingConditions: []string{},
		ExtractionMethod:  domain.MethodFallback,
	}
}

func mergeParties(lists ...[]domain.Party) []domain.Party {
	out := []domain.Party{}
	seen := map[string]int{}
	for _, list := range lists {
		for _, p := range list {
			key := p.Key()
			if idx, ok := seen[key]; ok {
				if out[idx].EntityType == nil {
					out[idx].EntityType = p.EntityType
				}
				continue
			}
			seen[key] = len(out)
			out = append(out, p)
		}
	}
	return out
}

func mergeSecurities(lists ...[]domain.Security) []domain.Security {
	out := []domain.Security{}
	seen := map[string]bool{}
	for _, list := range lists {
		for _, s := range list {
			if seen[s.Key()] {
				continue
			}
			seen[s.Key()] = true
			out = append(out, s)
		}
	}
	return out
}

func mergeConditions(lists ...[]string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, list := range lists {
		for _, c := range list {
			key := domain.NormalizeText(c)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, strings.TrimSpace(c))
		}
	}
	return out
}

func synthesizeSummary(r domain.ContractRecord) string {
	var b strings.Builder
	b.WriteString(r.Title)
	fmt.Fprintf(&b, " (%s)", r.ContractType)
	if r.ExecutionDate != nil {
		fmt.Fprintf(&b, " dated %s", r.ExecutionDate)
	}
	if len(r.Parties) > 0 {
		names := make([]string, 0, len(r.Parties))
		for _, p := range r.Parties {
			names = append(names, p.Name)
		}
		fmt.Fprintf(&b, " between %s", strings.Join(names, ", "))
	}
	b.WriteString(".")
	if r.TotalOfferingAmount != nil {
		fmt.Fprintf(&b, " Total offering amount $%s.", r.TotalOfferingAmount.StringFixed(2))
	}
	if n := len(r.Securities); n > 0 {
		fmt.Fprintf(&b, " %d securities position(s).", n)
	}
	if n := len(r.ClosingConditions); n > 0 {
		fmt.Fprintf(&b, " %d closing condition(s).", n)
	}
	return b.String()
}

func positive(v *decimal.Decimal) bool {
	return v != nil && v.IsPositive()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
