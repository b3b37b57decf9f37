package extraction

import (
	"sort"

	"github.com/shopspring/decimal"

	"ContractGraph/internal/domain"
)

const (
	priceShareDistance = 300
	maxConditions      = 10
)

// DateMatcher is one independent date pattern.
type DateMatcher func(text string) []DateCandidate

// RuleExtraction is the deterministic pattern-based view of a document.
type RuleExtraction struct {
	Title               string
	ExecutionDate       *domain.Date
	TotalOfferingAmount *decimal.Decimal
	Parties             []domain.Party
	Securities          []domain.Security
	ClosingConditions   []string
}

// Empty reports whether no field carrying contract facts matched. The title alone does not count.
func (r RuleExtraction) Empty() bool {
	return r.ExecutionDate == nil &&
		r.TotalOfferingAmount == nil &&
		len(r.Parties) == 0 &&
		len(r.Securities) == 0 &&
		len(r.ClosingConditions) == 0
}

// RuleExtractor runs the matcher library and resolves scalar fields by earliest offset.
type RuleExtractor struct {
	dateMatchers []DateMatcher
}

// NewRuleExtractor uses the numeric, spelled-month and ordinal date matchers.
func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{
		dateMatchers: []DateMatcher{MatchNumericDates, MatchSpelledDates, MatchOrdinalDates},
	}
}

// Extract never fails; unmatched fields stay nil or empty.
func (e *RuleExtractor) Extract(text string) RuleExtraction {
	var out RuleExtraction

	if title, ok := MatchTitle(text); ok {
		out.Title = title.Text
	}
	out.ExecutionDate = e.earliestDate(text)
	out.TotalOfferingAmount = totalAmount(MatchAmounts(text))
	out.Securities = pairSecurities(MatchShareCounts(text), MatchSharePrices(text))
	out.Parties = uniqueParties(MatchParties(text))
	out.ClosingConditions = uniqueConditions(MatchClosingConditions(text))
	return out
}

func (e *RuleExtractor) earliestDate(text string) *domain.Date {
	var best *DateCandidate
	for _, match := range e.dateMatchers {
		for _, c := range match(text) {
			if best == nil || c.Offset < best.Offset {
				c := c
				best = &c
			}
		}
	}
	if best == nil {
		return nil
	}
	d := best.Value
	return &d
}

// totalAmount prefers the earliest amount in a total/aggregate context, then the earliest non per-share amount.
func totalAmount(candidates []AmountCandidate) *decimal.Decimal {
	var contextual, bare *AmountCandidate
	for i := range candidates {
		c := &candidates[i]
		if c.PerShare || !c.Value.IsPositive() {
			continue
		}
		if c.Contextual && (contextual == nil || c.Offset < contextual.Offset) {
			contextual = c
		}
		if bare == nil || c.Offset < bare.Offset {
			bare = c
		}
	}
	switch {
	case contextual != nil:
		v := contextual.Value
		return &v
	case bare != nil:
		v := bare.Value
		return &v
	}
	return nil
}

// pairSecurities attaches each price to the nearest preceding share count, else the nearest following one.
func pairSecurities(shares []ShareCandidate, prices []PriceCandidate) []domain.Security {
	if len(shares) == 0 {
		return nil
	}
	assigned := make([]*decimal.Decimal, len(shares))

	for _, p := range prices {
		idx := -1
		for i, s := range shares {
			if assigned[i] != nil || s.Offset > p.Offset || p.Offset-s.Offset > priceShareDistance {
				continue
			}
			if idx < 0 || s.Offset > shares[idx].Offset {
				idx = i
			}
		}
		if idx < 0 {
			for i, s := range shares {
				if assigned[i] != nil || s.Offset < p.Offset || s.Offset-p.Offset > priceShareDistance {
					continue
				}
				if idx < 0 || s.Offset < shares[idx].Offset {
					idx = i
				}
			}
		}
		if idx >= 0 {
			v := p.Value
			assigned[idx] = &v
		}
	}

	type key struct {
		t   domain.SecurityType
		qty int64
	}
	positions := map[key]int{}
	var out []domain.Security
	for i, s := range shares {
		k := key{s.SecurityType, s.Quantity}
		if pos, ok := positions[k]; ok {
			if out[pos].PricePerShare == nil {
				out[pos].PricePerShare = assigned[i]
			}
			continue
		}
		qty := s.Quantity
		positions[k] = len(out)
		out = append(out, domain.Security{
			SecurityType:  s.SecurityType,
			Quantity:      &qty,
			PricePerShare: assigned[i],
		})
	}
	return out
}

func uniqueParties(candidates []PartyCandidate) []domain.Party {
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Offset < candidates[j].Offset })
	seen := map[string]bool{}
	var out []domain.Party
	for _, c := range candidates {
		if seen[c.Party.Key()] {
			continue
		}
		seen[c.Party.Key()] = true
		out = append(out, c.Party)
	}
	return out
}

func uniqueConditions(candidates []ConditionCandidate) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range candidates {
		key := domain.NormalizeText(c.Text)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c.Text)
		if len(out) == maxConditions {
			break
		}
	}
	return out
}
