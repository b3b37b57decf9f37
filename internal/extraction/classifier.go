package extraction

import (
	"strings"

	"ContractGraph/internal/domain"
)

// TypeRule pairs a contract type with the keywords that identify it.
type TypeRule struct {
	Type     domain.ContractType
	Keywords []string
}

// DefaultTypeRules is consulted in declaration order; the first matching group wins.
var DefaultTypeRules = []TypeRule{
	{Type: domain.ContractSecuritiesPurchase, Keywords: []string{
		"securities purchase agreement", "stock purchase agreement", "subscription agreement",
		"investment agreement", "purchase agreement", "warrant purchase",
	}},
	{Type: domain.ContractLicense, Keywords: []string{
		"license agreement", "licence agreement", "exclusive license", "licensing agreement",
	}},
	{Type: domain.ContractEmployment, Keywords: []string{
		"employment agreement", "employment letter", "offer letter",
	}},
	{Type: domain.ContractSettlement, Keywords: []string{
		"settlement agreement", "mutual release", "settlement and release",
	}},
	{Type: domain.ContractRights, Keywords: []string{
		"registration rights", "investor rights", "rights agreement",
	}},
}

// Classifier assigns a contract type from keyword groups.
type Classifier struct {
	rules []TypeRule
}

// NewClassifier uses DefaultTypeRules when rules is empty.
func NewClassifier(rules []TypeRule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultTypeRules
	}
	return &Classifier{rules: rules}
}

// Classify returns the first declared group with a keyword anywhere in text, defaulting to Other.
func (c *Classifier) Classify(text string) domain.ContractType {
	if t, ok := c.match(strings.ToLower(text)); ok {
		return t
	}
	return domain.ContractOther
}

func (c *Classifier) match(text string) (domain.ContractType, bool) {
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				return rule.Type, true
			}
		}
	}
	return "", false
}
