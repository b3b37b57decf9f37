package extraction

import (
	"strings"
	"testing"

	"ContractGraph/internal/domain"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	c := NewClassifier(nil)
	cases := []struct {
		text string
		want domain.ContractType
	}{
		{"SECURITIES PURCHASE AGREEMENT dated as of", domain.ContractSecuritiesPurchase},
		{"Exclusive License Agreement between", domain.ContractLicense},
		{"EXECUTIVE EMPLOYMENT AGREEMENT", domain.ContractEmployment},
		{"Confidential Settlement Agreement and Mutual Release", domain.ContractSettlement},
		{"REGISTRATION RIGHTS AGREEMENT", domain.ContractRights},
		{"Memorandum of understanding; the settlement date is Friday", domain.ContractOther},
	}
	for _, tc := range cases {
		if got := c.Classify(tc.text); got != tc.want {
			t.Fatalf("Classify(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestClassifyDeclarationOrderBreaksTies(t *testing.T) {
	t.Parallel()

	// both groups match; the first declared group wins
	text := "Stock Purchase Agreement and Registration Rights"
	if got := NewClassifier(nil).Classify(text); got != domain.ContractSecuritiesPurchase {
		t.Fatalf("expected SecuritiesPurchase, got %s", got)
	}

	custom := NewClassifier([]TypeRule{
		{Type: domain.ContractRights, Keywords: []string{"registration rights"}},
		{Type: domain.ContractSecuritiesPurchase, Keywords: []string{"purchase agreement"}},
	})
	if got := custom.Classify(text); got != domain.ContractRights {
		t.Fatalf("expected Rights with custom order, got %s", got)
	}
}

func TestClassifyScansWholeTextInDeclarationOrder(t *testing.T) {
	t.Parallel()

	// a later group in the heading does not outrank an earlier group deep in the body
	text := "EXCLUSIVE LICENSE AGREEMENT\n" + strings.Repeat("The parties agree as follows. ", 100) +
		"\nShares are issued pursuant to the Securities Purchase Agreement."
	if got := NewClassifier(nil).Classify(text); got != domain.ContractSecuritiesPurchase {
		t.Fatalf("expected SecuritiesPurchase, got %s", got)
	}

	if got := NewClassifier(nil).Classify("EXCLUSIVE LICENSE AGREEMENT\n" + strings.Repeat("x", 5000)); got != domain.ContractLicense {
		t.Fatalf("expected License, got %s", got)
	}
}
