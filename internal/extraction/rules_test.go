package extraction

import (
	"testing"

	"github.com/shopspring/decimal"

	"ContractGraph/internal/domain"
)

const purchaseAgreementText = `SECURITIES PURCHASE AGREEMENT
This Securities Purchase Agreement is dated January 5, 2022, by and between Acme Robotics, Inc., a Delaware corporation (the "Company"), and Blue Harbor Capital LLC (the "Purchaser").
The Purchaser shall pay an aggregate purchase price of $2,500,000 for 500,000 shares at $5.00 per share.
The closing is subject to the completion of due diligence.
Amended on March 1, 2023.`

func TestRuleExtractorPurchaseAgreement(t *testing.T) {
	t.Parallel()

	got := NewRuleExtractor().Extract(purchaseAgreementText)

	if got.Title != "SECURITIES PURCHASE AGREEMENT" {
		t.Fatalf("unexpected title: %q", got.Title)
	}
	if got.ExecutionDate == nil || got.ExecutionDate.String() != "2022-01-05" {
		t.Fatalf("expected earliest date 2022-01-05, got %v", got.ExecutionDate)
	}
	if got.TotalOfferingAmount == nil || !got.TotalOfferingAmount.Equal(decimal.NewFromInt(2_500_000)) {
		t.Fatalf("unexpected total: %v", got.TotalOfferingAmount)
	}

	if len(got.Securities) != 1 {
		t.Fatalf("expected one security, got %+v", got.Securities)
	}
	sec := got.Securities[0]
	if sec.SecurityType != domain.SecurityCommonStock || sec.Quantity == nil || *sec.Quantity != 500_000 {
		t.Fatalf("unexpected security: %+v", sec)
	}
	if sec.PricePerShare == nil || !sec.PricePerShare.Equal(decimal.RequireFromString("5.00")) {
		t.Fatalf("unexpected price: %v", sec.PricePerShare)
	}

	if len(got.Parties) != 2 {
		t.Fatalf("expected two parties, got %+v", got.Parties)
	}
	if len(got.ClosingConditions) != 1 || got.ClosingConditions[0] != "completion of due diligence" {
		t.Fatalf("unexpected conditions: %v", got.ClosingConditions)
	}
	if got.Empty() {
		t.Fatalf("extraction must not be empty")
	}
}

func TestRuleExtractorEarliestDateAcrossMatchers(t *testing.T) {
	t.Parallel()

	text := "made this 3rd day of February, 2020 and effective 03/15/2020, amended April 1, 2021"
	got := NewRuleExtractor().Extract(text)
	if got.ExecutionDate == nil || got.ExecutionDate.String() != "2020-02-03" {
		t.Fatalf("expected ordinal date to win by offset, got %v", got.ExecutionDate)
	}
}

func TestRuleExtractorNeverFails(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "\x00\x01 garbage $ shares per", "$$$ 1/1/ day of ,"} {
		got := NewRuleExtractor().Extract(text)
		if !got.Empty() {
			t.Fatalf("expected empty extraction for %q, got %+v", text, got)
		}
	}
}

func TestPairSecuritiesPrefersPrecedingShares(t *testing.T) {
	t.Parallel()

	text := "warrants to purchase 100,000 shares at an exercise price of $6.00, and 40,000 shares of Common Stock at $4.00 per share"
	got := NewRuleExtractor().Extract(text)
	if len(got.Securities) != 2 {
		t.Fatalf("expected two securities, got %+v", got.Securities)
	}

	warrant, common := got.Securities[0], got.Securities[1]
	if warrant.SecurityType != domain.SecurityWarrant || !warrant.PricePerShare.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("unexpected warrant: %+v", warrant)
	}
	if common.SecurityType != domain.SecurityCommonStock || !common.PricePerShare.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("unexpected common stock: %+v", common)
	}
}
