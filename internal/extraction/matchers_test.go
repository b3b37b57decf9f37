package extraction

import (
	"testing"

	"github.com/shopspring/decimal"

	"ContractGraph/internal/domain"
)

func TestMatchDates(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		match   DateMatcher
		text    string
		want    string
		wantNil bool
	}{
		{name: "us numeric", match: MatchNumericDates, text: "signed 01/05/2022 by", want: "2022-01-05"},
		{name: "iso numeric", match: MatchNumericDates, text: "as of 2021-11-30.", want: "2021-11-30"},
		{name: "invalid numeric", match: MatchNumericDates, text: "on 02/30/2021", wantNil: true},
		{name: "spelled month first", match: MatchSpelledDates, text: "dated as of January 5, 2022", want: "2022-01-05"},
		{name: "spelled abbreviated", match: MatchSpelledDates, text: "dated Sept. 3, 2019", want: "2019-09-03"},
		{name: "spelled day first", match: MatchSpelledDates, text: "made on 14 March 2020", want: "2020-03-14"},
		{name: "market is not march", match: MatchSpelledDates, text: "Market 10 2020", wantNil: true},
		{name: "ordinal digits", match: MatchOrdinalDates, text: "this 5th day of January, 2022", want: "2022-01-05"},
		{name: "ordinal words", match: MatchOrdinalDates, text: "the twenty-first day of June 2018", want: "2018-06-21"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := tc.match(tc.text)
			if tc.wantNil {
				if len(got) != 0 {
					t.Fatalf("expected no match, got %v", got)
				}
				return
			}
			if len(got) == 0 {
				t.Fatalf("expected a match in %q", tc.text)
			}
			if got[0].Value.String() != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got[0].Value)
			}
		})
	}
}

func TestMatchAmounts(t *testing.T) {
	t.Parallel()

	text := "an aggregate purchase price of $2.5 million, at $5.00 per share, plus fees of $10,000"
	got := MatchAmounts(text)
	if len(got) != 3 {
		t.Fatalf("expected 3 amounts, got %d: %+v", len(got), got)
	}

	if !got[0].Value.Equal(decimal.NewFromInt(2_500_000)) || !got[0].Contextual || got[0].PerShare {
		t.Fatalf("unexpected first amount: %+v", got[0])
	}
	if !got[1].PerShare {
		t.Fatalf("expected per-share amount: %+v", got[1])
	}
	if !got[2].Value.Equal(decimal.NewFromInt(10_000)) {
		t.Fatalf("unexpected third amount: %s", got[2].Value)
	}
}

func TestMatchShareCounts(t *testing.T) {
	t.Parallel()

	text := "the Company shall issue 1,000,000 shares of Series A Preferred Stock and warrants to purchase up to 250,000 shares, and 20,000 shares."
	got := MatchShareCounts(text)
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d: %+v", len(got), got)
	}

	want := []struct {
		t   domain.SecurityType
		qty int64
	}{
		{domain.SecurityPreferredStock, 1_000_000},
		{domain.SecurityWarrant, 250_000},
		{domain.SecurityCommonStock, 20_000},
	}
	for i, w := range want {
		if got[i].SecurityType != w.t || got[i].Quantity != w.qty {
			t.Fatalf("candidate %d: expected %s/%d, got %s/%d", i, w.t, w.qty, got[i].SecurityType, got[i].Quantity)
		}
	}
}

func TestMatchSharePrices(t *testing.T) {
	t.Parallel()

	text := "at $5.00 per share and an exercise price of $6.25"
	got := MatchSharePrices(text)
	if len(got) != 2 {
		t.Fatalf("expected 2 prices, got %+v", got)
	}
	if !got[0].Value.Equal(decimal.RequireFromString("5")) || !got[1].Value.Equal(decimal.RequireFromString("6.25")) {
		t.Fatalf("unexpected prices: %s, %s", got[0].Value, got[1].Value)
	}
}

func TestMatchParties(t *testing.T) {
	t.Parallel()

	text := `This Agreement is made by and between Acme Robotics, Inc., a Delaware corporation (the "Company"), and Blue Harbor Capital LLC, a New York limited liability company (the "Purchaser"). The closing (the "Closing") occurs later.`
	got := MatchParties(text)
	if len(got) != 2 {
		t.Fatalf("expected 2 parties, got %+v", got)
	}

	company := got[0].Party
	if company.Name != "Acme Robotics, Inc." || company.Role != domain.RoleCompany {
		t.Fatalf("unexpected company: %+v", company)
	}
	if company.EntityType == nil || *company.EntityType != "Corporation" {
		t.Fatalf("unexpected company entity type: %v", company.EntityType)
	}

	purchaser := got[1].Party
	if purchaser.Name != "Blue Harbor Capital LLC" || purchaser.Role != domain.RolePurchaser {
		t.Fatalf("unexpected purchaser: %+v", purchaser)
	}
	if purchaser.EntityType == nil || *purchaser.EntityType != "LLC" {
		t.Fatalf("unexpected purchaser entity type: %v", purchaser.EntityType)
	}
}

func TestMatchClosingConditions(t *testing.T) {
	t.Parallel()

	text := "The conditions precedent to Closing include: (a) receipt of the executed Registration Rights Agreement; (b) approval by the board of directors of the Company\n\nThe Purchaser has completed its due diligence."
	got := MatchClosingConditions(text)

	texts := map[string]bool{}
	for _, c := range got {
		texts[c.Text] = true
	}
	for _, want := range []string{
		"receipt of the executed Registration Rights Agreement",
		"approval by the board of directors of the Company",
		"completion of due diligence",
	} {
		if !texts[want] {
			t.Fatalf("missing condition %q in %+v", want, got)
		}
	}
}

func TestMatchTitle(t *testing.T) {
	t.Parallel()

	got, ok := MatchTitle("EXHIBIT 10.1\nSECURITIES PURCHASE AGREEMENT\nThis Agreement...")
	if !ok || got.Text != "SECURITIES PURCHASE AGREEMENT" {
		t.Fatalf("unexpected title: %+v", got)
	}

	got, ok = MatchTitle("\nMemorandum of Terms\nbody")
	if !ok || got.Text != "Memorandum of Terms" {
		t.Fatalf("unexpected fallback title: %+v", got)
	}

	if _, ok := MatchTitle(""); ok {
		t.Fatalf("empty text must not yield a title")
	}
}
