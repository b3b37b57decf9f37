package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"ContractGraph/internal/domain"
	"ContractGraph/internal/ports"
)

func TestHeuristicPlanner(t *testing.T) {
	t.Parallel()

	cases := []struct {
		question string
		check    func(domain.ContractFilter) bool
	}{
		{
			"Which securities purchase agreements were signed in 2022?",
			func(f domain.ContractFilter) bool {
				return f.ContractType == domain.ContractSecuritiesPurchase &&
					f.ExecutedAfter.String() == "2022-01-01" && f.ExecutedBefore.String() == "2022-12-31"
			},
		},
		{
			"Show warrant deals over $2 million since 2020",
			func(f domain.ContractFilter) bool {
				return f.SecurityType == domain.SecurityWarrant && f.MinAmount != nil &&
					f.MinAmount.Equal(decimal.NewFromInt(2_000_000)) && f.ExecutedAfter.String() == "2020-01-01" && f.ExecutedBefore == nil
			},
		},
		{
			"What did Acme Robotics, Inc. agree to before 2021?",
			func(f domain.ContractFilter) bool {
				return f.Company == "Acme Robotics" && f.ExecutedBefore.String() == "2020-12-31"
			},
		},
		{
			"Which shares were purchased by Blue Harbor?",
			func(f domain.ContractFilter) bool { return f.Investor == "Blue Harbor" && f.Company == "" },
		},
		{
			"List the first 3 agreements with Globex where Globex invested",
			func(f domain.ContractFilter) bool { return f.Investor == "Globex" && f.Limit == 3 },
		},
		{
			"Show me licensing contracts from Initech",
			func(f domain.ContractFilter) bool {
				return f.ContractType == domain.ContractLicense && f.Company == "Initech"
			},
		},
	}

	planner := NewHeuristicPlanner()
	for _, tc := range cases {
		f, err := planner.Plan(context.Background(), tc.question)
		if err != nil {
			t.Fatalf("%q: Plan returned error: %v", tc.question, err)
		}
		if !tc.check(f) {
			t.Fatalf("%q: unexpected filter %+v", tc.question, f)
		}
	}
}

func TestParsePlan(t *testing.T) {
	t.Parallel()

	f, err := parsePlan("```json\n{\"company\":\"Acme\",\"contract_type\":\"securities purchase\",\"executed_after\":\"2021-01-01\",\"min_amount\":\"$1,000,000\",\"security_type\":\"warrants\"}\n```")
	if err != nil {
		t.Fatalf("parsePlan returned error: %v", err)
	}
	if f.Company != "Acme" || f.ContractType != domain.ContractSecuritiesPurchase || f.SecurityType != domain.SecurityWarrant {
		t.Fatalf("unexpected filter %+v", f)
	}
	if f.ExecutedAfter == nil || f.MinAmount == nil || !f.MinAmount.Equal(decimal.NewFromInt(1_000_000)) {
		t.Fatalf("unexpected bounds %+v", f)
	}

	if _, err := parsePlan("I cannot help with that"); err == nil {
		t.Fatalf("expected error for non-JSON reply")
	}
}

type fakeGraph struct {
	ports.Graph
	filters []domain.ContractFilter
	result  []domain.ContractSummary
}

func (g *fakeGraph) SearchContracts(ctx context.Context, f domain.ContractFilter) ([]domain.ContractSummary, error) {
	g.filters = append(g.filters, f)
	return g.result, nil
}

type fakeChat struct {
	reply string
	err   error
}

func (c fakeChat) Complete(ctx context.Context, system, user string) (string, error) {
	return c.reply, c.err
}

func TestServiceAsk(t *testing.T) {
	t.Parallel()

	amount := decimal.NewFromInt(2_500_000)
	g := &fakeGraph{result: []domain.ContractSummary{{
		ContractID:          "edgar:2022/ex10.htm",
		Title:               "Securities Purchase Agreement",
		ContractType:        domain.ContractSecuritiesPurchase,
		ExecutionDate:       "2022-01-05",
		TotalOfferingAmount: &amount,
		Summary:             "Acme sells stock.",
	}}}

	answer, err := NewService(g, fakeChat{reply: `{"company":"Acme"}`}, nil).Ask(context.Background(), "deals by Acme?")
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}
	if answer.Planner != "model" || g.filters[0].Company != "Acme" {
		t.Fatalf("expected model plan, got %s %+v", answer.Planner, g.filters[0])
	}
	if !strings.Contains(answer.Text, "Found 1 contract(s)") || !strings.Contains(answer.Text, "$2500000.00") {
		t.Fatalf("unexpected text:\n%s", answer.Text)
	}

	fallback, err := NewService(g, fakeChat{err: errors.New("timeout")}, nil).Ask(context.Background(), "warrants in 2022")
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}
	if fallback.Planner != "heuristic" || fallback.Filter.SecurityType != domain.SecurityWarrant {
		t.Fatalf("expected heuristic fallback, got %+v", fallback)
	}

	empty := &fakeGraph{}
	none, _ := NewService(empty, nil, nil).Ask(context.Background(), "settlements")
	if !strings.HasPrefix(none.Text, "No contracts matched type Settlement") {
		t.Fatalf("unexpected empty answer %q", none.Text)
	}

	if _, err := NewService(g, nil, nil).Ask(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty question")
	}
}

func TestFormatStats(t *testing.T) {
	t.Parallel()

	out := FormatStats(domain.GraphStats{
		Nodes: map[string]int{domain.LabelParty: 2, domain.LabelContract: 1},
		Edges: map[string]int{domain.EdgePartyTo: 2},
	})
	if !strings.HasPrefix(out, "Nodes: 3\n") || !strings.Contains(out, "Edges: 2") {
		t.Fatalf("unexpected stats output:\n%s", out)
	}
	if strings.Index(out, domain.LabelParty) > strings.Index(out, domain.LabelContract) {
		t.Fatalf("labels must be sorted:\n%s", out)
	}
}
