package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"ContractGraph/internal/domain"
	"ContractGraph/internal/ports"
)

// Answer is a planned and executed question.
type Answer struct {
	Question  string                   `json:"question"`
	Planner   string                   `json:"planner"`
	Filter    domain.ContractFilter    `json:"filter"`
	Contracts []domain.ContractSummary `json:"contracts"`
	Text      string                   `json:"text"`
}

// Service plans questions with the model when available, otherwise with heuristics.
type Service struct {
	graph      ports.Graph
	model      Planner
	heuristics Planner
	logger     *slog.Logger
}

// NewService wires the graph and an optional chat client.
func NewService(g ports.Graph, chat ports.ChatClient, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{graph: g, heuristics: NewHeuristicPlanner(), logger: logger}
	if chat != nil {
		s.model = NewLLMPlanner(chat)
	}
	return s
}

// Ask answers one question. A failing model plan falls back to heuristics.
func (s *Service) Ask(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("question is empty")
	}

	answer := Answer{Question: question, Planner: "heuristic"}
	var planned bool
	if s.model != nil {
		filter, err := s.model.Plan(ctx, question)
		if err != nil {
			s.logger.Warn("model planning failed, using heuristics", "error", err)
		} else {
			answer.Filter, answer.Planner, planned = filter, "model", true
		}
	}
	if !planned {
		filter, err := s.heuristics.Plan(ctx, question)
		if err != nil {
			return Answer{}, err
		}
		answer.Filter = filter
	}

	s.logger.Debug("question planned", "planner", answer.Planner, "filter", describeFilter(answer.Filter))

	contracts, err := s.graph.SearchContracts(ctx, answer.Filter)
	if err != nil {
		return Answer{}, fmt.Errorf("search contracts: %w", err)
	}
	answer.Contracts = contracts
	answer.Text = formatAnswer(answer.Filter, contracts)
	return answer, nil
}

func formatAnswer(filter domain.ContractFilter, contracts []domain.ContractSummary) string {
	var b strings.Builder
	criteria := describeFilter(filter)
	if len(contracts) == 0 {
		fmt.Fprintf(&b, "No contracts matched %s.\n", criteria)
		return b.String()
	}

	fmt.Fprintf(&b, "Found %d contract(s) matching %s:\n", len(contracts), criteria)
	for i, c := range contracts {
		fmt.Fprintf(&b, "%d. %s [%s]", i+1, c.Title, c.ContractType)
		if c.ExecutionDate != "" {
			fmt.Fprintf(&b, " executed %s", c.ExecutionDate)
		}
		if c.TotalOfferingAmount != nil {
			fmt.Fprintf(&b, ", total $%s", c.TotalOfferingAmount.StringFixed(2))
		}
		fmt.Fprintf(&b, "\n   %s\n", c.ContractID)
		if c.Summary != "" {
			fmt.Fprintf(&b, "   %s\n", c.Summary)
		}
	}
	return b.String()
}

func describeFilter(f domain.ContractFilter) string {
	var parts []string
	if f.ContractType != "" {
		parts = append(parts, "type "+string(f.ContractType))
	}
	if f.SecurityType != "" {
		parts = append(parts, "security "+string(f.SecurityType))
	}
	if f.Company != "" {
		parts = append(parts, fmt.Sprintf("company %q", f.Company))
	}
	if f.Investor != "" {
		parts = append(parts, fmt.Sprintf("investor %q", f.Investor))
	}
	if f.TitleContains != "" {
		parts = append(parts, fmt.Sprintf("title containing %q", f.TitleContains))
	}
	if f.ExecutedAfter != nil {
		parts = append(parts, "executed on or after "+f.ExecutedAfter.String())
	}
	if f.ExecutedBefore != nil {
		parts = append(parts, "executed on or before "+f.ExecutedBefore.String())
	}
	if f.MinAmount != nil {
		parts = append(parts, "total of at least $"+f.MinAmount.String())
	}
	if len(parts) == 0 {
		return "any criteria"
	}
	return strings.Join(parts, ", ")
}

// FormatStats renders per-label node and per-type edge counts.
func FormatStats(stats domain.GraphStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nodes: %d\n", stats.NodeTotal())
	for _, label := range sortedKeys(stats.Nodes) {
		fmt.Fprintf(&b, "  %-20s %d\n", label, stats.Nodes[label])
	}
	fmt.Fprintf(&b, "Edges: %d\n", stats.EdgeTotal())
	for _, edge := range sortedKeys(stats.Edges) {
		fmt.Fprintf(&b, "  %-20s %d\n", edge, stats.Edges[edge])
	}
	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
