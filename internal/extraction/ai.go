package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ContractGraph/internal/domain"
	"ContractGraph/internal/ports"
)

// DefaultAITimeout bounds a single extraction call.
const DefaultAITimeout = 60 * time.Second

var errEmptyPayload = errors.New("payload carries no recognised fields")

// AIFields is the typed result of a successful AI extraction.
type AIFields struct {
	Title               string
	ContractType        domain.ContractType
	ExecutionDate       *domain.Date
	Summary             string
	TotalOfferingAmount *decimal.Decimal
	Parties             []domain.Party
	Securities          []domain.Security
	ClosingConditions   []string
}

// AIOutcome is either Succeeded(fields) or Failed(reason).
type AIOutcome struct {
	Fields *AIFields
	Err    error
	Calls  int
}

// Succeeded wraps extracted fields.
func Succeeded(fields AIFields, calls int) AIOutcome {
	return AIOutcome{Fields: &fields, Calls: calls}
}

// Failed wraps reason in domain.ErrExtractionFailed.
func Failed(reason string, calls int) AIOutcome {
	return AIOutcome{Err: fmt.Errorf("%w: %s", domain.ErrExtractionFailed, reason), Calls: calls}
}

// OK reports whether the outcome carries fields.
func (o AIOutcome) OK() bool {
	return o.Fields != nil
}

// AIStats counts external calls for cost and rate tracking.
type AIStats struct {
	Calls            int
	Retries          int
	Failures         int
	PromptTokens     int
	CompletionTokens int
}

// AIExtractor calls the extraction capability with a type-specific prompt and one simplified retry.
type AIExtractor struct {
	capability ports.ExtractionCapability
	timeout    time.Duration
	logger     *slog.Logger

	mu    sync.Mutex
	stats AIStats
}

// NewAIExtractor accepts a nil capability; every extraction then fails without a call.
func NewAIExtractor(capability ports.ExtractionCapability, timeout time.Duration, logger *slog.Logger) *AIExtractor {
	if timeout <= 0 {
		timeout = DefaultAITimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AIExtractor{capability: capability, timeout: timeout, logger: logger}
}

// Extract never returns an error; failures are reported through the outcome.
func (e *AIExtractor) Extract(ctx context.Context, text string, contractType domain.ContractType) AIOutcome {
	if e == nil || e.capability == nil {
		return Failed("extraction capability not configured", 0)
	}

	fields, err := e.call(ctx, ports.ExtractionRequest{
		Text:         text,
		ContractType: contractType,
		SystemPrompt: systemPrompt,
		Prompt:       buildPrompt(contractType, text),
	})
	if err == nil {
		return Succeeded(fields, 1)
	}
	e.logger.Warn("ai extraction failed, retrying with simplified prompt", "contract_type", contractType, "error", err)

	e.mu.Lock()
	e.stats.Retries++
	e.mu.Unlock()

	fields, retryErr := e.call(ctx, ports.ExtractionRequest{
		Text:         text,
		ContractType: contractType,
		SystemPrompt: systemPrompt,
		Prompt:       buildSimplifiedPrompt(text),
		Simplified:   true,
	})
	if retryErr == nil {
		return Succeeded(fields, 2)
	}

	e.mu.Lock()
	e.stats.Failures++
	e.mu.Unlock()
	return Failed(fmt.Sprintf("first attempt: %v; retry: %v", err, retryErr), 2)
}

// Stats returns a snapshot of the call counters.
func (e *AIExtractor) Stats() AIStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *AIExtractor) call(ctx context.Context, req ports.ExtractionRequest) (AIFields, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.capability.Extract(callCtx, req)

	e.mu.Lock()
	e.stats.Calls++
	e.stats.PromptTokens += resp.PromptTokens
	e.stats.CompletionTokens += resp.CompletionTokens
	e.mu.Unlock()

	if err != nil {
		return AIFields{}, err
	}
	return ParseAIPayload(resp.Payload)
}

type aiParty struct {
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	EntityType *string `json:"entity_type"`
}

type aiSecurity struct {
	SecurityType  string      `json:"security_type"`
	Quantity      looseNumber `json:"quantity"`
	PricePerShare looseNumber `json:"price_per_share"`
}

type aiPayload struct {
	Title               *string      `json:"title"`
	ContractType        *string      `json:"contract_type"`
	ExecutionDate       *string      `json:"execution_date"`
	Summary             *string      `json:"summary"`
	TotalOfferingAmount looseNumber  `json:"total_offering_amount"`
	Parties             []aiParty    `json:"parties"`
	Securities          []aiSecurity `json:"securities"`
	ClosingConditions   []string     `json:"closing_conditions"`
}

// looseNumber accepts JSON numbers and numeric strings such as "$2,500,000"; anything else is null.
type looseNumber struct {
	value *decimal.Decimal
}

func (n *looseNumber) UnmarshalJSON(data []byte) error {
	n.value = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil || v.IsNegative() {
		return nil
	}
	n.value = &v
	return nil
}

// ParseAIPayload validates a capability payload into typed fields.
func ParseAIPayload(payload []byte) (AIFields, error) {
	payload = stripCodeFence(payload)
	if len(payload) == 0 {
		return AIFields{}, errEmptyPayload
	}

	var p aiPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return AIFields{}, fmt.Errorf("decode payload: %w", err)
	}

	var out AIFields
	if p.Title != nil {
		out.Title = strings.TrimSpace(*p.Title)
	}
	if p.Summary != nil {
		out.Summary = strings.TrimSpace(*p.Summary)
	}
	if p.ContractType != nil {
		if t, ok := domain.ParseContractType(*p.ContractType); ok {
			out.ContractType = t
		}
	}
	if p.ExecutionDate != nil {
		out.ExecutionDate = parseLooseDate(*p.ExecutionDate)
	}
	out.TotalOfferingAmount = p.TotalOfferingAmount.value

	for _, party := range p.Parties {
		name := strings.TrimSpace(party.Name)
		if name == "" {
			continue
		}
		out.Parties = append(out.Parties, domain.Party{
			Name:       name,
			Role:       domain.ParsePartyRole(party.Role),
			EntityType: party.EntityType,
		})
	}
	for _, sec := range p.Securities {
		s := domain.Security{SecurityType: domain.ParseSecurityType(sec.SecurityType)}
		if q := sec.Quantity.value; q != nil && q.Equal(q.Truncate(0)) {
			qty := q.IntPart()
			s.Quantity = &qty
		}
		s.PricePerShare = sec.PricePerShare.value
		out.Securities = append(out.Securities, s)
	}
	for _, cond := range p.ClosingConditions {
		if cond = strings.TrimSpace(cond); cond != "" {
			out.ClosingConditions = append(out.ClosingConditions, cond)
		}
	}

	if out.Title == "" && out.Summary == "" && out.ExecutionDate == nil && out.TotalOfferingAmount == nil &&
		len(out.Parties) == 0 && len(out.Securities) == 0 && len(out.ClosingConditions) == 0 {
		return AIFields{}, errEmptyPayload
	}
	return out, nil
}

func stripCodeFence(payload []byte) []byte {
	s := strings.TrimSpace(string(payload))
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return []byte(strings.TrimSpace(s))
}

var looseDateLayouts = []string{"2006-01-02", "January 2, 2006", "Jan 2, 2006", "01/02/2006", "1/2/2006"}

func parseLooseDate(value string) *domain.Date {
	value = strings.TrimSpace(value)
	for _, layout := range looseDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			d := domain.NewDate(t.Year(), t.Month(), t.Day())
			return &d
		}
	}
	return nil
}
