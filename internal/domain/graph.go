package domain

import "github.com/shopspring/decimal"

// Graph labels and edge types. The schema is fixed.
const (
	LabelContract  = "SecuritiesContract"
	LabelParty     = "Party"
	LabelSecurity  = "Security"
	LabelCondition = "ClosingCondition"

	EdgePartyTo             = "PARTY_TO"
	EdgeIssuesSecurity      = "ISSUES_SECURITY"
	EdgeHasClosingCondition = "HAS_CLOSING_CONDITION"
)

// NodeRef addresses a node by label and business key.
type NodeRef struct {
	Label string
	Key   string
}

// Node is a property-graph node to merge by (Label, Key).
type Node struct {
	Ref        NodeRef
	Properties map[string]any
}

// Edge is a typed relationship merged by (Type, From, To).
type Edge struct {
	Type       string
	From       NodeRef
	To         NodeRef
	Properties map[string]any
}

// Row is one result row from a graph query.
type Row map[string]any

// ContractFilter is the structured form of a question over persisted contracts.
type ContractFilter struct {
	Company        string           `json:"company,omitempty"`
	Investor       string           `json:"investor,omitempty"`
	ContractType   ContractType     `json:"contract_type,omitempty"`
	SecurityType   SecurityType     `json:"security_type,omitempty"`
	TitleContains  string           `json:"title_contains,omitempty"`
	ExecutedAfter  *Date            `json:"executed_after,omitempty"`
	ExecutedBefore *Date            `json:"executed_before,omitempty"`
	MinAmount      *decimal.Decimal `json:"min_amount,omitempty"`
	Limit          int              `json:"limit,omitempty"`
}

// ContractSummary is a search hit.
type ContractSummary struct {
	ContractID          string           `json:"contract_id"`
	Title               string           `json:"title"`
	ContractType        ContractType     `json:"contract_type"`
	ExecutionDate       string           `json:"execution_date,omitempty"`
	TotalOfferingAmount *decimal.Decimal `json:"total_offering_amount,omitempty"`
	Summary             string           `json:"summary"`
}
