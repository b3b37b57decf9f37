package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ContractType is the closed set of contract kinds the pipeline recognises.
type ContractType string

const (
	ContractSecuritiesPurchase ContractType = "SecuritiesPurchase"
	ContractLicense            ContractType = "License"
	ContractEmployment         ContractType = "Employment"
	ContractSettlement         ContractType = "Settlement"
	ContractRights             ContractType = "Rights"
	ContractOther              ContractType = "Other"
)

// ContractTypes lists every contract type in declaration order.
var ContractTypes = []ContractType{
	ContractSecuritiesPurchase,
	ContractLicense,
	ContractEmployment,
	ContractSettlement,
	ContractRights,
	ContractOther,
}

// ParseContractType maps loose spellings ("securities purchase", "license_agreement") onto the enum.
func ParseContractType(value string) (ContractType, bool) {
	key := compactKey(value)
	for _, t := range ContractTypes {
		if compactKey(string(t)) == key {
			return t, true
		}
	}
	switch {
	case strings.Contains(key, "purchase"), strings.Contains(key, "subscription"):
		return ContractSecuritiesPurchase, true
	case strings.Contains(key, "licens"):
		return ContractLicense, true
	case strings.Contains(key, "employ"):
		return ContractEmployment, true
	case strings.Contains(key, "settlement"):
		return ContractSettlement, true
	case strings.Contains(key, "rights"):
		return ContractRights, true
	}
	return ContractOther, false
}

// PartyRole qualifies a party's participation in one contract.
type PartyRole string

const (
	RoleCompany   PartyRole = "Company"
	RolePurchaser PartyRole = "Purchaser"
	RoleInvestor  PartyRole = "Investor"
	RoleOther     PartyRole = "Other"
)

// ParsePartyRole maps extractor vocabulary (issuer, buyer, licensee...) onto the role enum.
func ParsePartyRole(value string) PartyRole {
	switch compactKey(value) {
	case "company", "issuer", "seller", "licensor", "employer":
		return RoleCompany
	case "purchaser", "buyer", "subscriber", "licensee":
		return RolePurchaser
	case "investor", "holder", "holders", "investors":
		return RoleInvestor
	default:
		return RoleOther
	}
}

// SecurityType enumerates instrument kinds.
type SecurityType string

const (
	SecurityCommonStock    SecurityType = "CommonStock"
	SecurityWarrant        SecurityType = "Warrant"
	SecurityPreferredStock SecurityType = "PreferredStock"
	SecurityOption         SecurityType = "Option"
	SecurityOther          SecurityType = "Other"
)

// ParseSecurityType maps free text ("common_stock", "Series A Preferred") onto the enum.
func ParseSecurityType(value string) SecurityType {
	key := compactKey(value)
	switch {
	case strings.Contains(key, "common"):
		return SecurityCommonStock
	case strings.Contains(key, "warrant"):
		return SecurityWarrant
	case strings.Contains(key, "preferred"):
		return SecurityPreferredStock
	case strings.Contains(key, "option"):
		return SecurityOption
	default:
		return SecurityOther
	}
}

// ExtractionMethod records which extractors contributed to a record.
type ExtractionMethod string

const (
	MethodRuleOnly ExtractionMethod = "rule_only"
	MethodAIOnly   ExtractionMethod = "ai_only"
	MethodHybrid   ExtractionMethod = "hybrid"
	MethodFallback ExtractionMethod = "fallback"
)

// FallbackSummary marks records produced when every extractor failed.
const FallbackSummary = "Basic extraction - full parsing failed"

// Party is one participant of a contract. Identity inside a contract is name+role.
type Party struct {
	Name       string    `json:"name"`
	Role       PartyRole `json:"role"`
	EntityType *string   `json:"entity_type,omitempty"`
}

// Key returns the identity key used for merging and graph node keys.
func (p Party) Key() string {
	return NormalizeName(p.Name) + "|" + string(p.Role)
}

// Security is owned exclusively by its contract.
type Security struct {
	SecurityType  SecurityType     `json:"security_type"`
	Quantity      *int64           `json:"quantity,omitempty"`
	PricePerShare *decimal.Decimal `json:"price_per_share,omitempty"`
}

// Key returns type+quantity+price, the identity used when merging extractor output.
func (s Security) Key() string {
	qty := "-"
	if s.Quantity != nil {
		qty = fmt.Sprintf("%d", *s.Quantity)
	}
	price := "-"
	if s.PricePerShare != nil {
		price = s.PricePerShare.String()
	}
	return string(s.SecurityType) + "|" + qty + "|" + price
}

// SourceMetadata describes where a record came from. Path components are informative only.
type SourceMetadata struct {
	Corpus     string `json:"corpus"`
	Path       string `json:"path"`
	Format     Format `json:"format"`
	Year       string `json:"year,omitempty"`
	FilingType string `json:"filing_type,omitempty"`
	Accession  string `json:"accession,omitempty"`
	Exhibit    string `json:"exhibit,omitempty"`
}

// ContractRecord is the canonical extracted unit.
type ContractRecord struct {
	ContractID          string           `json:"contract_id"`
	Title               string           `json:"title"`
	ContractType        ContractType     `json:"contract_type"`
	ExecutionDate       *Date            `json:"execution_date,omitempty"`
	Summary             string           `json:"summary"`
	Parties             []Party          `json:"parties"`
	Securities          []Security       `json:"securities"`
	ClosingConditions   []string         `json:"closing_conditions"`
	TotalOfferingAmount *decimal.Decimal `json:"total_offering_amount,omitempty"`
	SourceFingerprint   Fingerprint      `json:"source_fingerprint"`
	ExtractionMethod    ExtractionMethod `json:"extraction_method"`
	Source              SourceMetadata   `json:"source"`
}

// Date is a calendar date serialised as YYYY-MM-DD.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate builds a UTC calendar date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO date.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// Plausible reports whether the year lies between 1900 and the year of now.
func (d Date) Plausible(now time.Time) bool {
	return d.Year() >= 1900 && d.Year() <= now.Year()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NormalizeName lowercases, collapses whitespace and strips trailing punctuation.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.Join(strings.Fields(name), " "))
	return strings.Trim(name, " .,;:\"'()")
}

// NormalizeText is the identity form used for closing conditions.
func NormalizeText(text string) string {
	text = strings.ToLower(strings.Join(strings.Fields(text), " "))
	return strings.TrimRight(text, " .;,")
}

func compactKey(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	var b strings.Builder
	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
