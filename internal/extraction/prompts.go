package extraction

import (
	"fmt"
	"strings"

	"ContractGraph/internal/domain"
)

const systemPrompt = `You extract structured data from legal contracts. Reply with a single JSON object and nothing else. Use null for unknown values. Dates are YYYY-MM-DD. Amounts and prices are plain numbers without currency symbols or commas.`

const baseSchema = `{
  "title": string,
  "contract_type": "SecuritiesPurchase" | "License" | "Employment" | "Settlement" | "Rights" | "Other",
  "execution_date": "YYYY-MM-DD" | null,
  "summary": string,
  "total_offering_amount": number | null,
  "parties": [{"name": string, "role": "Company" | "Purchaser" | "Investor" | "Other", "entity_type": string | null}],
  "securities": [{"security_type": "CommonStock" | "Warrant" | "PreferredStock" | "Option" | "Other", "quantity": integer | null, "price_per_share": number | null}],
  "closing_conditions": [string]
}`

// typeGuidance focuses the model on what matters for each contract type.
var typeGuidance = map[domain.ContractType]string{
	domain.ContractSecuritiesPurchase: "This is a securities purchase agreement. Identify the issuing company, every purchaser or investor, each class of securities sold with its quantity and price per share, the aggregate purchase price as total_offering_amount, and the conditions to closing.",
	domain.ContractLicense:            "This is a license agreement. The licensor is the Company and the licensee is the Purchaser. Record upfront fees as total_offering_amount and any equity issued as securities.",
	domain.ContractEmployment:         "This is an employment agreement. The employer is the Company and the employee has role Other. Record equity grants (options, restricted stock) as securities.",
	domain.ContractSettlement:         "This is a settlement agreement. Record the settlement payment as total_offering_amount and any shares or warrants issued in settlement as securities.",
	domain.ContractRights:             "This is a rights agreement (registration or investor rights). Identify the company and the holders (role Investor) and the securities the rights attach to.",
	domain.ContractOther:              "Identify the parties, any securities and amounts, and any conditions that must be met.",
}

const simplifiedSchema = `{"title": string, "execution_date": "YYYY-MM-DD" | null, "summary": string, "parties": [{"name": string, "role": string}]}`

// simplifiedChars bounds the document excerpt sent on retry.
const simplifiedChars = 12000

func buildPrompt(contractType domain.ContractType, text string) string {
	guidance, ok := typeGuidance[contractType]
	if !ok {
		guidance = typeGuidance[domain.ContractOther]
	}

	var b strings.Builder
	b.WriteString(guidance)
	b.WriteString("\n\nReturn JSON matching this schema:\n")
	b.WriteString(baseSchema)
	b.WriteString("\n\nContract text:\n")
	b.WriteString(text)
	return b.String()
}

func buildSimplifiedPrompt(text string) string {
	if runes := []rune(text); len(runes) > simplifiedChars {
		text = string(runes[:simplifiedChars])
	}
	return fmt.Sprintf("Extract only the basic facts of this contract as JSON matching %s\n\nContract text:\n%s", simplifiedSchema, text)
}
