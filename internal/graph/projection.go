// Package graph projects contract records onto the fixed property-graph schema and persists them.
package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"ContractGraph/internal/domain"
)

// Projection is the set of nodes and edges one record maps to.
type Projection struct {
	Contract domain.Node
	Nodes    []domain.Node
	Edges    []domain.Edge
}

// Project maps a record onto SecuritiesContract, Party, Security and ClosingCondition nodes.
// Properties hold only record content so re-projecting an unchanged record is byte-identical.
func Project(r domain.ContractRecord) Projection {
	contract := domain.Node{
		Ref:        ContractRef(r.ContractID),
		Properties: contractProperties(r),
	}
	p := Projection{Contract: contract, Nodes: []domain.Node{contract}}

	for _, party := range r.Parties {
		node := domain.Node{
			Ref: domain.NodeRef{Label: domain.LabelParty, Key: r.ContractID + "|" + party.Key()},
			Properties: withOptional(map[string]any{
				"contract_id": r.ContractID,
				"name":        party.Name,
				"role":        string(party.Role),
			}, "entity_type", party.EntityType),
		}
		p.Nodes = append(p.Nodes, node)
		p.Edges = append(p.Edges, domain.Edge{
			Type:       domain.EdgePartyTo,
			From:       node.Ref,
			To:         contract.Ref,
			Properties: map[string]any{"role": string(party.Role)},
		})
	}

	perType := map[domain.SecurityType]int{}
	for _, sec := range r.Securities {
		index := perType[sec.SecurityType]
		perType[sec.SecurityType]++

		props := map[string]any{
			"contract_id":   r.ContractID,
			"security_type": string(sec.SecurityType),
			"index":         index,
		}
		if sec.Quantity != nil {
			props["quantity"] = *sec.Quantity
		}
		if sec.PricePerShare != nil {
			props["price_per_share"] = sec.PricePerShare.String()
		}
		node := domain.Node{
			Ref:        domain.NodeRef{Label: domain.LabelSecurity, Key: r.ContractID + "|" + string(sec.SecurityType) + "|" + strconv.Itoa(index)},
			Properties: props,
		}
		p.Nodes = append(p.Nodes, node)
		p.Edges = append(p.Edges, domain.Edge{
			Type:       domain.EdgeIssuesSecurity,
			From:       contract.Ref,
			To:         node.Ref,
			Properties: map[string]any{},
		})
	}

	for _, cond := range r.ClosingConditions {
		normalized := domain.NormalizeText(cond)
		if normalized == "" {
			continue
		}
		node := domain.Node{
			Ref: domain.NodeRef{Label: domain.LabelCondition, Key: r.ContractID + "|" + digest(normalized)},
			Properties: map[string]any{
				"contract_id": r.ContractID,
				"text":        cond,
				"normalized":  normalized,
			},
		}
		p.Nodes = append(p.Nodes, node)
		p.Edges = append(p.Edges, domain.Edge{
			Type:       domain.EdgeHasClosingCondition,
			From:       contract.Ref,
			To:         node.Ref,
			Properties: map[string]any{},
		})
	}
	return p
}

// ContractRef addresses the contract node for id.
func ContractRef(id string) domain.NodeRef {
	return domain.NodeRef{Label: domain.LabelContract, Key: id}
}

func contractProperties(r domain.ContractRecord) map[string]any {
	props := map[string]any{
		"contract_id":       r.ContractID,
		"title":             r.Title,
		"contract_type":     string(r.ContractType),
		"summary":           r.Summary,
		"extraction_method": string(r.ExtractionMethod),
		"source_hash":       r.SourceFingerprint.Hash,
		"source_path":       r.Source.Path,
		"format":            string(r.Source.Format),
	}
	if r.ExecutionDate != nil {
		props["execution_date"] = r.ExecutionDate.String()
	}
	if r.TotalOfferingAmount != nil {
		props["total_offering_amount"] = r.TotalOfferingAmount.String()
	}
	for key, value := range map[string]string{
		"corpus":      r.Source.Corpus,
		"year":        r.Source.Year,
		"filing_type": r.Source.FilingType,
		"accession":   r.Source.Accession,
		"exhibit":     r.Source.Exhibit,
	} {
		if value != "" {
			props[key] = value
		}
	}
	return props
}

func withOptional(props map[string]any, key string, value *string) map[string]any {
	if value != nil && *value != "" {
		props[key] = *value
	}
	return props
}

func digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}
