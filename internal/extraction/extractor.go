// Package extraction turns normalized contract text into a canonical record.
package extraction

import (
	"context"

	"ContractGraph/internal/domain"
)

// Result is one document's extraction with its AI accounting.
type Result struct {
	Record  domain.ContractRecord
	AICalls int
	AIErr   error
}

// Extractor chains classifier, rule extractor, AI extractor and merger.
type Extractor struct {
	classifier *Classifier
	rules      *RuleExtractor
	ai         *AIExtractor
	merger     *Merger
}

// NewExtractor wires the stages; ai may wrap a nil capability.
func NewExtractor(classifier *Classifier, rules *RuleExtractor, ai *AIExtractor, merger *Merger) *Extractor {
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	if rules == nil {
		rules = NewRuleExtractor()
	}
	if merger == nil {
		merger = NewMerger(nil)
	}
	return &Extractor{classifier: classifier, rules: rules, ai: ai, merger: merger}
}

// Extract always yields a record; total failure yields the fallback record.
func (x *Extractor) Extract(ctx context.Context, text string) Result {
	contractType := x.classifier.Classify(text)
	ruled := x.rules.Extract(text)
	outcome := x.ai.Extract(ctx, text, contractType)

	record := x.merger.Merge(MergeInput{
		Rules:        ruled,
		AI:           outcome,
		ContractType: contractType,
	})
	return Result{Record: record, AICalls: outcome.Calls, AIErr: outcome.Err}
}

// AIStats exposes the AI call counters.
func (x *Extractor) AIStats() AIStats {
	if x.ai == nil {
		return AIStats{}
	}
	return x.ai.Stats()
}
