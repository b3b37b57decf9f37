package ports

import (
	"context"
	"encoding/json"
	"time"

	"ContractGraph/internal/domain"
)

// DocumentSource discovers corpus files and reads their content.
type DocumentSource interface {
	Discover(ctx context.Context) (domain.Discovery, error)
	Read(ctx context.Context, file domain.SourceFile) ([]byte, error)
}

// ExtractionRequest is one call to the external extraction capability.
type ExtractionRequest struct {
	Text         string
	ContractType domain.ContractType
	SystemPrompt string
	Prompt       string
	Simplified   bool
}

// ExtractionResponse carries the raw structured payload and token usage.
type ExtractionResponse struct {
	Payload          json.RawMessage
	PromptTokens     int
	CompletionTokens int
}

// ExtractionCapability is the fallible, rate-limited, costly AI extraction call.
type ExtractionCapability interface {
	Extract(ctx context.Context, req ExtractionRequest) (ExtractionResponse, error)
}

// ChatClient sends a single-turn chat completion and returns the assistant text.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// GraphWriter merges nodes and edges inside one transaction.
type GraphWriter interface {
	UpsertNode(ctx context.Context, node domain.Node) (created, updated bool, err error)
	UpsertEdge(ctx context.Context, edge domain.Edge) (created, updated bool, err error)
}

// Graph is the property-graph capability.
type Graph interface {
	Update(ctx context.Context, fn func(GraphWriter) error) error
	RunQuery(ctx context.Context, query string, args ...any) ([]domain.Row, error)
	Stats(ctx context.Context) (domain.GraphStats, error)
	SearchContracts(ctx context.Context, filter domain.ContractFilter) ([]domain.ContractSummary, error)
}

// ContractCache memoizes records by fingerprint.
type ContractCache interface {
	Lookup(fp domain.Fingerprint) (domain.CacheEntry, bool)
	Put(fp domain.Fingerprint, entry domain.CacheEntry)
	Flush() error
	Len() int
}

// ProgressReporter receives incremental progress during a run.
type ProgressReporter interface {
	Progress(ctx context.Context, p domain.Progress)
}

// Notifier streams batch reports to Telegram or other channels.
type Notifier interface {
	PublishReport(ctx context.Context, report string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
