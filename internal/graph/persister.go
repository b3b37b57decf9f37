package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ContractGraph/internal/domain"
	"ContractGraph/internal/ports"
)

const defaultRetryDelay = 500 * time.Millisecond

// Options tunes the persister.
type Options struct {
	// IsTransient decides whether a failed write is retried once.
	IsTransient func(error) bool
	RetryDelay  time.Duration
	Logger      *slog.Logger
}

// Persister upserts records by business key. It never removes children that a revised record no longer has.
type Persister struct {
	graph       ports.Graph
	isTransient func(error) bool
	retryDelay  time.Duration
	logger      *slog.Logger
}

// NewPersister binds a graph capability.
func NewPersister(g ports.Graph, opts Options) *Persister {
	if opts.IsTransient == nil {
		opts.IsTransient = func(error) bool { return false }
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	} else if opts.RetryDelay == 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Persister{
		graph:       g,
		isTransient: opts.IsTransient,
		retryDelay:  opts.RetryDelay,
		logger:      opts.Logger,
	}
}

// Upsert writes one record in one transaction. An identical record writes nothing.
// Transient failures are retried once; the final failure wraps domain.ErrGraphWriteFailed.
func (p *Persister) Upsert(ctx context.Context, record domain.ContractRecord) (domain.WriteStats, error) {
	if record.ContractID == "" {
		return domain.WriteStats{}, fmt.Errorf("%w: record has no contract id", domain.ErrGraphWriteFailed)
	}
	projection := Project(record)

	stats, err := p.write(ctx, projection)
	if err != nil && p.isTransient(err) {
		p.logger.Warn("transient graph write failure, retrying", "contract_id", record.ContractID, "error", err)
		select {
		case <-ctx.Done():
			return domain.WriteStats{}, fmt.Errorf("%w: contract %s: %w", domain.ErrGraphWriteFailed, record.ContractID, ctx.Err())
		case <-time.After(p.retryDelay):
		}
		stats, err = p.write(ctx, projection)
	}
	if err != nil {
		return domain.WriteStats{}, fmt.Errorf("%w: contract %s: %w", domain.ErrGraphWriteFailed, record.ContractID, err)
	}
	return stats, nil
}

func (p *Persister) write(ctx context.Context, projection Projection) (domain.WriteStats, error) {
	var stats domain.WriteStats
	err := p.graph.Update(ctx, func(w ports.GraphWriter) error {
		for _, node := range projection.Nodes {
			created, updated, err := w.UpsertNode(ctx, node)
			if err != nil {
				return err
			}
			stats.NodesCreated += boolToInt(created)
			stats.NodesUpdated += boolToInt(updated)
		}
		for _, edge := range projection.Edges {
			created, updated, err := w.UpsertEdge(ctx, edge)
			if err != nil {
				return err
			}
			stats.EdgesCreated += boolToInt(created)
			stats.EdgesUpdated += boolToInt(updated)
		}
		return nil
	})
	if err != nil {
		return domain.WriteStats{}, err
	}
	return stats, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
