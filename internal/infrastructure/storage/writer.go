package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"ContractGraph/internal/domain"
	"ContractGraph/internal/ports"
)

// txWriter merges nodes and edges inside one transaction.
type txWriter struct {
	tx      *sql.Tx
	builder sq.StatementBuilderType
}

var _ ports.GraphWriter = (*txWriter)(nil)

// UpsertNode inserts a missing node, rewrites changed properties and leaves identical nodes untouched.
func (w *txWriter) UpsertNode(ctx context.Context, node domain.Node) (bool, bool, error) {
	if node.Ref.Label == "" || node.Ref.Key == "" {
		return false, false, fmt.Errorf("node requires label and key")
	}
	props, err := encodeProperties(node.Properties)
	if err != nil {
		return false, false, err
	}

	key := sq.Eq{"label": node.Ref.Label, "node_key": node.Ref.Key}
	existing, found, err := w.currentProperties(ctx, nodesTable, key)
	if err != nil {
		return false, false, fmt.Errorf("load node %s/%s: %w", node.Ref.Label, node.Ref.Key, err)
	}

	switch {
	case !found:
		err = w.exec(ctx, w.insertNode(node.Ref, props))
		if err != nil {
			return false, false, fmt.Errorf("insert node %s/%s: %w", node.Ref.Label, node.Ref.Key, err)
		}
		return true, false, nil
	case existing == props:
		return false, false, nil
	default:
		err = w.exec(ctx, w.builder.
			Update(nodesTable).
			Set("properties", props).
			Set("updated_at", sq.Expr("CURRENT_TIMESTAMP")).
			Where(key))
		if err != nil {
			return false, false, fmt.Errorf("update node %s/%s: %w", node.Ref.Label, node.Ref.Key, err)
		}
		return false, true, nil
	}
}

// UpsertEdge merges a typed edge by (type, from, to).
func (w *txWriter) UpsertEdge(ctx context.Context, edge domain.Edge) (bool, bool, error) {
	props, err := encodeProperties(edge.Properties)
	if err != nil {
		return false, false, err
	}

	key := sq.Eq{
		"edge_type":  edge.Type,
		"from_label": edge.From.Label,
		"from_key":   edge.From.Key,
		"to_label":   edge.To.Label,
		"to_key":     edge.To.Key,
	}
	existing, found, err := w.currentProperties(ctx, edgesTable, key)
	if err != nil {
		return false, false, fmt.Errorf("load edge %s: %w", edge.Type, err)
	}

	switch {
	case !found:
		err = w.exec(ctx, w.insertEdge(edge, props))
		if err != nil {
			return false, false, fmt.Errorf("insert edge %s: %w", edge.Type, err)
		}
		return true, false, nil
	case existing == props:
		return false, false, nil
	default:
		err = w.exec(ctx, w.builder.
			Update(edgesTable).
			Set("properties", props).
			Set("updated_at", sq.Expr("CURRENT_TIMESTAMP")).
			Where(key))
		if err != nil {
			return false, false, fmt.Errorf("update edge %s: %w", edge.Type, err)
		}
		return false, true, nil
	}
}

// onConflictMerge turns an insert that lost a race with another writer into a property update.
const onConflictMerge = "DO UPDATE SET properties = excluded.properties, updated_at = CURRENT_TIMESTAMP"

func (w *txWriter) insertNode(ref domain.NodeRef, props string) sq.InsertBuilder {
	return w.builder.
		Insert(nodesTable).
		Columns("label", "node_key", "properties").
		Values(ref.Label, ref.Key, props).
		Suffix("ON CONFLICT (label, node_key) " + onConflictMerge)
}

func (w *txWriter) insertEdge(edge domain.Edge, props string) sq.InsertBuilder {
	return w.builder.
		Insert(edgesTable).
		Columns("edge_type", "from_label", "from_key", "to_label", "to_key", "properties").
		Values(edge.Type, edge.From.Label, edge.From.Key, edge.To.Label, edge.To.Key, props).
		Suffix("ON CONFLICT (edge_type, from_label, from_key, to_label, to_key) " + onConflictMerge)
}

func (w *txWriter) currentProperties(ctx context.Context, table string, key sq.Eq) (string, bool, error) {
	query, args, err := w.builder.Select("properties").From(table).Where(key).ToSql()
	if err != nil {
		return "", false, err
	}
	var props string
	err = w.tx.QueryRowContext(ctx, query, args...).Scan(&props)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return props, true, nil
}

func (w *txWriter) exec(ctx context.Context, stmt sq.Sqlizer) error {
	query, args, err := stmt.ToSql()
	if err != nil {
		return err
	}
	_, err = w.tx.ExecContext(ctx, query, args...)
	return err
}

// encodeProperties produces canonical JSON (sorted keys) so equal property sets compare equal as text.
func encodeProperties(props map[string]any) (string, error) {
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("encode properties: %w", err)
	}
	return string(raw), nil
}

func parseDecimal(value string) (decimal.Decimal, error) {
	return decimal.NewFromString(value)
}

// IsTransient reports connectivity and lock-contention errors worth one retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 08: connection exception, 40: transaction rollback (serialization, deadlock), 57P01: admin shutdown
		return pqErr.Code.Class() == "08" || pqErr.Code.Class() == "40" || pqErr.Code == "57P01"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code() & 0xff
		return code == sqlitelib.SQLITE_BUSY || code == sqlitelib.SQLITE_LOCKED
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
