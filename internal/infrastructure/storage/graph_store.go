// Package storage keeps the contract property graph in SQL tables (Postgres or SQLite).
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"ContractGraph/internal/domain"
	"ContractGraph/internal/ports"
)

const (
	nodesTable = "graph_nodes"
	edgesTable = "graph_edges"

	defaultSearchLimit = 20
)

// GraphStore implements ports.Graph over two tables: nodes keyed by (label, node_key)
// and edges keyed by (edge_type, from, to).
type GraphStore struct {
	db      *sql.DB
	dialect dialect
	builder sq.StatementBuilderType
	logger  *slog.Logger
}

var _ ports.Graph = (*GraphStore)(nil)

// Open connects to the graph database and ensures the schema exists.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*GraphStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create graph db directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open graph db: %w", err)
	}
	if driver == DriverSQLite {
		// one connection keeps pragmas and :memory: databases consistent
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping graph db: %w", err)
	}

	store, err := NewGraphStore(db, d.name, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewGraphStore wraps an existing connection pool.
func NewGraphStore(db *sql.DB, driver string, logger *slog.Logger) (*GraphStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphStore{
		db:      db,
		dialect: d,
		builder: sq.StatementBuilder.PlaceholderFormat(d.placeholder),
		logger:  logger,
	}, nil
}

// EnsureSchema creates tables and indexes when missing.
func (s *GraphStore) EnsureSchema(ctx context.Context) error {
	if s.dialect.name == DriverSQLite {
		if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
			return fmt.Errorf("set busy timeout: %w", err)
		}
	}
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply graph schema: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *GraphStore) Close() error {
	return s.db.Close()
}

// Update runs fn inside one transaction; any error rolls back every write made by fn.
func (s *GraphStore) Update(ctx context.Context, fn func(ports.GraphWriter) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin graph tx: %w", err)
	}

	if err := fn(&txWriter{tx: tx, builder: s.builder}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback graph tx: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit graph tx: %w", err)
	}
	return nil
}

// RunQuery executes read-only SQL and returns rows keyed by column name.
func (s *GraphStore) RunQuery(ctx context.Context, query string, args ...any) ([]domain.Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("run graph query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var result []domain.Row
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("scan graph row: %w", err)
		}

		row := make(domain.Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate graph rows: %w", err)
	}
	return result, nil
}

// Stats counts nodes per label and edges per type.
func (s *GraphStore) Stats(ctx context.Context) (domain.GraphStats, error) {
	stats := domain.GraphStats{Nodes: map[string]int{}, Edges: map[string]int{}}

	if err := s.countBy(ctx, nodesTable, "label", stats.Nodes); err != nil {
		return domain.GraphStats{}, err
	}
	if err := s.countBy(ctx, edgesTable, "edge_type", stats.Edges); err != nil {
		return domain.GraphStats{}, err
	}
	return stats, nil
}

func (s *GraphStore) countBy(ctx context.Context, table, column string, into map[string]int) error {
	query, args, err := s.builder.
		Select(column, "COUNT(*)").
		From(table).
		GroupBy(column).
		ToSql()
	if err != nil {
		return fmt.Errorf("build count query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("count %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name  string
			count int
		)
		if err := rows.Scan(&name, &count); err != nil {
			return fmt.Errorf("scan %s count: %w", table, err)
		}
		into[name] = count
	}
	return rows.Err()
}

// SearchContracts answers a structured contract filter.
func (s *GraphStore) SearchContracts(ctx context.Context, filter domain.ContractFilter) ([]domain.ContractSummary, error) {
	props := "c.properties"
	q := s.builder.
		Select("c.node_key", props).
		From(nodesTable + " c").
		Where(sq.Eq{"c.label": domain.LabelContract})

	if filter.ContractType != "" {
		q = q.Where(sq.Eq{s.dialect.jsonText(props, "contract_type"): string(filter.ContractType)})
	}
	if filter.TitleContains != "" {
		q = q.Where(sq.Like{"LOWER(" + s.dialect.jsonText(props, "title") + ")": "%" + strings.ToLower(filter.TitleContains) + "%"})
	}
	if filter.ExecutedAfter != nil {
		q = q.Where(sq.GtOrEq{s.dialect.jsonText(props, "execution_date"): filter.ExecutedAfter.String()})
	}
	if filter.ExecutedBefore != nil {
		q = q.Where(sq.LtOrEq{s.dialect.jsonText(props, "execution_date"): filter.ExecutedBefore.String()})
	}
	if filter.MinAmount != nil {
		q = q.Where(sq.GtOrEq{s.dialect.jsonNumber(props, "total_offering_amount"): filter.MinAmount.String()})
	}
	if filter.Company != "" {
		sub, err := s.partyExists(filter.Company, domain.RoleCompany)
		if err != nil {
			return nil, err
		}
		q = q.Where(sub)
	}
	if filter.Investor != "" {
		sub, err := s.partyExists(filter.Investor, domain.RoleInvestor, domain.RolePurchaser)
		if err != nil {
			return nil, err
		}
		q = q.Where(sub)
	}
	if filter.SecurityType != "" {
		sub, err := s.securityExists(filter.SecurityType)
		if err != nil {
			return nil, err
		}
		q = q.Where(sub)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	query, args, err := q.
		OrderBy(s.dialect.jsonText(props, "execution_date")+" DESC", "c.node_key").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build contract search: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search contracts: %w", err)
	}
	defer rows.Close()

	var result []domain.ContractSummary
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		summary, err := decodeSummary(key, raw)
		if err != nil {
			return nil, err
		}
		result = append(result, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contracts: %w", err)
	}
	return result, nil
}

// partyExists is built with '?' placeholders; the outer builder rewrites them for the dialect.
func (s *GraphStore) partyExists(name string, roles ...domain.PartyRole) (sq.Sqlizer, error) {
	roleValues := make([]string, 0, len(roles))
	for _, r := range roles {
		roleValues = append(roleValues, string(r))
	}
	sub, args, err := sq.Select("1").
		From(edgesTable + " e").
		Join(nodesTable + " p ON p.label = e.from_label AND p.node_key = e.from_key").
		Where(sq.Eq{"e.edge_type": domain.EdgePartyTo}).
		Where("e.to_label = c.label AND e.to_key = c.node_key").
		Where(sq.Like{"LOWER(" + s.dialect.jsonText("p.properties", "name") + ")": "%" + strings.ToLower(name) + "%"}).
		Where(sq.Eq{s.dialect.jsonText("p.properties", "role"): roleValues}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build party filter: %w", err)
	}
	return sq.Expr("EXISTS ("+sub+")", args...), nil
}

func (s *GraphStore) securityExists(t domain.SecurityType) (sq.Sqlizer, error) {
	sub, args, err := sq.Select("1").
		From(edgesTable + " e").
		Join(nodesTable + " x ON x.label = e.to_label AND x.node_key = e.to_key").
		Where(sq.Eq{"e.edge_type": domain.EdgeIssuesSecurity}).
		Where("e.from_label = c.label AND e.from_key = c.node_key").
		Where(sq.Eq{s.dialect.jsonText("x.properties", "security_type"): string(t)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build security filter: %w", err)
	}
	return sq.Expr("EXISTS ("+sub+")", args...), nil
}

func decodeSummary(key, raw string) (domain.ContractSummary, error) {
	var props struct {
		Title               string              `json:"title"`
		ContractType        domain.ContractType `json:"contract_type"`
		ExecutionDate       string              `json:"execution_date"`
		Summary             string              `json:"summary"`
		TotalOfferingAmount *string             `json:"total_offering_amount"`
	}
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return domain.ContractSummary{}, fmt.Errorf("decode contract %s: %w", key, err)
	}

	summary := domain.ContractSummary{
		ContractID:    key,
		Title:         props.Title,
		ContractType:  props.ContractType,
		ExecutionDate: props.ExecutionDate,
		Summary:       props.Summary,
	}
	if props.TotalOfferingAmount != nil {
		amount, err := parseDecimal(*props.TotalOfferingAmount)
		if err == nil {
			summary.TotalOfferingAmount = &amount
		}
	}
	return summary, nil
}
