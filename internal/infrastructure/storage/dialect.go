package storage

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// dialect isolates the SQL that differs between Postgres and SQLite.
type dialect struct {
	name        string
	placeholder sq.PlaceholderFormat
	schema      []string
}

var postgresDialect = dialect{
	name:        DriverPostgres,
	placeholder: sq.Dollar,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS graph_nodes (
			id BIGSERIAL PRIMARY KEY,
			label TEXT NOT NULL,
			node_key TEXT NOT NULL,
			properties TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (label, node_key)
		)`,
		`CREATE TABLE IF NOT EXISTS graph_edges (
			id BIGSERIAL PRIMARY KEY,
			edge_type TEXT NOT NULL,
			from_label TEXT NOT NULL,
			from_key TEXT NOT NULL,
			to_label TEXT NOT NULL,
			to_key TEXT NOT NULL,
			properties TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (edge_type, from_label, from_key, to_label, to_key)
		)`,
		`CREATE INDEX IF NOT EXISTS graph_edges_to_idx ON graph_edges (to_label, to_key)`,
	},
}

var sqliteDialect = dialect{
	name:        DriverSQLite,
	placeholder: sq.Question,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS graph_nodes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			label TEXT NOT NULL,
			node_key TEXT NOT NULL,
			properties TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (label, node_key)
		)`,
		`CREATE TABLE IF NOT EXISTS graph_edges (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			edge_type TEXT NOT NULL,
			from_label TEXT NOT NULL,
			from_key TEXT NOT NULL,
			to_label TEXT NOT NULL,
			to_key TEXT NOT NULL,
			properties TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (edge_type, from_label, from_key, to_label, to_key)
		)`,
		`CREATE INDEX IF NOT EXISTS graph_edges_to_idx ON graph_edges (to_label, to_key)`,
	},
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverPostgres:
		return postgresDialect, nil
	case DriverSQLite:
		return sqliteDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported graph driver %q", driver)
	}
}

// jsonText extracts a top-level property of a JSON-encoded column as text.
func (d dialect) jsonText(column, field string) string {
	if d.name == DriverPostgres {
		return fmt.Sprintf("(%s::jsonb ->> '%s')", column, field)
	}
	return fmt.Sprintf("json_extract(%s, '$.%s')", column, field)
}

// jsonNumber extracts a property as a number for range comparisons.
func (d dialect) jsonNumber(column, field string) string {
	if d.name == DriverPostgres {
		return fmt.Sprintf("(%s::jsonb ->> '%s')::numeric", column, field)
	}
	return fmt.Sprintf("CAST(json_extract(%s, '$.%s') AS REAL)", column, field)
}
