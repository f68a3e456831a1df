// Package sqlcat implements SQL-catalog gateways over information_schema.
//
// Architecture:
//
//	Base       - Generic ANSI gateway (fallback, client-side filtering)
//	Postgres   - PostgreSQL with server-side regex pushdown, pg_database
//
// Vendor gateways embed Base and override vendor-specific behavior.
// All gateways implement source.Gateway.
package sqlcat

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/metahub/mex-core/internal/filter"
	"github.com/metahub/mex-core/internal/source"
)

var _ source.Gateway = (*Base)(nil)

// Base implements the generic SQL-catalog gateway.
// Vendor-specific gateways embed this and override methods as needed.
type Base struct {
	Config     *Config
	DB         *sql.DB
	DriverName string
}

// NewBase creates a generic SQL-catalog gateway.
func NewBase(config map[string]any) (*Base, error) {
	cfg := ParseConfig(config)

	db, err := sql.Open(cfg.Driver, cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The pool size bounds effective extraction concurrency.
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Base{Config: cfg, DB: db, DriverName: cfg.Driver}, nil
}

// Close releases database resources.
func (b *Base) Close() error {
	if b.DB != nil {
		return b.DB.Close()
	}
	return nil
}

// ID returns the gateway template ID.
func (b *Base) ID() string {
	return "sql." + b.DriverName
}

// PoolSize returns the connection pool bound used for fan-out limits.
func (b *Base) PoolSize() int {
	return b.Config.MaxOpenConns
}

// rebind adapts the generic `?` placeholders to the driver's style.
// Postgres-family drivers only accept ordinal `$n` placeholders.
func (b *Base) rebind(query string) string {
	switch b.DriverName {
	case "postgres", "pgx":
	default:
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// TestConnection pings the database with a short timeout.
func (b *Base) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := b.DB.PingContext(ctx); err != nil {
		return &source.ConnectivityError{Err: err}
	}
	return nil
}

// ListCatalogs returns catalogs visible via information_schema.
func (b *Base) ListCatalogs(ctx context.Context) ([]*source.Catalog, error) {
	query := `
		SELECT DISTINCT table_catalog
		FROM information_schema.tables
		ORDER BY table_catalog
	`

	rows, err := b.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, source.Classify(err, "listCatalogs", "")
	}
	defer rows.Close()

	var catalogs []*source.Catalog
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			continue
		}
		catalogs = append(catalogs, &source.Catalog{Name: name, Kind: "database"})
	}
	if err := rows.Err(); err != nil {
		return nil, source.Classify(err, "listCatalogs", "")
	}

	// Sources that hide table_catalog still have the configured database.
	if len(catalogs) == 0 && b.Config.Database != "" {
		catalogs = append(catalogs, &source.Catalog{Name: b.Config.Database, Kind: "database"})
	}

	return catalogs, nil
}

// ListSchemas returns schemas of a catalog, filtered client-side.
func (b *Base) ListSchemas(ctx context.Context, catalog string, f *filter.Compiled) ([]*source.Schema, error) {
	query := `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE catalog_name = ?
		ORDER BY schema_name
	`

	rows, err := b.DB.QueryContext(ctx, b.rebind(query), catalog)
	if err != nil {
		return nil, source.Classify(err, "listSchemas", catalog)
	}
	defer rows.Close()

	var schemas []*source.Schema
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			continue
		}
		s := &source.Schema{Catalog: catalog, Name: name, Kind: "schema"}
		if f != nil && !f.ScopeIncluded(s.Key()) {
			continue
		}
		schemas = append(schemas, s)
	}
	if err := rows.Err(); err != nil {
		return nil, source.Classify(err, "listSchemas", catalog)
	}

	return schemas, nil
}

// ListTables returns tables and views of a schema, filtered client-side.
func (b *Base) ListTables(ctx context.Context, catalog, schema string, f *filter.Compiled) ([]*source.Table, error) {
	query := `
		SELECT table_name, table_type
		FROM information_schema.tables
		WHERE table_catalog = ? AND table_schema = ?
		ORDER BY table_name
	`

	rows, err := b.DB.QueryContext(ctx, b.rebind(query), catalog, schema)
	if err != nil {
		return nil, source.Classify(err, "listTables", catalog+"."+schema)
	}
	defer rows.Close()

	scopeKey := catalog + "." + schema
	var tables []*source.Table
	for rows.Next() {
		var name, tableType string
		if err := rows.Scan(&name, &tableType); err != nil {
			continue
		}
		if f != nil && !f.Matches(scopeKey, name) {
			continue
		}

		kind := "table"
		if strings.Contains(strings.ToLower(tableType), "view") {
			kind = "view"
		}
		tables = append(tables, &source.Table{
			Catalog: catalog,
			Schema:  schema,
			Name:    name,
			Kind:    kind,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, source.Classify(err, "listTables", scopeKey)
	}

	return tables, nil
}

// ListColumns returns column definitions for one table.
func (b *Base) ListColumns(ctx context.Context, catalog, schema, table string) ([]*source.Column, error) {
	query := `
		SELECT
			column_name,
			data_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_catalog = ? AND table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`

	rows, err := b.DB.QueryContext(ctx, b.rebind(query), catalog, schema, table)
	if err != nil {
		return nil, source.Classify(err, "listColumns", catalog+"."+schema+"."+table)
	}
	defer rows.Close()

	var columns []*source.Column
	for rows.Next() {
		var c source.Column
		var isNullable string
		if err := rows.Scan(&c.Name, &c.DataType, &isNullable, &c.Position); err != nil {
			continue
		}
		c.Catalog = catalog
		c.Schema = schema
		c.Table = table
		c.Nullable = isNullable == "YES"
		columns = append(columns, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, source.Classify(err, "listColumns", catalog+"."+schema+"."+table)
	}

	return columns, nil
}
