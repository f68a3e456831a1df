package sqlcat

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/metahub/mex-core/internal/filter"
	"github.com/metahub/mex-core/internal/source"
)

// Postgres extends Base with server-side regex pushdown and
// pg_database catalog listing.
type Postgres struct {
	*Base
}

// NewPostgres creates a PostgreSQL gateway.
func NewPostgres(config map[string]any) (*Postgres, error) {
	config["driver"] = "postgres"

	base, err := NewBase(config)
	if err != nil {
		return nil, err
	}

	return &Postgres{Base: base}, nil
}

// ID returns the gateway template ID.
func (p *Postgres) ID() string {
	return "sql.postgres"
}

// Version returns the server version string for connection reports.
func (p *Postgres) Version(ctx context.Context) (string, error) {
	var version string
	if err := p.DB.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", source.Classify(err, "version", "")
	}
	return version, nil
}

// ListCatalogs lists non-template databases from pg_database.
func (p *Postgres) ListCatalogs(ctx context.Context) ([]*source.Catalog, error) {
	query := `
		SELECT datname
		FROM pg_database
		WHERE datistemplate = false AND datallowconn = true
		ORDER BY datname
	`

	rows, err := p.DB.QueryContext(ctx, query)
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

	return catalogs, nil
}

// regexOps returns the match/no-match operators for the filter's case
// sensitivity.
func regexOps(f *filter.Compiled) (match, noMatch string) {
	if f != nil && f.CaseInsensitive() {
		return "~*", "!~*"
	}
	return "~", "!~"
}

// ListSchemas pushes the scope filter into the query, then re-applies
// the compiled matcher so behavior is identical to client-side sources.
func (p *Postgres) ListSchemas(ctx context.Context, catalog string, f *filter.Compiled) ([]*source.Schema, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('pg_catalog', 'information_schema')
		  AND schema_name NOT LIKE 'pg_toast%'
	`)
	var args []any

	if f != nil {
		match, noMatch := regexOps(f)
		if include, ok := f.ScopeInclude(); ok {
			args = append(args, include)
			fmt.Fprintf(&sb, " AND schema_name %s $%d", match, len(args))
		}
		if exclude, ok := f.ScopeExclude(); ok {
			args = append(args, exclude)
			fmt.Fprintf(&sb, " AND schema_name %s $%d", noMatch, len(args))
		}
	}
	sb.WriteString(" ORDER BY schema_name")

	rows, err := p.DB.QueryContext(ctx, sb.String(), args...)
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

// ListTables pushes child patterns for the schema scope into the query.
func (p *Postgres) ListTables(ctx context.Context, catalog, schema string, f *filter.Compiled) ([]*source.Table, error) {
	scopeKey := catalog + "." + schema

	var sb strings.Builder
	sb.WriteString(`
		SELECT table_name, table_type
		FROM information_schema.tables
		WHERE table_schema = $1
	`)
	args := []any{schema}

	if f != nil {
		match, noMatch := regexOps(f)
		if include, ok := f.ChildInclude(scopeKey); ok {
			args = append(args, include)
			fmt.Fprintf(&sb, " AND table_name %s $%d", match, len(args))
		}
		if exclude, ok := f.ChildExclude(scopeKey); ok {
			args = append(args, exclude)
			fmt.Fprintf(&sb, " AND table_name %s $%d", noMatch, len(args))
		}
	}
	sb.WriteString(" ORDER BY table_name")

	rows, err := p.DB.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, source.Classify(err, "listTables", scopeKey)
	}
	defer rows.Close()

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

// ListColumns returns columns with precision/scale from
// information_schema.
func (p *Postgres) ListColumns(ctx context.Context, catalog, schema, table string) ([]*source.Column, error) {
	query := `
		SELECT
			column_name,
			data_type,
			is_nullable,
			COALESCE(numeric_precision, 0),
			COALESCE(numeric_scale, 0),
			COALESCE(character_maximum_length, 0),
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := p.DB.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, source.Classify(err, "listColumns", catalog+"."+schema+"."+table)
	}
	defer rows.Close()

	var columns []*source.Column
	for rows.Next() {
		var c source.Column
		var isNullable string
		if err := rows.Scan(&c.Name, &c.DataType, &isNullable, &c.Precision, &c.Scale, &c.Length, &c.Position); err != nil {
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
