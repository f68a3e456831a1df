// Package resthybrid implements the REST+SQL hybrid gateway.
//
// Sources of this shape expose their scope hierarchy (app -> collection)
// through a REST control-plane API while structural metadata for the
// backing warehouse (tables, columns) is read over SQL. The REST side
// filters client-side; the SQL side pushes predicates down like sqlcat.
package resthybrid

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // warehouse driver

	"github.com/metahub/mex-core/internal/connector/httpx"
	"github.com/metahub/mex-core/internal/filter"
	"github.com/metahub/mex-core/internal/source"
)

var _ source.Gateway = (*Hybrid)(nil)

// Hybrid is the REST+SQL gateway.
type Hybrid struct {
	Config *Config
	REST   *httpx.Client
	DB     *sql.DB
}

// Config holds hybrid gateway configuration.
type Config struct {
	BaseURL      string
	AppsPath     string
	WarehouseDSN string
	MaxOpenConns int
	Auth         httpx.AuthConfig
}

// ParseConfig extracts hybrid configuration from a map.
func ParseConfig(m map[string]any) *Config {
	cfg := &Config{
		BaseURL:      getString(m, "base_url", ""),
		AppsPath:     getString(m, "apps_path", "/api/v1/apps"),
		WarehouseDSN: getString(m, "warehouse_dsn", ""),
		MaxOpenConns: getInt(m, "max_open_conns", 10),
		Auth:         httpx.FromConfig(m),
	}
	return cfg
}

// New creates a hybrid gateway.
func New(config map[string]any) (*Hybrid, error) {
	cfg := ParseConfig(config)
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base_url is required")
	}

	clientCfg := httpx.DefaultClientConfig()
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.Auth = cfg.Auth

	h := &Hybrid{
		Config: cfg,
		REST:   httpx.NewClient(clientCfg),
	}

	if cfg.WarehouseDSN != "" {
		db, err := sql.Open("pgx", cfg.WarehouseDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open warehouse: %w", err)
		}
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		h.DB = db
	}

	return h, nil
}

// ID returns the gateway template ID.
func (h *Hybrid) ID() string { return "hybrid.rest" }

// PoolSize returns the warehouse pool bound used for fan-out limits.
func (h *Hybrid) PoolSize() int { return h.Config.MaxOpenConns }

// Close releases the warehouse connection pool.
func (h *Hybrid) Close() error {
	if h.DB != nil {
		return h.DB.Close()
	}
	return nil
}

// TestConnection checks both halves: the REST control plane and, when
// configured, the warehouse.
func (h *Hybrid) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	q := url.Values{}
	q.Set("limit", "1")
	if _, err := h.REST.Get(ctx, h.Config.AppsPath, q); err != nil {
		return classifyREST(err, "testConnection", "")
	}

	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			return &source.ConnectivityError{Err: err}
		}
	}
	return nil
}

// appItem is the REST representation of an application scope.
type appItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// collectionItem is the REST representation of a collection scope.
type collectionItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Schema string `json:"schema,omitempty"`
}

// ListCatalogs lists applications from the REST control plane.
func (h *Hybrid) ListCatalogs(ctx context.Context) ([]*source.Catalog, error) {
	resp, err := h.REST.Get(ctx, h.Config.AppsPath, nil)
	if err != nil {
		return nil, classifyREST(err, "listCatalogs", "")
	}

	var payload struct {
		Values []appItem `json:"values"`
	}
	if err := resp.JSON(&payload); err != nil {
		return nil, fmt.Errorf("listCatalogs: decode response: %w", err)
	}

	catalogs := make([]*source.Catalog, 0, len(payload.Values))
	for _, app := range payload.Values {
		catalogs = append(catalogs, &source.Catalog{
			Name: app.Name,
			Kind: "app",
			Extra: map[string]any{
				"id": app.ID,
			},
		})
	}
	return catalogs, nil
}

// ListSchemas lists collections of an app, filtered client-side. A 403
// on a single app is reported as a PermissionError for that scope.
func (h *Hybrid) ListSchemas(ctx context.Context, catalog string, f *filter.Compiled) ([]*source.Schema, error) {
	path := strings.TrimSuffix(h.Config.AppsPath, "/") + "/" + url.PathEscape(catalog) + "/collections"
	resp, err := h.REST.Get(ctx, path, nil)
	if err != nil {
		return nil, classifyREST(err, "listSchemas", catalog)
	}

	var payload struct {
		Values []collectionItem `json:"values"`
	}
	if err := resp.JSON(&payload); err != nil {
		return nil, fmt.Errorf("listSchemas: decode response: %w", err)
	}

	schemas := make([]*source.Schema, 0, len(payload.Values))
	for _, col := range payload.Values {
		s := &source.Schema{
			Catalog: catalog,
			Name:    col.Name,
			Kind:    "collection",
			Extra: map[string]any{
				"id": col.ID,
			},
		}
		if col.Schema != "" {
			s.Extra["warehouseSchema"] = col.Schema
		}
		if f != nil && !f.ScopeIncluded(s.Key()) {
			continue
		}
		schemas = append(schemas, s)
	}
	return schemas, nil
}

// ListTables reads warehouse tables for a collection over SQL, pushing
// child patterns server-side and re-applying the compiled matcher.
func (h *Hybrid) ListTables(ctx context.Context, catalog, schema string, f *filter.Compiled) ([]*source.Table, error) {
	if h.DB == nil {
		return nil, &source.ConnectivityError{Err: errors.New("warehouse_dsn not configured")}
	}

	scopeKey := catalog + "." + schema

	var sb strings.Builder
	sb.WriteString(`
		SELECT table_name, table_type
		FROM information_schema.tables
		WHERE table_schema = $1
	`)
	args := []any{schema}

	if f != nil {
		match, noMatch := "~", "!~"
		if f.CaseInsensitive() {
			match, noMatch = "~*", "!~*"
		}
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

	rows, err := h.DB.QueryContext(ctx, sb.String(), args...)
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

// ListColumns reads warehouse columns for one table over SQL.
func (h *Hybrid) ListColumns(ctx context.Context, catalog, schema, table string) ([]*source.Column, error) {
	if h.DB == nil {
		return nil, &source.ConnectivityError{Err: errors.New("warehouse_dsn not configured")}
	}

	query := `
		SELECT
			column_name,
			data_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := h.DB.QueryContext(ctx, query, schema, table)
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

// classifyREST maps httpx errors onto the gateway taxonomy.
func classifyREST(err error, op, scope string) error {
	var httpErr *httpx.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.IsAuthFailure():
			return &source.ConnectivityError{Err: err}
		case httpErr.IsForbidden():
			return &source.PermissionError{Scope: scope, Err: err}
		}
		return fmt.Errorf("%s failed: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &source.TimeoutError{Op: op, Err: err}
	}
	return &source.ConnectivityError{Err: err}
}

func getString(m map[string]any, key, defaultVal string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return defaultVal
}

func getInt(m map[string]any, key string, defaultVal int) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	if v, ok := m[key].(int); ok {
		return v
	}
	return defaultVal
}
