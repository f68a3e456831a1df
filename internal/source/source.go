// Package source defines the capability contract all metadata gateways
// must implement.
//
// Architecture:
//
//	Gateway        - Base contract (TestConnection, list hierarchy levels)
//	sqlcat.*       - SQL-catalog gateways (information_schema based)
//	resthybrid.*   - REST+SQL hybrid gateway
//
// A gateway is a read-only client over a source organized as
// catalog -> schema -> table/view -> column. Every list call applies the
// compiled filter server-side where the source supports predicate
// pushdown and client-side otherwise. No gateway call mutates source
// state.
package source

import (
	"context"

	"github.com/metahub/mex-core/internal/filter"
)

// Gateway is the capability contract for metadata sources.
type Gateway interface {
	// ID returns the gateway template identifier (e.g. "sql.postgres").
	ID() string

	// TestConnection verifies connectivity and authentication. A nil
	// error means the source is reachable with the given credentials.
	TestConnection(ctx context.Context) error

	// ListCatalogs returns the catalogs (databases) visible to the
	// authenticated principal.
	ListCatalogs(ctx context.Context) ([]*Catalog, error)

	// ListSchemas returns schemas of a catalog that pass the filter.
	ListSchemas(ctx context.Context, catalog string, f *filter.Compiled) ([]*Schema, error)

	// ListTables returns tables and views of a schema that pass the
	// filter. Views are distinguished by Kind.
	ListTables(ctx context.Context, catalog, schema string, f *filter.Compiled) ([]*Table, error)

	// ListColumns returns the columns of one table.
	ListColumns(ctx context.Context, catalog, schema, table string) ([]*Column, error)

	// Close releases any resources held by the gateway.
	Close() error
}

// Catalog is a top-level scope (database, or application for hybrid
// sources).
type Catalog struct {
	Name   string         `json:"name"`
	Kind   string         `json:"kind,omitempty"` // "database", "app"
	Extra  map[string]any `json:"extra,omitempty"`
	Source string         `json:"source,omitempty"`
}

// Schema is a second-level scope (schema, or page/collection for hybrid
// sources).
type Schema struct {
	Catalog string         `json:"catalog"`
	Name    string         `json:"name"`
	Kind    string         `json:"kind,omitempty"` // "schema", "collection"
	Extra   map[string]any `json:"extra,omitempty"`
}

// Key returns the qualified scope key used for filtering.
func (s *Schema) Key() string { return s.Catalog + "." + s.Name }

// Table is a table or view within a schema.
type Table struct {
	Catalog string `json:"catalog"`
	Schema  string `json:"schema"`
	Name    string `json:"name"`
	Kind    string `json:"kind"` // "table" or "view"
	Comment string `json:"comment,omitempty"`
}

// Column is one column of a table or view.
type Column struct {
	Catalog   string `json:"catalog"`
	Schema    string `json:"schema"`
	Table     string `json:"table"`
	Name      string `json:"name"`
	DataType  string `json:"dataType"`
	Nullable  bool   `json:"nullable"`
	Precision int    `json:"precision,omitempty"`
	Scale     int    `json:"scale,omitempty"`
	Length    int    `json:"length,omitempty"`
	Position  int    `json:"position"`
	Comment   string `json:"comment,omitempty"`
}

// ScopeNode is one node of the selectable-scope tree returned to the
// wizard frontend (catalog -> schema, or app -> collection).
type ScopeNode struct {
	Name     string       `json:"name"`
	Kind     string       `json:"kind"`
	Children []*ScopeNode `json:"children,omitempty"`
}
