// Package extract implements the per-level extraction activities.
//
// Each activity covers one hierarchy level: catalogs, schemas of a
// catalog, tables and views of a schema, columns of a table. An
// activity lists its level through the gateway, stages the records as
// one artifact batch, and reports statistics. Activities are
// independently retryable; a retry re-lists and re-stages the whole
// batch under a fresh batch ID, so a partial earlier attempt is never
// mixed into the output.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/metahub/mex-core/internal/filter"
	"github.com/metahub/mex-core/internal/source"
	"github.com/metahub/mex-core/internal/staging"
)

// Activity names as they appear in run statistics and diagnostics.
const (
	ActivityCatalogs = "extractCatalogs"
	ActivitySchemas  = "extractSchemas"
	ActivityTables   = "extractTables"
	ActivityColumns  = "extractColumns"
)

// DefaultActivityTimeout bounds a single list-and-stage attempt.
const DefaultActivityTimeout = 5 * time.Minute

// Stats is the per-activity report consumed by the run aggregator.
type Stats struct {
	Activity     string   `json:"activity"`
	Scope        string   `json:"scope,omitempty"`
	RecordCount  int      `json:"recordCount"`
	DurationMs   int64    `json:"durationMs"`
	ArtifactPath string   `json:"artifactPath,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
	Failed       bool     `json:"failed"`
	Error        string   `json:"error,omitempty"`
}

// Extractor runs extraction activities against one gateway and stages
// their output.
type Extractor struct {
	Gateway  source.Gateway
	Provider staging.Provider
	Filter   *filter.Compiled
	RunID    string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// New creates an extractor with defaults filled in.
func New(gw source.Gateway, provider staging.Provider, f *filter.Compiled, runID string, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		Gateway:  gw,
		Provider: provider,
		Filter:   f,
		RunID:    runID,
		Timeout:  DefaultActivityTimeout,
		Logger:   logger,
	}
}

func (e *Extractor) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return DefaultActivityTimeout
}

// stage writes one complete batch and fills the stats artifact fields.
// A zero-record batch is not staged; the zero count is reported through
// stats so the aggregate verdict sees it.
func (e *Extractor) stage(ctx context.Context, entityType string, records []map[string]any, stats *Stats) error {
	stats.RecordCount = len(records)
	if len(records) == 0 {
		scope := stats.Scope
		if scope == "" {
			scope = "source root"
		}
		stats.Warnings = append(stats.Warnings,
			fmt.Sprintf("%s produced 0 records for %s", stats.Activity, scope))
		return nil
	}

	artifact, err := e.Provider.PutBatch(ctx, &staging.PutRequest{
		RunID:      e.RunID,
		EntityType: entityType,
		BatchID:    staging.NewBatchID(),
		Records:    records,
	})
	if err != nil {
		return fmt.Errorf("stage %s batch: %w", entityType, err)
	}
	stats.ArtifactPath = artifact.Path

	e.Logger.Info("staged batch",
		"activity", stats.Activity,
		"path", artifact.Path,
		"records", artifact.Records,
		"bytes", artifact.Bytes)
	return nil
}

func (e *Extractor) finish(stats *Stats, started time.Time, err error) error {
	stats.DurationMs = time.Since(started).Milliseconds()
	if err != nil {
		stats.Failed = true
		stats.Error = err.Error()
		e.Logger.Error("activity failed",
			"activity", stats.Activity,
			"scope", stats.Scope,
			"error", err)
	}
	return err
}

// Catalogs extracts the catalog level.
func (e *Extractor) Catalogs(ctx context.Context) ([]*source.Catalog, *Stats, error) {
	stats := &Stats{Activity: ActivityCatalogs}
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	listed, err := e.Gateway.ListCatalogs(ctx)
	if err != nil {
		return nil, stats, e.finish(stats, started, source.Classify(err, ActivityCatalogs, ""))
	}

	catalogs := make([]*source.Catalog, 0, len(listed))
	for _, c := range listed {
		if e.Filter != nil && !e.Filter.CatalogIncluded(c.Name) {
			continue
		}
		catalogs = append(catalogs, c)
	}

	records := make([]map[string]any, 0, len(catalogs))
	for _, c := range catalogs {
		rec := map[string]any{
			"name": c.Name,
			"kind": c.Kind,
		}
		if len(c.Extra) > 0 {
			rec["extra"] = c.Extra
		}
		records = append(records, rec)
	}

	if err := e.stage(ctx, "catalog", records, stats); err != nil {
		return nil, stats, e.finish(stats, started, err)
	}
	return catalogs, stats, e.finish(stats, started, nil)
}

// Schemas extracts the schema level of one catalog.
func (e *Extractor) Schemas(ctx context.Context, catalog string) ([]*source.Schema, *Stats, error) {
	stats := &Stats{Activity: ActivitySchemas, Scope: catalog}
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	schemas, err := e.Gateway.ListSchemas(ctx, catalog, e.Filter)
	if err != nil {
		return nil, stats, e.finish(stats, started, err)
	}

	records := make([]map[string]any, 0, len(schemas))
	for _, s := range schemas {
		rec := map[string]any{
			"catalog": s.Catalog,
			"name":    s.Name,
			"kind":    s.Kind,
		}
		if len(s.Extra) > 0 {
			rec["extra"] = s.Extra
		}
		records = append(records, rec)
	}

	if err := e.stage(ctx, "schema", records, stats); err != nil {
		return nil, stats, e.finish(stats, started, err)
	}
	return schemas, stats, e.finish(stats, started, nil)
}

// Tables extracts tables and views of one schema. Views are part of
// the same level; their records carry kind "view".
func (e *Extractor) Tables(ctx context.Context, catalog, schema string) ([]*source.Table, *Stats, error) {
	stats := &Stats{Activity: ActivityTables, Scope: catalog + "." + schema}
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	tables, err := e.Gateway.ListTables(ctx, catalog, schema, e.Filter)
	if err != nil {
		return nil, stats, e.finish(stats, started, err)
	}

	records := make([]map[string]any, 0, len(tables))
	for _, t := range tables {
		rec := map[string]any{
			"catalog": t.Catalog,
			"schema":  t.Schema,
			"name":    t.Name,
			"kind":    t.Kind,
		}
		if t.Comment != "" {
			rec["comment"] = t.Comment
		}
		records = append(records, rec)
	}

	if err := e.stage(ctx, "table", records, stats); err != nil {
		return nil, stats, e.finish(stats, started, err)
	}
	return tables, stats, e.finish(stats, started, nil)
}

// Columns extracts the column level of one table.
func (e *Extractor) Columns(ctx context.Context, catalog, schema, table string) ([]*source.Column, *Stats, error) {
	stats := &Stats{Activity: ActivityColumns, Scope: catalog + "." + schema + "." + table}
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	columns, err := e.Gateway.ListColumns(ctx, catalog, schema, table)
	if err != nil {
		return nil, stats, e.finish(stats, started, err)
	}

	records := make([]map[string]any, 0, len(columns))
	for _, c := range columns {
		rec := map[string]any{
			"catalog":  c.Catalog,
			"schema":   c.Schema,
			"table":    c.Table,
			"name":     c.Name,
			"dataType": c.DataType,
			"nullable": c.Nullable,
			"position": c.Position,
		}
		if c.Precision > 0 {
			rec["precision"] = c.Precision
		}
		if c.Scale > 0 {
			rec["scale"] = c.Scale
		}
		if c.Length > 0 {
			rec["length"] = c.Length
		}
		records = append(records, rec)
	}

	if err := e.stage(ctx, "column", records, stats); err != nil {
		return nil, stats, e.finish(stats, started, err)
	}
	return columns, stats, e.finish(stats, started, nil)
}
