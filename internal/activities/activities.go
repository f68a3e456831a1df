package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/metahub/mex-core/internal/extract"
	"github.com/metahub/mex-core/internal/filter"
	"github.com/metahub/mex-core/internal/preflight"
	"github.com/metahub/mex-core/internal/run"
	"github.com/metahub/mex-core/internal/source"
	"github.com/metahub/mex-core/internal/staging"
)

// Activities holds the pipeline Temporal activities.
type Activities struct {
	Sources *source.Registry
	Staging *staging.Registry
}

// NewActivities creates an Activities instance over the given
// registries; nil registries fall back to the defaults.
func NewActivities(sources *source.Registry, stagingReg *staging.Registry) *Activities {
	if sources == nil {
		sources = source.DefaultRegistry()
	}
	if stagingReg == nil {
		stagingReg = staging.NewRegistry(staging.NewMemoryProvider(0))
	}
	return &Activities{Sources: sources, Staging: stagingReg}
}

// gateway opens the source gateway for one activity invocation.
// Activities are self-contained: each retry builds its own connection,
// so a worker restart between attempts is harmless.
func (a *Activities) gateway(spec ConnectionSpec) (source.Gateway, error) {
	gw, err := a.Sources.Create(spec.TemplateID, spec.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	return gw, nil
}

func (a *Activities) extractor(req *ExtractRequest, gw source.Gateway) (*extract.Extractor, error) {
	provider, err := a.Staging.Select(req.StagingProvider)
	if err != nil {
		return nil, err
	}
	compiled := filter.Compile(req.Filter)
	return extract.New(gw, provider, compiled, req.RunID, nil), nil
}

// =============================================================================
// ACTIVITY: RunPreflight
// =============================================================================

// RunPreflight tests the connection and counts filter matches.
func (a *Activities) RunPreflight(ctx context.Context, req PreflightRequest) (*PreflightResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("running preflight", "templateId", req.Connection.TemplateID)

	gw, err := a.gateway(req.Connection)
	if err != nil {
		return nil, err
	}
	defer gw.Close()

	compiled := filter.Compile(req.Filter)
	report, err := preflight.Run(ctx, gw, compiled)
	if err != nil {
		return &PreflightResult{Report: report}, err
	}

	logger.Info("preflight complete",
		"matchedSchemas", report.MatchedSchemaCount,
		"matchedTables", report.MatchedTableCount,
		"warnings", len(report.Warnings))
	return &PreflightResult{Report: report}, nil
}

// =============================================================================
// ACTIVITY: ExtractCatalogs
// =============================================================================

// ExtractCatalogs stages the catalog level and returns the discovered
// catalogs for schema-level fan-out.
func (a *Activities) ExtractCatalogs(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("extracting catalogs", "runId", req.RunID)

	gw, err := a.gateway(req.Connection)
	if err != nil {
		return nil, err
	}
	defer gw.Close()

	ex, err := a.extractor(&req, gw)
	if err != nil {
		return nil, err
	}

	catalogs, stats, err := ex.Catalogs(ctx)
	if err != nil {
		return nil, err
	}

	result := &ExtractResult{Stats: stats}
	for _, c := range catalogs {
		result.Scopes = append(result.Scopes, ScopeRef{Catalog: c.Name})
	}
	return result, nil
}

// =============================================================================
// ACTIVITY: ExtractSchemas
// =============================================================================

// ExtractSchemas stages the schema level of one catalog. A permission
// failure skips the catalog with a warning instead of failing the
// activity; Temporal retries would not change the grants.
func (a *Activities) ExtractSchemas(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("extracting schemas", "runId", req.RunID, "catalog", req.Catalog)

	gw, err := a.gateway(req.Connection)
	if err != nil {
		return nil, err
	}
	defer gw.Close()

	ex, err := a.extractor(&req, gw)
	if err != nil {
		return nil, err
	}

	schemas, stats, err := ex.Schemas(ctx, req.Catalog)
	if err != nil {
		if source.IsPermission(err) {
			return skippedScope(stats, err), nil
		}
		return nil, err
	}

	result := &ExtractResult{Stats: stats}
	for _, s := range schemas {
		result.Scopes = append(result.Scopes, ScopeRef{Catalog: s.Catalog, Schema: s.Name})
	}
	return result, nil
}

// =============================================================================
// ACTIVITY: ExtractTables
// =============================================================================

// ExtractTables stages tables and views of one schema.
func (a *Activities) ExtractTables(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("extracting tables", "runId", req.RunID, "schema", req.Catalog+"."+req.Schema)

	gw, err := a.gateway(req.Connection)
	if err != nil {
		return nil, err
	}
	defer gw.Close()

	ex, err := a.extractor(&req, gw)
	if err != nil {
		return nil, err
	}

	tables, stats, err := ex.Tables(ctx, req.Catalog, req.Schema)
	if err != nil {
		if source.IsPermission(err) {
			return skippedScope(stats, err), nil
		}
		return nil, err
	}

	result := &ExtractResult{Stats: stats}
	for _, t := range tables {
		result.Scopes = append(result.Scopes, ScopeRef{Catalog: t.Catalog, Schema: t.Schema, Table: t.Name})
	}
	return result, nil
}

// =============================================================================
// ACTIVITY: ExtractColumns
// =============================================================================

// ExtractColumns stages the column level of one table.
func (a *Activities) ExtractColumns(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("extracting columns", "runId", req.RunID, "table", req.Catalog+"."+req.Schema+"."+req.Table)

	gw, err := a.gateway(req.Connection)
	if err != nil {
		return nil, err
	}
	defer gw.Close()

	ex, err := a.extractor(&req, gw)
	if err != nil {
		return nil, err
	}

	_, stats, err := ex.Columns(ctx, req.Catalog, req.Schema, req.Table)
	if err != nil {
		if source.IsPermission(err) {
			return skippedScope(stats, err), nil
		}
		return nil, err
	}
	return &ExtractResult{Stats: stats}, nil
}

// =============================================================================
// ACTIVITY: EvaluateRun
// =============================================================================

// EvaluateRun aggregates per-activity statistics into the run outcome.
func (a *Activities) EvaluateRun(ctx context.Context, req EvaluateRequest) (*run.Outcome, error) {
	logger := activity.GetLogger(ctx)

	compiled := filter.Compile(req.Filter)
	outcome := run.Evaluate(req.RunID, compiled.Describe(), req.Stats)
	outcome.Warnings = append(req.PreflightWarnings, outcome.Warnings...)

	logger.Info("run evaluated",
		"runId", req.RunID,
		"verdict", string(outcome.Verdict),
		"totalRecords", outcome.TotalRecords)
	return outcome, nil
}

// skippedScope downgrades a per-scope permission failure into a
// warning-bearing result.
func skippedScope(stats *extract.Stats, err error) *ExtractResult {
	stats.Failed = false
	stats.Error = ""
	stats.Warnings = append(stats.Warnings,
		fmt.Sprintf("skipping %s: %v", stats.Scope, err))
	return &ExtractResult{Stats: stats}
}
