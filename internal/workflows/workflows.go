// Package workflows provides the Temporal workflow driving one
// metadata run: preflight, level-by-level extraction fan-out, and
// outcome evaluation.
package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/metahub/mex-core/internal/activities"
	"github.com/metahub/mex-core/internal/extract"
	"github.com/metahub/mex-core/internal/filter"
	"github.com/metahub/mex-core/internal/run"
)

// =============================================================================
// WORKFLOW NAMES
// =============================================================================

const (
	MetadataRunWorkflow    = "metadataRunWorkflow"
	TestConnectionWorkflow = "testSourceConnectionWorkflow"
)

// =============================================================================
// ACTIVITY OPTIONS
// =============================================================================

var defaultActivityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 30 * time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    time.Minute,
		MaximumAttempts:    3,
	},
}

var preflightActivityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 5 * time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    time.Minute,
		MaximumAttempts:    3,
	},
}

// =============================================================================
// METADATA RUN WORKFLOW
// =============================================================================

// MetadataRunWorkflowFunc drives one metadata run. Catalog extraction
// runs first; schema, table, and column levels fan out as sibling
// activity futures once their parent scope is known. An activity that
// exhausts its retries is recorded as a structural failure; the run
// still completes the remaining scopes and evaluates.
func MetadataRunWorkflowFunc(ctx workflow.Context, req activities.RunRequest) (*run.Outcome, error) {
	logger := workflow.GetLogger(ctx)
	info := workflow.GetInfo(ctx)

	runID := req.RunID
	if runID == "" {
		runID = info.WorkflowExecution.ID
	}

	spec := req.Filter
	if len(spec.Include) == 0 && len(spec.Exclude) == 0 &&
		(req.IncludeFilter != "" || req.ExcludeFilter != "") {
		parsed, err := filter.ParseWire(req.IncludeFilter, req.ExcludeFilter, spec.Options)
		if err != nil {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidFilter", err)
		}
		spec = parsed
	}

	actCtx := workflow.WithActivityOptions(ctx, defaultActivityOptions)
	preCtx := workflow.WithActivityOptions(ctx, preflightActivityOptions)

	// Step 1: preflight. A failure here is fatal; no extraction runs.
	var pre activities.PreflightResult
	err := workflow.ExecuteActivity(preCtx, "RunPreflight", activities.PreflightRequest{
		Connection: req.Connection,
		Filter:     spec,
	}).Get(ctx, &pre)
	if err != nil {
		logger.Info("preflight failed, aborting run", "runId", runID, "error", err)
		return &run.Outcome{
			RunID:       runID,
			Verdict:     run.VerdictFailed,
			FailureKind: run.FailureFatal,
			Message:     "preflight failed: " + err.Error(),
		}, nil
	}
	var preflightWarnings []string
	if pre.Report != nil {
		preflightWarnings = pre.Report.Warnings
	}

	// Step 2: catalog level.
	var stats []*extract.Stats
	extractReq := activities.ExtractRequest{
		RunID:           runID,
		Connection:      req.Connection,
		Filter:          spec,
		StagingProvider: req.StagingProvider,
	}

	var catResult activities.ExtractResult
	err = workflow.ExecuteActivity(actCtx, "ExtractCatalogs", extractReq).Get(ctx, &catResult)
	if err != nil {
		stats = append(stats, failedStats(extract.ActivityCatalogs, "", err))
		return evaluate(ctx, actCtx, runID, spec, stats, preflightWarnings)
	}
	stats = append(stats, catResult.Stats)

	limit := req.PoolSize
	if limit <= 0 {
		limit = run.DefaultPoolSize
	}

	// Step 3: schema level, siblings concurrent per catalog.
	schemaResults, schemaStats := fanOut(ctx, actCtx, "ExtractSchemas", extractReq, catResult.Scopes, extract.ActivitySchemas, limit)
	stats = append(stats, schemaStats...)

	// Step 4: table level per schema.
	var schemaScopes []activities.ScopeRef
	for _, r := range schemaResults {
		schemaScopes = append(schemaScopes, r.Scopes...)
	}
	tableResults, tableStats := fanOut(ctx, actCtx, "ExtractTables", extractReq, schemaScopes, extract.ActivityTables, limit)
	stats = append(stats, tableStats...)

	// Step 5: column level per table.
	var tableScopes []activities.ScopeRef
	for _, r := range tableResults {
		tableScopes = append(tableScopes, r.Scopes...)
	}
	_, columnStats := fanOut(ctx, actCtx, "ExtractColumns", extractReq, tableScopes, extract.ActivityColumns, limit)
	stats = append(stats, columnStats...)

	// Step 6: aggregate.
	return evaluate(ctx, actCtx, runID, spec, stats, preflightWarnings)
}

// fanOut runs one sibling activity per scope in waves of at most limit
// concurrent futures, so in-flight source connections queue behind the
// pool bound instead of scaling with scope count. An exhausted-retry
// failure becomes a failed stats entry instead of aborting the
// workflow.
func fanOut(ctx workflow.Context, actCtx workflow.Context, activityName string, base activities.ExtractRequest, scopes []activities.ScopeRef, statsActivity string, limit int) ([]*activities.ExtractResult, []*extract.Stats) {
	type pending struct {
		scope  activities.ScopeRef
		future workflow.Future
	}

	var results []*activities.ExtractResult
	var stats []*extract.Stats

	for start := 0; start < len(scopes); start += limit {
		end := start + limit
		if end > len(scopes) {
			end = len(scopes)
		}

		futures := make([]pending, 0, end-start)
		for _, scope := range scopes[start:end] {
			req := base
			req.Catalog = scope.Catalog
			req.Schema = scope.Schema
			req.Table = scope.Table
			futures = append(futures, pending{
				scope:  scope,
				future: workflow.ExecuteActivity(actCtx, activityName, req),
			})
		}

		for _, p := range futures {
			var result activities.ExtractResult
			if err := p.future.Get(ctx, &result); err != nil {
				stats = append(stats, failedStats(statsActivity, scopeLabel(p.scope), err))
				continue
			}
			results = append(results, &result)
			stats = append(stats, result.Stats)
		}
	}
	return results, stats
}

func evaluate(ctx workflow.Context, actCtx workflow.Context, runID string, spec filter.Spec, stats []*extract.Stats, preflightWarnings []string) (*run.Outcome, error) {
	var outcome run.Outcome
	err := workflow.ExecuteActivity(actCtx, "EvaluateRun", activities.EvaluateRequest{
		RunID:             runID,
		Filter:            spec,
		Stats:             stats,
		PreflightWarnings: preflightWarnings,
	}).Get(ctx, &outcome)
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

func failedStats(activityName, scope string, err error) *extract.Stats {
	return &extract.Stats{
		Activity: activityName,
		Scope:    scope,
		Failed:   true,
		Error:    err.Error(),
	}
}

func scopeLabel(s activities.ScopeRef) string {
	label := s.Catalog
	if s.Schema != "" {
		label += "." + s.Schema
	}
	if s.Table != "" {
		label += "." + s.Table
	}
	return label
}

// =============================================================================
// TEST CONNECTION WORKFLOW
// =============================================================================

// TestConnectionWorkflowFunc runs a one-shot connection test. A
// failure is non-retryable: bad credentials do not improve with
// retries.
func TestConnectionWorkflowFunc(ctx workflow.Context, req activities.PreflightRequest) (*activities.PreflightResult, error) {
	actCtx := workflow.WithActivityOptions(ctx, preflightActivityOptions)

	var result activities.PreflightResult
	err := workflow.ExecuteActivity(actCtx, "RunPreflight", req).Get(ctx, &result)
	if err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "SourceConnectionFailure", err)
	}
	return &result, nil
}
