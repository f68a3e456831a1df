// Package activities provides Temporal activity implementations for the
// metadata extraction pipeline.
package activities

import (
	"github.com/metahub/mex-core/internal/extract"
	"github.com/metahub/mex-core/internal/filter"
	"github.com/metahub/mex-core/internal/preflight"
)

// ConnectionSpec identifies a source gateway and its configuration.
type ConnectionSpec struct {
	TemplateID string         `json:"templateId"`
	Config     map[string]any `json:"config"`
}

// RunRequest is the workflow input for one metadata run.
type RunRequest struct {
	RunID           string         `json:"runId,omitempty"`
	Connection      ConnectionSpec `json:"connection"`
	Filter          filter.Spec    `json:"filter"`
	IncludeFilter   string         `json:"include-metadata,omitempty"`
	ExcludeFilter   string         `json:"exclude-metadata,omitempty"`
	StagingProvider string         `json:"stagingProvider,omitempty"`
	PoolSize        int            `json:"poolSize,omitempty"`
}

// PreflightRequest is the input for the RunPreflight activity.
type PreflightRequest struct {
	Connection ConnectionSpec `json:"connection"`
	Filter     filter.Spec    `json:"filter"`
}

// PreflightResult is the output of the RunPreflight activity.
type PreflightResult struct {
	Report *preflight.Report `json:"report"`
}

// ExtractRequest is the input for the per-level extraction activities.
// Catalog/Schema/Table narrow the scope for the deeper levels.
type ExtractRequest struct {
	RunID           string         `json:"runId"`
	Connection      ConnectionSpec `json:"connection"`
	Filter          filter.Spec    `json:"filter"`
	StagingProvider string         `json:"stagingProvider,omitempty"`
	Catalog         string         `json:"catalog,omitempty"`
	Schema          string         `json:"schema,omitempty"`
	Table           string         `json:"table,omitempty"`
}

// ScopeRef points at one discovered scope for child-level fan-out.
type ScopeRef struct {
	Catalog string `json:"catalog,omitempty"`
	Schema  string `json:"schema,omitempty"`
	Table   string `json:"table,omitempty"`
}

// ExtractResult is the output of one extraction activity.
type ExtractResult struct {
	Stats  *extract.Stats `json:"stats"`
	Scopes []ScopeRef     `json:"scopes,omitempty"`
}

// EvaluateRequest is the input for the EvaluateRun activity.
type EvaluateRequest struct {
	RunID             string           `json:"runId"`
	Filter            filter.Spec      `json:"filter"`
	Stats             []*extract.Stats `json:"stats"`
	PreflightWarnings []string         `json:"preflightWarnings,omitempty"`
}
