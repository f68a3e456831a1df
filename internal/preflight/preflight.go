// Package preflight validates connectivity and filter-match counts
// before a run commits to full extraction.
package preflight

import (
	"context"
	"fmt"

	"github.com/metahub/mex-core/internal/filter"
	"github.com/metahub/mex-core/internal/source"
)

// Report is the preflight result. A zero match count is a warning, not
// a hard failure: the run proceeds so the full pipeline can produce the
// authoritative verdict, but the warning carries the exact patterns so
// it is actionable.
type Report struct {
	Connected          bool     `json:"connected"`
	ConnectionMessage  string   `json:"connectionMessage,omitempty"`
	MatchedSchemaCount int      `json:"matchedSchemaCount"`
	MatchedTableCount  int      `json:"matchedTableCount"`
	Warnings           []string `json:"warnings,omitempty"`
}

// Run executes the preflight sequence: connection test first, then
// filtered schema/table counts. A connection failure stops the
// sequence; no list calls are made.
func Run(ctx context.Context, gw source.Gateway, f *filter.Compiled) (*Report, error) {
	report := &Report{}

	if err := gw.TestConnection(ctx); err != nil {
		report.ConnectionMessage = err.Error()
		return report, err
	}
	report.Connected = true
	report.ConnectionMessage = "Connection successful"

	report.Warnings = append(report.Warnings, f.Warnings()...)

	catalogs, err := gw.ListCatalogs(ctx)
	if err != nil {
		if source.IsConnectivity(err) {
			report.Connected = false
			report.ConnectionMessage = err.Error()
			return report, err
		}
		report.Warnings = append(report.Warnings, fmt.Sprintf("catalog listing failed: %v", err))
		return report, nil
	}

	// Count matches only; full metadata is materialized by extraction.
	for _, cat := range catalogs {
		schemas, err := gw.ListSchemas(ctx, cat.Name, f)
		if err != nil {
			if source.IsPermission(err) {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("skipping catalog %s: %v", cat.Name, err))
				continue
			}
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("schema listing failed for catalog %s: %v", cat.Name, err))
			continue
		}
		report.MatchedSchemaCount += len(schemas)

		for _, sch := range schemas {
			tables, err := gw.ListTables(ctx, sch.Catalog, sch.Name, f)
			if err != nil {
				if source.IsPermission(err) {
					report.Warnings = append(report.Warnings,
						fmt.Sprintf("skipping schema %s: %v", sch.Key(), err))
					continue
				}
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("table listing failed for schema %s: %v", sch.Key(), err))
				continue
			}
			report.MatchedTableCount += len(tables)
		}
	}

	if report.MatchedSchemaCount == 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("filters don't match any schemas (%s); extraction will proceed but may produce zero records", f.Describe()))
	} else if report.MatchedTableCount == 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("filters don't match any tables (%s); extraction will proceed but may produce zero records", f.Describe()))
	}

	return report, nil
}

// Check is one rendered wizard check.
type Check struct {
	Success        bool   `json:"success"`
	SuccessMessage string `json:"successMessage,omitempty"`
	FailureMessage string `json:"failureMessage,omitempty"`
}

// Checks is the per-check rendering consumed by the frontend wizard.
type Checks struct {
	AuthenticationCheck Check `json:"authenticationCheck"`
	ConnectivityCheck   Check `json:"connectivityCheck"`
	PermissionsCheck    Check `json:"permissionsCheck"`
}

// RenderChecks converts a report into the wizard check structure.
func (r *Report) RenderChecks() *Checks {
	checks := &Checks{}

	if r.Connected {
		checks.ConnectivityCheck = Check{Success: true, SuccessMessage: "Source is reachable"}
		checks.AuthenticationCheck = Check{Success: true, SuccessMessage: "Credentials accepted"}
	} else {
		checks.ConnectivityCheck = Check{Success: false, FailureMessage: r.ConnectionMessage}
		checks.AuthenticationCheck = Check{Success: false, FailureMessage: r.ConnectionMessage}
		checks.PermissionsCheck = Check{Success: false, FailureMessage: "Not checked: connection failed"}
		return checks
	}

	permissionIssues := 0
	for _, w := range r.Warnings {
		if len(w) >= 8 && w[:8] == "skipping" {
			permissionIssues++
		}
	}
	if permissionIssues > 0 {
		checks.PermissionsCheck = Check{
			Success:        false,
			FailureMessage: fmt.Sprintf("%d scope(s) skipped due to insufficient privileges", permissionIssues),
		}
	} else {
		checks.PermissionsCheck = Check{
			Success: true,
			SuccessMessage: fmt.Sprintf("Matched %d schema(s), %d table(s)",
				r.MatchedSchemaCount, r.MatchedTableCount),
		}
	}

	return checks
}
