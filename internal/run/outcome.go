package run

import (
	"fmt"
	"strings"

	"github.com/metahub/mex-core/internal/extract"
)

// Verdict is the pipeline-level success/failure decision.
type Verdict string

const (
	VerdictSucceeded Verdict = "Succeeded"
	VerdictFailed    Verdict = "Failed"
)

// FailureKind distinguishes the terminal failure categories.
type FailureKind string

const (
	// FailureNone accompanies VerdictSucceeded.
	FailureNone FailureKind = ""
	// FailureFatal is a connectivity/auth failure at preflight.
	FailureFatal FailureKind = "fatal"
	// FailureStructural means one or more activities exhausted retries.
	FailureStructural FailureKind = "structural"
	// FailureDiagnostic means the run completed cleanly but produced
	// zero records.
	FailureDiagnostic FailureKind = "diagnostic"
)

// Outcome is the evaluated run result. Message is always a structured,
// human-readable diagnostic usable directly in logs and UI.
type Outcome struct {
	RunID        string           `json:"runId"`
	Verdict      Verdict          `json:"verdict"`
	FailureKind  FailureKind      `json:"failureKind,omitempty"`
	Message      string           `json:"message"`
	TotalRecords int              `json:"totalRecords"`
	PerActivity  []*extract.Stats `json:"perActivity,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
}

// Failed reports whether the outcome is any terminal failure.
func (o *Outcome) Failed() bool { return o.Verdict == VerdictFailed }

// Evaluate aggregates per-activity statistics into a verdict.
//
// A structurally clean run with zero total records fails with a
// diagnostic enumerating the likely causes, the exact filter
// configuration, and the per-activity breakdown, so a user can
// self-correct without re-running with verbose logging.
func Evaluate(runID, filterDesc string, stats []*extract.Stats) *Outcome {
	outcome := &Outcome{
		RunID:       runID,
		PerActivity: stats,
	}

	var failed []*extract.Stats
	for _, s := range stats {
		outcome.TotalRecords += s.RecordCount
		outcome.Warnings = append(outcome.Warnings, s.Warnings...)
		if s.Failed {
			failed = append(failed, s)
		}
	}

	if len(failed) > 0 {
		outcome.Verdict = VerdictFailed
		outcome.FailureKind = FailureStructural

		var sb strings.Builder
		fmt.Fprintf(&sb, "%d activit%s failed after exhausting retries:",
			len(failed), pluralY(len(failed)))
		for _, s := range failed {
			fmt.Fprintf(&sb, "\n  - %s", activityLabel(s))
			if s.Error != "" {
				fmt.Fprintf(&sb, ": %s", s.Error)
			}
		}
		outcome.Message = sb.String()
		return outcome
	}

	if outcome.TotalRecords == 0 {
		outcome.Verdict = VerdictFailed
		outcome.FailureKind = FailureDiagnostic
		outcome.Message = zeroRecordDiagnosis(filterDesc, stats)
		return outcome
	}

	outcome.Verdict = VerdictSucceeded
	var sb strings.Builder
	fmt.Fprintf(&sb, "extracted %d records", outcome.TotalRecords)
	sb.WriteString(breakdown(stats))
	outcome.Message = sb.String()
	return outcome
}

// zeroRecordDiagnosis builds the diagnostic for an empty but
// structurally successful run.
func zeroRecordDiagnosis(filterDesc string, stats []*extract.Stats) string {
	var sb strings.Builder
	sb.WriteString("extraction completed but produced 0 records. Likely causes:\n")
	sb.WriteString("  1. the filters don't match any schemas or tables in the source\n")
	sb.WriteString("  2. the source contains no user-visible entities\n")
	sb.WriteString("  3. the connection points at the wrong instance, or the credentials lack visibility\n")
	fmt.Fprintf(&sb, "filter configuration: %s", filterDesc)
	sb.WriteString(breakdown(stats))
	return sb.String()
}

// breakdown renders the per-activity record counts.
func breakdown(stats []*extract.Stats) string {
	if len(stats) == 0 {
		return "\nno activities ran"
	}
	var sb strings.Builder
	sb.WriteString("\nper-activity breakdown:")
	for _, s := range stats {
		fmt.Fprintf(&sb, "\n  %s: %d records in %dms", activityLabel(s), s.RecordCount, s.DurationMs)
		if s.Failed {
			sb.WriteString(" (failed)")
		}
	}
	return sb.String()
}

func activityLabel(s *extract.Stats) string {
	if s.Scope == "" {
		return s.Activity
	}
	return s.Activity + "[" + s.Scope + "]"
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
