// Package run hosts the stage coordinator: the state machine that
// drives one metadata run from preflight through extraction to the
// evaluated outcome, plus its statistics collector and retry policy.
package run

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/metahub/mex-core/internal/extract"
	"github.com/metahub/mex-core/internal/filter"
	"github.com/metahub/mex-core/internal/preflight"
	"github.com/metahub/mex-core/internal/source"
	"github.com/metahub/mex-core/internal/staging"
)

// State is one coordinator state.
type State string

const (
	StateStart       State = "Start"
	StatePreflight   State = "Preflight"
	StateExtracting  State = "Extracting"
	StateAggregating State = "Aggregating"
	StateSucceeded   State = "Succeeded"
	StateFailed      State = "Failed"
)

// DefaultPoolSize bounds fan-out when neither the args nor the gateway
// declare a pool bound.
const DefaultPoolSize = 4

// Args are the workflow arguments for one run. Retrieved once at the
// start and read-only thereafter, so a run is fully reproducible from
// its arguments alone.
type Args struct {
	RunID           string         `json:"runId"`
	TemplateID      string         `json:"templateId"`
	Config          map[string]any `json:"config"`
	Filter          filter.Spec    `json:"filter"`
	PoolSize        int            `json:"poolSize,omitempty"`
	StagingProvider string         `json:"stagingProvider,omitempty"`
}

// Coordinator drives the run state machine.
type Coordinator struct {
	Sources *source.Registry
	Staging *staging.Registry
	Retry   RetryPolicy
	Timeout time.Duration
	Logger  *slog.Logger

	mu    sync.Mutex
	state State
}

// NewCoordinator creates a coordinator over the given registries.
func NewCoordinator(sources *source.Registry, stagingReg *staging.Registry, logger *slog.Logger) *Coordinator {
	if sources == nil {
		sources = source.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		Sources: sources,
		Staging: stagingReg,
		Retry:   DefaultRetryPolicy(),
		Logger:  logger,
		state:   StateStart,
	}
}

// State returns the current coordinator state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.Logger.Info("run state", "state", string(s))
}

// Run executes one metadata run. The returned outcome is always
// non-nil unless the context was cancelled or the arguments could not
// produce a gateway.
func (c *Coordinator) Run(ctx context.Context, args *Args) (*Outcome, error) {
	c.setState(StateStart)

	compiled := filter.Compile(args.Filter)

	gw, err := c.Sources.Create(args.TemplateID, args.Config)
	if err != nil {
		return nil, fmt.Errorf("create gateway %q: %w", args.TemplateID, err)
	}
	defer gw.Close()

	provider, err := c.Staging.Select(args.StagingProvider)
	if err != nil {
		return nil, err
	}

	// Preflight. A connectivity failure here is fatal: no extraction
	// is attempted.
	c.setState(StatePreflight)
	report, err := preflight.Run(ctx, gw, compiled)
	if err != nil {
		c.setState(StateFailed)
		return &Outcome{
			RunID:       args.RunID,
			Verdict:     VerdictFailed,
			FailureKind: FailureFatal,
			Message:     fmt.Sprintf("preflight failed: %s", report.ConnectionMessage),
			Warnings:    report.Warnings,
		}, nil
	}

	// Extraction: level by level, siblings fanned out under the pool
	// bound, parents always completed before their children are
	// listed.
	c.setState(StateExtracting)
	collector := NewCollector()
	ex := extract.New(gw, provider, compiled, args.RunID, c.Logger)
	if c.Timeout > 0 {
		ex.Timeout = c.Timeout
	}
	limit := c.poolLimit(args, gw)

	catalogs := c.runCatalogs(ctx, ex, collector)

	schemas := c.runSchemas(ctx, ex, collector, catalogs, limit)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tables := c.runTables(ctx, ex, collector, schemas, limit)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.runColumns(ctx, ex, collector, tables, limit)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Aggregation.
	c.setState(StateAggregating)
	outcome := Evaluate(args.RunID, compiled.Describe(), collector.Snapshot())
	outcome.Warnings = append(report.Warnings, outcome.Warnings...)

	if outcome.Failed() {
		c.setState(StateFailed)
	} else {
		c.setState(StateSucceeded)
	}
	return outcome, nil
}

// poolLimit resolves the fan-out bound: explicit args, then the
// gateway's declared pool size, then the default. Excess work queues
// behind the limit rather than failing.
func (c *Coordinator) poolLimit(args *Args, gw source.Gateway) int {
	if args.PoolSize > 0 {
		return args.PoolSize
	}
	if sized, ok := gw.(interface{ PoolSize() int }); ok {
		if n := sized.PoolSize(); n > 0 {
			return n
		}
	}
	return DefaultPoolSize
}

// observe records one activity's statistics, downgrading permission
// failures to per-scope skip warnings.
func (c *Coordinator) observe(collector *Collector, stats *extract.Stats, err error) {
	if err != nil && source.IsPermission(err) {
		stats.Failed = false
		stats.Error = ""
		stats.Warnings = append(stats.Warnings,
			fmt.Sprintf("skipping %s: %v", stats.Scope, err))
	}
	collector.Append(stats)
}

func (c *Coordinator) runCatalogs(ctx context.Context, ex *extract.Extractor, collector *Collector) []*source.Catalog {
	var catalogs []*source.Catalog
	var stats *extract.Stats
	err := Do(ctx, c.Retry, func(ctx context.Context) error {
		var err error
		catalogs, stats, err = ex.Catalogs(ctx)
		return err
	})
	c.observe(collector, stats, err)
	if err != nil {
		return nil
	}
	return catalogs
}

func (c *Coordinator) runSchemas(ctx context.Context, ex *extract.Extractor, collector *Collector, catalogs []*source.Catalog, limit int) []*source.Schema {
	var mu sync.Mutex
	var all []*source.Schema

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, cat := range catalogs {
		cat := cat
		g.Go(func() error {
			var schemas []*source.Schema
			var stats *extract.Stats
			err := Do(gctx, c.Retry, func(ctx context.Context) error {
				var err error
				schemas, stats, err = ex.Schemas(ctx, cat.Name)
				return err
			})
			c.observe(collector, stats, err)
			if err != nil {
				return nil
			}
			mu.Lock()
			all = append(all, schemas...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return all
}

func (c *Coordinator) runTables(ctx context.Context, ex *extract.Extractor, collector *Collector, schemas []*source.Schema, limit int) []*source.Table {
	var mu sync.Mutex
	var all []*source.Table

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, sch := range schemas {
		sch := sch
		g.Go(func() error {
			var tables []*source.Table
			var stats *extract.Stats
			err := Do(gctx, c.Retry, func(ctx context.Context) error {
				var err error
				tables, stats, err = ex.Tables(ctx, sch.Catalog, sch.Name)
				return err
			})
			c.observe(collector, stats, err)
			if err != nil {
				return nil
			}
			mu.Lock()
			all = append(all, tables...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return all
}

func (c *Coordinator) runColumns(ctx context.Context, ex *extract.Extractor, collector *Collector, tables []*source.Table, limit int) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, tbl := range tables {
		tbl := tbl
		g.Go(func() error {
			var stats *extract.Stats
			err := Do(gctx, c.Retry, func(ctx context.Context) error {
				var err error
				_, stats, err = ex.Columns(ctx, tbl.Catalog, tbl.Schema, tbl.Name)
				return err
			})
			c.observe(collector, stats, err)
			return nil
		})
	}
	g.Wait()
}
