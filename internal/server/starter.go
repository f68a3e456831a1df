package server

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"

	"github.com/metahub/mex-core/internal/activities"
	"github.com/metahub/mex-core/internal/run"
	"github.com/metahub/mex-core/internal/workflows"
)

// Starter begins a metadata run asynchronously and returns its
// workflow ID.
type Starter interface {
	StartRun(ctx context.Context, req *activities.RunRequest) (string, error)
}

// TemporalStarter starts runs on a Temporal task queue.
type TemporalStarter struct {
	Client    client.Client
	TaskQueue string
}

// StartRun submits the metadata-run workflow.
func (s *TemporalStarter) StartRun(ctx context.Context, req *activities.RunRequest) (string, error) {
	workflowID := "metadata-run-" + uuid.New().String()
	if req.RunID == "" {
		req.RunID = workflowID
	}

	we, err := s.Client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: s.TaskQueue,
	}, workflows.MetadataRunWorkflowFunc, *req)
	if err != nil {
		return "", err
	}
	return we.GetID(), nil
}

// LocalStarter runs the coordinator in-process. Used when no workflow
// engine is configured, and in tests.
type LocalStarter struct {
	Coordinator *run.Coordinator
	Logger      *slog.Logger
}

// StartRun launches a coordinator run in a background goroutine. The
// run detaches from the request context: closing the HTTP connection
// must not cancel an accepted run.
func (s *LocalStarter) StartRun(ctx context.Context, req *activities.RunRequest) (string, error) {
	runID := req.RunID
	if runID == "" {
		runID = "metadata-run-" + uuid.New().String()
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	args := &run.Args{
		RunID:           runID,
		TemplateID:      req.Connection.TemplateID,
		Config:          req.Connection.Config,
		Filter:          req.Filter,
		PoolSize:        req.PoolSize,
		StagingProvider: req.StagingProvider,
	}

	go func() {
		outcome, err := s.Coordinator.Run(context.Background(), args)
		if err != nil {
			logger.Error("run aborted", "runId", runID, "error", err)
			return
		}
		logger.Info("run finished",
			"runId", runID,
			"verdict", string(outcome.Verdict),
			"totalRecords", outcome.TotalRecords)
	}()
	return runID, nil
}
