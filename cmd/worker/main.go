// Package main runs the metadata extraction Temporal worker.
package main

import (
	"context"
	"log"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/metahub/mex-core/internal/activities"
	"github.com/metahub/mex-core/internal/config"
	_ "github.com/metahub/mex-core/internal/connector/resthybrid"
	_ "github.com/metahub/mex-core/internal/connector/sqlcat"
	"github.com/metahub/mex-core/internal/staging"
	"github.com/metahub/mex-core/internal/workflows"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting metadata worker: address=%s namespace=%s queue=%s",
		cfg.TemporalAddress, cfg.TemporalNamespace, cfg.TaskQueue)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		log.Fatalf("Failed to create Temporal client: %v", err)
	}
	defer c.Close()

	stagingReg, err := buildStaging(cfg)
	if err != nil {
		log.Fatalf("Failed to configure staging: %v", err)
	}

	w := worker.New(c, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: cfg.MaxConcurrentActivities,
	})

	w.RegisterWorkflowWithOptions(workflows.MetadataRunWorkflowFunc,
		workflowOptions(workflows.MetadataRunWorkflow))
	w.RegisterWorkflowWithOptions(workflows.TestConnectionWorkflowFunc,
		workflowOptions(workflows.TestConnectionWorkflow))

	acts := activities.NewActivities(nil, stagingReg)
	w.RegisterActivity(acts.RunPreflight)
	w.RegisterActivity(acts.ExtractCatalogs)
	w.RegisterActivity(acts.ExtractSchemas)
	w.RegisterActivity(acts.ExtractTables)
	w.RegisterActivity(acts.ExtractColumns)
	w.RegisterActivity(acts.EvaluateRun)

	log.Printf("Registered 6 activities: RunPreflight, ExtractCatalogs, ExtractSchemas, ExtractTables, ExtractColumns, EvaluateRun")

	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}

func workflowOptions(name string) workflow.RegisterOptions {
	return workflow.RegisterOptions{Name: name}
}

// buildStaging registers every provider the configuration can support;
// the run request picks one, with memory as the last resort.
func buildStaging(cfg *config.Config) (*staging.Registry, error) {
	reg := staging.NewRegistry(staging.NewMemoryProvider(0))

	if cfg.StagingDir != "" {
		fs, err := staging.NewFSProvider(cfg.StagingDir)
		if err != nil {
			return nil, err
		}
		reg.Register(fs)
	}

	if cfg.Minio.EndpointURL != "" {
		mp, err := staging.NewMinioProvider(context.Background(), &staging.MinioConfig{
			EndpointURL:     cfg.Minio.EndpointURL,
			AccessKeyID:     cfg.Minio.AccessKeyID,
			SecretAccessKey: cfg.Minio.SecretAccessKey,
			Bucket:          cfg.Minio.Bucket,
			Region:          cfg.Minio.Region,
			UseSSL:          cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		reg.Register(mp)
	}

	return reg, nil
}
