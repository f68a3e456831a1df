// Package main runs the wizard HTTP gateway.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/metahub/mex-core/internal/config"
	_ "github.com/metahub/mex-core/internal/connector/resthybrid"
	_ "github.com/metahub/mex-core/internal/connector/sqlcat"
	"github.com/metahub/mex-core/internal/run"
	"github.com/metahub/mex-core/internal/server"
	"github.com/metahub/mex-core/internal/staging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := cfg.Logger()

	starter, cleanup, err := buildStarter(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to configure run starter: %v", err)
	}
	defer cleanup()

	srv := server.New(nil, starter, logger)
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("gateway listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown failed: %v", err)
	}
}

// buildStarter wires /start to Temporal when MEX_RUN_MODE=temporal,
// and to the in-process coordinator otherwise.
func buildStarter(cfg *config.Config, logger *slog.Logger) (server.Starter, func(), error) {
	if os.Getenv("MEX_RUN_MODE") == "temporal" {
		c, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalAddress,
			Namespace: cfg.TemporalNamespace,
		})
		if err != nil {
			return nil, nil, err
		}
		return &server.TemporalStarter{Client: c, TaskQueue: cfg.TaskQueue}, c.Close, nil
	}

	stagingReg := staging.NewRegistry(staging.NewMemoryProvider(0))
	if cfg.StagingDir != "" {
		fs, err := staging.NewFSProvider(cfg.StagingDir)
		if err != nil {
			return nil, nil, err
		}
		stagingReg.Register(fs)
	}

	coord := run.NewCoordinator(nil, stagingReg, logger)
	return &server.LocalStarter{Coordinator: coord, Logger: logger}, func() {}, nil
}
