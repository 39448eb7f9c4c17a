package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/rotosolve/internal/server"
	"github.com/cwbudde/rotosolve/internal/store"
)

var (
	serveAddr       string
	noStore         bool
	shutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP job server",
	Long: `Starts an HTTP server that runs optimization jobs in the background.

Endpoints:
  POST /api/v1/jobs              create a job (optionally with resumeFrom)
  GET  /api/v1/jobs              list jobs
  GET  /api/v1/jobs/{id}/status  job status
  POST /api/v1/jobs/{id}/cancel  cancel a job
  GET  /api/v1/jobs/{id}/stream  progress events (SSE)
  GET  /metrics                  Prometheus metrics

On SIGINT or SIGTERM running jobs are cancelled and checkpointed.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().BoolVar(&noStore, "no-store", false, "Do not persist checkpoints and traces")
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "Time allowed for jobs to stop on shutdown")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	var checkpointStore store.Store
	if !noStore {
		fsStore, err := store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to create checkpoint store: %w", err)
		}
		checkpointStore = fsStore
		slog.Info("Checkpoint store ready", "data_dir", fsStore.BaseDir())
	}

	srv := server.NewServer(serveAddr, checkpointStore)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
