// Command docweave loads a configuration document (spec §6.1) and either
// runs it once to completion or serves it behind the HTTP API, adapted
// from the teacher's single-purpose cmd/server/main.go into a small cobra
// tree of subcommands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docweave/docweave/internal/api"
	"github.com/docweave/docweave/internal/config"
	"github.com/docweave/docweave/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	_ "github.com/docweave/docweave/internal/htmlsource"
	_ "github.com/docweave/docweave/internal/output"
	_ "github.com/docweave/docweave/internal/sources"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	root := &cobra.Command{Use: "docweave"}
	root.AddCommand(newRunCmd(log), newServeCmd(log))

	if err := root.Execute(); err != nil {
		log.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// newRunCmd runs a single configuration document to completion and exits,
// printing a one-line summary of the outcome.
func newRunCmd(log *slog.Logger) *cobra.Command {
	var configPath string
	var workers int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pipeline configuration document once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return fmt.Errorf("read configuration document: %w", err)
			}
			doc, err := config.ParseDocument(data)
			if err != nil {
				return err
			}

			metrics := pipeline.NewMetrics(prometheus.NewRegistry())
			pl, err := config.Build(doc, metrics)
			if err != nil {
				return err
			}

			orch := pipeline.NewOrchestrator(workers, log)
			res, err := orch.Run(cmd.Context(), pl)
			if res != nil {
				log.Info("run finished",
					"documents", len(res.Documents),
					"succeeded", res.Succeeded(),
					"failed", res.Failed(),
				)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a pipeline configuration document (required)")
	cmd.Flags().IntVar(&workers, "workers", 4, "number of documents processed concurrently")
	cmd.MarkFlagRequired("config")
	return cmd
}

// newServeCmd starts the HTTP API, which accepts configuration documents at
// runtime instead of a single one fixed at startup.
func newServeCmd(log *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API for submitting and polling pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), log)
		},
	}
	return cmd
}

func serve(ctx context.Context, log *slog.Logger) error {
	cfg := config.Load()

	metrics := pipeline.NewMetrics(prometheus.DefaultRegisterer)

	orch := pipeline.NewOrchestrator(cfg.WorkerCount, log)
	orch.Runs = pipeline.NewRunStore(cfg.RunTTL)

	srv := api.NewServer(orch, metrics, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanupTicker := time.NewTicker(cfg.RunTTL)
	defer cleanupTicker.Stop()
	go func() {
		for {
			select {
			case <-cleanupTicker.C:
				orch.Runs.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting docweave", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
