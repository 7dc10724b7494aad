package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xtal-lab/xtal/internal/document"
	"github.com/xtal-lab/xtal/internal/document/api"
	"github.com/xtal-lab/xtal/internal/evaluation"
	"github.com/xtal-lab/xtal/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	slog.Info("Loaded config", "config", cfg)

	// 1. Document store
	repo, release, err := openStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer release()
	docs := document.NewService(repo)

	// 2. Evaluation pipeline
	evalCfg, err := cfg.Evaluation.ServiceConfig()
	if err != nil {
		return err
	}
	evalSvc, err := evaluation.NewService(evalCfg, docs, cfg.Server.MaxBodySizeMB)
	if err != nil {
		return fmt.Errorf("failed to initialize evaluation: %w", err)
	}
	defer evalSvc.Close()

	// 3. HTTP server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), repo, cfg.Storage.Type, cfg.Server.Mode)
	srv.Mount(api.NewService(docs, cfg.Server.MaxBodySizeMB), evalSvc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}

	slog.Info("Shutdown complete")
	return nil
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
