package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/contract-analyzer/internal/adapters/mcp"
	"github.com/kirillkom/contract-analyzer/internal/bootstrap"
	"github.com/kirillkom/contract-analyzer/internal/config"
	"github.com/kirillkom/contract-analyzer/internal/observability/logging"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	// stdout carries the protocol stream.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	s := mcpadapter.NewServer(mcpadapter.NewTools(app.AnalyzeUC, app.AskUC), version)
	slog.Info("mcp_stdio_serving", "version", version)
	if err := server.ServeStdio(s); err != nil {
		slog.Error("mcp_server_failed", "error", err)
	}
}
