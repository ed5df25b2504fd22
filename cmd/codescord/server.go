package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/codescord/broker/internal/config"
	"github.com/codescord/broker/internal/langrunner"
	"github.com/codescord/broker/internal/protocol"
	"github.com/codescord/broker/internal/workerserver"
)

// runServer runs the in-container worker: one TCP listener driving the
// worker side of the protocol against the language runner.
func runServer(args []string) {
	cfg := config.Get()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner := langrunner.New(time.Duration(cfg.Worker.JobTimeoutMS)*time.Millisecond, slog.Default())
	srv := workerserver.New(cfg.Worker.ListenAddr, protocol.DefaultConstants, runner, slog.Default())

	if err := srv.Run(ctx); err != nil {
		fatal("worker server failed", "error", err)
	}
}
