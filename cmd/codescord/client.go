package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codescord/broker/internal/adminapi"
	"github.com/codescord/broker/internal/circuitbreaker"
	"github.com/codescord/broker/internal/config"
	"github.com/codescord/broker/internal/containermgr"
	"github.com/codescord/broker/internal/facade"
	"github.com/codescord/broker/internal/metrics"
	"github.com/codescord/broker/internal/pool"
	"github.com/codescord/broker/internal/protocol"
	"github.com/codescord/broker/internal/ratelimit"
	"github.com/codescord/broker/internal/wsstream"
)

// runClient boots the broker: container pool, façade, admin HTTP surface.
// It blocks until SIGINT/SIGTERM.
func runClient(args []string) {
	cfg := config.Get()
	startPort, endPort := cfg.Pool.StartPort, cfg.Pool.EndPort
	if sp, ep, ok := parsePortRangeFlag(args); ok {
		startPort, endPort = sp, ep
	}

	mgr, err := containermgr.New(containermgr.Config{
		Image:         cfg.Pool.Image,
		RunscEnabled:  cfg.Pool.RunscEnabled,
		ContainerPort: cfg.Pool.ContainerPort,
	}, slog.Default())
	if err != nil {
		fatal("failed to initialize container manager", "error", err)
	}
	defer mgr.Close()

	sweepCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := mgr.Sweep(sweepCtx, "codescord-"); err != nil {
		slog.Warn("startup sweep failed", "error", err)
	}
	cancel()

	breaker := circuitbreaker.New(circuitbreaker.PoolGuardConfig(slog.Default()))

	p := pool.New(pool.Config{
		StartPort:      startPort,
		EndPort:        endPort,
		ConnectRetries: cfg.Pool.ConnectRetries,
		Constants:      protocol.DefaultConstants,
	}, mgr, breaker, slog.Default())
	p.SetMetrics(metrics.NewPool())

	f := facade.New(p)
	_ = f // wired into a front-end protocol surface outside this entrypoint's scope

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		var redisClient *redis.Client
		if cfg.RateLimit.RedisAddr != "" {
			redisClient = redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
		}
		limiter = ratelimit.New(ratelimit.Config{MaxCallsPerMinute: cfg.RateLimit.MaxCallsPerMinute}, redisClient, slog.Default())
	}
	_ = limiter // consulted by the front-end protocol surface before calling facade.Submit

	hub := wsstream.NewHub(slog.Default())
	go hub.Run()
	go pollPoolStats(p, hub)

	admin := adminapi.New(p, hub, slog.Default())
	server := &http.Server{Addr: cfg.Server.AdminAddr, Handler: admin}

	go func() {
		slog.Info("admin HTTP surface listening", "addr", cfg.Server.AdminAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal("admin server failed", "error", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownGraceMS)*time.Millisecond)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	p.Shutdown(time.Duration(cfg.Server.ShutdownGraceMS) * time.Millisecond)

	finalSweepCtx, finalCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer finalCancel()
	if err := mgr.Sweep(finalSweepCtx, "codescord-"); err != nil {
		slog.Warn("shutdown sweep failed", "error", err)
	}
}

func pollPoolStats(p *pool.Pool, hub *wsstream.Hub) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		stats := p.Stats()
		hub.Broadcast(wsstream.Snapshot{
			InFlight:   stats.InFlight,
			QueueDepth: stats.QueueDepth,
			UsedPorts:  stats.UsedPorts,
		})
	}
}

// parsePortRangeFlag looks for "-p START:END" among args.
func parsePortRangeFlag(args []string) (start, end int, ok bool) {
	for i := 0; i < len(args); i++ {
		if args[i] == "-p" && i+1 < len(args) {
			parts := strings.SplitN(args[i+1], ":", 2)
			if len(parts) != 2 {
				return 0, 0, false
			}
			s, errS := strconv.Atoi(parts[0])
			e, errE := strconv.Atoi(parts[1])
			if errS != nil || errE != nil {
				return 0, 0, false
			}
			return s, e, true
		}
	}
	return 0, 0, false
}
