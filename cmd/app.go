package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Unmesh-12634/HackMate-sub001/internal/application/config"
	"github.com/Unmesh-12634/HackMate-sub001/internal/application/constant"
	"github.com/Unmesh-12634/HackMate-sub001/internal/application/metric"
	"github.com/Unmesh-12634/HackMate-sub001/internal/infra/adapters/memory"
	"github.com/Unmesh-12634/HackMate-sub001/internal/infra/adapters/postgres"
	"github.com/Unmesh-12634/HackMate-sub001/internal/infra/adapters/postgres/repository"
	"github.com/Unmesh-12634/HackMate-sub001/internal/infra/adapters/redis"
	"github.com/Unmesh-12634/HackMate-sub001/internal/infra/ports/http/handlers"
	"github.com/Unmesh-12634/HackMate-sub001/internal/infra/ports/http/server"
	"github.com/Unmesh-12634/HackMate-sub001/internal/usecase"
)

const (
	shutdownTimeout    = 5 * time.Second
	pollSweepInterval  = 5 * time.Second
	gatewayDrainWindow = 2 * time.Second
)

func runServe() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		slog.Error("parse config", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	slog.SetDefault(
		slog.New(
			slog.NewJSONHandler(
				os.Stdout,
				&slog.HandlerOptions{Level: cfg.LogLevel()},
			),
		),
	)

	slog.Info("Running gateway", slog.Bool("debug", cfg.Debug), slog.String("port", cfg.Port))

	// cancelled during shutdown, after the listeners have stopped accepting
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	opts := []usecase.GatewayOption{usecase.WithTypingTTL(cfg.Gateway.TypingTTL)}

	var relay *redis.Relay
	if cfg.Redis.Enabled() {
		client, err := redis.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			slog.Error("connect to redis", slog.Any(constant.Error, err))
			os.Exit(1)
		}
		defer client.Close()

		relay = redis.NewRelay(client, cfg.Redis.ChannelPrefix)
		opts = append(opts, usecase.WithRelay(relay))
	}

	if cfg.Postgres.Enabled() {
		dbConn, err := postgres.NewPostgres(ctx, cfg.Postgres.DSN())
		if err != nil {
			slog.Error("connect to postgres", slog.Any(constant.Error, err))
			os.Exit(1)
		}
		defer dbConn.Close()

		archive := usecase.NewArchiveUsecase(repository.NewMessageRepo(dbConn), cfg.Gateway.SinkBuffer)
		go archive.Run(bgCtx)

		opts = append(opts, usecase.WithMessageSink(archive))
	}

	pollSessions := memory.NewPollSessionRepository()

	gateway := usecase.NewGatewayUsecase(
		memory.NewRoomRegistry(),
		memory.NewSessionTracker(),
		opts...,
	)

	gatewayDone := make(chan struct{})
	go func() {
		defer close(gatewayDone)
		gateway.Run(bgCtx)
	}()

	if relay != nil {
		go func() {
			if err := relay.Run(bgCtx, gateway); err != nil {
				slog.Error("redis relay stopped", slog.Any(constant.Error, err))
			}
		}()
	}

	wsHandler := handlers.NewWebSocketHandler(cfg, gateway)
	pollHandler := handlers.NewPollHandler(cfg, gateway, pollSessions)

	go pollHandler.RunSweeper(bgCtx, pollSweepInterval)

	echoSrv := server.New(wsHandler, pollHandler)
	metricsSrv := metric.NewServer(func() any { return gateway.Stats() })

	echoSrvCh := make(chan error, 1)
	metricsSrvCh := make(chan error, 1)

	go func() {
		echoSrvCh <- echoSrv.Start(":" + cfg.Port)
	}()

	go func() {
		metricsSrvCh <- metricsSrv.Start(":" + cfg.MetricPort)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down servers due to context cancel")
	case err := <-echoSrvCh:
		slog.Error(
			"HTTP server failed",
			slog.Any(constant.Error, err),
		)
		os.Exit(1)
	case err := <-metricsSrvCh:
		slog.Error(
			"Metrics server failed",
			slog.Any(constant.Error, err),
		)
		os.Exit(1)
	}

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer timeoutCancel()

	echoShutdown := make(chan error, 1)
	go func() {
		echoShutdown <- echoSrv.Shutdown(timeoutCtx)
	}()

	// stopping the gateway closes pending long polls and websockets so Shutdown can finish
	bgCancel()

	select {
	case <-gatewayDone:
	case <-time.After(gatewayDrainWindow):
		slog.Warn("gateway did not stop in time")
	}

	if err := <-echoShutdown; err != nil {
		slog.Error("Failed to gracefully shutdown HTTP server", slog.Any(constant.Error, err))
	}

	if err := metricsSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown metric server", slog.Any(constant.Error, err))
	}
}
