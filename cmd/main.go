package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatpulse/internal/app/registry"
	"chatpulse/internal/app/server"
	"chatpulse/internal/app/server/handlers"
	"chatpulse/internal/config"
	"chatpulse/internal/core/services"
	"chatpulse/internal/platform/logger"
	"chatpulse/internal/platform/metrics"
	"chatpulse/internal/platform/ratelimiter"
	"chatpulse/internal/platform/telemetry"
	"chatpulse/internal/plugins/memory"
	"chatpulse/internal/plugins/postgres"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	pdb, err := postgres.New(ctx, *cfg.Postgres)
	if err != nil {
		log.Error("postgres connection failed", "err", err)
		return
	}
	defer pdb.Close()
	log.Info("postgres connected")

	promRegistry := prometheus.NewRegistry()
	m := metrics.New(promRegistry)

	// Adapters
	msgStore := postgres.NewMessageStore(pdb)
	presenceMap := memory.NewPresenceMap()
	roomMap := memory.NewRoomMap()
	cooldownMap := memory.NewCooldownMap()

	// Core Services
	hub := registry.NewRegistry(log, m)
	seenSvc := services.NewSeenService(log, msgStore, hub, m)
	presenceSvc := services.NewPresenceService(log, cfg.Engine, presenceMap, roomMap, hub)
	roomSvc := services.NewRoomService(log, cfg.Engine, presenceMap, roomMap, hub, seenSvc)
	relaySvc := services.NewRelayService(log, presenceMap, hub, seenSvc, m)
	guardSvc := services.NewStatusGuard(log, cfg.Engine, presenceMap, cooldownMap, m)
	tokenSvc := services.NewTokenService(cfg.SecretToken)
	defer presenceSvc.Stop()
	defer roomSvc.Stop()

	// Janitor
	janitor := services.NewJanitor(log, cfg.Engine, presenceMap, cooldownMap, m)
	go janitor.Run(ctx)

	// Server
	limiter := ratelimiter.New(cfg.Engine.MessageRate, cfg.Engine.MessageBurst, 10*time.Minute)
	wsHandler := handlers.NewWSHandler(hub, presenceSvc, roomSvc, relaySvc, seenSvc, guardSvc, limiter)
	msgHandler := handlers.NewMessageHandler(msgStore, relaySvc)
	srv := server.NewServer(log, cfg.Service.Name, cfg.Service.Addr, tokenSvc, wsHandler, msgHandler, promRegistry)
	if err := srv.Start(ctx); err != nil {
		log.Error("server stopped", "err", err)
	}
}
