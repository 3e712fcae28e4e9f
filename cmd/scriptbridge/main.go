package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/scriptbridge/internal/bridge"
	"github.com/GriffinCanCode/scriptbridge/internal/browser"
	"github.com/GriffinCanCode/scriptbridge/internal/gatekeeper"
	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/scriptbridge/internal/session"
	"github.com/GriffinCanCode/scriptbridge/internal/shared/id"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "scriptbridge: %v\n", err)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "scriptbridge: %v\n", err)
		return 1
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Development = cfg.Logging.Development
	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scriptbridge: build logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	log := logger.With(zap.String("instance_id", id.NewInstanceID().String())).Logger
	log.Info("Starting scriptbridge",
		zap.String("engine", cfg.Browser.Engine),
		zap.Bool("debug", cfg.DebugMode()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := monitoring.NewMetrics()
	state := session.New()
	keeper := gatekeeper.New(state, log.Named("gatekeeper")).WithMetrics(metrics)

	engine, err := browser.Open(ctx, cfg, keeper, log)
	if err != nil {
		log.Error("Failed to start browser", zap.Error(err))
		return 1
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Warn("Error closing browser", zap.Error(err))
		}
	}()

	if cfg.Metrics.Addr != "" {
		health := func() any { return state.Snapshot() }
		metricsServer := monitoring.NewServer(cfg.Metrics.Addr, metrics, health, log.Named("metrics"))
		metricsServer.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Warn("Error stopping metrics endpoint", zap.Error(err))
			}
		}()
	}

	if err := engine.Navigate(ctx, gatekeeper.HomeURL); err != nil {
		log.Error("Failed to load home page", zap.String("url", gatekeeper.HomeURL), zap.Error(err))
		return 1
	}

	handler := bridge.NewHandler(state, engine, log.Named("bridge")).WithMetrics(metrics)
	server := bridge.NewServer(handler, os.Stdin, os.Stdout, log.Named("ipc")).WithMetrics(metrics)

	if err := server.AnnounceWaiting(); err != nil {
		log.Error("Failed to write startup line", zap.Error(err))
		return 1
	}
	log.Info("Waiting for init", zap.String("url", gatekeeper.HomeURL))

	if err := server.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Serve failed", zap.Error(err))
		return 1
	}

	log.Info("Shutting down")
	return 0
}
