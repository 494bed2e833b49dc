package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/zoff-tech/go-worker/pkg/config"
	"github.com/zoff-tech/go-worker/pkg/logger"
	"github.com/zoff-tech/go-worker/pkg/telemetry"
	"github.com/zoff-tech/go-worker/pkg/worker"
)

func main() {
	// Load configuration from file or environment
	cfg, err := config.LoadFromFile("./cmd/worker")
	if err != nil {
		log.Fatal("Error loading configuration: ", err)
	}

	logg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer logg.Sync()

	// Tracing is optional; the worker runs fine without a collector.
	if cfg.Observability.TracingURL != "" {
		shutdownTelemetry, err := telemetry.Init(cfg.Observability, logg)
		if err != nil {
			logg.Fatal("failed to initialize telemetry", logger.Error(err))
		}
		defer shutdownTelemetry()
	}

	registry := worker.Registry{}
	registry.Register("echo", echoTask)

	actor := worker.NewActor(cfg, logg, registry)

	// SIGTERM and interrupt both map onto the same in-process STOP signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, os.Interrupt)
	go func() {
		<-sigCh
		actor.Stop()
	}()

	if err := actor.Run(context.Background()); err != nil {
		logg.Fatal("worker failed", logger.Error(err))
	}
}
