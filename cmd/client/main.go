package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/openkin/circlesync/internal/adapter"
	"github.com/openkin/circlesync/internal/client"
	"github.com/openkin/circlesync/internal/config"
	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/internal/store"
	"github.com/openkin/circlesync/internal/workers"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	// optional .env for local development, real deployments use the environment
	_ = godotenv.Load()

	log := logger.NewDeviceLogger("circlesync-agent")
	cfg, err := config.GetDeviceConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGQUIT,
	)
	defer stop()

	storages, err := store.NewClientStorages(cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating local storage")
	}

	serverAdapter, err := adapter.NewHTTPServerAdapter(cfg.Adapter, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating server adapter")
	}

	agent, err := client.NewDeviceSyncClient(storages.State, serverAdapter, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating device sync client")
	}
	defer agent.Close() //nolint:errcheck

	if err = agent.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("error initializing device sync client")
	}

	events, unsubscribe := agent.Events()
	defer unsubscribe()
	go logEvents(events, log)

	jobs := workers.NewWorkers(workers.NewSyncJob(agent, cfg.Workers, log))
	jobs.Run()
	defer jobs.Stop()

	log.Info().Msg("device agent running")
	<-ctx.Done()
	log.Info().Msg("device agent shutting down")
}

func logEvents(events <-chan client.Event, log *logger.Logger) {
	for event := range events {
		entry := log.Info().Str("event", string(event.Type))
		if event.CircleID != "" {
			entry = entry.Str("circle_id", event.CircleID)
		}
		if event.Err != nil {
			entry = entry.Err(event.Err)
		}
		entry.Msg("client event")
	}
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}

	if buildDate == "" {
		buildDate = "N/A"
	}

	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
