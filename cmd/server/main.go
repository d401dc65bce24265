package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"

	"github.com/openkin/circlesync/internal/config"
	handler "github.com/openkin/circlesync/internal/handler/http"
	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/internal/realtime"
	"github.com/openkin/circlesync/internal/server"
	"github.com/openkin/circlesync/internal/service"
	"github.com/openkin/circlesync/internal/store"
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

	log := logger.NewLogger("circlesync-server")
	cfg, err := config.GetServerConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	ctx := context.Background()

	storages, err := store.NewStorages(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating storages")
	}
	defer storages.Close() //nolint:errcheck

	services := service.NewServices(storages, cfg, log)

	hub := realtime.NewHub(cfg.Realtime, log)

	var broadcaster realtime.Broadcaster = hub
	if cfg.Storage.Redis.URL != "" {
		relay, err := realtime.NewRedisRelay(ctx, cfg.Storage.Redis.URL, hub, log)
		if err != nil {
			log.Fatal().Err(err).Msg("error connecting to redis relay")
		}
		defer relay.Close() //nolint:errcheck
		broadcaster = relay
	}

	handlers := handler.NewHandler(services, hub, broadcaster, storages.Circles, log)

	srv, err := server.NewServer(handlers.Init(), cfg.Server, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating server")
	}

	srv.RunServer()
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
