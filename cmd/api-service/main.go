package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trackersync/internal/api"
	"trackersync/pkg/config"
	"trackersync/pkg/logger"
	"trackersync/pkg/postgres"
	"trackersync/pkg/rabbitmq"

	_ "trackersync/docs"
)

// @title           Tracker Sync API
// @version         1.0
// @description     Accepts user tracking events and publishes them to RabbitMQ for dispatch to the CRM, analytics and webhook trackers.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
func main() {
	cfg, err := config.LoadForService("api")
	if err != nil {
		boot := logger.Init(logger.Options{Service: "api-service"})
		boot.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: "api-service"})
	log.Info().Msg("starting api-service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer db.Close()

	if err := postgres.RunMigrations(ctx, db, "api", log); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	rmqConn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}
	defer rmqConn.Close()

	publisher, err := rabbitmq.NewPublisher(rmqConn, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create publisher")
	}
	defer publisher.Close()

	router := api.NewRouter(
		api.NewTrackHandler(publisher),
		api.NewUserHandler(postgres.NewUserRepository(db)),
		log,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.APIPort).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}
	log.Info().Msg("server exited gracefully")
}
