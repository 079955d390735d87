package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trackersync/internal/consumer"
	"trackersync/internal/tracker"
	"trackersync/pkg/config"
	"trackersync/pkg/logger"
	"trackersync/pkg/models"
	"trackersync/pkg/postgres"
	"trackersync/pkg/rabbitmq"
)

func main() {
	cfg, err := config.LoadForService("tracker")
	if err != nil {
		boot := logger.Init(logger.Options{Service: "tracker-consumer"})
		boot.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: "tracker-consumer"})
	log.Info().Msg("starting tracker-consumer")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer db.Close()

	if err := postgres.RunMigrations(ctx, db, "tracker", log); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	rmqConn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}
	defer rmqConn.Close()

	trackers, err := buildTrackers(cfg, db, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure trackers")
	}

	lookup := postgres.NewUserRepository(db)
	policy := tracker.Config{EnableForTestUsers: cfg.Tracker.TestUsersEnabled()}
	if policy.EnableForTestUsers {
		log.Warn().Msg(tracker.TestUsersWarning)
	}

	for _, t := range trackers {
		d := tracker.New[models.TrackEvent](t, lookup, policy, tracker.WithLogger(log))
		queue, dlq := rabbitmq.QueueNames(d.Name())
		consumerCfg := rabbitmq.ConsumerConfig{
			QueueName:    queue,
			DLQName:      dlq,
			RoutingKeys:  []string{models.RoutingKeyPrefix + "#"},
			ConsumerName: d.Name() + "-tracker",
		}
		c := consumer.New(log.With().Str("tracker", d.Name()).Logger(), d)
		if err := rabbitmq.SetupConsumer(ctx, rmqConn, consumerCfg, c.HandleMessage, log); err != nil {
			log.Fatal().Err(err).Str("tracker", d.Name()).Msg("failed to setup consumer")
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("port", cfg.MetricsPort).Msg("metrics listener started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics listener error")
		}
	}()

	log.Info().Int("trackers", len(trackers)).Msg("consumers running, waiting for messages")
	<-ctx.Done()

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
