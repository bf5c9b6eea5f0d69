package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"photohub/internal/auth"
	"photohub/internal/events"
	"photohub/internal/logging"
	"photohub/internal/models"
	"photohub/internal/processor"
	"photohub/internal/server"
	"photohub/internal/service"
	"photohub/internal/storage"
)

func main() {
	log := logging.Logger()

	cfg, err := models.LoadConfig("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log = logging.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStorage(ctx, cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init storage")
	}

	authenticator, err := auth.NewAuthenticator(cfg.Auth, auth.NewMemoryRevocationStore())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init auth")
	}
	renderer, err := processor.NewProfileRenderer()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load profile font")
	}

	var pub events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled() {
		pub = events.NewKafkaPublisher(cfg.Kafka)
	}
	defer pub.Close()

	assets := service.NewAssets(cfg.UploadDir)
	filters := service.NewFilterService(store.Photos, processor.New(), assets, pub)

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Kafka.Enabled() {
		filters.WithJobs(pub)
		consumer := events.NewConsumer(cfg.Kafka, filters.HandleJob)
		g.Go(func() error { return consumer.Run(ctx) })
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.JobsTopic).Msg("filter job consumer started")
	}

	srv := server.NewServer(cfg, server.Deps{
		Photos:  service.NewPhotoService(store.Photos, assets, pub),
		Filters: filters,
		Users:   service.NewUserService(store.Users, authenticator, renderer, cfg.ProfileDir, cfg.PublicURL),
		Tags:    store.Tags,
	})
	g.Go(func() error { return srv.Run(ctx) })

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		_ = pub.Close()
		os.Exit(1)
	}
	log.Info().Msg("shutdown complete")
}
