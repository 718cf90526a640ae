package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"health-monitor/ingestion/internal/config"
	"health-monitor/ingestion/internal/engine"
	"health-monitor/ingestion/internal/logging"
	"health-monitor/ingestion/internal/model"
	"health-monitor/ingestion/internal/pipeline"
	"health-monitor/ingestion/internal/store"
	httptransport "health-monitor/ingestion/internal/transport/http"
	"health-monitor/ingestion/internal/transport/mqtt"
)

func main() {
	// .env is optional; the system environment applies either way.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogJSON)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := store.NewPostgresStore(ctx, cfg)
	if err != nil {
		log.Error("postgres init failed", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	redisStore, err := store.NewRedisStore(ctx, cfg)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()

	forest := model.Load(cfg.ModelPath, time.Duration(cfg.ModelTimeoutMS)*time.Millisecond, log)
	eng := engine.New(forest)

	states := make(chan *pipeline.StateUpdate, cfg.StateChannelSize)
	coordinator := pipeline.NewCoordinator(eng, pg, states, log)
	stateWriter := pipeline.NewStateWriter(states, redisStore, log)

	httpServer := httptransport.NewServer(
		":"+cfg.HTTPPort,
		coordinator,
		pg,
		forest.Loaded,
		time.Duration(cfg.LivenessWindowSecs)*time.Second,
		log,
	)

	consumer, err := mqtt.NewConsumer(cfg, coordinator, log)
	if err != nil {
		log.Error("mqtt init failed", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stateWriter.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		return httpServer.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	log.Info("ingestion service started",
		"http_port", cfg.HTTPPort,
		"mqtt_topic", cfg.MQTTTopic,
		"model_loaded", forest.Loaded(),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("service stopped", "error", err)
		os.Exit(1)
	}
	log.Info("service stopped")
}
