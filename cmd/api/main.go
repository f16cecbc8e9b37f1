package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/signup/internal/api"
	"example.com/signup/internal/config"
	"example.com/signup/internal/domain"
	"example.com/signup/internal/events"
	"example.com/signup/internal/logger"
	"example.com/signup/internal/persistence/memory"
	mongostore "example.com/signup/internal/persistence/mongo"
	pgstore "example.com/signup/internal/persistence/postgres"
	httptransport "example.com/signup/internal/transport/http"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open store", "driver", cfg.StoreDriver, "error", err)
	}
	defer closeStore()

	seedCtx, seedCancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	inserted, err := domain.NewSeeder(repo, domain.SeedActivities(), log).EnsureSeedData(seedCtx)
	seedCancel()
	if err != nil {
		log.Fatal("failed to seed activities", "error", err)
	}
	log.Info("seed data ensured", "inserted", inserted)

	opts := []domain.Option{domain.WithLogger(log)}
	if cfg.EventsEnabled() {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.RosterTopic)
		defer publisher.Close()
		opts = append(opts, domain.WithPublisher(publisher))
		log.Info("roster events enabled", "topic", cfg.RosterTopic)
	}
	service := domain.NewService(repo, opts...)

	handler := api.NewHandler(service,
		api.WithLogger(log),
		api.WithStaticPrefix(cfg.StaticPrefix),
		api.WithStoreTimeout(cfg.StoreTimeout),
	)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	api.MountStatic(mux, cfg.StaticPrefix, cfg.StaticDir)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, api.Chain(mux, api.Observe(log), api.CORS(cfg.CORSOrigin)))

	log.Info("signup-service listening", "address", cfg.HTTPAddress, "store", cfg.StoreDriver)
	if err := httptransport.Serve(ctx, server, cfg.ShutdownTimeout); err != nil {
		log.Error("server error", "error", err)
	}
}

func openStore(ctx context.Context, cfg config.Config) (domain.ActivityRepository, func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()

	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, err := mongostore.Connect(connectCtx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		coll := client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)
		return mongostore.NewRepository(coll), func() { _ = client.Disconnect(context.Background()) }, nil
	case config.StorePostgres:
		pool, err := pgstore.Connect(connectCtx, cfg.PostgresURL, cfg.PostgresMaxConns)
		if err != nil {
			return nil, nil, err
		}
		if err := pgstore.Migrate(connectCtx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pgstore.NewRepository(pool), pool.Close, nil
	case config.StoreMemory:
		return memory.NewRepository(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
