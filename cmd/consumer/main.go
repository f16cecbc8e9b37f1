package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"example.com/signup/internal/config"
	"example.com/signup/internal/consumer"
	"example.com/signup/internal/logger"
	pgstore "example.com/signup/internal/persistence/postgres"
	httptransport "example.com/signup/internal/transport/http"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}

	runErr := run(cfg, log)
	if runErr != nil {
		log.Error("consumer failed", "error", runErr)
	}
	log.Sync()
	if runErr != nil {
		os.Exit(1)
	}
}

// run returns an error when the processor stops on a message it could not
// handle, so the process exits non-zero and restarts from the committed offset.
func run(cfg config.Config, log *logger.Logger) error {
	if !cfg.EventsEnabled() {
		return errors.New("KAFKA_BROKERS is required for the roster consumer")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	pool, err := pgstore.Connect(connectCtx, cfg.PostgresURL, cfg.PostgresMaxConns)
	if err != nil {
		cancel()
		return fmt.Errorf("prepare postgres: %w", err)
	}
	defer pool.Close()
	err = pgstore.Migrate(connectCtx, pool)
	cancel()
	if err != nil {
		return fmt.Errorf("prepare postgres: %w", err)
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", promhttp.Handler())
	metricsSrv := httptransport.NewServer(httptransport.ServerConfig{
		Address:     cfg.MetricsAddress,
		ReadTimeout: 5 * time.Second,
	}, metricsMux)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("consumer metrics listening", "address", cfg.MetricsAddress)
		if err := httptransport.Serve(ctx, metricsSrv, cfg.ShutdownTimeout); err != nil {
			log.Error("metrics server error", "error", err)
		}
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.ConsumerGroupID,
		Topic:           cfg.RosterTopic,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		RetentionTime:   24 * time.Hour,
		ReadLagInterval: -1,
	})
	defer reader.Close()

	proc := consumer.NewProcessor(reader, consumer.NewRosterLogHandler(pool), consumer.WithLogger(log))

	log.Info("consumer started", "topic", cfg.RosterTopic, "group", cfg.ConsumerGroupID)
	runErr := proc.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	if runErr == nil {
		log.Info("consumer shutdown requested")
	}
	stop()
	wg.Wait()
	return runErr
}
