package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"basement-monitor/internal/alerting"
	"basement-monitor/internal/api"
	"basement-monitor/internal/config"
	"basement-monitor/internal/db"
	"basement-monitor/internal/ingest"
	"basement-monitor/internal/kafka"
	"basement-monitor/internal/logging"
	"basement-monitor/internal/memstore"
	"basement-monitor/internal/mongodb"
	"basement-monitor/internal/mqtt"
	"basement-monitor/internal/notification"
	"basement-monitor/internal/providers"
	"basement-monitor/internal/store"
)

const (
	connectTimeout  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Config load failed:", err)
	}

	// Initialize logger
	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatal("Logger init failed:", err)
	}
	defer logger.Close()

	// Connect to storage
	st, err := openStore(cfg, logger)
	if err != nil {
		logger.Errorf("Storage init failed: %v", err)
		log.Fatal("Storage init failed:", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Errorf("Storage close failed: %v", err)
		} else {
			logger.Infof("Storage closed")
		}
	}()

	// Notification channels
	hub := providers.NewHub(logger)
	channels := []notification.Channel{hub}
	if cfg.Email.Enabled() {
		ch, err := providers.NewEmail(cfg.Email, logger)
		if err != nil {
			log.Fatal("Email channel init failed:", err)
		}
		channels = append(channels, ch)
	}
	if cfg.Telegram.Enabled() {
		ch, err := providers.NewTelegram(cfg.Telegram, logger)
		if err != nil {
			log.Fatal("Telegram channel init failed:", err)
		}
		channels = append(channels, ch)
	}
	var publisher *kafka.Publisher
	if cfg.Kafka.Broker != "" && cfg.Kafka.AlertsTopic != "" {
		publisher, err = kafka.NewPublisher(cfg.Kafka)
		if err != nil {
			log.Fatal("Kafka publisher init failed:", err)
		}
		channels = append(channels, publisher)
	}
	notifier := notification.New(cfg.Alerting, logger, channels...)
	logger.Infof("Notification channels: %v", notifier.Channels())

	// Alerting core
	evaluator := alerting.NewEvaluator(st, cfg.Alerting)
	machine := alerting.NewMachine(st, notifier, cfg.Alerting, logger)
	svc := ingest.NewService(st, evaluator, machine, logger)
	logger.Infof("Alerting: temp %s, humidity %s, window %d, renotify %s",
		cfg.Alerting.Temperature, cfg.Alerting.Humidity, cfg.Alerting.WindowSize, cfg.RenotifyDelayString())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	// Optional ingestion transports
	var consumer *kafka.Consumer
	if cfg.Kafka.Broker != "" && cfg.Kafka.ReadingsTopic != "" {
		consumer, err = kafka.NewConsumer(cfg.Kafka, svc, logger)
		if err != nil {
			log.Fatal("Kafka consumer init failed:", err)
		}
		consumer.Start(ctx, &wg)
		logger.Infof("Kafka consumer initialized with topic: %s", cfg.Kafka.ReadingsTopic)
	}
	var subscriber *mqtt.Subscriber
	if cfg.MQTT.Broker != "" {
		subscriber = mqtt.NewSubscriber(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic, svc, logger)
		if err := subscriber.Start(); err != nil {
			log.Fatal("MQTT subscriber init failed:", err)
		}
	}

	// Start API server
	r := api.NewRouter(st, svc, http.HandlerFunc(hub.Serve), logger, cfg)
	srv := &http.Server{Addr: cfg.Addr(), Handler: r}
	go func() {
		logger.Infof("API started on %s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("API run failed: %v", err)
			cancel()
		}
	}()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	select {
	case <-c:
	case <-ctx.Done():
	}
	logger.Infof("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API shutdown failed: %v", err)
	}
	cancel()
	if subscriber != nil {
		subscriber.Close()
	}
	if consumer != nil {
		consumer.Close()
	}
	wg.Wait()
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Errorf("Kafka publisher close failed: %v", err)
		}
	}
	logger.Infof("Service stopped")
}

func openStore(cfg config.Config, logger *logging.Logger) (store.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	switch cfg.Storage.Backend {
	case config.BackendMongo:
		m, err := mongodb.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		if err := m.EnsureIndexes(ctx); err != nil {
			_ = m.Close()
			return nil, err
		}
		logger.Infof("Using MongoDB storage (database %s)", cfg.Mongo.Database)
		return m, nil
	case config.BackendMemory:
		logger.Warnf("Using in-memory storage, data is lost on restart")
		return memstore.New(), nil
	default:
		d, err := db.New(ctx, cfg.DB.DSN)
		if err != nil {
			return nil, err
		}
		if err := d.Migrate(ctx); err != nil {
			_ = d.Close()
			return nil, err
		}
		logger.Infof("Using Postgres storage")
		return d, nil
	}
}
