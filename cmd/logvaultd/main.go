package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"logvault/internal/config"
	"logvault/internal/httpapi"
	"logvault/internal/ingest"
	"logvault/internal/ingest/kafka"
	"logvault/internal/ingest/rabbitmq"
	"logvault/internal/storage/sqlite"
)

func main() {
	cfgPath := flag.String("config", "logvault.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := sqlite.NewStore(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	gate := ingest.NewGate(store)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Ingest.Kafka.Enabled {
		adapter, err := kafka.NewAdapter(kafka.Config{
			Enabled:        true,
			Brokers:        cfg.Ingest.Kafka.Brokers,
			Topics:         cfg.Ingest.Kafka.Topics,
			GroupID:        cfg.Ingest.Kafka.GroupID,
			ClientID:       cfg.Ingest.Kafka.ClientID,
			WorkerCount:    cfg.Ingest.Kafka.WorkerCount,
			MaxPollRecords: cfg.Ingest.Kafka.MaxPollRecords,
			QueueCapacity:  cfg.Ingest.Kafka.QueueCapacity,
			Fetch:          kafka.FetchConfig{MaxWait: cfg.Ingest.Kafka.FetchMaxWait},
		}, gate)
		if err != nil {
			log.Fatalf("kafka adapter: %v", err)
		}
		go func() {
			if err := adapter.Start(ctx); err != nil && ctx.Err() == nil {
				log.Printf("kafka adapter stopped: %v", err)
			}
		}()
	}

	if cfg.Ingest.RabbitMQ.Enabled {
		adapter, err := rabbitmq.NewAdapter(rabbitmq.Config{
			Enabled:       true,
			URL:           cfg.Ingest.RabbitMQ.URL,
			Exchange:      cfg.Ingest.RabbitMQ.Exchange,
			Queue:         cfg.Ingest.RabbitMQ.Queue,
			RoutingKeys:   cfg.Ingest.RabbitMQ.RoutingKeys,
			ConsumerTag:   cfg.Ingest.RabbitMQ.ConsumerTag,
			PrefetchCount: cfg.Ingest.RabbitMQ.PrefetchCount,
			Workers:       cfg.Ingest.RabbitMQ.Workers,
			DeliveryQueue: cfg.Ingest.RabbitMQ.DeliveryQueue,
		}, gate)
		if err != nil {
			log.Fatalf("rabbitmq adapter: %v", err)
		}
		if err := adapter.Start(ctx); err != nil {
			log.Fatalf("start rabbitmq adapter: %v", err)
		}
		defer adapter.Close()
	}

	srv := httpapi.New(httpapi.Config{
		ListenAddr: cfg.Server.ListenAddr,
		AuthToken:  cfg.Server.AuthToken,
	}, store, gate)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		log.Printf("shutting down")
	case err := <-errCh:
		log.Fatalf("http server: %v", err)
	}
}
