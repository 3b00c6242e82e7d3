package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"example.com/socialfeed/cmd/server"
	"example.com/socialfeed/cmd/worker"
	"example.com/socialfeed/internal/blob"
	appkafka "example.com/socialfeed/internal/broker"
	config "example.com/socialfeed/internal/init"
	"example.com/socialfeed/internal/logger"
	"example.com/socialfeed/internal/store"
)

func main() {
	// Initialize application configuration
	cfg := config.Init()
	logger.SetLevel(cfg.LogLevel)
	defer logger.Sync()

	// Initialize Cassandra store connection
	st, err := store.New()
	if err != nil {
		log.Fatalf("Cassandra connection failed: %v", err)
	}
	defer st.Close()

	// Configure Kafka client parameters
	kafkaCfg := appkafka.KafkaConfig{
		Brokers:      []string{cfg.KafkaBroker},
		Topic:        cfg.KafkaTopic,
		Partition:    cfg.KafkaPartition,
		GroupID:      cfg.KafkaGroupID,
		WriteTimeout: cfg.KafkaWriteTO,
		BatchTimeout: cfg.KafkaBatchTO,
		ReadTimeout:  cfg.KafkaReadTO,
	}

	// Setup OS signal handling for graceful shutdown (SIGINT, SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cfg.Mode {
	case "server":
		blobs, err := newBlobStore(cfg)
		if err != nil {
			log.Fatalf("Blob storage init failed: %v", err)
		}
		// the server closes the writer after draining requests
		server.Run(ctx, st, blobs, appkafka.NewKafkaWriter(kafkaCfg), cfg)
	case "worker":
		reader := appkafka.NewKafkaReader(kafkaCfg)
		defer reader.Close()
		w := worker.New(st, reader, cfg.WorkerCount, cfg.WorkerQueueSize, cfg.FanoutLimit)
		w.Run(ctx)
	default:
		log.Fatalf("unknown mode: %s", cfg.Mode)
	}

	log.Println("Shutdown completed")
}

func newBlobStore(cfg *config.Config) (blob.Store, error) {
	switch cfg.BlobBackend {
	case "s3":
		return blob.NewS3Client(cfg.S3Region, cfg.S3Bucket)
	default:
		return blob.NewLocalStorage(cfg.BlobLocalPath, cfg.BlobPublicURL)
	}
}
