package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/xgirouxb/open-ice/cmd"
	"github.com/xgirouxb/open-ice/internal/catalog"
	"github.com/xgirouxb/open-ice/internal/core"
	"github.com/xgirouxb/open-ice/internal/database"
	"github.com/xgirouxb/open-ice/internal/geo"
	"github.com/xgirouxb/open-ice/internal/messaging"
	"github.com/xgirouxb/open-ice/internal/storage"

	"github.com/caarlos0/env/v11"
)

type WorkerConfig struct {
	DatabaseURL       string `env:"DATABASE_URL,notEmpty,required"`
	RabbitMQURL       string `env:"RABBITMQ_URL,notEmpty,required"`
	LakesFile         string `env:"LAKES_FILE,notEmpty,required"`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION"`
	SceneBucket       string `env:"SCENE_BUCKET" envDefault:"scenes"`
	ResultBucket      string `env:"RESULT_BUCKET" envDefault:"results"`
}

func main() {
	log.Println("Starting Worker Process...")

	cmd.LoadEnvFile()

	var cfg WorkerConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	lakes, err := geo.LoadLakesFile(cfg.LakesFile)
	if err != nil {
		log.Fatalf("Failed to load lakes file: %v", err)
	}

	store, err := storage.NewS3ObjectStore(storage.S3ClientConfig{
		Endpoint:        cfg.S3EndpointURL,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		log.Fatalf("Failed to create object store: %v", err)
	}

	receiver, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

	detector := core.NewDetector(catalog.New(store, cfg.SceneBucket), lakes)
	processor := core.NewTaskProcessor(db, store, receiver, detector, cfg.ResultBucket)

	go processor.Start()

	log.Println("Worker started. Waiting for tasks. Press Ctrl+C to exit.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutdown signal received, stopping worker...")
	processor.Stop()

	log.Println("Worker process stopped.")
}
