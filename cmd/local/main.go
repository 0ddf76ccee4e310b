// The local binary runs the whole stack in one process: sqlite for jobs, an
// in-memory queue, and a directory-backed object store. Useful for running
// analyses on a laptop against a locally synced scene archive.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/xgirouxb/open-ice/cmd"
	"github.com/xgirouxb/open-ice/internal/api"
	"github.com/xgirouxb/open-ice/internal/catalog"
	"github.com/xgirouxb/open-ice/internal/core"
	"github.com/xgirouxb/open-ice/internal/database"
	"github.com/xgirouxb/open-ice/internal/geo"
	"github.com/xgirouxb/open-ice/internal/messaging"
	"github.com/xgirouxb/open-ice/internal/storage"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Config struct {
	Root         string `env:"ROOT" envDefault:"./open-ice"`
	Port         int    `env:"PORT" envDefault:"3001"`
	LakesFile    string `env:"LAKES_FILE,notEmpty,required"`
	SceneBucket  string `env:"SCENE_BUCKET" envDefault:"scenes"`
	ResultBucket string `env:"RESULT_BUCKET" envDefault:"results"`
}

func createDatabase(root string) *gorm.DB {
	path := filepath.Join(root, "db", "open-ice.db")
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.GetMigrator(db).Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	return db
}

// createQueue re-enqueues jobs that were queued when the process last
// stopped.
func createQueue(db *gorm.DB) *messaging.InMemoryQueue {
	var jobs []database.BreakupJob
	if err := db.Where("status = ? AND deleted = ?", database.JobQueued, false).Find(&jobs).Error; err != nil {
		log.Fatalf("Failed to fetch jobs from database: %v", err)
	}

	queue := messaging.NewInMemoryQueue()

	for _, job := range jobs {
		if err := queue.PublishBreakupTask(context.Background(), messaging.BreakupTaskPayload{
			JobId: job.Id,
		}); err != nil {
			log.Fatalf("Failed to publish breakup task: %v", err)
		}
	}

	return queue
}

func createServer(db *gorm.DB, queue messaging.Publisher, lakes *geo.LakeSource, port int) *http.Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300, // Cache preflight response for 5 minutes
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)                    // Log requests
	r.Use(middleware.Recoverer)                 // Recover from panics
	r.Use(middleware.Timeout(60 * time.Second)) // Set request timeout

	apiHandler := api.NewBackendService(db, queue, lakes)

	r.Route("/api/v1", func(r chi.Router) {
		apiHandler.AddRoutes(r)
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}

func main() {
	cmd.LoadEnvFile()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db := createDatabase(cfg.Root)

	lakes, err := geo.LoadLakesFile(cfg.LakesFile)
	if err != nil {
		log.Fatalf("Failed to load lakes file: %v", err)
	}

	store, err := storage.NewLocalObjectStore(filepath.Join(cfg.Root, "objects"))
	if err != nil {
		log.Fatalf("Failed to create object store: %v", err)
	}
	for _, bucket := range []string{cfg.SceneBucket, cfg.ResultBucket} {
		if err := store.CreateBucket(context.Background(), bucket); err != nil {
			log.Fatalf("Failed to create bucket %s: %v", bucket, err)
		}
	}

	queue := createQueue(db)

	detector := core.NewDetector(catalog.New(store, cfg.SceneBucket), lakes)
	processor := core.NewTaskProcessor(db, store, queue, detector, cfg.ResultBucket)
	go processor.Start()

	server := createServer(db, queue, lakes, cfg.Port)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("Server listening on port %d", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on port %d: %v", cfg.Port, err)
	}

	log.Println("Server stopped.")
}
