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

	"github.com/kdimtricp/humetube/internal/ai"
	"github.com/kdimtricp/humetube/internal/api"
	"github.com/kdimtricp/humetube/internal/config"
	"github.com/kdimtricp/humetube/internal/database"
	"github.com/kdimtricp/humetube/internal/notify"
	"github.com/kdimtricp/humetube/internal/pipeline"
	"github.com/kdimtricp/humetube/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	store, closer, err := database.OpenStore(cfg.Database, cfg.MigrationsPath)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer closer.Close()

	humeClient, err := ai.NewHumeClient(cfg.AI)
	if err != nil {
		log.Fatal("Failed to initialize Hume client:", err)
	}

	hub := notify.NewHub()
	queue := scheduler.NewQueue(store)
	service := pipeline.NewService(store, humeClient, ai.NewPayloadDecoder(cfg.ImageURLHosts...), queue, hub, cfg.Pipeline)
	worker := scheduler.NewWorker(queue, service, cfg.Scheduler)

	app := &api.App{
		Pipeline:    service,
		Hub:         hub,
		MaxBodySize: cfg.MaxBodySize,
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	go func() {
		<-ctx.Done()
		log.Printf("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", cfg.Port)
	log.Printf("Callback URL: %s", cfg.CallbackURL)
	log.Printf("Database type: %s", cfg.Database.Type)
	log.Printf("Reanalysis delay: %s, debounce policy: %s", cfg.Pipeline.ReanalysisDelay, cfg.Scheduler.Policy)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}

	wg.Wait()
}
