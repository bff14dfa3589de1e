package main

import (
	"context"
	"fmt"
	"log"

	"github.com/kdimtricp/humetube/internal/config"
	"github.com/kdimtricp/humetube/internal/database"
	"github.com/kdimtricp/humetube/internal/pipeline"
	"github.com/kdimtricp/humetube/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	fmt.Println("🔍 Checking Emotion Analysis State")
	fmt.Println("==================================")

	if cfg.AI.HumeAPIKey == "" {
		fmt.Println("⚠️  WARNING: HUME_API_KEY is not configured!")
	} else {
		fmt.Println("✅ Hume API key configured")
	}
	if cfg.CallbackURL == "" {
		fmt.Println("⚠️  WARNING: no callback URL, set HUMETUBE_API_URL or CALLBACK_URL")
	} else {
		fmt.Printf("✅ Callback URL: %s\n", cfg.CallbackURL)
	}
	fmt.Println()

	store, closer, err := database.OpenStore(cfg.Database, cfg.MigrationsPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer closer.Close()

	ctx := context.Background()
	for _, ns := range pipeline.Namespaces {
		entries, err := store.List(ctx, ns.Prefix)
		if err != nil {
			log.Fatalf("Failed to list %s: %v", ns.Prefix, err)
		}
		fmt.Printf("📦 %s (%s): %d\n", ns.Name, ns.Prefix, len(entries))
	}

	pending, err := scheduler.NewQueue(store).Pending(ctx)
	if err != nil {
		log.Fatal("Failed to count reanalysis tasks:", err)
	}
	fmt.Printf("⏳ Pending reanalysis tasks (%s): %d\n", scheduler.QueuePrefix, pending)
}
