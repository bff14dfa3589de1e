package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/kdimtricp/humetube/internal/ai"
	"github.com/kdimtricp/humetube/internal/config"
	"github.com/kdimtricp/humetube/internal/database"
	"github.com/kdimtricp/humetube/internal/pipeline"
	"github.com/kdimtricp/humetube/internal/scheduler"
)

// reconcile-job pulls the predictions of a finished job from Hume and runs
// them through the same reconciliation as the callback. Use it when a
// callback never arrived.
func main() {
	var (
		jobID   = flag.String("job", "", "Hume job ID to reconcile")
		analyze = flag.Bool("analyze", false, "Rebuild the timelines of affected videos right away")
		timeout = flag.Duration("timeout", time.Minute, "Overall timeout")
	)
	flag.Parse()

	if *jobID == "" {
		log.Fatal("Please provide job ID with -job flag")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	client, err := ai.NewHumeClient(cfg.AI)
	if err != nil {
		log.Fatal("Failed to initialize Hume client:", err)
	}

	store, closer, err := database.OpenStore(cfg.Database, cfg.MigrationsPath)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	results, err := client.GetJobPredictions(ctx, *jobID)
	if err != nil {
		log.Fatal("Failed to fetch predictions:", err)
	}
	fmt.Printf("Fetched %d result(s) for job %s\n", len(results), *jobID)

	queue := scheduler.NewQueue(store)
	service := pipeline.NewService(store, client, ai.NewPayloadDecoder(cfg.ImageURLHosts...), queue, nil, cfg.Pipeline)

	videoIDs, err := service.Reconcile(ctx, *jobID, results)
	if err != nil {
		log.Fatal("Failed to reconcile job:", err)
	}
	fmt.Printf("Reconciled videos: %v\n", videoIDs)

	if !*analyze {
		return
	}
	for _, videoID := range videoIDs {
		analysis, err := service.Analyze(ctx, videoID)
		if err != nil {
			log.Printf("Failed to analyze %s: %v", videoID, err)
			continue
		}
		fmt.Printf("✓ %s: %d timeline point(s)\n", videoID, len(analysis.Emotions))
	}
}
