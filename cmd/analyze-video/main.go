package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/kdimtricp/humetube/internal/config"
	"github.com/kdimtricp/humetube/internal/database"
	"github.com/kdimtricp/humetube/internal/pipeline"
)

func main() {
	var videoID = flag.String("id", "", "Video ID to analyze")
	flag.Parse()

	if *videoID == "" {
		log.Fatal("Please provide video ID with -id flag")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	store, closer, err := database.OpenStore(cfg.Database, cfg.MigrationsPath)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer closer.Close()

	// Aggregation only reads and writes the store.
	service := pipeline.NewService(store, nil, nil, nil, nil, cfg.Pipeline)

	analysis, err := service.Analyze(context.Background(), *videoID)
	if err != nil {
		log.Fatal("Failed to analyze video:", err)
	}

	fmt.Printf("Analyzing video: %s\n", analysis.VideoID)
	fmt.Printf("Predictions scanned: %d\n", analysis.SnapshotsAnalyzed)
	for _, point := range analysis.Emotions {
		fmt.Printf("  %6ds  %s %-22s %.2f\n", point.Timestamp, point.Emoji, point.Name, point.Amplitude)
	}
	fmt.Println("Analysis complete!")
}
